// Copyright 2024 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package pool

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	totalWorkers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "gpars",
			Subsystem: "pool",
			Name:      "number_of_workers",
			Help:      "The total number of workers in a pool.",
		}, []string{"name"})
	busyWorkers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "gpars",
			Subsystem: "pool",
			Name:      "number_of_busy_workers",
			Help:      "The number of workers currently running a task.",
		}, []string{"name"})
	tasksSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gpars",
			Subsystem: "pool",
			Name:      "tasks_submitted_total",
			Help:      "Total number of tasks submitted to a pool.",
		}, []string{"name"})
	tasksCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gpars",
			Subsystem: "pool",
			Name:      "tasks_completed_total",
			Help:      "Total number of tasks completed by a pool.",
		}, []string{"name"})
)

// InitMetrics registers all metrics in this file.
func InitMetrics(registry *prometheus.Registry) {
	registry.MustRegister(totalWorkers)
	registry.MustRegister(busyWorkers)
	registry.MustRegister(tasksSubmitted)
	registry.MustRegister(tasksCompleted)
}
