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

package actor

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	runningActors = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "gpars",
			Subsystem: "actor",
			Name:      "number_of_running_actors",
			Help:      "The number of running actors in a group.",
		}, []string{"group"})
	messagesHandled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gpars",
			Subsystem: "actor",
			Name:      "messages_handled_total",
			Help:      "Total number of messages handled by actors of a group.",
		}, []string{"group"})
)

// InitMetrics registers all metrics in this file.
func InitMetrics(registry *prometheus.Registry) {
	registry.MustRegister(runningActors)
	registry.MustRegister(messagesHandled)
}
