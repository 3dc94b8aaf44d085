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

// Package pool provides the worker pools that execute all user handlers.
//
// Three implementations share the Pool surface: a fixed-size pool with
// round-robin dispatch, a cached pool that grows on demand and reaps idle
// workers, and a work-stealing pool with per-worker run queues. Pools make
// no fairness guarantee between unrelated tasks; fairness between
// cooperating participants is the business of higher layers.
package pool

import (
	"context"

	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// Task is a unit of work executed once on some pool worker. The context is
// the one given to Submit; it carries the ambient group and is only for
// cancellation, a task must be aware of the cancellation itself.
type Task func(ctx context.Context)

// Pool schedules submitted tasks onto a set of worker goroutines.
// All implementations are threadsafe.
type Pool interface {
	// Name returns the pool name used in logs and metric labels.
	Name() string
	// Submit enqueues a task. It runs exactly once on some worker, with the
	// given context. Returns ErrPoolShutdown after Shutdown.
	Submit(ctx context.Context, task Task) error
	// Resize changes the worker count. Tasks already started complete on
	// their original worker.
	Resize(n int) error
	// Size returns the current worker count.
	Size() int
	// Daemon reports whether Shutdown returns without draining.
	Daemon() bool
	// Shutdown rejects further submissions. Queued and in-flight tasks run
	// to completion. A non-daemon pool blocks until workers drain or the
	// context is canceled; a daemon pool returns immediately.
	Shutdown(ctx context.Context) error
}

// submission pairs a task with the context it was submitted under, so the
// ambient group travels with the task onto whichever worker runs it.
type submission struct {
	ctx  context.Context
	task Task
}

func runTask(name string, sub submission) {
	busyWorkers.WithLabelValues(name).Inc()
	defer func() {
		busyWorkers.WithLabelValues(name).Dec()
		tasksCompleted.WithLabelValues(name).Inc()
		if r := recover(); r != nil {
			log.Error("panic in pool task",
				zap.String("pool", name),
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
	}()
	sub.task(sub.ctx)
}
