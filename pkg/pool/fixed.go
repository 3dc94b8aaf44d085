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
	"context"
	"sync"

	"github.com/pingcap/errors"
	"github.com/pingcap/failpoint"
	"github.com/pingcap/log"
	cerror "github.com/wanglaibao/GPars/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

const fixedWorkerQueueCap = 1024

type fixedPool struct {
	name   string
	daemon bool

	// mu guards workers and closed. Submissions hold the read lock across
	// the channel send so a concurrent Resize cannot close the chosen
	// worker's queue underneath them.
	mu      sync.RWMutex
	workers []*fixedWorker
	closed  bool

	next atomic.Int32
	wg   sync.WaitGroup
}

type fixedWorker struct {
	inputCh   chan submission
	closeOnce sync.Once
}

func (w *fixedWorker) close() {
	w.closeOnce.Do(func() { close(w.inputCh) })
}

// NewFixedPool creates a pool with a fixed number of workers, each draining
// its own submission queue. Dispatch is round-robin.
func NewFixedPool(name string, size int, daemon bool) Pool {
	p := &fixedPool{name: name, daemon: daemon}
	p.workers = make([]*fixedWorker, 0, size)
	for i := 0; i < size; i++ {
		p.startWorker()
	}
	totalWorkers.WithLabelValues(name).Set(float64(size))
	return p
}

// startWorker must be called with p.mu held, or before the pool is shared.
func (p *fixedPool) startWorker() {
	w := &fixedWorker{inputCh: make(chan submission, fixedWorkerQueueCap)}
	p.workers = append(p.workers, w)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for sub := range w.inputCh {
			runTask(p.name, sub)
		}
	}()
}

func (p *fixedPool) Name() string { return p.name }

func (p *fixedPool) Daemon() bool { return p.daemon }

func (p *fixedPool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.workers)
}

func (p *fixedPool) Submit(ctx context.Context, task Task) error {
	failpoint.Inject("FixedPoolSubmitError", func() {
		failpoint.Return(cerror.ErrPoolShutdown.GenWithStackByArgs())
	})

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return cerror.ErrPoolShutdown.GenWithStackByArgs()
	}
	w := p.workers[int(p.next.Inc())%len(p.workers)]
	select {
	case <-ctx.Done():
		return errors.Trace(ctx.Err())
	case w.inputCh <- submission{ctx: ctx, task: task}:
	}
	tasksSubmitted.WithLabelValues(p.name).Inc()
	return nil
}

func (p *fixedPool) Resize(n int) error {
	if n < 1 {
		return cerror.ErrConfigInvalid.GenWithStackByArgs("pool size must be positive")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return cerror.ErrPoolShutdown.GenWithStackByArgs()
	}
	switch {
	case n > len(p.workers):
		for i := len(p.workers); i < n; i++ {
			p.startWorker()
		}
	case n < len(p.workers):
		// Retired workers drain their queues and exit.
		for _, w := range p.workers[n:] {
			w.close()
		}
		p.workers = p.workers[:n]
	}
	totalWorkers.WithLabelValues(p.name).Set(float64(n))
	log.Info("pool resized", zap.String("pool", p.name), zap.Int("size", n))
	return nil
}

func (p *fixedPool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	// Closing under the lock: a submission blocked on a full queue holds
	// the read lock, so by the time we get here no send can race the
	// close.
	for _, w := range p.workers {
		w.close()
	}
	p.mu.Unlock()

	totalWorkers.WithLabelValues(p.name).Set(0)
	if p.daemon {
		return nil
	}
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Trace(ctx.Err())
	}
}
