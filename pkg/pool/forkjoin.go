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
	"github.com/pingcap/log"
	"github.com/wanglaibao/GPars/pkg/deque"
	cerror "github.com/wanglaibao/GPars/pkg/errors"
	"github.com/wanglaibao/GPars/pkg/syncutil"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

type forkJoinPool struct {
	name   string
	daemon bool

	// mu guards queues, nworkers and closed. Workers pop their own queue
	// from the front and steal from siblings' backs.
	mu       sync.Mutex
	cond     *syncutil.Cond
	queues   []*deque.Deque[submission]
	nworkers int
	closed   bool

	next atomic.Int32
	wg   sync.WaitGroup
}

// NewForkJoinPool creates a work-stealing pool with one run queue per
// worker. External submissions are distributed round-robin; an idle worker
// steals from its siblings before sleeping.
func NewForkJoinPool(name string, size int, daemon bool) Pool {
	p := &forkJoinPool{name: name, daemon: daemon}
	p.cond = syncutil.NewCond(&p.mu)
	for i := 0; i < size; i++ {
		p.queues = append(p.queues, deque.NewDequeDefault[submission]())
	}
	p.nworkers = size
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	totalWorkers.WithLabelValues(name).Set(float64(size))
	return p
}

func (p *forkJoinPool) Name() string { return p.name }

func (p *forkJoinPool) Daemon() bool { return p.daemon }

func (p *forkJoinPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nworkers
}

func (p *forkJoinPool) Submit(ctx context.Context, task Task) error {
	select {
	case <-ctx.Done():
		return errors.Trace(ctx.Err())
	default:
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return cerror.ErrPoolShutdown.GenWithStackByArgs()
	}
	q := p.queues[int(p.next.Inc())%p.nworkers]
	q.PushBack(submission{ctx: ctx, task: task})
	p.mu.Unlock()

	p.cond.Broadcast()
	tasksSubmitted.WithLabelValues(p.name).Inc()
	return nil
}

func (p *forkJoinPool) worker(id int) {
	defer p.wg.Done()
	for {
		sub, ok := p.take(id)
		if !ok {
			return
		}
		runTask(p.name, sub)
	}
}

// take returns the next task for worker id, blocking until one is
// available. It returns false when the worker is retired or the pool is
// closed and drained.
func (p *forkJoinPool) take(id int) (submission, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		if id >= p.nworkers {
			return submission{}, false
		}
		if sub, ok := p.queues[id].PopFront(); ok {
			return sub, true
		}
		for j := 0; j < p.nworkers; j++ {
			if j == id {
				continue
			}
			if sub, ok := p.queues[j].PopBack(); ok {
				return sub, true
			}
		}
		if p.closed {
			return submission{}, false
		}
		p.cond.Wait()
	}
}

func (p *forkJoinPool) Resize(n int) error {
	if n < 1 {
		return cerror.ErrConfigInvalid.GenWithStackByArgs("pool size must be positive")
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return cerror.ErrPoolShutdown.GenWithStackByArgs()
	}
	switch {
	case n > p.nworkers:
		for i := p.nworkers; i < n; i++ {
			p.queues = append(p.queues, deque.NewDequeDefault[submission]())
			p.wg.Add(1)
			go p.worker(i)
		}
	case n < p.nworkers:
		// Rehome queued tasks of retired workers; the retired workers exit
		// once their current task completes.
		for _, q := range p.queues[n:] {
			for sub, ok := q.PopFront(); ok; sub, ok = q.PopFront() {
				p.queues[0].PushBack(sub)
			}
		}
		p.queues = p.queues[:n]
	}
	p.nworkers = n
	p.mu.Unlock()

	p.cond.Broadcast()
	totalWorkers.WithLabelValues(p.name).Set(float64(n))
	log.Info("pool resized", zap.String("pool", p.name), zap.Int("size", n))
	return nil
}

func (p *forkJoinPool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.cond.Broadcast()
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
