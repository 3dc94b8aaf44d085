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
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	cerror "github.com/wanglaibao/GPars/pkg/errors"
	"go.uber.org/zap"
)

const cachedWorkerIdleTimeout = 60 * time.Second

type cachedPool struct {
	name   string
	daemon bool
	clk    clock.Clock

	// taskCh is an unbuffered handoff. A submission that finds no worker
	// waiting on it spawns a fresh worker instead of queueing.
	taskCh chan submission
	quit   chan struct{}

	mu      sync.Mutex
	closed  bool
	nworker int
	wg      sync.WaitGroup
}

// NewCachedPool creates a pool that grows a worker per submission burst and
// reaps workers that stay idle for a minute.
func NewCachedPool(name string, daemon bool) Pool {
	return newCachedPool(name, daemon, clock.New())
}

func newCachedPool(name string, daemon bool, clk clock.Clock) *cachedPool {
	return &cachedPool{
		name:   name,
		daemon: daemon,
		clk:    clk,
		taskCh: make(chan submission),
		quit:   make(chan struct{}),
	}
}

func (p *cachedPool) Name() string { return p.name }

func (p *cachedPool) Daemon() bool { return p.daemon }

func (p *cachedPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nworker
}

func (p *cachedPool) Submit(ctx context.Context, task Task) error {
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
	sub := submission{ctx: ctx, task: task}
	select {
	case p.taskCh <- sub:
		p.mu.Unlock()
	default:
		// No idle worker, grow the pool.
		p.nworker++
		p.wg.Add(1)
		totalWorkers.WithLabelValues(p.name).Inc()
		p.mu.Unlock()
		go p.worker(sub)
	}
	tasksSubmitted.WithLabelValues(p.name).Inc()
	return nil
}

func (p *cachedPool) worker(seed submission) {
	defer func() {
		p.mu.Lock()
		p.nworker--
		p.mu.Unlock()
		totalWorkers.WithLabelValues(p.name).Dec()
		p.wg.Done()
	}()

	runTask(p.name, seed)
	for {
		idle := p.clk.Timer(cachedWorkerIdleTimeout)
		select {
		case sub := <-p.taskCh:
			idle.Stop()
			runTask(p.name, sub)
		case <-idle.C:
			return
		case <-p.quit:
			idle.Stop()
			return
		}
	}
}

// Resize is a no-op, a cached pool sizes itself.
func (p *cachedPool) Resize(n int) error {
	log.Debug("resize ignored on cached pool",
		zap.String("pool", p.name), zap.Int("size", n))
	return nil
}

func (p *cachedPool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	close(p.quit)
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
