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

package syncutil

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pingcap/errors"
)

// Cond is like a regular sync.Cond with enhancement with respect to
// cancellability. Waiters block on a channel that Broadcast swaps out and
// closes, so a wait can also be aborted by a context.
type Cond struct {
	L  sync.Locker
	ch atomic.Pointer[chan struct{}]
}

// NewCond creates a new Cond.
func NewCond(l sync.Locker) *Cond {
	ch := make(chan struct{})
	c := &Cond{L: l}
	c.ch.Store(&ch)
	return c
}

// Wait waits on the condition variable. The lock must be held on entry and
// is re-acquired before returning.
func (c *Cond) Wait() {
	ch := c.getCh()
	c.L.Unlock()
	<-ch
	c.L.Lock()
}

// WaitWithContext waits on the condition variable until the context is
// canceled or until Broadcast is called.
// The lock is NOT re-locked if ctx is canceled.
func (c *Cond) WaitWithContext(ctx context.Context) error {
	ch := c.getCh()
	c.L.Unlock()
	select {
	case <-ch:
		c.L.Lock()
		return nil
	case <-ctx.Done():
		return errors.Trace(ctx.Err())
	}
}

func (c *Cond) getCh() <-chan struct{} {
	return *c.ch.Load()
}

// Broadcast wakes up all the waiters.
func (c *Cond) Broadcast() {
	ch := make(chan struct{})
	old := c.ch.Swap(&ch)
	close(*old)
}
