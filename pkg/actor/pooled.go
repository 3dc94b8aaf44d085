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
	"context"

	"github.com/pingcap/errors"
	"github.com/wanglaibao/GPars/pkg/actor/message"
	cerror "github.com/wanglaibao/GPars/pkg/errors"
	"github.com/wanglaibao/GPars/pkg/workctx"
	"go.uber.org/atomic"
)

// unfairBurst caps how many messages an unfair pooled actor handles per
// wake-up before it must release its worker.
const unfairBurst = 128

// PooledActor is the cooperative actor flavor. It holds no worker while
// idle: a send schedules a wake-up on the group's pool, the wake-up drains
// a burst of messages and returns the worker. Thousands of pooled actors
// can share a handful of workers.
type PooledActor struct {
	core

	fair      atomic.Bool
	scheduled atomic.Bool
}

var _ Ref = (*PooledActor)(nil)

// NewPooledActor creates a cooperative actor whose first message is
// handled by the initial handler. The actor must be started.
func NewPooledActor(g workctx.Group, initial Handler, opts ...Option) *PooledActor {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	a := &PooledActor{}
	a.core.init(g, initial, o)
	if o.fairSet {
		a.fair.Store(o.fair)
	} else {
		a.fair.Store(g.FairDefault())
	}
	return a
}

// Start transitions the actor to Running. Messages sent before Start stay
// queued and are handled after it.
func (a *PooledActor) Start() error {
	if !a.state.CompareAndSwap(int32(StateCreated), int32(StateRunning)) {
		return cerror.ErrActorNotRunning.GenWithStackByArgs(a.State())
	}
	a.started.Store(true)
	runningActors.WithLabelValues(a.g.Name()).Inc()
	a.g.Attach(a)
	if a.mb.Len() > 0 {
		a.maybeSchedule()
	}
	return nil
}

// MakeFair forces the actor to release its worker after every message,
// giving co-resident actors a scheduling turn.
func (a *PooledActor) MakeFair() {
	a.fair.Store(true)
}

// Send delivers a value to the actor, blocking on a full bounded mailbox.
func (a *PooledActor) Send(ctx context.Context, v any) error {
	return a.sendMessage(ctx, message.ValueMessage(v))
}

// SendFrom delivers a value carrying a reply-to sender.
func (a *PooledActor) SendFrom(ctx context.Context, from message.Sender, v any) error {
	return a.sendMessage(ctx, message.ValueMessageFrom(v, from))
}

// Deliver implements message.Sender. It never blocks.
func (a *PooledActor) Deliver(msg message.Message) error {
	if a.State() >= StateStopping {
		return cerror.ErrMailboxClosed.GenWithStackByArgs()
	}
	if err := a.mb.Send(msg); err != nil {
		return errors.Trace(err)
	}
	a.maybeSchedule()
	return nil
}

func (a *PooledActor) sendMessage(ctx context.Context, msg message.Message) error {
	if a.State() >= StateStopping {
		return cerror.ErrMailboxClosed.GenWithStackByArgs()
	}
	if err := a.mb.SendB(ctx, msg); err != nil {
		return errors.Trace(err)
	}
	a.maybeSchedule()
	return nil
}

// Stop requests an orderly stop: no further sends are accepted, queued
// messages are handled, then a synthetic stop message is delivered and the
// actor reaches Stopped.
func (a *PooledActor) Stop() {
	if a.requestStop() {
		a.maybeSchedule()
	}
}

// Terminate stops the actor immediately. Queued messages are discarded; a
// handler already running finishes.
func (a *PooledActor) Terminate() {
	a.toStopped()
}

// maybeSchedule submits a wake-up unless one is already pending. The
// wake-up is the only place the actor's handlers run, which keeps the
// single-execution invariant.
func (a *PooledActor) maybeSchedule() {
	st := a.State()
	if st != StateRunning && st != StateStopping {
		return
	}
	if !a.scheduled.CompareAndSwap(false, true) {
		return
	}
	if err := a.g.Schedule(context.Background(), a.process); err != nil {
		// The pool is gone, nothing will drain the mailbox anymore.
		a.scheduled.Store(false)
		a.toStopped()
	}
}

func (a *PooledActor) process(ctx context.Context) {
	limit := unfairBurst
	if a.fair.Load() {
		limit = 1
	}
	for i := 0; i < limit; i++ {
		if a.State() == StateStopped {
			a.scheduled.Store(false)
			return
		}
		msg, ok := a.mb.Receive()
		if !ok {
			if a.State() == StateStopping {
				a.finalStop(ctx)
				return
			}
			break
		}
		if !a.step(ctx, msg) {
			a.scheduled.Store(false)
			return
		}
	}
	a.scheduled.Store(false)
	// Messages may have arrived after the burst ended, or a stop may be
	// pending; hand the actor back to the pool.
	if a.mb.Len() > 0 || a.State() == StateStopping {
		a.maybeSchedule()
	}
}

// step handles one message. It reports whether the actor may keep
// processing.
func (a *PooledActor) step(ctx context.Context, msg message.Message) bool {
	h := a.takeNext()
	if h == nil {
		// The body already completed, the message has nowhere to go.
		a.toStopped()
		return false
	}
	if a.runHandler(ctx, a, h, msg) {
		return false
	}
	if !a.hasNext() {
		// The handler neither reacted nor stopped: the body returned.
		a.toStopped()
		return false
	}
	return a.State() != StateStopped
}

// finalStop delivers the synthetic stop message to the pending
// continuation, then parks the actor in Stopped.
func (a *PooledActor) finalStop(ctx context.Context) {
	if h := a.takeNext(); h != nil {
		a.runHandler(ctx, a, h, message.StopMessage())
	}
	a.toStopped()
	a.scheduled.Store(false)
}
