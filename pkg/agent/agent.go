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

// Package agent provides a serializing container for mutable state.
//
// An Agent owns one value and applies submitted updates to it in arrival
// order, through a cooperative actor. A read observes the value as of the
// point the read request was serialized; ValCopy returns a snapshot so
// mutable state never aliases out.
package agent

import (
	"context"

	"github.com/pingcap/errors"
	"github.com/wanglaibao/GPars/pkg/actor"
	"github.com/wanglaibao/GPars/pkg/actor/message"
	"github.com/wanglaibao/GPars/pkg/dataflow"
	"github.com/wanglaibao/GPars/pkg/workctx"
)

// Update transforms the agent's value.
type Update[T any] func(old T) T

type updateMsg[T any] struct {
	f    Update[T]
	done *dataflow.Variable[T] // nil unless the sender waits
}

type readMsg[T any] struct {
	copyFn func(T) T // nil for a direct read
	out    *dataflow.Variable[T]
}

// Agent serializes updates against a single owned value.
type Agent[T any] struct {
	g   workctx.Group
	act *actor.PooledActor
}

// New creates an agent holding the initial value and starts its actor.
func New[T any](g workctx.Group, initial T, opts ...actor.Option) *Agent[T] {
	a := &Agent[T]{g: g}
	state := initial
	var behave actor.Handler
	behave = func(c *actor.Context, msg message.Message) {
		if msg.Tp == message.TypeStop {
			return
		}
		c.React(behave)
		switch m := msg.Value.(type) {
		case updateMsg[T]:
			state = m.f(state)
			if m.done != nil {
				_ = m.done.Bind(state)
			}
		case readMsg[T]:
			val := state
			if m.copyFn != nil {
				val = m.copyFn(state)
			}
			_ = m.out.Bind(val)
		}
	}
	a.act = actor.NewPooledActor(g, behave, opts...)
	// Start cannot fail on a freshly created actor.
	_ = a.act.Start()
	return a
}

// Send submits an update. It returns once the update is enqueued; the
// update itself is applied asynchronously, in arrival order.
func (a *Agent[T]) Send(ctx context.Context, update Update[T]) error {
	return errors.Trace(a.act.Send(ctx, updateMsg[T]{f: update}))
}

// SendAndWait submits an update and blocks until it has been applied,
// returning the value it produced.
func (a *Agent[T]) SendAndWait(ctx context.Context, update Update[T]) (T, error) {
	done := dataflow.NewVariable[T](a.g)
	if err := a.act.Send(ctx, updateMsg[T]{f: update, done: done}); err != nil {
		var zero T
		return zero, errors.Trace(err)
	}
	return done.Value(ctx)
}

// Val returns the value as of the moment this read is serialized, after
// every update queued ahead of it.
func (a *Agent[T]) Val(ctx context.Context) (T, error) {
	return a.read(ctx, nil)
}

// ValCopy returns a snapshot produced by the copy function, preventing
// aliasing of mutable state.
func (a *Agent[T]) ValCopy(ctx context.Context, copyFn func(T) T) (T, error) {
	return a.read(ctx, copyFn)
}

func (a *Agent[T]) read(ctx context.Context, copyFn func(T) T) (T, error) {
	out := dataflow.NewVariable[T](a.g)
	if err := a.act.Send(ctx, readMsg[T]{copyFn: copyFn, out: out}); err != nil {
		var zero T
		return zero, errors.Trace(err)
	}
	return out.Value(ctx)
}

// Stop stops the underlying actor after the queued operations drain.
func (a *Agent[T]) Stop() {
	a.act.Stop()
}

// Join blocks until the underlying actor is stopped.
func (a *Agent[T]) Join(ctx context.Context) error {
	return a.act.Join(ctx)
}
