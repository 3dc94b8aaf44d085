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
	"github.com/pingcap/log"
	"github.com/wanglaibao/GPars/pkg/actor/message"
	cerror "github.com/wanglaibao/GPars/pkg/errors"
	"github.com/wanglaibao/GPars/pkg/workctx"
	"go.uber.org/zap"
)

// BoundActor is the thread-pinned actor flavor. Start acquires one pool
// worker for the actor's whole life; receives suspend that worker on the
// mailbox. Simple, at the cost of one worker per live actor.
type BoundActor struct {
	core
}

var _ Ref = (*BoundActor)(nil)

// NewBoundActor creates a thread-pinned actor whose first message is
// handled by the initial handler. The actor must be started.
func NewBoundActor(g workctx.Group, initial Handler, opts ...Option) *BoundActor {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	a := &BoundActor{}
	a.core.init(g, initial, o)
	return a
}

// Start transitions the actor to Running and occupies a pool worker with
// its receive loop.
func (a *BoundActor) Start() error {
	if !a.state.CompareAndSwap(int32(StateCreated), int32(StateRunning)) {
		return cerror.ErrActorNotRunning.GenWithStackByArgs(a.State())
	}
	if err := a.g.Schedule(context.Background(), a.run); err != nil {
		a.state.Store(int32(StateCreated))
		return errors.Trace(err)
	}
	a.started.Store(true)
	runningActors.WithLabelValues(a.g.Name()).Inc()
	a.g.Attach(a)
	return nil
}

// Send delivers a value to the actor, blocking on a full bounded mailbox.
func (a *BoundActor) Send(ctx context.Context, v any) error {
	if a.State() >= StateStopping {
		return cerror.ErrMailboxClosed.GenWithStackByArgs()
	}
	return errors.Trace(a.mb.SendB(ctx, message.ValueMessage(v)))
}

// SendFrom delivers a value carrying a reply-to sender.
func (a *BoundActor) SendFrom(ctx context.Context, from message.Sender, v any) error {
	if a.State() >= StateStopping {
		return cerror.ErrMailboxClosed.GenWithStackByArgs()
	}
	return errors.Trace(a.mb.SendB(ctx, message.ValueMessageFrom(v, from)))
}

// Deliver implements message.Sender. It never blocks.
func (a *BoundActor) Deliver(msg message.Message) error {
	if a.State() >= StateStopping {
		return cerror.ErrMailboxClosed.GenWithStackByArgs()
	}
	return errors.Trace(a.mb.Send(msg))
}

// Stop requests an orderly stop, see PooledActor.Stop.
func (a *BoundActor) Stop() {
	a.requestStop()
}

// Terminate stops the actor immediately, see PooledActor.Terminate.
func (a *BoundActor) Terminate() {
	a.toStopped()
}

func (a *BoundActor) run(ctx context.Context) {
	for {
		if a.State() == StateStopped {
			return
		}
		msg, err := a.mb.ReceiveB(ctx)
		if err != nil {
			if cerror.Is(err, cerror.ErrMailboxClosed) && a.State() == StateStopping {
				// Orderly stop: the queue is drained, deliver the final
				// synthetic stop.
				if h := a.takeNext(); h != nil {
					a.runHandler(ctx, a, h, message.StopMessage())
				}
			} else if !cerror.Is(err, cerror.ErrMailboxClosed) {
				log.Warn("bound actor receive failed",
					zap.String("actor", a.name), zap.Error(err))
			}
			a.toStopped()
			return
		}
		h := a.takeNext()
		if h == nil {
			a.toStopped()
			return
		}
		if a.runHandler(ctx, a, h, msg) {
			return
		}
		if !a.hasNext() {
			// The body returned.
			a.toStopped()
			return
		}
	}
}
