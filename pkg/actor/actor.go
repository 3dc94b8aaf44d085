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
	"fmt"
	"sync"

	"github.com/pingcap/log"
	"github.com/wanglaibao/GPars/pkg/actor/message"
	cerror "github.com/wanglaibao/GPars/pkg/errors"
	"github.com/wanglaibao/GPars/pkg/workctx"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// State is the lifecycle state of an actor.
type State int32

// states of an actor
const (
	StateCreated State = iota
	StateRunning
	StateStopping
	StateStopped
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("unknown(%d)", int32(s))
}

// Handler processes one message. When the handler returns, the actor waits
// for its next message if the handler installed a continuation with
// Context.React; otherwise the actor's body is done and the actor stops.
type Handler func(ctx *Context, msg message.Message)

// Ref is the lifecycle surface an actor exposes to its owners.
type Ref interface {
	message.Sender
	Stop()
	Terminate()
	Join(ctx context.Context) error
	State() State
}

// Context is the execution context of one handler invocation. It is only
// valid inside the actor's own execution and must not escape the handler.
type Context struct {
	ctx  context.Context
	core *core
	self message.Sender
	msg  message.Message
}

// Context returns the context of the pool task running the handler. It
// carries the ambient group.
func (c *Context) Context() context.Context {
	return c.ctx
}

// Message returns the message being handled.
func (c *Context) Message() message.Message {
	return c.msg
}

// Self returns the running actor as a sender, for messages to itself or as
// a reply-to attachment.
func (c *Context) Self() message.Sender {
	return c.self
}

// React installs the continuation that handles the next message. A handler
// that neither reacts nor stops ends the actor's body, which stops the
// actor.
func (c *Context) React(h Handler) {
	c.core.setNext(h)
}

// Reply sends a value to the reply-to sender of the current message.
func (c *Context) Reply(v any) error {
	if c.msg.ReplyTo == nil {
		return cerror.ErrNoReplyTo.GenWithStackByArgs()
	}
	return c.msg.ReplyTo.Deliver(message.ValueMessageFrom(v, c.self))
}

// Stop requests an orderly stop of the running actor.
func (c *Context) Stop() {
	c.core.requestStop()
}

type options struct {
	name        string
	mailboxCap  int // 0 means unbounded
	fair        bool
	fairSet     bool
	onFailure   func(error)
}

// Option configures an actor at construction.
type Option func(*options)

// WithName labels the actor in logs.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithMailboxCapacity bounds the mailbox. Senders block at capacity.
func WithMailboxCapacity(capacity int) Option {
	return func(o *options) { o.mailboxCap = capacity }
}

// WithFair overrides the group's fairness default for this actor.
func WithFair(fair bool) Option {
	return func(o *options) { o.fair = fair; o.fairSet = true }
}

// WithOnFailure registers a callback for uncaught handler failures. When
// absent, failures are logged.
func WithOnFailure(f func(error)) Option {
	return func(o *options) { o.onFailure = f }
}

// core is the state shared by both actor flavors: the mailbox, the
// lifecycle word and the continuation installed by React.
type core struct {
	name string
	g    workctx.Group
	mb   Mailbox

	state atomic.Int32

	nextMu sync.Mutex
	next   Handler

	started       atomic.Bool
	stopRequested atomic.Bool
	onFailure     func(error)

	stopOnce  sync.Once
	stoppedCh chan struct{}
}

func (c *core) init(g workctx.Group, initial Handler, opts *options) {
	if opts.mailboxCap > 0 {
		c.mb = NewMailbox(opts.mailboxCap)
	} else {
		c.mb = NewUnboundedMailbox()
	}
	c.name = opts.name
	c.g = g
	c.next = initial
	c.onFailure = opts.onFailure
	c.stoppedCh = make(chan struct{})
}

// Mailbox returns the actor's mailbox.
func (c *core) Mailbox() Mailbox {
	return c.mb
}

// State returns the current lifecycle state.
func (c *core) State() State {
	return State(c.state.Load())
}

// Join blocks until the actor reaches Stopped.
func (c *core) Join(ctx context.Context) error {
	select {
	case <-c.stoppedCh:
		return nil
	case <-ctx.Done():
		return cerror.WrapError(cerror.ErrTimeout, ctx.Err(), "actor join")
	}
}

func (c *core) setNext(h Handler) {
	c.nextMu.Lock()
	c.next = h
	c.nextMu.Unlock()
}

func (c *core) takeNext() Handler {
	c.nextMu.Lock()
	h := c.next
	c.next = nil
	c.nextMu.Unlock()
	return h
}

func (c *core) hasNext() bool {
	c.nextMu.Lock()
	defer c.nextMu.Unlock()
	return c.next != nil
}

// requestStop moves the actor to Stopping and closes the mailbox to new
// sends. Queued messages are still handled; a synthetic stop message is
// delivered last. An actor that was never started goes straight to Stopped
// without a final message.
func (c *core) requestStop() bool {
	if c.state.CompareAndSwap(int32(StateCreated), int32(StateStopping)) {
		c.toStopped()
		return false
	}
	if c.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		c.stopRequested.Store(true)
		c.mb.Close()
		return true
	}
	return false
}

// toStopped is the terminal transition. It is idempotent.
func (c *core) toStopped() {
	c.state.Store(int32(StateStopped))
	c.stopOnce.Do(func() {
		c.mb.Close()
		discarded := c.mb.Drain()
		c.setNext(nil)
		if c.started.Load() {
			runningActors.WithLabelValues(c.g.Name()).Dec()
		}
		close(c.stoppedCh)
		if discarded > 0 {
			log.Debug("actor stopped with messages discarded",
				zap.String("actor", c.name), zap.Int("discarded", discarded))
		}
	})
}

// runHandler invokes one handler invocation at the participant boundary:
// a panic is recovered, reported and stops the actor.
func (c *core) runHandler(ctx context.Context, self message.Sender, h Handler, msg message.Message) (failed bool) {
	defer func() {
		if r := recover(); r != nil {
			failed = true
			c.fail(r)
		}
	}()
	h(&Context{ctx: ctx, core: c, self: self, msg: msg}, msg)
	messagesHandled.WithLabelValues(c.g.Name()).Inc()
	return false
}

func (c *core) fail(r any) {
	err := cerror.ErrHandlerFailure.GenWithStackByArgs(fmt.Sprintf("%v", r))
	if c.onFailure != nil {
		c.onFailure(err)
	} else {
		log.Error("actor handler failed",
			zap.String("actor", c.name),
			zap.String("group", c.g.Name()),
			zap.Any("panic", r),
			zap.Stack("stack"))
	}
	c.toStopped()
}
