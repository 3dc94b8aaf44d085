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
	"sync"

	"github.com/pingcap/errors"
	"github.com/wanglaibao/GPars/pkg/actor/message"
	"github.com/wanglaibao/GPars/pkg/deque"
	cerror "github.com/wanglaibao/GPars/pkg/errors"
	"github.com/wanglaibao/GPars/pkg/syncutil"
	"go.uber.org/atomic"
)

// Mailbox is the ordered message queue of one actor.
// Mailbox is threadsafe. Per-sender order is preserved; order across
// concurrent senders is not. At most one consumer drains it at a time.
type Mailbox interface {
	// Send enqueues a message without blocking. It returns ErrMailboxFull
	// on a full bounded mailbox and ErrMailboxClosed after Close.
	Send(msg message.Message) error
	// SendB enqueues a message, blocking while a bounded mailbox is full.
	// It may return context.Canceled or context.DeadlineExceeded.
	SendB(ctx context.Context, msg message.Message) error
	// Receive dequeues a message without blocking.
	Receive() (message.Message, bool)
	// Peek returns the next message without consuming it.
	Peek() (message.Message, bool)
	// ReceiveB dequeues a message, blocking while the mailbox is empty. It
	// returns ErrMailboxClosed once the mailbox is closed and drained.
	ReceiveB(ctx context.Context) (message.Message, error)
	// Len returns the number of queued messages.
	Len() int
	// Close rejects further sends. Queued messages stay receivable.
	Close()
	// Drain discards all queued messages and returns how many there were.
	Drain() int
}

// NewMailbox creates a bounded mailbox. Capacity must be at least 1.
func NewMailbox(capacity int) Mailbox {
	if capacity < 1 {
		capacity = 1
	}
	return &boundedMailbox{
		ch:       make(chan message.Message, capacity),
		closedCh: make(chan struct{}),
	}
}

type boundedMailbox struct {
	ch       chan message.Message
	closed   atomic.Bool
	closedCh chan struct{}

	// peeked holds a message pulled off the channel by Peek. Only the
	// single consumer touches it; the lock covers Len from other
	// goroutines.
	peekMu sync.Mutex
	peeked *message.Message
}

func (m *boundedMailbox) Send(msg message.Message) error {
	if m.closed.Load() {
		return cerror.ErrMailboxClosed.GenWithStackByArgs()
	}
	select {
	case m.ch <- msg:
		return nil
	default:
		return cerror.ErrMailboxFull.GenWithStackByArgs()
	}
}

func (m *boundedMailbox) SendB(ctx context.Context, msg message.Message) error {
	if m.closed.Load() {
		return cerror.ErrMailboxClosed.GenWithStackByArgs()
	}
	select {
	case m.ch <- msg:
		return nil
	case <-m.closedCh:
		return cerror.ErrMailboxClosed.GenWithStackByArgs()
	case <-ctx.Done():
		return errors.Trace(ctx.Err())
	}
}

func (m *boundedMailbox) Receive() (message.Message, bool) {
	m.peekMu.Lock()
	if m.peeked != nil {
		msg := *m.peeked
		m.peeked = nil
		m.peekMu.Unlock()
		return msg, true
	}
	m.peekMu.Unlock()
	select {
	case msg := <-m.ch:
		return msg, true
	default:
		return message.Message{}, false
	}
}

func (m *boundedMailbox) Peek() (message.Message, bool) {
	m.peekMu.Lock()
	defer m.peekMu.Unlock()
	if m.peeked == nil {
		select {
		case msg := <-m.ch:
			m.peeked = &msg
		default:
			return message.Message{}, false
		}
	}
	return *m.peeked, true
}

func (m *boundedMailbox) ReceiveB(ctx context.Context) (message.Message, error) {
	for {
		if msg, ok := m.Receive(); ok {
			return msg, nil
		}
		select {
		case msg := <-m.ch:
			return msg, nil
		case <-ctx.Done():
			return message.Message{}, errors.Trace(ctx.Err())
		case <-m.closedCh:
			// Drain the remainder before reporting the close.
			select {
			case msg := <-m.ch:
				return msg, nil
			default:
				return message.Message{}, cerror.ErrMailboxClosed.GenWithStackByArgs()
			}
		}
	}
}

func (m *boundedMailbox) Len() int {
	m.peekMu.Lock()
	defer m.peekMu.Unlock()
	n := len(m.ch)
	if m.peeked != nil {
		n++
	}
	return n
}

func (m *boundedMailbox) Close() {
	if m.closed.CompareAndSwap(false, true) {
		close(m.closedCh)
	}
}

func (m *boundedMailbox) Drain() int {
	n := 0
	m.peekMu.Lock()
	if m.peeked != nil {
		m.peeked = nil
		n++
	}
	m.peekMu.Unlock()
	for {
		select {
		case <-m.ch:
			n++
		default:
			return n
		}
	}
}

// NewUnboundedMailbox creates a mailbox that grows without bound, enqueues
// never block.
func NewUnboundedMailbox() Mailbox {
	m := &unboundedMailbox{queue: deque.NewDequeDefault[message.Message]()}
	m.cond = syncutil.NewCond(&m.mu)
	return m
}

type unboundedMailbox struct {
	mu     sync.Mutex
	cond   *syncutil.Cond
	queue  *deque.Deque[message.Message]
	closed bool
}

func (m *unboundedMailbox) Send(msg message.Message) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return cerror.ErrMailboxClosed.GenWithStackByArgs()
	}
	m.queue.PushBack(msg)
	m.mu.Unlock()
	m.cond.Broadcast()
	return nil
}

func (m *unboundedMailbox) SendB(_ context.Context, msg message.Message) error {
	return m.Send(msg)
}

func (m *unboundedMailbox) Receive() (message.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.PopFront()
}

func (m *unboundedMailbox) Peek() (message.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.Front()
}

func (m *unboundedMailbox) ReceiveB(ctx context.Context) (message.Message, error) {
	m.mu.Lock()
	for {
		if msg, ok := m.queue.PopFront(); ok {
			m.mu.Unlock()
			return msg, nil
		}
		if m.closed {
			m.mu.Unlock()
			return message.Message{}, cerror.ErrMailboxClosed.GenWithStackByArgs()
		}
		// The lock is not re-acquired when the context is canceled.
		if err := m.cond.WaitWithContext(ctx); err != nil {
			return message.Message{}, errors.Trace(err)
		}
	}
}

func (m *unboundedMailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.Len()
}

func (m *unboundedMailbox) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.cond.Broadcast()
}

func (m *unboundedMailbox) Drain() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, ok := m.queue.PopFront(); ok; _, ok = m.queue.PopFront() {
		n++
	}
	return n
}
