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

package dataflow

import (
	"context"
	"sync"

	cerror "github.com/wanglaibao/GPars/pkg/errors"
	"github.com/wanglaibao/GPars/pkg/workctx"
)

// streamItem is what a stream cell carries: a value, or the end-of-stream
// marker.
type streamItem[T any] struct {
	val    T
	closed bool
}

type cell[T any] struct {
	v    *Variable[streamItem[T]]
	next *cell[T]
}

// Stream is an ordered multi-value channel built as a chain of
// single-assignment cells. Writing binds the tail cell and advances;
// reading awaits the head cell and advances. A reader that outruns the
// writers suspends on the next unbound cell.
type Stream[T any] struct {
	g workctx.Group

	// mu guards the cursors and the chain links. Cell values are bound
	// outside the lock, through the cells' own variables.
	mu     sync.Mutex
	head   *cell[T]
	tail   *cell[T]
	closed bool

	// sem holds one token per unread value; nil on unbounded streams.
	sem chan struct{}
}

// NewStream creates an unbounded stream owned by the given group.
func NewStream[T any](g workctx.Group) *Stream[T] {
	c := &cell[T]{v: NewVariable[streamItem[T]](g)}
	return &Stream[T]{g: g, head: c, tail: c}
}

// NewBoundedStream creates a stream that holds at most capacity unread
// values: a writer suspends while capacity values are unread.
func NewBoundedStream[T any](g workctx.Group, capacity int) *Stream[T] {
	if capacity < 1 {
		capacity = 1
	}
	s := NewStream[T](g)
	s.sem = make(chan struct{}, capacity)
	return s
}

// Write publishes a value. On a bounded stream it suspends the writer
// until the unread buffer has room.
func (s *Stream[T]) Write(ctx context.Context, val T) error {
	if s.sem != nil {
		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			return cerror.WrapError(cerror.ErrTimeout, ctx.Err(), "stream write")
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.releaseSem()
		return cerror.ErrStreamClosed.GenWithStackByArgs()
	}
	c := s.tail
	s.tail = s.ensureNext(c)
	s.mu.Unlock()

	// The tail cell is always fresh, the bind cannot fail.
	return c.v.Bind(streamItem[T]{val: val})
}

// Read blocks for the next value. Values are observed in publication
// order; concurrent readers receive disjoint values.
func (s *Stream[T]) Read(ctx context.Context) (T, error) {
	var zero T
	for {
		s.mu.Lock()
		c := s.head
		s.mu.Unlock()

		it, err := c.v.Value(ctx)
		if err != nil {
			return zero, err
		}

		s.mu.Lock()
		if s.head != c {
			// Another reader consumed this cell first, go again.
			s.mu.Unlock()
			continue
		}
		s.head = s.ensureNext(c)
		s.mu.Unlock()

		if it.closed {
			return zero, cerror.ErrStreamClosed.GenWithStackByArgs()
		}
		s.releaseSem()
		return it.val, nil
	}
}

// TryRead returns the next value without blocking.
func (s *Stream[T]) TryRead() (T, bool) {
	var zero T
	s.mu.Lock()
	c := s.head
	it, ok := c.v.TryValue()
	if !ok || it.closed {
		s.mu.Unlock()
		return zero, false
	}
	s.head = s.ensureNext(c)
	s.mu.Unlock()
	s.releaseSem()
	return it.val, true
}

// WhenBound reserves the next value and hands it to the handler on the
// owning group's pool once it is written. Each call consumes one value;
// reservations take consecutive read positions, so an earlier reservation
// receives an earlier value. Each handler runs as its own pool task, so
// handlers of different reservations may run concurrently.
func (s *Stream[T]) WhenBound(f func(val T, err error)) {
	s.mu.Lock()
	c := s.head
	s.head = s.ensureNext(c)
	s.mu.Unlock()

	c.v.WhenBound(func(it streamItem[T], err error) {
		var zero T
		switch {
		case err != nil:
			f(zero, err)
		case it.closed:
			f(zero, cerror.ErrStreamClosed.GenWithStackByArgs())
		default:
			s.releaseSem()
			f(it.val, nil)
		}
	})
}

// OnNext registers a one-shot notification for the moment the value at the
// current read position becomes available, without consuming it. Selectors
// use it to observe readiness.
func (s *Stream[T]) OnNext(f func()) {
	s.mu.Lock()
	c := s.head
	s.mu.Unlock()
	c.v.WhenBound(func(streamItem[T], error) { f() })
}

// Close poisons the stream: subsequent writes fail and readers drain to
// ErrStreamClosed. Reserved but unwritten positions observe the close.
func (s *Stream[T]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	var cells []*cell[T]
	for c := s.tail; c != nil; c = c.next {
		cells = append(cells, c)
	}
	s.mu.Unlock()

	for _, c := range cells {
		// Cells at and beyond the tail are unbound by invariant.
		_ = c.v.Bind(streamItem[T]{closed: true})
	}
}

// Group returns the owning group.
func (s *Stream[T]) Group() workctx.Group {
	return s.g
}

// ensureNext must be called with s.mu held.
func (s *Stream[T]) ensureNext(c *cell[T]) *cell[T] {
	if c.next == nil {
		c.next = &cell[T]{v: NewVariable[streamItem[T]](s.g)}
		if s.closed {
			// Late reservations on a closed stream observe the close.
			_ = c.next.v.Bind(streamItem[T]{closed: true})
		}
	}
	return c.next
}

func (s *Stream[T]) releaseSem() {
	if s.sem == nil {
		return
	}
	select {
	case <-s.sem:
	default:
	}
}
