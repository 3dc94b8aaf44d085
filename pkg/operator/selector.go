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

package operator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"github.com/wanglaibao/GPars/pkg/dataflow"
	cerror "github.com/wanglaibao/GPars/pkg/errors"
	"github.com/wanglaibao/GPars/pkg/workctx"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// sysClock drives bounded selects. Package variable so tests can
// substitute a mock clock.
var sysClock clock.Clock = clock.New()

// SelectorBody handles one selected value and the index of the input it
// came from.
type SelectorBody[T any] func(v T, index int) error

// Selector is an arbiter that fires when any input carries a value,
// consuming exactly one value from exactly one input per firing. When
// several inputs are ready the scan starts at a rotating index, so an
// input that is consistently ready is never starved. The selector must be
// the sole consumer of its inputs.
type Selector[T any] struct {
	g      workctx.Group
	name   string
	inputs []*dataflow.Stream[T]
	body   SelectorBody[T]

	// priority selects the lowest ready index instead of rotating.
	priority bool

	stopped   atomic.Bool
	scheduled atomic.Bool
	runMu     sync.Mutex
	rotate    int // guarded by runMu

	onFailure func(error)
}

// NewSelector creates and starts an eventually-fair selector.
func NewSelector[T any](
	g workctx.Group,
	inputs []*dataflow.Stream[T],
	body SelectorBody[T],
	opts ...Option,
) *Selector[T] {
	return newSelector(g, inputs, body, false, opts...)
}

// NewPrioritySelector creates a selector that deterministically picks the
// lowest-indexed ready input. With a nil body it fires nothing and is
// consumed through Select instead.
func NewPrioritySelector[T any](
	g workctx.Group,
	inputs []*dataflow.Stream[T],
	body SelectorBody[T],
	opts ...Option,
) *Selector[T] {
	return newSelector(g, inputs, body, true, opts...)
}

func newSelector[T any](
	g workctx.Group,
	inputs []*dataflow.Stream[T],
	body SelectorBody[T],
	priority bool,
	opts ...Option,
) *Selector[T] {
	if len(inputs) == 0 {
		panic("selector: at least one input is required")
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	s := &Selector[T]{
		g:         g,
		name:      o.name,
		inputs:    inputs,
		body:      body,
		priority:  priority,
		onFailure: o.onFailure,
	}
	g.Attach(s)
	if body != nil {
		for i := range s.inputs {
			s.arm(i)
		}
	}
	return s
}

// Stop brings the selector to a halt after the current firing.
func (s *Selector[T]) Stop() {
	s.stopped.Store(true)
}

// Stopped reports whether the selector is stopped.
func (s *Selector[T]) Stopped() bool {
	return s.stopped.Load()
}

// arm registers a readiness notification for one input's next value.
func (s *Selector[T]) arm(i int) {
	s.inputs[i].OnNext(s.notify)
}

func (s *Selector[T]) notify() {
	if s.stopped.Load() {
		return
	}
	if !s.scheduled.CompareAndSwap(false, true) {
		return
	}
	err := s.g.Schedule(context.Background(), func(ctx context.Context) {
		s.scheduled.Store(false)
		s.drainReady()
	})
	if err != nil {
		s.scheduled.Store(false)
		s.Stop()
	}
}

// drainReady consumes every ready input, one firing at a time. Firings are
// serialized by runMu across concurrently scheduled drains.
func (s *Selector[T]) drainReady() {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	for !s.stopped.Load() {
		idx, val, ok := s.pickLocked()
		if !ok {
			return
		}
		if err := s.runBody(val, idx); err != nil {
			s.fail(err)
			return
		}
		s.arm(idx)
	}
}

// pickLocked scans for a ready input. Priority selectors scan from zero;
// plain selectors start after the previous winner.
func (s *Selector[T]) pickLocked() (int, T, bool) {
	n := len(s.inputs)
	start := 0
	if !s.priority {
		start = s.rotate
	}
	for k := 0; k < n; k++ {
		i := (start + k) % n
		if v, ok := s.inputs[i].TryRead(); ok {
			if !s.priority {
				s.rotate = (i + 1) % n
			}
			return i, v, true
		}
	}
	var zero T
	return -1, zero, false
}

func (s *Selector[T]) runBody(val T, idx int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = cerror.ErrHandlerFailure.GenWithStackByArgs(fmt.Sprintf("%v", r))
		}
	}()
	return s.body(val, idx)
}

func (s *Selector[T]) fail(err error) {
	s.Stop()
	if s.onFailure != nil {
		s.onFailure(err)
		return
	}
	log.Error("selector body failed",
		zap.String("selector", s.name),
		zap.String("group", s.g.Name()),
		zap.Error(err))
}

// Select synchronously pulls the next (value, index) pair, honoring
// priority order on a priority selector. It is the consumer surface of a
// selector constructed without a body.
func (s *Selector[T]) Select(ctx context.Context) (T, int, error) {
	var zero T
	for {
		s.runMu.Lock()
		idx, val, ok := s.pickLocked()
		s.runMu.Unlock()
		if ok {
			return val, idx, nil
		}
		if s.stopped.Load() {
			return zero, -1, cerror.ErrSelectorStopped.GenWithStackByArgs()
		}
		ready := make(chan struct{}, 1)
		for i := range s.inputs {
			s.inputs[i].OnNext(func() {
				select {
				case ready <- struct{}{}:
				default:
				}
			})
		}
		select {
		case <-ready:
		case <-ctx.Done():
			return zero, -1, errors.Trace(ctx.Err())
		}
	}
}

// SelectTimeout is Select with a bounded wait. The third return value is
// false when the wait timed out.
func (s *Selector[T]) SelectTimeout(ctx context.Context, d time.Duration) (T, int, bool, error) {
	timer := sysClock.Timer(d)
	defer timer.Stop()
	deadline, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-timer.C:
			cancel()
		case <-deadline.Done():
		}
	}()
	v, idx, err := s.Select(deadline)
	if err != nil && deadline.Err() != nil && ctx.Err() == nil {
		var zero T
		return zero, -1, false, nil
	}
	return v, idx, err == nil, errors.Trace(err)
}
