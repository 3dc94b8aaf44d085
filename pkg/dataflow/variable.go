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
	"reflect"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	cerror "github.com/wanglaibao/GPars/pkg/errors"
	"github.com/wanglaibao/GPars/pkg/workctx"
	"go.uber.org/zap"
)

// sysClock drives bounded waits. It is a package variable so tests can
// substitute a mock clock.
var sysClock clock.Clock = clock.New()

// Variable is a single-assignment dataflow cell. Any number of readers may
// wait on it; exactly one bind succeeds. Handlers registered before the
// bind are scheduled on the owning group's pool exactly once after it, in
// unspecified order.
type Variable[T any] struct {
	g workctx.Group

	mu        sync.Mutex
	bound     chan struct{}
	value     T
	err       error
	callbacks []func(T, error)
}

// NewVariable creates an unbound variable owned by the given group.
func NewVariable[T any](g workctx.Group) *Variable[T] {
	return &Variable[T]{
		g:     g,
		bound: make(chan struct{}),
	}
}

// NewVariableFromContext creates an unbound variable owned by the ambient
// group of the context. It fails when the context carries none.
func NewVariableFromContext[T any](ctx context.Context) (*Variable[T], error) {
	g, ok := workctx.FromContext(ctx)
	if !ok {
		return nil, cerror.ErrNoAmbientGroup.GenWithStackByArgs()
	}
	return NewVariable[T](g), nil
}

// Bind transitions the variable to bound with the given value. A second
// bind with an equal value succeeds silently; an unequal value fails with
// ErrAlreadyBound.
func (v *Variable[T]) Bind(val T) error {
	return v.bind(val, nil, false)
}

// BindUnique is the strict form of Bind: any second bind fails, equal or
// not.
func (v *Variable[T]) BindUnique(val T) error {
	return v.bind(val, nil, true)
}

// BindError binds the variable with an error envelope. Readers observe the
// error instead of a value.
func (v *Variable[T]) BindError(err error) error {
	var zero T
	return v.bind(zero, err, false)
}

func (v *Variable[T]) bind(val T, bindErr error, unique bool) error {
	v.mu.Lock()
	if v.isBoundLocked() {
		equal := !unique && v.err == nil && bindErr == nil && equalValues(v.value, val)
		v.mu.Unlock()
		if equal {
			return nil
		}
		return cerror.ErrAlreadyBound.GenWithStackByArgs()
	}
	v.value = val
	v.err = bindErr
	close(v.bound)
	callbacks := v.callbacks
	v.callbacks = nil
	v.mu.Unlock()

	for _, f := range callbacks {
		v.schedule(f, val, bindErr)
	}
	return nil
}

// Value blocks the caller until the variable is bound, then returns the
// value or the error envelope it was bound with.
func (v *Variable[T]) Value(ctx context.Context) (T, error) {
	select {
	case <-v.bound:
	case <-ctx.Done():
		var zero T
		return zero, errors.Trace(ctx.Err())
	}
	return v.value, v.err
}

// ValueTimeout waits up to the given duration. The second return value is
// false when the wait timed out; the variable stays unbound.
func (v *Variable[T]) ValueTimeout(ctx context.Context, d time.Duration) (T, bool, error) {
	timer := sysClock.Timer(d)
	defer timer.Stop()
	var zero T
	select {
	case <-v.bound:
		val, err := v.value, v.err
		return val, true, err
	case <-timer.C:
		return zero, false, nil
	case <-ctx.Done():
		return zero, false, errors.Trace(ctx.Err())
	}
}

// TryValue returns the value without blocking. The second return value is
// false when the variable is unbound or carries an error envelope.
func (v *Variable[T]) TryValue() (T, bool) {
	select {
	case <-v.bound:
		if v.err != nil {
			var zero T
			return zero, false
		}
		return v.value, true
	default:
		var zero T
		return zero, false
	}
}

// IsBound reports whether the variable is bound.
func (v *Variable[T]) IsBound() bool {
	select {
	case <-v.bound:
		return true
	default:
		return false
	}
}

// WhenBound runs the handler on the owning group's pool once the variable
// is bound. A handler registered after the bind is scheduled immediately.
func (v *Variable[T]) WhenBound(f func(val T, err error)) {
	v.mu.Lock()
	if v.isBoundLocked() {
		val, err := v.value, v.err
		v.mu.Unlock()
		v.schedule(f, val, err)
		return
	}
	v.callbacks = append(v.callbacks, f)
	v.mu.Unlock()
}

// Then is an alias of WhenBound.
func (v *Variable[T]) Then(f func(val T, err error)) {
	v.WhenBound(f)
}

// Group returns the owning group.
func (v *Variable[T]) Group() workctx.Group {
	return v.g
}

func (v *Variable[T]) isBoundLocked() bool {
	select {
	case <-v.bound:
		return true
	default:
		return false
	}
}

func (v *Variable[T]) schedule(f func(T, error), val T, err error) {
	scheduleErr := v.g.Schedule(context.Background(), func(context.Context) {
		f(val, err)
	})
	if scheduleErr != nil {
		log.Warn("dropping dataflow handler, group pool rejected it",
			zap.String("group", v.g.Name()), zap.Error(scheduleErr))
	}
}

// equalValues reports whether two values of the same type compare equal.
// Values of uncomparable types never do.
func equalValues[T any](a, b T) bool {
	va := reflect.ValueOf(a)
	vb := reflect.ValueOf(b)
	if !va.IsValid() || !vb.IsValid() {
		return va.IsValid() == vb.IsValid()
	}
	if !va.Comparable() || !vb.Comparable() {
		return false
	}
	return va.Equal(vb)
}
