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

	"github.com/pingcap/log"
	"github.com/wanglaibao/GPars/pkg/dataflow"
	cerror "github.com/wanglaibao/GPars/pkg/errors"
	"github.com/wanglaibao/GPars/pkg/workctx"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// operator states
const (
	stateRunning int32 = iota
	stateStopped
)

type options struct {
	name      string
	onFailure func(error)
}

// Option configures an operator or selector at construction.
type Option func(*options)

// WithName labels the operator in logs.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithOnFailure registers a callback for body failures. When absent,
// failures are logged.
func WithOnFailure(f func(error)) Option {
	return func(o *options) { o.onFailure = f }
}

// Body runs one firing. It receives one value drawn from every input, in
// input order, and publishes through the firing context.
type Body[T, R any] func(fc *FiringContext[R], in []T) error

// Operator is a multi-input multi-output processor. It fires when every
// input carries a value, consuming exactly one value per input per firing.
// Firings of one operator are strictly sequential; waiting for inputs
// holds no worker.
type Operator[T, R any] struct {
	g       workctx.Group
	name    string
	inputs  []*dataflow.Stream[T]
	outputs []*dataflow.Stream[R]
	body    Body[T, R]

	state     atomic.Int32
	outMu     sync.Mutex
	onFailure func(error)
}

// NewOperator creates and starts an operator. It panics when inputs are
// empty.
func NewOperator[T, R any](
	g workctx.Group,
	inputs []*dataflow.Stream[T],
	outputs []*dataflow.Stream[R],
	body Body[T, R],
	opts ...Option,
) *Operator[T, R] {
	if len(inputs) == 0 {
		panic("operator: at least one input is required")
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	op := &Operator[T, R]{
		g:         g,
		name:      o.name,
		inputs:    inputs,
		outputs:   outputs,
		body:      body,
		onFailure: o.onFailure,
	}
	g.Attach(op)
	op.gather()
	return op
}

// NewSplitter creates an operator that copies every input value to all
// outputs atomically.
func NewSplitter[T any](
	g workctx.Group,
	input *dataflow.Stream[T],
	outputs []*dataflow.Stream[T],
	opts ...Option,
) *Operator[T, T] {
	body := func(fc *FiringContext[T], in []T) error {
		return fc.BindAllOutputs(in[0])
	}
	return NewOperator[T, T](g, []*dataflow.Stream[T]{input}, outputs, body, opts...)
}

// Stop brings the operator to a halt after the current firing.
func (op *Operator[T, R]) Stop() {
	op.state.Store(stateStopped)
}

// Stopped reports whether the operator is stopped.
func (op *Operator[T, R]) Stopped() bool {
	return op.state.Load() == stateStopped
}

// gather reserves one value from every input. The last arrival triggers
// the firing; no worker is held while waiting.
func (op *Operator[T, R]) gather() {
	n := len(op.inputs)
	vals := make([]T, n)
	pending := atomic.NewInt32(int32(n))
	for i := range op.inputs {
		i := i
		op.inputs[i].WhenBound(func(v T, err error) {
			if err != nil {
				// An input closed underneath us, there is nothing left to
				// fire on.
				op.Stop()
				return
			}
			vals[i] = v
			if pending.Dec() == 0 {
				op.fire(vals)
			}
		})
	}
}

func (op *Operator[T, R]) fire(vals []T) {
	if op.Stopped() {
		return
	}
	fc := &FiringContext[R]{
		ctx:     context.Background(),
		outputs: op.outputs,
		outMu:   &op.outMu,
	}
	if err := op.runBody(fc, vals); err != nil {
		op.fail(err)
		return
	}
	if !op.Stopped() {
		op.gather()
	}
}

func (op *Operator[T, R]) runBody(fc *FiringContext[R], vals []T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = cerror.ErrHandlerFailure.GenWithStackByArgs(fmt.Sprintf("%v", r))
		}
	}()
	return op.body(fc, vals)
}

func (op *Operator[T, R]) fail(err error) {
	op.Stop()
	if op.onFailure != nil {
		op.onFailure(err)
		return
	}
	log.Error("operator body failed",
		zap.String("operator", op.name),
		zap.String("group", op.g.Name()),
		zap.Error(err))
}

// FiringContext publishes the results of one firing.
type FiringContext[R any] struct {
	ctx     context.Context
	outputs []*dataflow.Stream[R]
	outMu   *sync.Mutex
}

// Context returns the context output writes run under.
func (fc *FiringContext[R]) Context() context.Context {
	return fc.ctx
}

// BindOutput publishes a value to a single output. On a bounded output it
// suspends until the stream has room.
func (fc *FiringContext[R]) BindOutput(i int, v R) error {
	if i < 0 || i >= len(fc.outputs) {
		return cerror.ErrOutputIndex.GenWithStackByArgs(i, len(fc.outputs))
	}
	fc.outMu.Lock()
	defer fc.outMu.Unlock()
	return fc.outputs[i].Write(fc.ctx, v)
}

// BindAllOutputs publishes the same value to every output such that no
// other firing interleaves a publication.
func (fc *FiringContext[R]) BindAllOutputs(v R) error {
	fc.outMu.Lock()
	defer fc.outMu.Unlock()
	for _, out := range fc.outputs {
		if err := out.Write(fc.ctx, v); err != nil {
			return err
		}
	}
	return nil
}
