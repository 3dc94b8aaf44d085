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

package group

import (
	"context"
	"fmt"

	"github.com/wanglaibao/GPars/pkg/dataflow"
	cerror "github.com/wanglaibao/GPars/pkg/errors"
)

// Task runs the body once on the group's pool and returns the variable
// its result will be bound to. A failure binds an error envelope instead.
// The body's context carries the group, so variables and nested tasks
// created inside it inherit the ambient group.
func Task[T any](g *Group, body func(ctx context.Context) (T, error)) *dataflow.Variable[T] {
	result := dataflow.NewVariable[T](g)
	err := g.Schedule(context.Background(), func(ctx context.Context) {
		defer func() {
			if r := recover(); r != nil {
				_ = result.BindError(cerror.ErrHandlerFailure.GenWithStackByArgs(
					fmt.Sprintf("%v", r)))
			}
		}()
		v, err := body(ctx)
		if err != nil {
			_ = result.BindError(err)
			return
		}
		_ = result.Bind(v)
	})
	if err != nil {
		_ = result.BindError(err)
	}
	return result
}

// TaskFrom is Task for bodies running inside another task: it reads the
// ambient group off the context.
func TaskFrom[T any](ctx context.Context, body func(ctx context.Context) (T, error)) (*dataflow.Variable[T], error) {
	g, ok := groupFromContext(ctx)
	if !ok {
		return nil, cerror.ErrNoAmbientGroup.GenWithStackByArgs()
	}
	return Task(g, body), nil
}
