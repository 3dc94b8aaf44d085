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

// Package workctx carries the ambient group of a scheduled unit of work.
//
// Every task submitted through a group runs with that group attached to its
// context. Constructs created inside the task (variables, nested tasks,
// whenBound handlers) read the group back from the context instead of a
// global, so ambient identity never leaks between unrelated work units that
// happen to share a worker.
package workctx

import (
	"context"
)

// Group is the scheduling surface a primitive needs from its owning group.
// The concrete type lives in pkg/group; primitives depend on this interface
// only.
type Group interface {
	// Name returns the group name, used in logs and metric labels.
	Name() string
	// Schedule submits a unit of work to the group's pool. The task context
	// carries this group as the ambient group.
	Schedule(ctx context.Context, task func(ctx context.Context)) error
	// FairDefault reports whether actors created from this group share
	// workers fairly by default.
	FairDefault() bool
	// Attach registers a primitive to be stopped when the group shuts down.
	Attach(s Stoppable)
}

// Stoppable is anything the group can ask to reach a safe stopping point.
type Stoppable interface {
	Stop()
}

type groupKey struct{}

// WithGroup returns a context carrying the given group.
func WithGroup(ctx context.Context, g Group) context.Context {
	return context.WithValue(ctx, groupKey{}, g)
}

// FromContext returns the ambient group attached to the context, if any.
func FromContext(ctx context.Context) (Group, bool) {
	g, ok := ctx.Value(groupKey{}).(Group)
	return g, ok
}
