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
)

// RemoteHub publishes dataflow variables under names and resolves remote
// references to local variables. The core ships only the in-process
// LocalHub; network transports implement this interface externally and
// drive the returned variable's bind from their fetch.
type RemoteHub interface {
	// BindRemote publishes a variable under a name.
	BindRemote(name string, v *Variable[any]) error
	// GetRemote resolves (host, port, name) to a variable whose Value
	// drives the fetch.
	GetRemote(ctx context.Context, host string, port int, name string) (*Variable[any], error)
}

// LocalHub is the in-process RemoteHub. Host and port are ignored, lookups
// resolve against the local registry.
type LocalHub struct {
	mu   sync.RWMutex
	vars map[string]*Variable[any]
}

var _ RemoteHub = (*LocalHub)(nil)

// NewLocalHub creates an empty hub.
func NewLocalHub() *LocalHub {
	return &LocalHub{vars: make(map[string]*Variable[any])}
}

// BindRemote implements RemoteHub.
func (h *LocalHub) BindRemote(name string, v *Variable[any]) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.vars[name]; ok {
		return cerror.ErrRemoteNameTaken.GenWithStackByArgs(name)
	}
	h.vars[name] = v
	return nil
}

// GetRemote implements RemoteHub.
func (h *LocalHub) GetRemote(
	_ context.Context, _ string, _ int, name string,
) (*Variable[any], error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	v, ok := h.vars[name]
	if !ok {
		return nil, cerror.ErrRemoteNameNotFound.GenWithStackByArgs(name)
	}
	return v, nil
}
