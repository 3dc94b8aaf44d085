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

// Package group ties the runtime together: a group owns a worker pool and
// a fairness default, and is the factory and lifecycle owner of the
// actors, agents, operators and tasks created from it.
package group

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"github.com/wanglaibao/GPars/pkg/actor"
	"github.com/wanglaibao/GPars/pkg/config"
	"github.com/wanglaibao/GPars/pkg/pool"
	"github.com/wanglaibao/GPars/pkg/workctx"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Group is a unit of shared scheduling. Primitives created from a group
// run on its pool and stop when it shuts down.
type Group struct {
	name string
	cfg  *config.GroupConfig
	pool pool.Pool

	system *actor.System

	mu         sync.Mutex
	stoppables []workctx.Stoppable

	closed atomic.Bool
}

var _ workctx.Group = (*Group)(nil)

// New creates a group with the given configuration. A nil configuration
// means defaults.
func New(cfg *config.GroupConfig) (*Group, error) {
	if cfg == nil {
		cfg = config.GetDefaultGroupConfig()
	}
	cfg = cfg.Clone()
	if err := cfg.ValidateAndAdjust(); err != nil {
		return nil, errors.Trace(err)
	}
	name := cfg.Name
	if name == "" {
		name = "group-" + uuid.New().String()[:8]
	}

	var p pool.Pool
	switch cfg.PoolType {
	case config.PoolTypeFixed:
		p = pool.NewFixedPool(name, cfg.PoolSize, cfg.Daemon)
	case config.PoolTypeCached:
		p = pool.NewCachedPool(name, cfg.Daemon)
	default:
		p = pool.NewForkJoinPool(name, cfg.PoolSize, cfg.Daemon)
	}

	g := &Group{
		name:   name,
		cfg:    cfg,
		pool:   p,
		system: actor.NewSystem(name),
	}
	log.Info("group created",
		zap.String("group", name),
		zap.String("poolType", string(cfg.PoolType)),
		zap.Int("poolSize", cfg.PoolSize),
		zap.Bool("daemon", cfg.Daemon))
	return g, nil
}

// MustNew is New for configurations known to be valid.
func MustNew(cfg *config.GroupConfig) *Group {
	g, err := New(cfg)
	if err != nil {
		log.Panic("invalid group configuration", zap.Error(err))
	}
	return g
}

// Name implements workctx.Group.
func (g *Group) Name() string {
	return g.name
}

// FairDefault implements workctx.Group.
func (g *Group) FairDefault() bool {
	return g.cfg.FairDefault
}

// Schedule implements workctx.Group. The submitted task runs with this
// group as its ambient group.
func (g *Group) Schedule(ctx context.Context, task func(ctx context.Context)) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return g.pool.Submit(workctx.WithGroup(ctx, g), task)
}

// Attach implements workctx.Group. Actors register with the group's
// system, everything else joins the shutdown list.
func (g *Group) Attach(s workctx.Stoppable) {
	if ref, ok := s.(actor.Ref); ok {
		g.system.Register(ref)
		return
	}
	g.mu.Lock()
	g.stoppables = append(g.stoppables, s)
	g.mu.Unlock()
}

// Pool returns the group's pool.
func (g *Group) Pool() pool.Pool {
	return g.pool
}

// Config returns a copy of the group's configuration.
func (g *Group) Config() *config.GroupConfig {
	return g.cfg.Clone()
}

// Actor creates and starts a cooperative actor on this group.
func (g *Group) Actor(initial actor.Handler, opts ...actor.Option) (*actor.PooledActor, error) {
	a := actor.NewPooledActor(g, initial, opts...)
	if err := a.Start(); err != nil {
		return nil, errors.Trace(err)
	}
	return a, nil
}

// BoundActor creates and starts a thread-pinned actor on this group.
func (g *Group) BoundActor(initial actor.Handler, opts ...actor.Option) (*actor.BoundActor, error) {
	a := actor.NewBoundActor(g, initial, opts...)
	if err := a.Start(); err != nil {
		return nil, errors.Trace(err)
	}
	return a, nil
}

func groupFromContext(ctx context.Context) (*Group, bool) {
	wg, ok := workctx.FromContext(ctx)
	if !ok {
		return nil, false
	}
	g, ok := wg.(*Group)
	return g, ok
}

// Shutdown stops the group: actors reach a safe stopping point, operators
// and selectors stop after their current firing, then the pool goes down.
func (g *Group) Shutdown(ctx context.Context) error {
	if !g.closed.CompareAndSwap(false, true) {
		return nil
	}
	g.system.StopAll(ctx)
	g.mu.Lock()
	stoppables := g.stoppables
	g.stoppables = nil
	g.mu.Unlock()
	for _, s := range stoppables {
		s.Stop()
	}
	err := g.pool.Shutdown(ctx)
	log.Info("group shut down", zap.String("group", g.name), zap.Error(err))
	return errors.Trace(err)
}
