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

	"github.com/pingcap/log"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// System tracks the live actors of one group so a group shutdown can bring
// them to a safe stopping point.
type System struct {
	name string

	mu     sync.Mutex
	actors map[Ref]struct{}
}

// NewSystem creates an empty system.
func NewSystem(name string) *System {
	return &System{
		name:   name,
		actors: make(map[Ref]struct{}),
	}
}

// Register adds an actor to the system.
func (s *System) Register(a Ref) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actors[a] = struct{}{}
}

// Len returns the number of tracked actors, stopped ones included until
// the next StopAll.
func (s *System) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.actors)
}

// StopAll requests an orderly stop of every tracked actor and waits for
// them within the context deadline. Actors that do not make it are
// terminated.
func (s *System) StopAll(ctx context.Context) {
	s.mu.Lock()
	actors := make([]Ref, 0, len(s.actors))
	for a := range s.actors {
		actors = append(actors, a)
	}
	s.actors = make(map[Ref]struct{})
	s.mu.Unlock()

	for _, a := range actors {
		a.Stop()
	}
	terminated := atomic.NewInt32(0)
	errg := &errgroup.Group{}
	errg.SetLimit(16)
	for _, a := range actors {
		a := a
		errg.Go(func() error {
			if err := a.Join(ctx); err != nil {
				a.Terminate()
				terminated.Inc()
			}
			return nil
		})
	}
	_ = errg.Wait()
	if n := terminated.Load(); n > 0 {
		log.Warn("actors terminated during system stop",
			zap.String("system", s.name), zap.Int32("terminated", n))
	}
}
