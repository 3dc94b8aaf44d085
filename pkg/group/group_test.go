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

package group_test

import (
	"context"
	"testing"
	"time"

	"github.com/wanglaibao/GPars/pkg/actor"
	"github.com/wanglaibao/GPars/pkg/actor/message"
	"github.com/wanglaibao/GPars/pkg/config"
	"github.com/wanglaibao/GPars/pkg/dataflow"
	cerror "github.com/wanglaibao/GPars/pkg/errors"
	"github.com/wanglaibao/GPars/pkg/group"
	"github.com/wanglaibao/GPars/pkg/leakutil"
	"github.com/wanglaibao/GPars/pkg/operator"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	leakutil.SetUpLeakTest(m)
}

func testGroup(t *testing.T, cfg *config.GroupConfig) *group.Group {
	t.Helper()
	if cfg == nil {
		cfg = &config.GroupConfig{
			PoolType: config.PoolTypeFixed,
			PoolSize: 4,
		}
	}
	cfg.Name = "test-" + t.Name()
	cfg.Daemon = false
	g, err := group.New(cfg)
	require.Nil(t, err)
	t.Cleanup(func() {
		require.Nil(t, g.Shutdown(context.Background()))
	})
	return g
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()
	_, err := group.New(&config.GroupConfig{PoolType: "warp"})
	require.True(t, cerror.Is(err, cerror.ErrConfigInvalid))
}

func TestNewGeneratesName(t *testing.T) {
	t.Parallel()
	g, err := group.New(nil)
	require.Nil(t, err)
	require.NotEmpty(t, g.Name())
	require.Nil(t, g.Shutdown(context.Background()))
}

func TestTaskBindsResult(t *testing.T) {
	t.Parallel()
	g := testGroup(t, nil)
	r := group.Task(g, func(ctx context.Context) (string, error) {
		return "done", nil
	})
	got, err := r.Value(context.Background())
	require.Nil(t, err)
	require.Equal(t, "done", got)
}

func TestTaskChaining(t *testing.T) {
	t.Parallel()
	g := testGroup(t, nil)
	r := group.Task(g, func(ctx context.Context) (int, error) {
		inner, err := group.TaskFrom(ctx, func(ctx context.Context) (int, error) {
			return 40, nil
		})
		if err != nil {
			return 0, err
		}
		v, err := inner.Value(ctx)
		return v + 2, err
	})
	got, err := r.Value(context.Background())
	require.Nil(t, err)
	require.Equal(t, 42, got)
}

func TestTaskErrorEnvelope(t *testing.T) {
	t.Parallel()
	g := testGroup(t, nil)
	boom := cerror.ErrHandlerFailure.GenWithStackByArgs("boom")
	r := group.Task(g, func(ctx context.Context) (int, error) {
		return 0, boom
	})
	_, err := r.Value(context.Background())
	require.True(t, cerror.Is(err, cerror.ErrHandlerFailure))

	p := group.Task(g, func(ctx context.Context) (int, error) {
		panic("blew up")
	})
	_, err = p.Value(context.Background())
	require.True(t, cerror.Is(err, cerror.ErrHandlerFailure))
}

func TestTaskFromOutsideTask(t *testing.T) {
	t.Parallel()
	_, err := group.TaskFrom(context.Background(), func(ctx context.Context) (int, error) {
		return 0, nil
	})
	require.True(t, cerror.Is(err, cerror.ErrNoAmbientGroup))
}

func TestShutdownCascades(t *testing.T) {
	t.Parallel()
	g, err := group.New(&config.GroupConfig{
		Name:     "cascade-" + t.Name(),
		PoolType: config.PoolTypeForkJoin,
		PoolSize: 4,
		Daemon:   false,
	})
	require.Nil(t, err)

	var h actor.Handler
	h = func(c *actor.Context, msg message.Message) {
		if msg.Tp == message.TypeStop {
			return
		}
		c.React(h)
	}
	a, err := g.Actor(h)
	require.Nil(t, err)

	in := dataflow.NewStream[int](g)
	out := dataflow.NewStream[int](g)
	op := operator.NewOperator(g,
		[]*dataflow.Stream[int]{in},
		[]*dataflow.Stream[int]{out},
		func(fc *operator.FiringContext[int], vals []int) error {
			return fc.BindOutput(0, vals[0])
		})

	require.Nil(t, g.Shutdown(context.Background()))
	// Shutdown is idempotent.
	require.Nil(t, g.Shutdown(context.Background()))

	require.Equal(t, actor.StateStopped, a.State())
	require.True(t, op.Stopped())
	err = g.Schedule(context.Background(), func(ctx context.Context) {})
	require.True(t, cerror.Is(err, cerror.ErrPoolShutdown))
	err = a.Send(context.Background(), 1)
	require.True(t, cerror.Is(err, cerror.ErrMailboxClosed))
}

func TestScheduleCarriesAmbientGroup(t *testing.T) {
	t.Parallel()
	g := testGroup(t, nil)
	got := make(chan string, 1)
	require.Nil(t, g.Schedule(context.Background(), func(ctx context.Context) {
		v, err := dataflow.NewVariableFromContext[int](ctx)
		if err != nil {
			got <- err.Error()
			return
		}
		got <- v.Group().Name()
	}))
	select {
	case name := <-got:
		require.Equal(t, g.Name(), name)
	case <-time.After(time.Second):
		t.Fatal("scheduled task must run")
	}
}

func TestGroupConfigIsCopied(t *testing.T) {
	t.Parallel()
	g := testGroup(t, nil)
	cfg := g.Config()
	cfg.PoolSize = 999
	require.NotEqual(t, 999, g.Config().PoolSize)
	require.False(t, g.FairDefault())
	require.NotNil(t, g.Pool())
}
