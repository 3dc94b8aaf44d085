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

package dataflow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/wanglaibao/GPars/pkg/config"
	"github.com/wanglaibao/GPars/pkg/dataflow"
	cerror "github.com/wanglaibao/GPars/pkg/errors"
	"github.com/wanglaibao/GPars/pkg/group"
	"github.com/wanglaibao/GPars/pkg/leakutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestMain(m *testing.M) {
	leakutil.SetUpLeakTest(m)
}

func testGroup(t *testing.T) *group.Group {
	t.Helper()
	g, err := group.New(&config.GroupConfig{
		Name:     "test-" + t.Name(),
		PoolType: config.PoolTypeFixed,
		PoolSize: 4,
		Daemon:   false,
	})
	require.Nil(t, err)
	t.Cleanup(func() {
		require.Nil(t, g.Shutdown(context.Background()))
	})
	return g
}

func TestVariableBindValueRoundTrip(t *testing.T) {
	t.Parallel()
	g := testGroup(t)
	v := dataflow.NewVariable[int](g)
	require.False(t, v.IsBound())

	require.Nil(t, v.Bind(7))
	require.True(t, v.IsBound())
	got, err := v.Value(context.Background())
	require.Nil(t, err)
	require.Equal(t, 7, got)
}

func TestVariableSingleAssignment(t *testing.T) {
	t.Parallel()
	g := testGroup(t)
	v := dataflow.NewVariable[int](g)
	require.Nil(t, v.Bind(7))
	// Binding an equal value succeeds silently.
	require.Nil(t, v.Bind(7))
	// Binding an unequal value fails.
	err := v.Bind(8)
	require.True(t, cerror.Is(err, cerror.ErrAlreadyBound))
	got, err := v.Value(context.Background())
	require.Nil(t, err)
	require.Equal(t, 7, got)

	strict := dataflow.NewVariable[int](g)
	require.Nil(t, strict.BindUnique(1))
	err = strict.BindUnique(1)
	require.True(t, cerror.Is(err, cerror.ErrAlreadyBound))
}

func TestVariableWhenBoundFiresEachHandlerOnce(t *testing.T) {
	t.Parallel()
	g := testGroup(t)
	v := dataflow.NewVariable[int](g)

	var wg sync.WaitGroup
	var seen [3]*atomic.Int32
	for i := range seen {
		seen[i] = atomic.NewInt32(0)
	}
	for i := 0; i < 3; i++ {
		i := i
		wg.Add(1)
		v.WhenBound(func(val int, err error) {
			defer wg.Done()
			if err == nil && val == 7 {
				seen[i].Inc()
			}
		})
	}
	require.Nil(t, v.Bind(7))
	wg.Wait()
	for i := 0; i < 3; i++ {
		require.Equal(t, int32(1), seen[i].Load())
	}

	// A handler registered after the bind fires as well.
	late := make(chan int, 1)
	v.Then(func(val int, err error) {
		late <- val
	})
	require.Equal(t, 7, <-late)
}

func TestVariableTimeoutLeavesUnbound(t *testing.T) {
	t.Parallel()
	g := testGroup(t)
	v := dataflow.NewVariable[int](g)

	_, ok, err := v.ValueTimeout(context.Background(), 20*time.Millisecond)
	require.Nil(t, err)
	require.False(t, ok)
	require.False(t, v.IsBound())

	require.Nil(t, v.Bind(3))
	got, ok, err := v.ValueTimeout(context.Background(), time.Second)
	require.Nil(t, err)
	require.True(t, ok)
	require.Equal(t, 3, got)
}

func TestVariableErrorEnvelope(t *testing.T) {
	t.Parallel()
	g := testGroup(t)
	v := dataflow.NewVariable[int](g)
	bindErr := cerror.ErrHandlerFailure.GenWithStackByArgs("boom")
	require.Nil(t, v.BindError(bindErr))
	_, err := v.Value(context.Background())
	require.True(t, cerror.Is(err, cerror.ErrHandlerFailure))
	_, ok := v.TryValue()
	require.False(t, ok)
}

func TestVariableConcurrentReaders(t *testing.T) {
	t.Parallel()
	g := testGroup(t)
	v := dataflow.NewVariable[string](g)
	const readers = 16
	results := make(chan string, readers)
	for i := 0; i < readers; i++ {
		go func() {
			got, err := v.Value(context.Background())
			if err != nil {
				t.Error(err)
			}
			results <- got
		}()
	}
	require.Nil(t, v.Bind("ready"))
	for i := 0; i < readers; i++ {
		require.Equal(t, "ready", <-results)
	}
}

func TestVariableFromContext(t *testing.T) {
	t.Parallel()
	g := testGroup(t)
	res := group.Task(g, func(ctx context.Context) (int, error) {
		nested, err := dataflow.NewVariableFromContext[int](ctx)
		if err != nil {
			return 0, err
		}
		if err := nested.Bind(11); err != nil {
			return 0, err
		}
		return nested.Value(ctx)
	})
	got, err := res.Value(context.Background())
	require.Nil(t, err)
	require.Equal(t, 11, got)

	_, err = dataflow.NewVariableFromContext[int](context.Background())
	require.True(t, cerror.Is(err, cerror.ErrNoAmbientGroup))
}

func TestLocalHub(t *testing.T) {
	t.Parallel()
	g := testGroup(t)
	hub := dataflow.NewLocalHub()
	v := dataflow.NewVariable[any](g)
	require.Nil(t, hub.BindRemote("answer", v))
	err := hub.BindRemote("answer", v)
	require.True(t, cerror.Is(err, cerror.ErrRemoteNameTaken))

	got, err := hub.GetRemote(context.Background(), "localhost", 9000, "answer")
	require.Nil(t, err)
	require.Nil(t, v.Bind(42))
	val, verr := got.Value(context.Background())
	require.Nil(t, verr)
	require.Equal(t, 42, val)

	_, err = hub.GetRemote(context.Background(), "localhost", 9000, "missing")
	require.True(t, cerror.Is(err, cerror.ErrRemoteNameNotFound))
}
