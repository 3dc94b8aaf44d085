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
	"testing"
	"time"

	"github.com/wanglaibao/GPars/pkg/dataflow"
	cerror "github.com/wanglaibao/GPars/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestStreamWriteReadOrder(t *testing.T) {
	t.Parallel()
	g := testGroup(t)
	s := dataflow.NewStream[int](g)
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		require.Nil(t, s.Write(ctx, i))
	}
	for i := 0; i < 100; i++ {
		got, err := s.Read(ctx)
		require.Nil(t, err)
		require.Equal(t, i, got)
	}
	_, ok := s.TryRead()
	require.False(t, ok)
}

func TestStreamReaderSuspendsOnEmpty(t *testing.T) {
	t.Parallel()
	g := testGroup(t)
	s := dataflow.NewStream[string](g)
	got := make(chan string, 1)
	go func() {
		v, err := s.Read(context.Background())
		if err != nil {
			t.Error(err)
		}
		got <- v
	}()
	select {
	case v := <-got:
		t.Fatalf("read must suspend on an empty stream, got %q", v)
	case <-time.After(50 * time.Millisecond):
	}
	require.Nil(t, s.Write(context.Background(), "late"))
	select {
	case v := <-got:
		require.Equal(t, "late", v)
	case <-time.After(time.Second):
		t.Fatal("read must resume after a write")
	}
}

func TestStreamWhenBoundConsumesInOrder(t *testing.T) {
	t.Parallel()
	g := testGroup(t)
	s := dataflow.NewStream[int](g)
	first := make(chan int, 1)
	second := make(chan int, 1)
	s.WhenBound(func(v int, err error) {
		if err == nil {
			first <- v
		}
	})
	s.WhenBound(func(v int, err error) {
		if err == nil {
			second <- v
		}
	})
	ctx := context.Background()
	require.Nil(t, s.Write(ctx, 1))
	require.Nil(t, s.Write(ctx, 2))
	require.Equal(t, 1, <-first)
	require.Equal(t, 2, <-second)
}

func TestBoundedStreamBackpressure(t *testing.T) {
	t.Parallel()
	g := testGroup(t)
	s := dataflow.NewBoundedStream[int](g, 2)
	ctx := context.Background()
	require.Nil(t, s.Write(ctx, 1))
	require.Nil(t, s.Write(ctx, 2))

	blocked := make(chan error, 1)
	go func() {
		blocked <- s.Write(ctx, 3)
	}()
	select {
	case err := <-blocked:
		t.Fatalf("write past capacity must suspend, got %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	got, err := s.Read(ctx)
	require.Nil(t, err)
	require.Equal(t, 1, got)
	select {
	case err := <-blocked:
		require.Nil(t, err)
	case <-time.After(time.Second):
		t.Fatal("read must unblock the writer")
	}

	// The buffer is full again; a canceled write reports the cancellation.
	cancelCtx, cancel := context.WithCancel(context.Background())
	cancel()
	err = s.Write(cancelCtx, 4)
	require.Error(t, err)
}

func TestStreamClose(t *testing.T) {
	t.Parallel()
	g := testGroup(t)
	s := dataflow.NewStream[int](g)
	ctx := context.Background()
	require.Nil(t, s.Write(ctx, 1))
	s.Close()
	s.Close() // idempotent

	err := s.Write(ctx, 2)
	require.True(t, cerror.Is(err, cerror.ErrStreamClosed))

	got, err := s.Read(ctx)
	require.Nil(t, err)
	require.Equal(t, 1, got)
	_, err = s.Read(ctx)
	require.True(t, cerror.Is(err, cerror.ErrStreamClosed))
}
