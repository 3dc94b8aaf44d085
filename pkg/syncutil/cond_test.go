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

package syncutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCondBroadcastWakesAllWaiters(t *testing.T) {
	t.Parallel()
	var mu sync.Mutex
	cond := NewCond(&mu)
	const waiters = 8
	var wg sync.WaitGroup
	ready := make(chan struct{}, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mu.Lock()
			ready <- struct{}{}
			cond.Wait()
			mu.Unlock()
		}()
	}
	for i := 0; i < waiters; i++ {
		<-ready
	}
	// All waiters are registered on the current channel now or shortly
	// after; broadcast until everyone is released.
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		cond.Broadcast()
		select {
		case <-done:
			return
		case <-time.After(time.Millisecond):
		}
	}
}

func TestCondWaitWithContext(t *testing.T) {
	t.Parallel()
	var mu sync.Mutex
	cond := NewCond(&mu)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		mu.Lock()
		errCh <- cond.WaitWithContext(ctx)
	}()
	select {
	case err := <-errCh:
		t.Fatalf("wait must block, got %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	cancel()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("wait must observe cancellation")
	}
}
