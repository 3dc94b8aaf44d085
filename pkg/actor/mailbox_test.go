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
	"testing"
	"time"

	"github.com/wanglaibao/GPars/pkg/actor/message"
	cerror "github.com/wanglaibao/GPars/pkg/errors"
	"github.com/wanglaibao/GPars/pkg/leakutil"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	leakutil.SetUpLeakTest(m)
}

// Make sure mailbox implementations follow the Mailbox definition.
func testMailbox(t *testing.T, mb Mailbox) {
	// Empty mailbox.
	require.Equal(t, 0, mb.Len())
	_, ok := mb.Receive()
	require.False(t, ok)

	// Send and receive.
	err := mb.Send(message.ValueMessage(1))
	require.Nil(t, err)
	require.Equal(t, 1, mb.Len())
	msg, ok := mb.Receive()
	require.True(t, ok)
	require.Equal(t, message.ValueMessage(1), msg)

	// Empty again.
	_, ok = mb.Receive()
	require.False(t, ok)

	// Peek observes without consuming.
	_, ok = mb.Peek()
	require.False(t, ok)
	require.Nil(t, mb.Send(message.ValueMessage(7)))
	msg, ok = mb.Peek()
	require.True(t, ok)
	require.Equal(t, message.ValueMessage(7), msg)
	require.Equal(t, 1, mb.Len())
	msg, ok = mb.Receive()
	require.True(t, ok)
	require.Equal(t, message.ValueMessage(7), msg)

	// ReceiveB is aware of context cancel.
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan error)
	go func() {
		ch <- nil
		_, err := mb.ReceiveB(ctx)
		ch <- err
	}()
	// Wait for goroutine start.
	<-ch
	select {
	case <-time.After(100 * time.Millisecond):
	case err = <-ch:
		t.Fatalf("must block, got error %v", err)
	}
	cancel()
	select {
	case <-time.After(time.Second):
		t.Fatal("must not block")
	case err = <-ch:
		require.Error(t, err)
	}

	// ReceiveB returns a queued message.
	require.Nil(t, mb.Send(message.ValueMessage(2)))
	msg, err = mb.ReceiveB(context.Background())
	require.Nil(t, err)
	require.Equal(t, message.ValueMessage(2), msg)

	// Close rejects sends and drains the rest.
	require.Nil(t, mb.Send(message.ValueMessage(3)))
	mb.Close()
	err = mb.Send(message.ValueMessage(4))
	require.True(t, cerror.Is(err, cerror.ErrMailboxClosed))
	msg, err = mb.ReceiveB(context.Background())
	require.Nil(t, err)
	require.Equal(t, message.ValueMessage(3), msg)
	_, err = mb.ReceiveB(context.Background())
	require.True(t, cerror.Is(err, cerror.ErrMailboxClosed))
	require.Equal(t, 0, mb.Drain())
}

func TestBoundedMailbox(t *testing.T) {
	t.Parallel()
	testMailbox(t, NewMailbox(16))
}

func TestUnboundedMailbox(t *testing.T) {
	t.Parallel()
	testMailbox(t, NewUnboundedMailbox())
}

func TestBoundedMailboxBackpressure(t *testing.T) {
	t.Parallel()
	mb := NewMailbox(1)
	require.Nil(t, mb.Send(message.ValueMessage(1)))
	err := mb.Send(message.ValueMessage(2))
	require.True(t, cerror.Is(err, cerror.ErrMailboxFull))

	// SendB blocks until the consumer frees a slot.
	ch := make(chan error)
	go func() {
		ch <- nil
		ch <- mb.SendB(context.Background(), message.ValueMessage(2))
	}()
	<-ch
	select {
	case <-time.After(100 * time.Millisecond):
	case err := <-ch:
		t.Fatalf("must block, got error %v", err)
	}
	msg, ok := mb.Receive()
	require.True(t, ok)
	require.Equal(t, message.ValueMessage(1), msg)
	select {
	case <-time.After(time.Second):
		t.Fatal("must not block")
	case err := <-ch:
		require.Nil(t, err)
	}
}

func TestUnboundedMailboxGrows(t *testing.T) {
	t.Parallel()
	mb := NewUnboundedMailbox()
	const n = 100000
	for i := 0; i < n; i++ {
		require.Nil(t, mb.Send(message.ValueMessage(i)))
	}
	require.Equal(t, n, mb.Len())
	for i := 0; i < n; i++ {
		msg, ok := mb.Receive()
		require.True(t, ok)
		require.Equal(t, i, msg.Value)
	}
	require.Equal(t, 0, mb.Len())
}
