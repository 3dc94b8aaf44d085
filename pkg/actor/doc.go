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

// Package actor provides message-processing participants in two flavors
// that share one send/receive surface.
//
// A PooledActor holds no worker while idle. A send enqueues to the mailbox
// and schedules a wake-up on the group's pool; the wake-up drains a burst
// of messages through the continuation installed by Context.React, then
// returns the worker. The continuation is the state-machine rendition of a
// suspended receive: each handler names the next state by reacting.
//
// A BoundActor pins one pool worker for its whole life and blocks it on
// the mailbox between messages.
//
// At most one worker executes a given actor's handlers at any instant, and
// no message is delivered after the actor reaches Stopped.
package actor
