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

// Package operator provides deterministic stream processors.
//
// An Operator fires when all of its inputs carry a value; a Selector
// fires when any input does. Both drive an actor-like loop on the group's
// pool: the waiting phase is WhenBound registrations that hold no worker,
// the firing phase is one pool task, and firings of a single instance
// never overlap.
package operator
