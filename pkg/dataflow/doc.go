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

// Package dataflow provides single-assignment variables and the streams
// built from them.
//
// A Variable transitions from unbound to bound exactly once. Readers block
// on Value, poll with TryValue, or register WhenBound handlers that the
// owning group schedules after the transition. A Stream chains variables
// into an ordered sequence: position i is a cell whose bind both carries
// the value and links to cell i+1, which gives readers, operators and
// selectors one uniform waiting surface.
package dataflow
