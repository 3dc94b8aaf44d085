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

// Package leakutil provides the shared goroutine-leak test harness.
package leakutil

import (
	"testing"

	"go.uber.org/goleak"
)

// SetUpLeakTest verifies no goroutine leaks after all tests in a package
// ran. Call it in TestMain.
func SetUpLeakTest(m *testing.M, opts ...goleak.Option) {
	opts = append(opts,
		goleak.IgnoreTopFunction("testing.runTests.func1"),
		goleak.IgnoreTopFunction("time.Sleep"),
	)
	goleak.VerifyTestMain(m, opts...)
}
