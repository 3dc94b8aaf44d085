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

package errors

import (
	"github.com/pingcap/errors"
)

// errors
var (
	// dataflow related errors
	ErrAlreadyBound = errors.Normalize(
		"dataflow variable is already bound to a different value",
		errors.RFCCodeText("GPARS:ErrAlreadyBound"),
	)
	ErrStreamClosed = errors.Normalize(
		"dataflow stream is closed",
		errors.RFCCodeText("GPARS:ErrStreamClosed"),
	)
	ErrRemoteNameNotFound = errors.Normalize(
		"no dataflow variable is registered under name %s",
		errors.RFCCodeText("GPARS:ErrRemoteNameNotFound"),
	)
	ErrRemoteNameTaken = errors.Normalize(
		"a dataflow variable is already registered under name %s",
		errors.RFCCodeText("GPARS:ErrRemoteNameTaken"),
	)
	ErrNoAmbientGroup = errors.Normalize(
		"context carries no ambient group",
		errors.RFCCodeText("GPARS:ErrNoAmbientGroup"),
	)

	// actor related errors
	ErrMailboxFull = errors.Normalize(
		"mailbox is full",
		errors.RFCCodeText("GPARS:ErrMailboxFull"),
	)
	ErrMailboxClosed = errors.Normalize(
		"mailbox is closed",
		errors.RFCCodeText("GPARS:ErrMailboxClosed"),
	)
	ErrNoReplyTo = errors.Normalize(
		"message carries no reply-to sender",
		errors.RFCCodeText("GPARS:ErrNoReplyTo"),
	)
	ErrActorNotRunning = errors.Normalize(
		"actor is not running, state %s",
		errors.RFCCodeText("GPARS:ErrActorNotRunning"),
	)
	ErrHandlerFailure = errors.Normalize(
		"handler failed, %s",
		errors.RFCCodeText("GPARS:ErrHandlerFailure"),
	)

	// operator and selector errors
	ErrOperatorStopped = errors.Normalize(
		"operator is stopped",
		errors.RFCCodeText("GPARS:ErrOperatorStopped"),
	)
	ErrSelectorStopped = errors.Normalize(
		"selector is stopped",
		errors.RFCCodeText("GPARS:ErrSelectorStopped"),
	)
	ErrOutputIndex = errors.Normalize(
		"output index %d out of range, operator has %d outputs",
		errors.RFCCodeText("GPARS:ErrOutputIndex"),
	)

	// scheduling errors
	ErrPoolShutdown = errors.Normalize(
		"pool is shut down, submission rejected",
		errors.RFCCodeText("GPARS:ErrPoolShutdown"),
	)
	ErrTimeout = errors.Normalize(
		"wait timed out, %s",
		errors.RFCCodeText("GPARS:ErrTimeout"),
	)

	// configuration errors
	ErrConfigInvalid = errors.Normalize(
		"invalid group configuration, %s",
		errors.RFCCodeText("GPARS:ErrConfigInvalid"),
	)
)
