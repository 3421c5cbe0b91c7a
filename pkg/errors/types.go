// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package errors defines the error taxonomy for nexus-router dispatch.
//
// Every failure that crosses a component boundary is one of three kinds:
//
//   - operational: expected external failure (timeout, non-zero exit,
//     missing command, bad JSON, missing capability). Recorded in the event
//     stream; the run terminates gracefully as FAILED.
//   - bug: invariant violation in the router or an adapter. Recorded, then
//     propagated to the caller.
//   - unknown: anything else raised by an adapter. Treated as a bug with
//     code UNKNOWN_ERROR.
package errors

import "fmt"

// Stable error codes used in events, error details, and tests.
const (
	CodeTimeout           = "TIMEOUT"
	CodeNonzeroExit       = "NONZERO_EXIT"
	CodeInvalidJSONOutput = "INVALID_JSON_OUTPUT"
	CodeStderrOnSuccess   = "STDERR_ON_SUCCESS"
	CodeCommandNotFound   = "COMMAND_NOT_FOUND"
	CodePermissionDenied  = "PERMISSION_DENIED"
	CodeOSError           = "OS_ERROR"
	CodeCwdNotFound       = "CWD_NOT_FOUND"
	CodeCwdNotDirectory   = "CWD_NOT_DIRECTORY"
	CodeEnvInvalid        = "ENV_INVALID"
	CodeCapabilityMissing = "CAPABILITY_MISSING"
	CodeUnknownAdapter    = "UNKNOWN_ADAPTER"
	CodeDigestMismatch    = "DIGEST_MISMATCH"
	CodeSeqDuplicate      = "SEQ_DUPLICATE"
	CodeRunNotFound       = "RUN_NOT_FOUND"
	CodeInvalidBundle     = "INVALID_BUNDLE"
	CodeAdapterLoadFailed = "ADAPTER_LOAD_FAILED"
	CodeUnknownError      = "UNKNOWN_ERROR"

	// Defaults used when a caller does not pick a more specific code.
	CodeOperationalError = "OPERATIONAL_ERROR"
	CodeBugError         = "BUG_ERROR"
)

// OperationalError represents an expected failure during dispatch: the
// external world misbehaved in a way the system is designed to absorb.
// Operational errors are recorded as TOOL_CALL_FAILED (or RUN_FAILED) but
// never cross the router's public boundary as a Go error.
type OperationalError struct {
	// Code is a stable machine-readable error code.
	Code string

	// Message is the human-readable error description.
	Message string

	// Details carries structured context for the event stream. It must be
	// JSON-serializable.
	Details map[string]any
}

// Error implements the error interface.
func (e *OperationalError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewOperational creates an operational error with the given code.
func NewOperational(code, message string) *OperationalError {
	if code == "" {
		code = CodeOperationalError
	}
	return &OperationalError{Code: code, Message: message}
}

// Operationalf creates an operational error with a formatted message.
func Operationalf(code, format string, args ...any) *OperationalError {
	return NewOperational(code, fmt.Sprintf(format, args...))
}

// WithDetails attaches structured context and returns the error for chaining.
func (e *OperationalError) WithDetails(details map[string]any) *OperationalError {
	e.Details = details
	return e
}

// BugError represents an invariant violation attributable to the router or
// an adapter implementation. Bug errors are recorded in the event stream and
// then propagated to the caller.
type BugError struct {
	// Code is a stable machine-readable error code.
	Code string

	// Message is the human-readable error description.
	Message string

	// Details carries structured context for the event stream.
	Details map[string]any
}

// Error implements the error interface.
func (e *BugError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewBug creates a bug error with the given code.
func NewBug(code, message string) *BugError {
	if code == "" {
		code = CodeBugError
	}
	return &BugError{Code: code, Message: message}
}

// Bugf creates a bug error with a formatted message.
func Bugf(code, format string, args ...any) *BugError {
	return NewBug(code, fmt.Sprintf(format, args...))
}

// WithDetails attaches structured context and returns the error for chaining.
func (e *BugError) WithDetails(details map[string]any) *BugError {
	e.Details = details
	return e
}
