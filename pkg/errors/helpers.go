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

package errors

import stderrors "errors"

// Kind names the error class an error falls into under the taxonomy.
type Kind string

const (
	// KindOperational marks expected external failures.
	KindOperational Kind = "operational"
	// KindBug marks invariant violations, including unknown errors.
	KindBug Kind = "bug"
)

// AsOperational reports whether err is (or wraps) an OperationalError.
func AsOperational(err error) (*OperationalError, bool) {
	var oe *OperationalError
	if stderrors.As(err, &oe) {
		return oe, true
	}
	return nil, false
}

// AsBug reports whether err is (or wraps) a BugError.
func AsBug(err error) (*BugError, bool) {
	var be *BugError
	if stderrors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// IsOperational reports whether err classifies as operational.
func IsOperational(err error) bool {
	_, ok := AsOperational(err)
	return ok
}

// Classify maps any error onto the taxonomy. Operational and bug errors
// keep their kind and code; anything else is treated as a bug with code
// UNKNOWN_ERROR, per the platform rule that adapters may fail only as
// operational or bug.
func Classify(err error) (Kind, string, map[string]any) {
	if oe, ok := AsOperational(err); ok {
		return KindOperational, oe.Code, oe.Details
	}
	if be, ok := AsBug(err); ok {
		return KindBug, be.Code, be.Details
	}
	return KindBug, CodeUnknownError, nil
}

// CodeOf returns the stable code for err, or UNKNOWN_ERROR for errors
// outside the taxonomy.
func CodeOf(err error) string {
	_, code, _ := Classify(err)
	return code
}
