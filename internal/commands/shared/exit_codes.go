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

package shared

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for the nexus-router CLI.
const (
	ExitSuccess = 0
	// ExitRunFailed covers failed runs and failed validations.
	ExitRunFailed = 1
	// ExitBadRequest covers malformed requests rejected before execution.
	ExitBadRequest = 2
	// ExitConfigError covers configuration loading and registry failures.
	ExitConfigError = 3
)

// ExitError is an error that carries an exit code
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		if e.Message == "" {
			return e.Cause.Error()
		}
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewRunFailedError creates an error for failed runs.
func NewRunFailedError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitRunFailed, Message: msg, Cause: cause}
}

// NewBadRequestError creates an error for rejected requests.
func NewBadRequestError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitBadRequest, Message: msg, Cause: cause}
}

// NewConfigError creates an error for configuration failures.
func NewConfigError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitConfigError, Message: msg, Cause: cause}
}

// Silent marks an ExitError whose message has already been emitted; the
// handler exits without printing again.
func (e *ExitError) silent() bool {
	return e.Message == "" && e.Cause == nil
}

// NewSilentExit creates an ExitError that sets the exit code without
// printing anything. Used when the command already emitted its output.
func NewSilentExit(code int) *ExitError {
	return &ExitError{Code: code}
}

// HandleExitError checks if an error is an ExitError and exits with the
// appropriate code.
func HandleExitError(err error) {
	if err == nil {
		return
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if !exitErr.silent() {
			fmt.Fprintln(os.Stderr, "Error:", exitErr.Error())
		}
		os.Exit(exitErr.Code)
	}

	fmt.Fprintln(os.Stderr, "Error:", err.Error())
	os.Exit(ExitRunFailed)
}
