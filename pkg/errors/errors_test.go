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

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationalError(t *testing.T) {
	err := Operationalf(CodeTimeout, "call exceeded %ds", 30).
		WithDetails(map[string]any{"timeout_s": 30})

	assert.Equal(t, "TIMEOUT: call exceeded 30s", err.Error())
	assert.Equal(t, 30, err.Details["timeout_s"])

	// Default code when none given.
	assert.Equal(t, CodeOperationalError, NewOperational("", "x").Code)
}

func TestBugError(t *testing.T) {
	err := Bugf(CodeSeqDuplicate, "duplicate seq %d", 4)
	assert.Equal(t, "SEQ_DUPLICATE: duplicate seq 4", err.Error())
	assert.Equal(t, CodeBugError, NewBug("", "x").Code)
}

func TestAsHelpersUnwrap(t *testing.T) {
	op := NewOperational(CodeNonzeroExit, "exit 2")
	wrapped := fmt.Errorf("dispatch: %w", op)

	got, ok := AsOperational(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeNonzeroExit, got.Code)
	assert.True(t, IsOperational(wrapped))

	_, ok = AsBug(wrapped)
	assert.False(t, ok)
}

func TestClassify(t *testing.T) {
	op := NewOperational(CodeTimeout, "t").WithDetails(map[string]any{"k": "v"})
	kind, code, details := Classify(op)
	assert.Equal(t, KindOperational, kind)
	assert.Equal(t, CodeTimeout, code)
	assert.Equal(t, "v", details["k"])

	kind, code, _ = Classify(NewBug(CodeSeqDuplicate, "b"))
	assert.Equal(t, KindBug, kind)
	assert.Equal(t, CodeSeqDuplicate, code)

	// Anything outside the taxonomy is a bug with UNKNOWN_ERROR.
	kind, code, details = Classify(stderrors.New("surprise"))
	assert.Equal(t, KindBug, kind)
	assert.Equal(t, CodeUnknownError, code)
	assert.Nil(t, details)
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeCapabilityMissing, CodeOf(NewOperational(CodeCapabilityMissing, "m")))
	assert.Equal(t, CodeUnknownError, CodeOf(stderrors.New("x")))
}
