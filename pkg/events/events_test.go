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

package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeValid(t *testing.T) {
	valid := []Type{
		RunStarted, PlanCreated, DispatchSelected, StepStarted,
		ToolCallRequested, ToolCallSucceeded, ToolCallFailed,
		StepCompleted, ProvenanceEmitted, RunCompleted, RunFailed,
	}
	for _, typ := range valid {
		assert.True(t, typ.Valid(), "type %s", typ)
	}

	for _, typ := range []Type{"", "RUN_STARTED ", "run_started", "CHECKPOINT"} {
		assert.False(t, typ.Valid(), "type %q", typ)
	}
}
