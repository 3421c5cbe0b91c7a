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

// Package events defines the closed event-type set and the immutable event
// record that make up a run's append-only stream. The event stream is the
// ground truth for every run: a later replay must reconstruct the same run
// view from events alone.
package events

// Type identifies one of the closed set of run event types.
type Type string

// The closed event-type set. New types require a replay-compatible revision.
const (
	RunStarted        Type = "RUN_STARTED"
	PlanCreated       Type = "PLAN_CREATED"
	DispatchSelected  Type = "DISPATCH_SELECTED"
	StepStarted       Type = "STEP_STARTED"
	ToolCallRequested Type = "TOOL_CALL_REQUESTED"
	ToolCallSucceeded Type = "TOOL_CALL_SUCCEEDED"
	ToolCallFailed    Type = "TOOL_CALL_FAILED"
	StepCompleted     Type = "STEP_COMPLETED"
	ProvenanceEmitted Type = "PROVENANCE_EMITTED"
	RunCompleted      Type = "RUN_COMPLETED"
	RunFailed         Type = "RUN_FAILED"
)

// Valid reports whether t belongs to the closed event-type set.
func (t Type) Valid() bool {
	switch t {
	case RunStarted, PlanCreated, DispatchSelected, StepStarted,
		ToolCallRequested, ToolCallSucceeded, ToolCallFailed,
		StepCompleted, ProvenanceEmitted, RunCompleted, RunFailed:
		return true
	}
	return false
}

// Event is one immutable entry in a run's stream. (RunID, Seq) is unique;
// Seq starts at 1 with no gaps and totally orders the run's events.
type Event struct {
	EventID string         `json:"event_id"`
	RunID   string         `json:"run_id"`
	Seq     int64          `json:"seq"`
	Type    Type           `json:"type"`
	Payload map[string]any `json:"payload"`
	TS      string         `json:"ts"`
}

// Run statuses.
const (
	StatusRunning   = "RUNNING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// Run modes.
const (
	ModeDryRun = "dry_run"
	ModeApply  = "apply"
)

// Run is the mutable run row owned by the event store. It is created before
// any event is appended and mutated only through SetRunStatus.
type Run struct {
	RunID     string `json:"run_id"`
	Mode      string `json:"mode"`
	Goal      string `json:"goal"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}
