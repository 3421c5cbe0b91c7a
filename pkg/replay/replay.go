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

// Package replay reconstructs a run's state from its events alone and
// verifies the event stream against the state machine. The event log is the
// source of truth: replay never consults the run row except to find the
// events.
package replay

import (
	"context"
	"fmt"

	"github.com/tombee/nexus-router/pkg/events"
	"github.com/tombee/nexus-router/pkg/eventstore"
)

// Violation codes.
const (
	ViolationNoEvents          = "NO_EVENTS"
	ViolationFirstNotStarted   = "FIRST_EVENT_NOT_RUN_STARTED"
	ViolationSeqGap            = "SEQ_GAP"
	ViolationStepNotCompleted  = "STEP_NOT_COMPLETED"
	ViolationStepNotStarted    = "STEP_COMPLETED_WITHOUT_START"
	ViolationCallUnpaired      = "TOOL_CALL_UNPAIRED"
	ViolationCallMultiResult   = "TOOL_CALL_MULTIPLE_RESULTS"
	ViolationCallAdapterDrift  = "TOOL_CALL_ADAPTER_MISMATCH"
	ViolationCallInterleaved   = "TOOL_CALL_INTERLEAVED"
	ViolationNoTerminal        = "NO_TERMINAL_EVENT"
	ViolationMultipleTerminal  = "MULTIPLE_TERMINAL_EVENTS"
	ViolationEventsAfterFinish = "EVENTS_AFTER_TERMINAL"
)

// Violation is one state-machine check failure found during replay.
type Violation struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Seq     int64  `json:"seq,omitempty"`
}

// StepView is one step reconstructed from the event stream.
type StepView struct {
	StepID string `json:"step_id"`
	Status string `json:"status"`
}

// RunView is the run state reconstructed from events alone.
type RunView struct {
	Mode      string     `json:"mode"`
	Goal      string     `json:"goal"`
	Outcome   string     `json:"outcome"`
	Steps     []StepView `json:"steps"`
	ToolsUsed []string   `json:"tools_used"`
}

// Result is the replay output: the reconstructed view plus any violations.
type Result struct {
	OK         bool        `json:"ok"`
	RunView    RunView     `json:"run_view"`
	Violations []Violation `json:"violations"`
}

// Replay reads the run's events in seq order, walks the state machine, and
// reports the reconstructed run view with any violations found.
func Replay(ctx context.Context, store *eventstore.Store, runID string) (*Result, error) {
	evs, err := store.ReadEvents(ctx, runID)
	if err != nil {
		return nil, err
	}
	return ReplayEvents(evs), nil
}

// ReplayEvents is Replay over an in-memory event list, in seq order.
func ReplayEvents(evs []events.Event) *Result {
	view := RunView{
		Outcome:   "unknown",
		Steps:     []StepView{},
		ToolsUsed: []string{},
	}
	var violations []Violation

	if len(evs) == 0 {
		violations = append(violations, Violation{
			Code:    ViolationNoEvents,
			Message: "run has no events",
		})
		return &Result{OK: false, RunView: view, Violations: violations}
	}

	if evs[0].Type != events.RunStarted {
		violations = append(violations, Violation{
			Code:    ViolationFirstNotStarted,
			Message: fmt.Sprintf("first event is %s, want %s", evs[0].Type, events.RunStarted),
			Seq:     evs[0].Seq,
		})
	} else {
		view.Mode, _ = evs[0].Payload["mode"].(string)
		view.Goal, _ = evs[0].Payload["goal"].(string)
	}

	for i, e := range evs {
		if e.Seq != int64(i+1) {
			violations = append(violations, Violation{
				Code:    ViolationSeqGap,
				Message: fmt.Sprintf("event %d has seq %d, want %d", i, e.Seq, i+1),
				Seq:     e.Seq,
			})
		}
	}

	type callState struct {
		adapterID string
		results   int
		seq       int64
	}
	openSteps := map[string]int64{}  // step_id → STEP_STARTED seq
	calls := map[string]*callState{} // step_id → requested call
	stepOrder := []string{}
	stepStatus := map[string]string{}
	seenTools := map[string]struct{}{}
	completedCount := 0
	failedCount := 0
	var terminalSeq int64
	openCallStep := "" // step_id of a requested call awaiting its result

	for _, e := range evs {
		stepID, _ := e.Payload["step_id"].(string)

		// Between a TOOL_CALL_REQUESTED and its result, no other step may
		// emit step-level events.
		switch e.Type {
		case events.StepStarted, events.StepCompleted, events.ToolCallRequested,
			events.ToolCallSucceeded, events.ToolCallFailed:
			if openCallStep != "" && stepID != openCallStep {
				violations = append(violations, Violation{
					Code: ViolationCallInterleaved,
					Message: fmt.Sprintf("step %q event interleaved inside open tool call for step %q",
						stepID, openCallStep),
					Seq: e.Seq,
				})
			}
		}

		switch e.Type {
		case events.StepStarted:
			openSteps[stepID] = e.Seq
			stepOrder = append(stepOrder, stepID)
		case events.StepCompleted:
			if _, ok := openSteps[stepID]; !ok {
				violations = append(violations, Violation{
					Code:    ViolationStepNotStarted,
					Message: fmt.Sprintf("step %q completed without a start", stepID),
					Seq:     e.Seq,
				})
			}
			delete(openSteps, stepID)
			stepStatus[stepID], _ = e.Payload["status"].(string)
		case events.ToolCallRequested:
			adapterID, _ := e.Payload["adapter_id"].(string)
			calls[stepID] = &callState{adapterID: adapterID, seq: e.Seq}
			openCallStep = stepID
			if call, ok := e.Payload["call"].(map[string]any); ok {
				if method, ok := call["method"].(string); ok {
					if _, seen := seenTools[method]; !seen {
						seenTools[method] = struct{}{}
						view.ToolsUsed = append(view.ToolsUsed, method)
					}
				}
			}
		case events.ToolCallSucceeded, events.ToolCallFailed:
			if stepID == openCallStep {
				openCallStep = ""
			}
			call, ok := calls[stepID]
			if !ok {
				violations = append(violations, Violation{
					Code:    ViolationCallUnpaired,
					Message: fmt.Sprintf("tool call result for step %q without a request", stepID),
					Seq:     e.Seq,
				})
				continue
			}
			call.results++
			if call.results > 1 {
				violations = append(violations, Violation{
					Code:    ViolationCallMultiResult,
					Message: fmt.Sprintf("step %q has multiple tool call results", stepID),
					Seq:     e.Seq,
				})
			}
			if adapterID, _ := e.Payload["adapter_id"].(string); adapterID != call.adapterID {
				violations = append(violations, Violation{
					Code: ViolationCallAdapterDrift,
					Message: fmt.Sprintf("step %q result adapter %q does not match requested %q",
						stepID, adapterID, call.adapterID),
					Seq: e.Seq,
				})
			}
		case events.RunCompleted:
			completedCount++
			terminalSeq = e.Seq
			view.Outcome = "ok"
		case events.RunFailed:
			failedCount++
			terminalSeq = e.Seq
			view.Outcome = "error"
		}
	}

	for stepID, seq := range openSteps {
		violations = append(violations, Violation{
			Code:    ViolationStepNotCompleted,
			Message: fmt.Sprintf("step %q started but never completed", stepID),
			Seq:     seq,
		})
	}
	for stepID, call := range calls {
		if call.results == 0 {
			violations = append(violations, Violation{
				Code:    ViolationCallUnpaired,
				Message: fmt.Sprintf("tool call for step %q has no result", stepID),
				Seq:     call.seq,
			})
		}
	}

	last := evs[len(evs)-1]
	switch {
	case completedCount == 0 && failedCount == 0:
		violations = append(violations, Violation{
			Code:    ViolationNoTerminal,
			Message: "run has no terminal RUN_COMPLETED or RUN_FAILED",
			Seq:     last.Seq,
		})
	case completedCount > 1 || (completedCount == 1 && failedCount > 0):
		// A run terminates exactly one way. A FAILED run may carry several
		// RUN_FAILED events (reason record plus terminal marker), but never
		// a RUN_COMPLETED alongside them.
		violations = append(violations, Violation{
			Code:    ViolationMultipleTerminal,
			Message: "run has conflicting terminal events",
			Seq:     terminalSeq,
		})
	case last.Type != events.RunCompleted && last.Type != events.RunFailed:
		violations = append(violations, Violation{
			Code:    ViolationEventsAfterFinish,
			Message: fmt.Sprintf("events continue after terminal event at seq %d", terminalSeq),
			Seq:     last.Seq,
		})
	}

	for _, stepID := range stepOrder {
		status := stepStatus[stepID]
		if status == "" {
			status = "unknown"
		}
		view.Steps = append(view.Steps, StepView{StepID: stepID, Status: status})
	}

	if violations == nil {
		violations = []Violation{}
	}
	return &Result{
		OK:         len(violations) == 0,
		RunView:    view,
		Violations: violations,
	}
}
