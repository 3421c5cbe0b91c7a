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

package router

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tombee/nexus-router/pkg/dispatch"
	nxerrors "github.com/tombee/nexus-router/pkg/errors"
	"github.com/tombee/nexus-router/pkg/events"
	"github.com/tombee/nexus-router/pkg/eventstore"
)

// Router executes runs. All events of a single run are appended by one
// logical worker, so no interleaving is possible within a run. Distinct
// runs may execute in parallel; they serialize on the store's transactions.
type Router struct {
	store    *eventstore.Store
	registry *dispatch.AdapterRegistry
	planner  Planner
	logger   *slog.Logger
	metrics  *Metrics
}

// Option configures a Router.
type Option func(*Router)

// WithPlanner overrides the default passthrough planner.
func WithPlanner(p Planner) Option {
	return func(r *Router) { r.planner = p }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) { r.logger = logger }
}

// WithMetrics enables instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(r *Router) { r.metrics = m }
}

// New creates a Router over the given store and adapter registry.
func New(store *eventstore.Store, registry *dispatch.AdapterRegistry, opts ...Option) *Router {
	r := &Router{
		store:    store,
		registry: registry,
		planner:  PassthroughPlanner{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one run to completion.
//
// Operational failures never surface as a Go error: the run terminates as
// FAILED and the response is well-formed. A non-nil error means a bug (or
// unknown failure treated as a bug) that was recorded and is being
// propagated, or a storage failure.
func (r *Router) Run(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, fmt.Errorf("request must not be nil")
	}
	if req.Goal == "" {
		return nil, fmt.Errorf("goal is required")
	}
	mode := req.Mode
	if mode == "" {
		mode = events.ModeDryRun
	}
	if mode != events.ModeDryRun && mode != events.ModeApply {
		return nil, fmt.Errorf("unknown mode %q", mode)
	}

	runID, err := r.store.CreateRun(ctx, mode, req.Goal)
	if err != nil {
		return nil, err
	}
	if err := r.append(ctx, runID, events.RunStarted, map[string]any{
		"mode": mode,
		"goal": req.Goal,
	}); err != nil {
		return nil, err
	}
	r.logger.Debug("run started", "run_id", runID, "mode", mode)

	adapter, selectionSource, selErr := r.selectAdapter(req)
	if selErr != nil {
		return r.failSelection(ctx, runID, mode, req, selErr)
	}
	if err := r.append(ctx, runID, events.DispatchSelected, map[string]any{
		"adapter_id":       adapter.AdapterID(),
		"adapter_kind":     adapter.AdapterKind(),
		"capabilities":     adapter.Capabilities().Sorted(),
		"selection_source": selectionSource,
	}); err != nil {
		return nil, err
	}

	plan, err := r.planner.CreatePlan(req)
	if err != nil {
		return nil, fmt.Errorf("planner failed: %w", err)
	}
	if plan == nil {
		plan = []Step{}
	}
	for i := range plan {
		if plan[i].Call.Args == nil {
			plan[i].Call.Args = map[string]any{}
		}
	}
	if err := r.append(ctx, runID, events.PlanCreated, map[string]any{
		"plan": plan,
	}); err != nil {
		return nil, err
	}

	outcome := "ok"
	if req.Policy != nil && req.Policy.MaxSteps != nil && len(plan) > *req.Policy.MaxSteps {
		maxSteps := *req.Policy.MaxSteps
		outcome = "error"
		if err := r.append(ctx, runID, events.RunFailed, map[string]any{
			"reason":     "max_steps_exceeded",
			"max_steps":  maxSteps,
			"plan_steps": len(plan),
		}); err != nil {
			return nil, err
		}
		if err := r.store.SetRunStatus(ctx, runID, events.StatusFailed); err != nil {
			return nil, err
		}
		plan = plan[:maxSteps]
	}

	var toolsUsed []string
	results := make([]Result, 0, len(plan))

	// Event-bound arguments and failure messages go through the adapter's
	// redaction hooks; the adapter itself always sees real values.
	redactor, _ := adapter.(dispatch.EventRedactor)

	for _, step := range plan {
		toolsUsed = append(toolsUsed, step.Call.Method)

		if err := r.append(ctx, runID, events.StepStarted, map[string]any{
			"step_id": step.StepID,
		}); err != nil {
			return nil, err
		}
		eventCall := step.Call
		if redactor != nil {
			eventCall.Args = redactor.RedactArgsForEvent(step.Call.Args)
		}
		if err := r.append(ctx, runID, events.ToolCallRequested, map[string]any{
			"step_id":              step.StepID,
			"call":                 eventCall,
			"adapter_id":           adapter.AdapterID(),
			"adapter_capabilities": adapter.Capabilities().Sorted(),
		}); err != nil {
			return nil, err
		}

		output, simulated, durationMs, callErr := r.dispatchCall(ctx, mode, req.Policy, adapter, step.Call)

		status := "ok"
		if callErr != nil {
			kind, code, _ := nxerrors.Classify(callErr)
			message := callErr.Error()
			if redactor != nil {
				message = redactor.RedactTextForEvent(message)
			}
			if kind == nxerrors.KindBug {
				return nil, r.failStep(ctx, runID, mode, step.StepID, adapter.AdapterID(), code, message, callErr)
			}
			outcome = "error"
			status = "error"
			output = map[string]any{}
			if err := r.append(ctx, runID, events.ToolCallFailed, map[string]any{
				"step_id":    step.StepID,
				"error_kind": "operational",
				"error_code": code,
				"message":    message,
				"adapter_id": adapter.AdapterID(),
			}); err != nil {
				return nil, err
			}
			r.logger.Debug("tool call failed", "run_id", runID, "step_id", step.StepID, "error_code", code)
		} else {
			if err := r.append(ctx, runID, events.ToolCallSucceeded, map[string]any{
				"step_id":     step.StepID,
				"simulated":   simulated,
				"output":      output,
				"adapter_id":  adapter.AdapterID(),
				"duration_ms": durationMs,
			}); err != nil {
				return nil, err
			}
		}

		if err := r.append(ctx, runID, events.StepCompleted, map[string]any{
			"step_id": step.StepID,
			"status":  status,
		}); err != nil {
			return nil, err
		}
		r.metrics.observeStep(status)

		results = append(results, Result{
			StepID:    step.StepID,
			Status:    status,
			Simulated: mode == events.ModeDryRun,
			Output:    output,
			Evidence:  []any{},
		})
	}

	prov, err := BuildProvenance(req, results)
	if err != nil {
		return nil, fmt.Errorf("build provenance: %w", err)
	}
	if err := r.append(ctx, runID, events.ProvenanceEmitted, map[string]any{
		"run_id":     runID,
		"provenance": prov,
	}); err != nil {
		return nil, err
	}

	if outcome == "ok" {
		if err := r.append(ctx, runID, events.RunCompleted, map[string]any{
			"outcome": "ok",
		}); err != nil {
			return nil, err
		}
		if err := r.store.SetRunStatus(ctx, runID, events.StatusCompleted); err != nil {
			return nil, err
		}
	} else {
		// Terminal marker, even when an earlier RUN_FAILED recorded the
		// specific reason.
		if err := r.append(ctx, runID, events.RunFailed, map[string]any{
			"outcome": "error",
		}); err != nil {
			return nil, err
		}
		if err := r.store.SetRunStatus(ctx, runID, events.StatusFailed); err != nil {
			return nil, err
		}
	}
	r.metrics.observeRun(mode, outcome)
	r.logger.Info("run finished", "run_id", runID, "mode", mode, "outcome", outcome, "steps", len(plan))

	committed, err := r.store.ReadEvents(ctx, runID)
	if err != nil {
		return nil, err
	}

	applied := 0
	skipped := 0
	for _, res := range results {
		if res.Status == "ok" {
			if mode == events.ModeApply {
				applied++
			}
		} else {
			skipped++
		}
	}

	return &Response{
		Summary: Summary{
			Mode:           mode,
			Steps:          len(plan),
			ToolsUsed:      uniqueInOrder(toolsUsed),
			OutputsTotal:   len(results),
			OutputsApplied: applied,
			OutputsSkipped: skipped,
			AdapterID:      adapter.AdapterID(),
		},
		Dispatch: DispatchInfo{
			AdapterID:       adapter.AdapterID(),
			AdapterKind:     adapter.AdapterKind(),
			SelectionSource: selectionSource,
		},
		Run:        RunInfo{RunID: runID, EventsCommitted: len(committed)},
		Plan:       plan,
		Results:    results,
		Provenance: prov,
	}, nil
}

// selectAdapter resolves the adapter for a run against the registry.
func (r *Router) selectAdapter(req *Request) (dispatch.Adapter, string, error) {
	var adapter dispatch.Adapter
	var source string
	var err error

	if req.Dispatch != nil && req.Dispatch.AdapterID != "" {
		adapter, err = r.registry.Get(req.Dispatch.AdapterID)
		source = "request"
	} else {
		adapter, err = r.registry.GetDefault()
		source = "default"
	}
	if err != nil {
		return nil, "", err
	}

	if req.Dispatch != nil {
		for _, capability := range req.Dispatch.RequireCapabilities {
			if err := r.registry.RequireCapability(adapter.AdapterID(), capability); err != nil {
				return nil, "", err
			}
		}
	}
	return adapter, source, nil
}

// dispatchCall executes one step's call according to mode.
//
// dry_run never touches the adapter. apply requires the apply capability,
// passes the policy gate, and measures monotonic wall time around the call.
func (r *Router) dispatchCall(ctx context.Context, mode string, policy *Policy, adapter dispatch.Adapter, call Call) (map[string]any, bool, int64, error) {
	if mode == events.ModeDryRun {
		return map[string]any{
			"simulated":  true,
			"adapter_id": adapter.AdapterID(),
			"tool":       call.Tool,
			"method":     call.Method,
		}, true, 0, nil
	}

	if !adapter.Capabilities().Has(dispatch.CapabilityApply) {
		return nil, false, 0, nxerrors.Operationalf(nxerrors.CodeCapabilityMissing,
			"adapter %q lacks required capability %q for apply mode",
			adapter.AdapterID(), dispatch.CapabilityApply).
			WithDetails(map[string]any{
				"adapter_id":           adapter.AdapterID(),
				"required_capability":  dispatch.CapabilityApply,
				"adapter_capabilities": adapter.Capabilities().Sorted(),
			})
	}
	if err := gateApply(policy); err != nil {
		return nil, false, 0, err
	}

	start := time.Now()
	output, err := adapter.Call(ctx, call.Tool, call.Method, call.Args)
	elapsed := time.Since(start)
	r.metrics.observeToolCall(adapter.AdapterKind(), elapsed.Seconds())
	if err != nil {
		return nil, false, 0, err
	}
	if output == nil {
		output = map[string]any{}
	}
	output["adapter_id"] = adapter.AdapterID()
	return output, false, elapsed.Milliseconds(), nil
}

// failSelection records a pre-step selection failure and builds the failed
// response. No steps run; the response carries a top-level error.
func (r *Router) failSelection(ctx context.Context, runID, mode string, req *Request, selErr error) (*Response, error) {
	_, code, details := nxerrors.Classify(selErr)
	message := selErr.Error()
	if oe, ok := nxerrors.AsOperational(selErr); ok {
		message = oe.Message
	}

	payload := map[string]any{
		"reason":     "dispatch_selection_failed",
		"error_code": code,
		"message":    message,
	}
	if details != nil {
		payload["details"] = details
	}
	if err := r.append(ctx, runID, events.RunFailed, payload); err != nil {
		return nil, err
	}
	if err := r.store.SetRunStatus(ctx, runID, events.StatusFailed); err != nil {
		return nil, err
	}
	r.metrics.observeRun(mode, "selection_failed")
	r.logger.Warn("dispatch selection failed", "run_id", runID, "error_code", code)

	committed, err := r.store.ReadEvents(ctx, runID)
	if err != nil {
		return nil, err
	}

	requestedID := ""
	if req.Dispatch != nil {
		requestedID = req.Dispatch.AdapterID
	}
	return &Response{
		Summary: Summary{
			Mode:      mode,
			ToolsUsed: []string{},
			AdapterID: requestedID,
		},
		Dispatch: DispatchInfo{
			AdapterID:       requestedID,
			SelectionSource: "failed",
		},
		Run:     RunInfo{RunID: runID, EventsCommitted: len(committed)},
		Plan:    []Step{},
		Results: []Result{},
		Provenance: Provenance{
			Artifacts: []Artifact{},
			Records:   []ProvenanceRecord{},
		},
		Error: &ResponseError{Code: code, Message: message},
	}, nil
}

// failStep records a bug-class step failure and returns the original error
// for propagation. message is the event-bound (already redacted) form.
func (r *Router) failStep(ctx context.Context, runID, mode, stepID, adapterID, code, message string, callErr error) error {
	reason := "unexpected_exception"
	if _, ok := nxerrors.AsBug(callErr); ok {
		reason = "bug_error"
	}
	if err := r.append(ctx, runID, events.ToolCallFailed, map[string]any{
		"step_id":    stepID,
		"error_kind": "bug",
		"error_code": code,
		"message":    message,
		"adapter_id": adapterID,
	}); err != nil {
		return err
	}
	if err := r.append(ctx, runID, events.RunFailed, map[string]any{
		"reason":  reason,
		"step_id": stepID,
	}); err != nil {
		return err
	}
	if err := r.store.SetRunStatus(ctx, runID, events.StatusFailed); err != nil {
		return err
	}
	r.metrics.observeRun(mode, "bug")
	r.logger.Error("step failed with bug", "run_id", runID, "step_id", stepID, "error_code", code)
	return callErr
}

func (r *Router) append(ctx context.Context, runID string, typ events.Type, payload map[string]any) error {
	_, err := r.store.Append(ctx, runID, typ, payload)
	return err
}

func uniqueInOrder(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := []string{}
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
