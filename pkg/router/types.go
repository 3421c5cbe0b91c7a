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

// Package router implements the run state machine: it opens a run, selects
// an adapter, plans, executes steps through dispatch, and records every
// decision as an event.
package router

// Request is a versioned run request (v0.7).
type Request struct {
	Goal         string        `json:"goal"`
	Mode         string        `json:"mode,omitempty"`
	Context      *Context      `json:"context,omitempty"`
	Policy       *Policy       `json:"policy,omitempty"`
	Dispatch     *DispatchSpec `json:"dispatch,omitempty"`
	PlanOverride []Step        `json:"plan_override,omitempty"`
}

// Context carries input artifacts referenced by the run.
type Context struct {
	Artifacts []Artifact `json:"artifacts"`
}

// Artifact is an externally-stored input identified by locator and digest.
type Artifact struct {
	ArtifactID string `json:"artifact_id"`
	MediaType  string `json:"media_type"`
	Locator    string `json:"locator"`
	Digest     Digest `json:"digest"`
}

// Digest is an algorithm-qualified content digest.
type Digest struct {
	Alg   string `json:"alg"`
	Value string `json:"value"`
}

// Policy holds the per-run execution limits and permissions.
type Policy struct {
	AllowApply bool `json:"allow_apply,omitempty"`
	MaxSteps   *int `json:"max_steps,omitempty"`
}

// DispatchSpec is the request's declarative adapter selection.
type DispatchSpec struct {
	AdapterID           string   `json:"adapter_id,omitempty"`
	RequireCapabilities []string `json:"require_capabilities,omitempty"`
}

// Step is one planned unit of work.
type Step struct {
	StepID                string `json:"step_id"`
	Intent                string `json:"intent,omitempty"`
	Call                  Call   `json:"call"`
	ExpectedOutputPointer string `json:"expected_output_pointer,omitempty"`
}

// Call names the tool invocation a step performs.
type Call struct {
	Tool   string         `json:"tool"`
	Method string         `json:"method"`
	Args   map[string]any `json:"args"`
}

// Response is the versioned run response (v0.7). It is always well-formed;
// Error is present iff adapter selection failed.
type Response struct {
	Summary    Summary        `json:"summary"`
	Dispatch   DispatchInfo   `json:"dispatch"`
	Run        RunInfo        `json:"run"`
	Plan       []Step         `json:"plan"`
	Results    []Result       `json:"results"`
	Provenance Provenance     `json:"provenance"`
	Error      *ResponseError `json:"error,omitempty"`
}

// Summary aggregates what the run did.
type Summary struct {
	Mode           string   `json:"mode"`
	Steps          int      `json:"steps"`
	ToolsUsed      []string `json:"tools_used"`
	OutputsTotal   int      `json:"outputs_total"`
	OutputsApplied int      `json:"outputs_applied"`
	OutputsSkipped int      `json:"outputs_skipped"`
	AdapterID      string   `json:"adapter_id"`
}

// DispatchInfo records which adapter served the run and how it was chosen.
// SelectionSource is "request", "default", or "failed".
type DispatchInfo struct {
	AdapterID       string `json:"adapter_id"`
	AdapterKind     string `json:"adapter_kind"`
	SelectionSource string `json:"selection_source"`
}

// RunInfo identifies the persisted run.
type RunInfo struct {
	RunID           string `json:"run_id"`
	EventsCommitted int    `json:"events_committed"`
}

// Result is the outcome of one executed step.
type Result struct {
	StepID    string         `json:"step_id"`
	Status    string         `json:"status"`
	Simulated bool           `json:"simulated"`
	Output    map[string]any `json:"output"`
	Evidence  []any          `json:"evidence"`
}

// Provenance is the audit section of the response.
type Provenance struct {
	Artifacts []Artifact         `json:"artifacts"`
	Records   []ProvenanceRecord `json:"records"`
}

// ProvenanceRecord links one step's outcome to a digest of its output.
type ProvenanceRecord struct {
	StepID       string `json:"step_id"`
	Status       string `json:"status"`
	Simulated    bool   `json:"simulated"`
	OutputDigest string `json:"output_digest"`
}

// ResponseError reports a pre-step failure (adapter selection).
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
