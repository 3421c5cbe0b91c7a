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

package bundle

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/tombee/nexus-router/pkg/canonical"
	nxerrors "github.com/tombee/nexus-router/pkg/errors"
	"github.com/tombee/nexus-router/pkg/events"
	"github.com/tombee/nexus-router/pkg/eventstore"
	"github.com/tombee/nexus-router/pkg/replay"
)

// Import conflict modes.
const (
	ModeRejectOnConflict = "reject_on_conflict"
	ModeOverwrite        = "overwrite"
	ModeNewRunID         = "new_run_id"
)

// ImportOptions configures Import.
type ImportOptions struct {
	// Mode resolves run_id conflicts: reject_on_conflict, overwrite, or
	// new_run_id.
	Mode string

	// NewRunID is the target id under new_run_id mode; empty means a fresh
	// UUID is allocated.
	NewRunID string

	// VerifyDigest recomputes the bundle digest before import.
	VerifyDigest bool

	// ReplayAfterImport runs strict replay on the imported run.
	ReplayAfterImport bool
}

// DefaultImportOptions returns the standard import configuration.
func DefaultImportOptions() ImportOptions {
	return ImportOptions{
		Mode:              ModeRejectOnConflict,
		VerifyDigest:      true,
		ReplayAfterImport: true,
	}
}

// Conflict describes why an import was skipped.
type Conflict struct {
	Reason        string `json:"reason"`
	ExistingRunID string `json:"existing_run_id"`
}

// ImportResult is the outcome of a successful (or skipped) import.
type ImportResult struct {
	Status         string             `json:"status"`
	ImportedRunID  string             `json:"imported_run_id,omitempty"`
	EventsInserted int                `json:"events_inserted,omitempty"`
	Conflict       *Conflict          `json:"conflict,omitempty"`
	ReplayOK       *bool              `json:"replay_ok,omitempty"`
	Violations     []replay.Violation `json:"violations,omitempty"`
}

// Import loads a bundle into the store.
//
// Validation failures, digest mismatches, and seq duplicates are
// operational errors (INVALID_BUNDLE, DIGEST_MISMATCH, SEQ_DUPLICATE); a
// run_id conflict under reject_on_conflict is not an error but a skipped
// result. The run and all events are inserted in a single transaction.
func Import(ctx context.Context, store *eventstore.Store, b *Bundle, opts ImportOptions) (*ImportResult, error) {
	if err := validateBundle(b); err != nil {
		return nil, err
	}
	if opts.VerifyDigest {
		if err := b.VerifyDigest(); err != nil {
			return nil, err
		}
	}
	if opts.Mode == "" {
		opts.Mode = ModeRejectOnConflict
	}
	switch opts.Mode {
	case ModeRejectOnConflict, ModeOverwrite, ModeNewRunID:
	default:
		return nil, nxerrors.Operationalf(nxerrors.CodeInvalidBundle,
			"unknown import mode %q", opts.Mode)
	}

	originalRunID := b.Run.RunID
	targetRunID := originalRunID
	if opts.Mode == ModeNewRunID {
		if opts.NewRunID != "" {
			targetRunID = opts.NewRunID
		} else {
			targetRunID = uuid.NewString()
		}
	}

	if _, err := store.GetRun(ctx, targetRunID); err == nil {
		switch opts.Mode {
		case ModeRejectOnConflict:
			return &ImportResult{
				Status: "skipped",
				Conflict: &Conflict{
					Reason:        "run_id_exists",
					ExistingRunID: targetRunID,
				},
			}, nil
		case ModeOverwrite:
			if err := store.DeleteRun(ctx, targetRunID); err != nil {
				return nil, err
			}
		case ModeNewRunID:
			// The requested id collides too; fall back to a fresh one.
			targetRunID = uuid.NewString()
		}
	}

	run := b.Run
	run.RunID = targetRunID

	evs := make([]events.Event, len(b.Events))
	for i, e := range b.Events {
		e.RunID = targetRunID
		if targetRunID != originalRunID {
			// Fresh event ids avoid primary-key collisions with the source
			// run when both live in the same database.
			e.EventID = uuid.NewString()
			e.Payload = remapRunID(e.Payload, originalRunID, targetRunID)
		}
		evs[i] = e
	}

	if err := store.ImportRun(ctx, &run, evs); err != nil {
		return nil, err
	}

	result := &ImportResult{
		Status:         "ok",
		ImportedRunID:  targetRunID,
		EventsInserted: len(evs),
	}
	if opts.ReplayAfterImport {
		rep, err := replay.Replay(ctx, store, targetRunID)
		if err != nil {
			return nil, err
		}
		result.ReplayOK = &rep.OK
		if len(rep.Violations) > 0 {
			result.Violations = rep.Violations
		}
	}
	return result, nil
}

// ParseBundle decodes and validates a serialized bundle. Field presence is
// checked on the raw document so a missing key is reported precisely.
func ParseBundle(raw []byte) (*Bundle, error) {
	doc, err := canonical.Normalize(raw)
	if err != nil {
		return nil, nxerrors.Operationalf(nxerrors.CodeInvalidBundle,
			"bundle is not valid JSON: %v", err)
	}
	top, ok := doc.(map[string]any)
	if !ok {
		return nil, nxerrors.NewOperational(nxerrors.CodeInvalidBundle,
			"bundle must be a JSON object")
	}
	if err := checkRawStructure(top); err != nil {
		return nil, err
	}

	var b Bundle
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&b); err != nil {
		return nil, nxerrors.Operationalf(nxerrors.CodeInvalidBundle,
			"bundle does not match the expected shape: %v", err)
	}
	return &b, nil
}

// validateBundle checks required fields on an already-typed bundle.
func validateBundle(b *Bundle) error {
	if b == nil {
		return nxerrors.NewOperational(nxerrors.CodeInvalidBundle, "bundle is nil")
	}
	if b.BundleVersion == "" {
		return nxerrors.NewOperational(nxerrors.CodeInvalidBundle, "missing bundle_version")
	}
	if b.Run.RunID == "" || b.Run.Mode == "" || b.Run.Goal == "" ||
		b.Run.Status == "" || b.Run.CreatedAt == "" {
		return nxerrors.NewOperational(nxerrors.CodeInvalidBundle,
			"run is missing required fields")
	}
	for i, e := range b.Events {
		if e.EventID == "" || e.RunID == "" || e.Seq < 1 || e.Type == "" || e.TS == "" {
			return nxerrors.Operationalf(nxerrors.CodeInvalidBundle,
				"events[%d] is missing required fields", i)
		}
		if e.Payload == nil {
			return nxerrors.Operationalf(nxerrors.CodeInvalidBundle,
				"events[%d] is missing payload", i)
		}
	}
	return nil
}

func checkRawStructure(top map[string]any) error {
	for _, key := range []string{"bundle_version", "run", "events"} {
		if _, ok := top[key]; !ok {
			return nxerrors.Operationalf(nxerrors.CodeInvalidBundle, "missing %s", key)
		}
	}
	run, ok := top["run"].(map[string]any)
	if !ok {
		return nxerrors.NewOperational(nxerrors.CodeInvalidBundle, "run must be an object")
	}
	for _, key := range []string{"run_id", "mode", "goal", "status", "created_at"} {
		if _, present := run[key]; !present {
			return nxerrors.Operationalf(nxerrors.CodeInvalidBundle, "missing run.%s", key)
		}
	}
	evs, ok := top["events"].([]any)
	if !ok {
		return nxerrors.NewOperational(nxerrors.CodeInvalidBundle, "events must be an array")
	}
	for i, raw := range evs {
		e, ok := raw.(map[string]any)
		if !ok {
			return nxerrors.Operationalf(nxerrors.CodeInvalidBundle,
				"events[%d] must be an object", i)
		}
		for _, key := range []string{"event_id", "run_id", "seq", "type", "payload", "ts"} {
			if _, present := e[key]; !present {
				return nxerrors.Operationalf(nxerrors.CodeInvalidBundle,
					"missing events[%d].%s", i, key)
			}
		}
	}
	return nil
}

// remapRunID recursively rewrites run_id fields equal to the old id across
// nested maps and lists.
func remapRunID(payload map[string]any, oldID, newID string) map[string]any {
	out := make(map[string]any, len(payload))
	for key, value := range payload {
		if key == "run_id" && value == oldID {
			out[key] = newID
			continue
		}
		out[key] = remapValue(value, oldID, newID)
	}
	return out
}

func remapValue(v any, oldID, newID string) any {
	switch val := v.(type) {
	case map[string]any:
		return remapRunID(val, oldID, newID)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = remapValue(item, oldID, newID)
		}
		return out
	default:
		return v
	}
}
