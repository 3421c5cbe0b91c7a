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

// Package bundle implements deterministic, portable run snapshots: export a
// run's row and full event stream as a digest-protected document, and load
// such a document back into a store.
package bundle

import (
	"context"
	"time"

	"github.com/tombee/nexus-router/pkg/canonical"
	nxerrors "github.com/tombee/nexus-router/pkg/errors"
	"github.com/tombee/nexus-router/pkg/events"
	"github.com/tombee/nexus-router/pkg/eventstore"
)

// Version is the current bundle format version.
const Version = "0.3"

// Digests holds the bundle's integrity digests.
type Digests struct {
	SHA256 string `json:"sha256"`
}

// ExportProvenance records where a bundle came from. It never participates
// in the digest.
type ExportProvenance struct {
	ExportMethod  string `json:"export_method"`
	SourceDBPath  string `json:"source_db_path"`
	SourceRunID   string `json:"source_run_id"`
	ExportVersion string `json:"export_version"`
}

// Bundle is a portable snapshot of one run.
//
// The digest covers canonical JSON of {run, events} only; exported_at and
// provenance are excluded so repeat exports of the same run carry an
// identical digest.
type Bundle struct {
	BundleVersion string            `json:"bundle_version"`
	ExportedAt    string            `json:"exported_at"`
	Run           events.Run        `json:"run"`
	Events        []events.Event    `json:"events"`
	Digests       Digests           `json:"digests"`
	Provenance    *ExportProvenance `json:"provenance,omitempty"`
}

// ComputeDigest returns the SHA-256 over canonical JSON of {run, events}.
func ComputeDigest(run events.Run, evs []events.Event) (string, error) {
	if evs == nil {
		evs = []events.Event{}
	}
	return canonical.SHA256Hex(map[string]any{
		"run":    run,
		"events": evs,
	})
}

// VerifyDigest recomputes the bundle digest and compares it to the recorded
// one. A mismatch is operational DIGEST_MISMATCH; a missing digest is
// operational INVALID_BUNDLE.
func (b *Bundle) VerifyDigest() error {
	if b.Digests.SHA256 == "" {
		return nxerrors.NewOperational(nxerrors.CodeInvalidBundle,
			"bundle missing digests.sha256")
	}
	actual, err := ComputeDigest(b.Run, b.Events)
	if err != nil {
		return err
	}
	if actual != b.Digests.SHA256 {
		return nxerrors.Operationalf(nxerrors.CodeDigestMismatch,
			"digest mismatch: expected %s, got %s", b.Digests.SHA256, actual).
			WithDetails(map[string]any{
				"expected": b.Digests.SHA256,
				"actual":   actual,
			})
	}
	return nil
}

// Marshal serializes the bundle as canonical JSON.
func (b *Bundle) Marshal() ([]byte, error) {
	return canonical.Marshal(b)
}

// ExportOptions configures Export.
type ExportOptions struct {
	// IncludeProvenance adds the export provenance record (default on via
	// DefaultExportOptions).
	IncludeProvenance bool
}

// DefaultExportOptions returns the standard export configuration.
func DefaultExportOptions() ExportOptions {
	return ExportOptions{IncludeProvenance: true}
}

// Export snapshots a run as a bundle. Payloads are the parsed canonical
// values from the store, so the digest is stable across re-serializations.
// A missing run is operational RUN_NOT_FOUND.
func Export(ctx context.Context, store *eventstore.Store, runID string, opts ExportOptions) (*Bundle, error) {
	run, err := store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	evs, err := store.ReadEvents(ctx, runID)
	if err != nil {
		return nil, err
	}
	if evs == nil {
		evs = []events.Event{}
	}

	digest, err := ComputeDigest(*run, evs)
	if err != nil {
		return nil, err
	}

	b := &Bundle{
		BundleVersion: Version,
		ExportedAt:    time.Now().UTC().Format(eventstore.TimeFormat),
		Run:           *run,
		Events:        evs,
		Digests:       Digests{SHA256: digest},
	}
	if opts.IncludeProvenance {
		b.Provenance = &ExportProvenance{
			ExportMethod:  "nexus-router.export",
			SourceDBPath:  store.Path(),
			SourceRunID:   runID,
			ExportVersion: Version,
		}
	}
	return b, nil
}
