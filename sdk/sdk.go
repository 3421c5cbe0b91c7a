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

package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tombee/nexus-router/pkg/bundle"
	"github.com/tombee/nexus-router/pkg/eventstore"
	"github.com/tombee/nexus-router/pkg/replay"
	"github.com/tombee/nexus-router/pkg/router"
	"github.com/tombee/nexus-router/schemas"
)

// Tool identifiers.
const (
	ToolIDRun             = "nexus-router.run"
	ToolIDInspect         = "nexus-router.inspect"
	ToolIDReplay          = "nexus-router.replay"
	ToolIDExport          = "nexus-router.export"
	ToolIDImport          = "nexus-router.import"
	ToolIDAdapters        = "nexus-router.adapters"
	ToolIDValidateAdapter = "nexus-router.validate_adapter"
	ToolIDInspectAdapter  = "nexus-router.inspect_adapter"
	ToolIDGenerateDocs    = "nexus-router.generate_adapter_docs"
)

// ErrInvalidRequest wraps every request rejected before execution, so
// callers can distinguish bad input from execution failures.
var ErrInvalidRequest = errors.New("sdk: invalid request")

func decodeRequest(o *options, schemaName string, raw []byte, into any) error {
	if err := o.compiler.Validate(schemaName, raw); err != nil {
		return fmt.Errorf("%w: rejected by %s: %v", ErrInvalidRequest, schemaName, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(into); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrInvalidRequest, err)
	}
	return nil
}

// Run executes a run request against the database at dbPath. The request
// must conform to the run request schema (v0.7). Operational failures
// surface inside the response; only bugs and infrastructure errors return
// a non-nil error.
func Run(ctx context.Context, dbPath string, rawRequest []byte, opts ...Option) (*router.Response, error) {
	o := buildOptions(opts)

	var req router.Request
	if err := decodeRequest(o, schemas.RunRequest, rawRequest, &req); err != nil {
		return nil, err
	}

	store, err := eventstore.Open(eventstore.Config{Path: dbPath})
	if err != nil {
		return nil, err
	}
	defer store.Close()

	r := router.New(store, o.registryOrDefault(), o.routerOptions()...)
	return r.Run(ctx, &req)
}

// InspectRequest is the decoded inspect request (v0.2).
type InspectRequest struct {
	DBPath string `json:"db_path"`
	RunID  string `json:"run_id,omitempty"`
	Status string `json:"status,omitempty"`
	Since  string `json:"since,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// Inspect lists run summaries matching the request's filter.
func Inspect(ctx context.Context, rawRequest []byte, opts ...Option) (*replay.InspectResult, error) {
	o := buildOptions(opts)

	var req InspectRequest
	if err := decodeRequest(o, schemas.InspectRequest, rawRequest, &req); err != nil {
		return nil, err
	}
	if req.Limit == 0 {
		req.Limit = 50
	}

	store, err := eventstore.Open(eventstore.Config{Path: req.DBPath})
	if err != nil {
		return nil, err
	}
	defer store.Close()

	return replay.Inspect(ctx, store, eventstore.RunFilter{
		RunID:  req.RunID,
		Status: req.Status,
		Since:  req.Since,
		Limit:  req.Limit,
		Offset: req.Offset,
	})
}

// ReplayRequest is the decoded replay request (v0.2).
type ReplayRequest struct {
	DBPath string `json:"db_path"`
	RunID  string `json:"run_id"`
	Strict *bool  `json:"strict,omitempty"`
}

// Replay reconstructs a run from its events and checks the stream
// invariants. With strict off (default on), violations are reported but do
// not fail the result unless the stream is empty.
func Replay(ctx context.Context, rawRequest []byte, opts ...Option) (*replay.Result, error) {
	o := buildOptions(opts)

	var req ReplayRequest
	if err := decodeRequest(o, schemas.ReplayRequest, rawRequest, &req); err != nil {
		return nil, err
	}
	strict := req.Strict == nil || *req.Strict

	store, err := eventstore.Open(eventstore.Config{Path: req.DBPath})
	if err != nil {
		return nil, err
	}
	defer store.Close()

	result, err := replay.Replay(ctx, store, req.RunID)
	if err != nil {
		return nil, err
	}
	if !strict && !result.OK {
		result.OK = !hasViolation(result.Violations, replay.ViolationNoEvents)
	}
	return result, nil
}

func hasViolation(vs []replay.Violation, code string) bool {
	for _, v := range vs {
		if v.Code == code {
			return true
		}
	}
	return false
}

// ExportRequest is the decoded export request (v0.3).
type ExportRequest struct {
	DBPath            string `json:"db_path"`
	RunID             string `json:"run_id"`
	IncludeProvenance *bool  `json:"include_provenance,omitempty"`
}

// Export snapshots a run as a portable bundle (v0.3).
func Export(ctx context.Context, rawRequest []byte, opts ...Option) (*bundle.Bundle, error) {
	o := buildOptions(opts)

	var req ExportRequest
	if err := decodeRequest(o, schemas.ExportRequest, rawRequest, &req); err != nil {
		return nil, err
	}

	store, err := eventstore.Open(eventstore.Config{Path: req.DBPath})
	if err != nil {
		return nil, err
	}
	defer store.Close()

	exportOpts := bundle.DefaultExportOptions()
	if req.IncludeProvenance != nil {
		exportOpts.IncludeProvenance = *req.IncludeProvenance
	}
	return bundle.Export(ctx, store, req.RunID, exportOpts)
}

// ImportRequest is the decoded import request (v0.3).
type ImportRequest struct {
	DBPath            string          `json:"db_path"`
	Bundle            json.RawMessage `json:"bundle"`
	Mode              string          `json:"mode,omitempty"`
	NewRunID          string          `json:"new_run_id,omitempty"`
	VerifyDigest      *bool           `json:"verify_digest,omitempty"`
	ReplayAfterImport *bool           `json:"replay_after_import,omitempty"`
}

// Import loads a bundle into the database at db_path.
func Import(ctx context.Context, rawRequest []byte, opts ...Option) (*bundle.ImportResult, error) {
	o := buildOptions(opts)

	var req ImportRequest
	if err := decodeRequest(o, schemas.ImportRequest, rawRequest, &req); err != nil {
		return nil, err
	}

	b, err := bundle.ParseBundle(req.Bundle)
	if err != nil {
		return nil, err
	}

	store, err := eventstore.Open(eventstore.Config{Path: req.DBPath})
	if err != nil {
		return nil, err
	}
	defer store.Close()

	importOpts := bundle.DefaultImportOptions()
	if req.Mode != "" {
		importOpts.Mode = req.Mode
	}
	importOpts.NewRunID = req.NewRunID
	if req.VerifyDigest != nil {
		importOpts.VerifyDigest = *req.VerifyDigest
	}
	if req.ReplayAfterImport != nil {
		importOpts.ReplayAfterImport = *req.ReplayAfterImport
	}
	return bundle.Import(ctx, store, b, importOpts)
}
