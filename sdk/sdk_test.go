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
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/nexus-router/pkg/dispatch"
	"github.com/tombee/nexus-router/pkg/plugins"
	"github.com/tombee/nexus-router/schemas"
)

var testCompiler = schemas.NewCompiler()

func dbPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "nexus.db")
}

func runRequest(goal string) []byte {
	return []byte(fmt.Sprintf(`{
		"goal": %q,
		"mode": "dry_run",
		"plan_override": [
			{"step_id": "s1", "intent": "x", "call": {"tool": "t", "method": "m", "args": {}}}
		]
	}`, goal))
}

// assertConforms round-trips a response through JSON and validates it
// against the named schema, mirroring the contract the schemas promise.
func assertConforms(t *testing.T, schemaName string, response any) {
	t.Helper()
	raw, err := json.Marshal(response)
	require.NoError(t, err)
	assert.NoError(t, testCompiler.Validate(schemaName, raw), "response violates %s: %s", schemaName, raw)
}

func TestRunDryRunEndToEnd(t *testing.T) {
	resp, err := Run(context.Background(), dbPath(t), runRequest("summarize"))
	require.NoError(t, err)

	assert.Equal(t, "null", resp.Summary.AdapterID)
	assert.Equal(t, 1, resp.Summary.Steps)
	assert.Equal(t, []string{"m"}, resp.Summary.ToolsUsed)
	require.Len(t, resp.Results, 1)
	assert.True(t, resp.Results[0].Simulated)
	assert.Nil(t, resp.Error)

	assertConforms(t, schemas.RunResponse, resp)
}

func TestRunRejectsInvalidRequests(t *testing.T) {
	for _, raw := range [][]byte{
		[]byte(`{}`),
		[]byte(`{"goal": "g", "mode": "nope"}`),
		[]byte(`not json`),
		[]byte(`{"goal": "g", "extra": true}`),
	} {
		_, err := Run(context.Background(), dbPath(t), raw)
		assert.ErrorIs(t, err, ErrInvalidRequest, "request %s", raw)
	}
}

func TestRunSelectionFailureResponse(t *testing.T) {
	resp, err := Run(context.Background(), dbPath(t), []byte(`{
		"goal": "g",
		"dispatch": {"adapter_id": "does-not-exist"}
	}`))
	require.NoError(t, err)

	require.NotNil(t, resp.Error)
	assert.Equal(t, "UNKNOWN_ADAPTER", resp.Error.Code)
	assert.Equal(t, "failed", resp.Dispatch.SelectionSource)

	assertConforms(t, schemas.RunResponse, resp)
}

func TestRunWithCustomRegistry(t *testing.T) {
	reg := dispatch.NewAdapterRegistry("fake")
	require.NoError(t, reg.Register(dispatch.NewFakeAdapter("fake")))

	resp, err := Run(context.Background(), dbPath(t), runRequest("g"), WithRegistry(reg))
	require.NoError(t, err)
	assert.Equal(t, "fake", resp.Summary.AdapterID)
}

func TestInspectListsRuns(t *testing.T) {
	ctx := context.Background()
	db := dbPath(t)

	_, err := Run(ctx, db, runRequest("first"))
	require.NoError(t, err)
	_, err = Run(ctx, db, runRequest("second"))
	require.NoError(t, err)

	result, err := Inspect(ctx, []byte(fmt.Sprintf(`{"db_path": %q}`, db)))
	require.NoError(t, err)
	assert.Len(t, result.Runs, 2)

	assertConforms(t, schemas.InspectResponse, result)

	filtered, err := Inspect(ctx, []byte(fmt.Sprintf(`{"db_path": %q, "status": "COMPLETED", "limit": 1}`, db)))
	require.NoError(t, err)
	assert.Len(t, filtered.Runs, 1)
}

func TestInspectRejectsBadRequest(t *testing.T) {
	_, err := Inspect(context.Background(), []byte(`{"db_path": "x", "limit": 0}`))
	assert.Error(t, err)
}

func TestReplayRun(t *testing.T) {
	ctx := context.Background()
	db := dbPath(t)

	resp, err := Run(ctx, db, runRequest("replayable"))
	require.NoError(t, err)

	result, err := Replay(ctx, []byte(fmt.Sprintf(`{"db_path": %q, "run_id": %q}`, db, resp.Run.RunID)))
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Equal(t, "replayable", result.RunView.Goal)

	assertConforms(t, schemas.ReplayResponse, result)
}

func TestReplayUnknownRunNotOK(t *testing.T) {
	ctx := context.Background()
	db := dbPath(t)
	_, err := Run(ctx, db, runRequest("g"))
	require.NoError(t, err)

	// Strict and lenient agree that a missing stream cannot replay.
	for _, req := range []string{
		fmt.Sprintf(`{"db_path": %q, "run_id": "missing"}`, db),
		fmt.Sprintf(`{"db_path": %q, "run_id": "missing", "strict": false}`, db),
	} {
		result, err := Replay(ctx, []byte(req))
		require.NoError(t, err)
		assert.False(t, result.OK)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	source := dbPath(t)
	target := dbPath(t)

	resp, err := Run(ctx, source, runRequest("portable"))
	require.NoError(t, err)

	b, err := Export(ctx, []byte(fmt.Sprintf(`{"db_path": %q, "run_id": %q}`, source, resp.Run.RunID)))
	require.NoError(t, err)
	assertConforms(t, schemas.ExportResponse, b)

	bundleJSON, err := b.Marshal()
	require.NoError(t, err)

	importReq := fmt.Sprintf(`{"db_path": %q, "bundle": %s, "mode": "new_run_id", "new_run_id": "r2"}`,
		target, bundleJSON)
	result, err := Import(ctx, []byte(importReq))
	require.NoError(t, err)

	assert.Equal(t, "ok", result.Status)
	assert.Equal(t, "r2", result.ImportedRunID)
	require.NotNil(t, result.ReplayOK)
	assert.True(t, *result.ReplayOK)

	assertConforms(t, schemas.ImportResponse, result)

	// Same bundle into the same target again: conflict, skipped.
	again, err := Import(ctx, []byte(importReq))
	require.NoError(t, err)
	assert.Equal(t, "skipped", again.Status)
	assertConforms(t, schemas.ImportResponse, again)
}

func TestImportRejectsUnknownMode(t *testing.T) {
	_, err := Import(context.Background(), []byte(`{
		"db_path": "x",
		"bundle": {"bundle_version": "0.3", "run": {}, "events": []},
		"mode": "merge"
	}`))
	assert.Error(t, err)
}

func TestListAdapters(t *testing.T) {
	reg := dispatch.NewAdapterRegistry("null")
	require.NoError(t, reg.Register(dispatch.NewNullAdapter("null")))
	require.NoError(t, reg.Register(dispatch.NewFakeAdapter("fake")))

	all := ListAdapters(reg, "")
	assert.Equal(t, 2, all.Total)
	assert.Equal(t, "null", all.DefaultAdapterID)

	applyOnly := ListAdapters(reg, dispatch.CapabilityApply)
	require.Equal(t, 1, applyOnly.Total)
	assert.Equal(t, "fake", applyOnly.Adapters[0].AdapterID)

	none := ListAdapters(reg, "external")
	assert.Equal(t, 0, none.Total)
	assert.NotNil(t, none.Adapters)
}

func TestValidateAndInspectAdapter(t *testing.T) {
	table := plugins.NewFactoryTable()
	require.NoError(t, table.Register("pkg", "new", func(config map[string]any) (dispatch.Adapter, error) {
		return dispatch.NewNullAdapter("null"), nil
	}))

	validation := ValidateAdapter(table, AdapterCheckRequest{FactoryRef: "pkg:new"})
	assert.True(t, validation.OK)

	inspection := InspectAdapter(table, AdapterCheckRequest{FactoryRef: "pkg:new", Render: true})
	assert.True(t, inspection.OK)
	assert.Contains(t, inspection.Rendered, "Adapter validation PASSED")

	plain := InspectAdapter(table, AdapterCheckRequest{FactoryRef: "pkg:new"})
	assert.Empty(t, plain.Rendered)
}

func TestGenerateAdapterDocs(t *testing.T) {
	table := plugins.NewFactoryTable()
	require.NoError(t, table.Register("pkg", "new", func(config map[string]any) (dispatch.Adapter, error) {
		return dispatch.NewNullAdapter("null"), nil
	}))

	result := GenerateAdapterDocs(table, []plugins.DocEntry{
		{FactoryRef: "pkg:new", PackageName: "pkg"},
	}, plugins.DocsOptions{})
	assert.Equal(t, 1, result.AdaptersOK)
	assert.Contains(t, result.Markdown, "### null adapter")
}
