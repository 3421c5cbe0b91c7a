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

package plugins

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDocumentedTable(t *testing.T) *FactoryTable {
	t.Helper()
	table := newTable(t)
	m, err := ParseManifest([]byte(`
schema_version: 1
kind: "null"
capabilities: [dry_run]
supported_router_versions: ">=0.5"
error_codes: [TIMEOUT]
config_schema:
  verbose:
    type: boolean
    required: false
    default: false
    description: Log every call.
`))
	require.NoError(t, err)
	require.NoError(t, table.SetManifest("nexus-adapter-null", m))
	return table
}

func TestInspectAdapter(t *testing.T) {
	table := newDocumentedTable(t)
	result := InspectAdapter(table, "nexus-adapter-null:new", ValidateOptions{Strict: true})

	assert.True(t, result.OK)
	assert.Equal(t, "null", result.AdapterID)
	assert.Equal(t, "null", result.AdapterKind)
	assert.Equal(t, []string{"dry_run"}, result.Capabilities)
	assert.Equal(t, ">=0.5", result.SupportedRouterVersions)
	assert.Equal(t, []string{"TIMEOUT"}, result.ErrorCodes)
	require.Len(t, result.ConfigParams, 1)
	assert.Equal(t, "verbose", result.ConfigParams[0].Name)
	assert.True(t, result.ConfigParams[0].HasDefault)
}

func TestInspectAdapterLoadFailure(t *testing.T) {
	table := newTable(t)
	result := InspectAdapter(table, "missing:new", ValidateOptions{})

	assert.False(t, result.OK)
	assert.Empty(t, result.AdapterID)
	assert.Nil(t, result.Manifest)
	require.NotNil(t, result.Validation)
	assert.NotEmpty(t, result.Validation.Error)
}

func TestRenderPassedReport(t *testing.T) {
	table := newDocumentedTable(t)
	report := InspectAdapter(table, "nexus-adapter-null:new", ValidateOptions{Strict: true}).Render()

	assert.Contains(t, report, "✓ Adapter validation PASSED")
	assert.Contains(t, report, "## Adapter Info")
	assert.Contains(t, report, "ID:           null")
	assert.Contains(t, report, "Capabilities: dry_run")
	assert.Contains(t, report, "## Validation")
	assert.Contains(t, report, "✓ LOAD_OK")
	assert.Contains(t, report, "## Manifest")
	assert.Contains(t, report, "Router versions: >=0.5")
	assert.Contains(t, report, "Error codes:     TIMEOUT")
	assert.Contains(t, report, "## Configuration Parameters")
	assert.Contains(t, report, "verbose (boolean, optional, default=false)")
	assert.Contains(t, report, "Log every call.")
	assert.NotContains(t, report, "## Errors")
}

func TestRenderFailedReport(t *testing.T) {
	table := newTable(t)
	require.NoError(t, table.SetManifest("nexus-adapter-null", Manifest{
		"schema_version": 1,
		"kind":           "http",
		"capabilities":   []any{"dry_run"},
	}))

	report := InspectAdapter(table, "nexus-adapter-null:new", ValidateOptions{}).Render()

	assert.Contains(t, report, "✗ Adapter validation FAILED")
	assert.Contains(t, report, "✗ MANIFEST_KIND_MATCH")
	assert.Contains(t, report, "## Errors")
}

func TestRenderUnknownAdapter(t *testing.T) {
	table := newTable(t)
	report := InspectAdapter(table, "missing:new", ValidateOptions{}).Render()

	assert.Contains(t, report, "✗ Adapter validation FAILED")
	assert.Contains(t, report, "ID:           (unknown)")
	assert.Contains(t, report, "Capabilities: (none)")
}

func TestGenerateDocs(t *testing.T) {
	table := newDocumentedTable(t)
	entries := []DocEntry{
		{
			FactoryRef:  "nexus-adapter-null:new",
			PackageName: "github.com/tombee/nexus-adapter-null",
			RepoURL:     "https://github.com/tombee/nexus-adapter-null",
		},
		{
			FactoryRef:  "missing:new",
			PackageName: "github.com/tombee/nexus-adapter-missing",
		},
	}

	result := GenerateDocs(table, entries, DocsOptions{
		Title:         "Official Adapters",
		IncludeHeader: true,
		IncludeFooter: true,
		Now:           func() time.Time { return time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC) },
	})

	assert.Equal(t, 1, result.AdaptersOK)
	assert.Equal(t, 1, result.AdaptersFailed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "missing:new")

	md := result.Markdown
	assert.Contains(t, md, "<!-- Generated: 2026-08-26 12:00:00 UTC -->")
	assert.Contains(t, md, "# Official Adapters")
	assert.Contains(t, md, "## Summary")
	assert.Contains(t, md, "### null adapter")
	assert.Contains(t, md, "go get github.com/tombee/nexus-adapter-null")
	assert.Contains(t, md, "| `verbose` | boolean | No | `false` | Log every call. |")
	assert.Contains(t, md, "- `TIMEOUT`")
	assert.Contains(t, md, "**Inspection failed:**")
	assert.Contains(t, md, "_1 adapters documented_")

	// Deterministic given a fixed clock.
	again := GenerateDocs(table, entries, DocsOptions{
		Title:         "Official Adapters",
		IncludeHeader: true,
		IncludeFooter: true,
		Now:           func() time.Time { return time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC) },
	})
	assert.Equal(t, md, again.Markdown)
}

func TestGenerateDocsBare(t *testing.T) {
	table := newDocumentedTable(t)
	result := GenerateDocs(table, []DocEntry{{
		FactoryRef:  "nexus-adapter-null:new",
		PackageName: "nexus-adapter-null",
	}}, DocsOptions{})

	assert.NotContains(t, result.Markdown, "AUTO-GENERATED")
	assert.NotContains(t, result.Markdown, "## Summary")
	assert.Contains(t, result.Markdown, "### null adapter")
}
