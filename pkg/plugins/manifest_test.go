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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleManifestYAML = `
schema_version: 1
kind: http
capabilities:
  - dry_run
  - apply
supported_router_versions: ">=0.5,<0.8"
error_codes:
  - TIMEOUT
  - NONZERO_EXIT
config_schema:
  base_url:
    type: string
    required: true
    description: Root URL for all calls.
  timeout_s:
    type: number
    required: false
    default: 30
`

func TestParseManifestYAML(t *testing.T) {
	m, err := ParseManifest([]byte(sampleManifestYAML))
	require.NoError(t, err)

	assert.Empty(t, m.Validate())
	assert.Equal(t, "http", m.Kind())
	assert.Equal(t, []string{"dry_run", "apply"}, m.CapabilityNames())
	assert.Equal(t, []string{"TIMEOUT", "NONZERO_EXIT"}, m.ErrorCodes())
	assert.Equal(t, ">=0.5,<0.8", m.SupportedRouterVersions())
}

func TestParseManifestJSON(t *testing.T) {
	// JSON is a YAML subset, so JSON manifests parse too.
	raw := []byte(`{"schema_version": 1, "kind": "null", "capabilities": ["dry_run"]}`)
	m, err := ParseManifest(raw)
	require.NoError(t, err)
	assert.Empty(t, m.Validate())
	assert.Equal(t, "null", m.Kind())
}

func TestParseManifestRejectsGarbage(t *testing.T) {
	_, err := ParseManifest([]byte("[: not yaml"))
	assert.Error(t, err)

	_, err = ParseManifest([]byte(""))
	assert.Error(t, err)
}

func TestManifestValidate(t *testing.T) {
	valid := Manifest{
		"schema_version": 1,
		"kind":           "null",
		"capabilities":   []any{"dry_run"},
	}
	assert.Empty(t, valid.Validate())

	tests := []struct {
		name     string
		manifest Manifest
		want     string
	}{
		{
			name:     "missing schema_version",
			manifest: Manifest{"kind": "null", "capabilities": []any{}},
			want:     "missing required field: schema_version",
		},
		{
			name: "unknown schema_version",
			manifest: Manifest{
				"schema_version": 2, "kind": "null", "capabilities": []any{},
			},
			want: "invalid schema_version: 2 (expected 1)",
		},
		{
			name:     "missing kind",
			manifest: Manifest{"schema_version": 1, "capabilities": []any{}},
			want:     "missing required field: kind",
		},
		{
			name: "empty kind",
			manifest: Manifest{
				"schema_version": 1, "kind": "", "capabilities": []any{},
			},
			want: "field 'kind' must be a non-empty string",
		},
		{
			name:     "missing capabilities",
			manifest: Manifest{"schema_version": 1, "kind": "null"},
			want:     "missing required field: capabilities",
		},
		{
			name: "capabilities not a list",
			manifest: Manifest{
				"schema_version": 1, "kind": "null", "capabilities": "dry_run",
			},
			want: "field 'capabilities' must be a list",
		},
		{
			name: "capabilities with non-strings",
			manifest: Manifest{
				"schema_version": 1, "kind": "null", "capabilities": []any{"dry_run", 7},
			},
			want: "field 'capabilities' must contain only strings",
		},
		{
			name: "supported_router_versions not a string",
			manifest: Manifest{
				"schema_version": 1, "kind": "null", "capabilities": []any{},
				"supported_router_versions": 7,
			},
			want: "field 'supported_router_versions' must be a string",
		},
		{
			name: "error_codes not a list",
			manifest: Manifest{
				"schema_version": 1, "kind": "null", "capabilities": []any{},
				"error_codes": "TIMEOUT",
			},
			want: "field 'error_codes' must be a list",
		},
		{
			name: "config_schema not an object",
			manifest: Manifest{
				"schema_version": 1, "kind": "null", "capabilities": []any{},
				"config_schema": []any{},
			},
			want: "field 'config_schema' must be an object",
		},
		{
			name: "config param missing type",
			manifest: Manifest{
				"schema_version": 1, "kind": "null", "capabilities": []any{},
				"config_schema": map[string]any{
					"base_url": map[string]any{"required": true},
				},
			},
			want: `config_schema["base_url"] missing required field: type`,
		},
		{
			name: "config param bad type",
			manifest: Manifest{
				"schema_version": 1, "kind": "null", "capabilities": []any{},
				"config_schema": map[string]any{
					"base_url": map[string]any{"type": "url", "required": true},
				},
			},
			want: `config_schema["base_url"].type invalid: url (must be one of array, boolean, number, object, string)`,
		},
		{
			name: "config param missing required",
			manifest: Manifest{
				"schema_version": 1, "kind": "null", "capabilities": []any{},
				"config_schema": map[string]any{
					"base_url": map[string]any{"type": "string"},
				},
			},
			want: `config_schema["base_url"] missing required field: required`,
		},
		{
			name: "config param required not bool",
			manifest: Manifest{
				"schema_version": 1, "kind": "null", "capabilities": []any{},
				"config_schema": map[string]any{
					"base_url": map[string]any{"type": "string", "required": "yes"},
				},
			},
			want: `config_schema["base_url"].required must be a boolean`,
		},
		{
			name: "config param not an object",
			manifest: Manifest{
				"schema_version": 1, "kind": "null", "capabilities": []any{},
				"config_schema": map[string]any{"base_url": "string"},
			},
			want: `config_schema["base_url"] must be an object`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, tt.manifest.Validate(), tt.want)
		})
	}
}

func TestManifestValidateCollectsAllErrors(t *testing.T) {
	errs := Manifest{}.Validate()
	assert.Len(t, errs, 3)
}

func TestConfigParamsSortedWithDefaults(t *testing.T) {
	m, err := ParseManifest([]byte(sampleManifestYAML))
	require.NoError(t, err)

	params := m.ConfigParams()
	require.Len(t, params, 2)

	assert.Equal(t, "base_url", params[0].Name)
	assert.Equal(t, "string", params[0].Type)
	assert.True(t, params[0].Required)
	assert.False(t, params[0].HasDefault)
	assert.Equal(t, "Root URL for all calls.", params[0].Description)

	assert.Equal(t, "timeout_s", params[1].Name)
	assert.Equal(t, "number", params[1].Type)
	assert.False(t, params[1].Required)
	assert.True(t, params[1].HasDefault)
	assert.Equal(t, 30, params[1].Default)
}

func TestConfigParamsAbsent(t *testing.T) {
	m := Manifest{"schema_version": 1, "kind": "null", "capabilities": []any{}}
	assert.Nil(t, m.ConfigParams())
}
