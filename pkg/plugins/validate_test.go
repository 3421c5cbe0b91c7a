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

	"github.com/tombee/nexus-router/pkg/dispatch"
)

var allCheckIDs = []string{
	CheckLoadOK, CheckProtocolFields, CheckAdapterIDFormat,
	CheckAdapterKindFormat, CheckCapabilitiesType, CheckCapabilitiesValid,
	CheckManifestPresent, CheckManifestSchema, CheckManifestKindMatch,
	CheckManifestCapsMatch,
}

func checkIDs(checks []Check) []string {
	out := make([]string, len(checks))
	for i, c := range checks {
		out[i] = c.ID
	}
	return out
}

func findCheck(t *testing.T, result *ValidationResult, id string) Check {
	t.Helper()
	for _, c := range result.Checks {
		if c.ID == id {
			return c
		}
	}
	t.Fatalf("check %s not found", id)
	return Check{}
}

func TestValidateLoadFailure(t *testing.T) {
	table := newTable(t)
	result := ValidateAdapter(table, "missing:new", ValidateOptions{})

	assert.False(t, result.OK)
	assert.Nil(t, result.Metadata)
	assert.NotEmpty(t, result.Error)
	require.Len(t, result.Checks, 1)
	assert.Equal(t, CheckLoadOK, result.Checks[0].ID)
	assert.Equal(t, StatusFail, result.Checks[0].Status)
}

func TestValidateWithoutManifest(t *testing.T) {
	table := newTable(t)
	result := ValidateAdapter(table, "nexus-adapter-null:new", ValidateOptions{Strict: true})

	assert.True(t, result.OK)
	assert.Equal(t, allCheckIDs, checkIDs(result.Checks))

	require.NotNil(t, result.Metadata)
	assert.Equal(t, "null", result.Metadata.AdapterID)
	assert.Equal(t, "null", result.Metadata.AdapterKind)
	assert.Equal(t, []string{"dry_run"}, result.Metadata.Capabilities)
	assert.Nil(t, result.Metadata.Manifest)

	assert.Equal(t, StatusWarn, findCheck(t, result, CheckManifestPresent).Status)
	for _, id := range []string{CheckManifestSchema, CheckManifestKindMatch, CheckManifestCapsMatch} {
		assert.Equal(t, StatusSkip, findCheck(t, result, id).Status)
	}
	assert.Len(t, result.Warnings(), 1)
	assert.Empty(t, result.Errors())
}

func TestValidateWithMatchingManifest(t *testing.T) {
	table := newTable(t)
	require.NoError(t, table.SetManifest("nexus-adapter-null", Manifest{
		"schema_version": 1,
		"kind":           "null",
		"capabilities":   []any{"dry_run"},
	}))

	result := ValidateAdapter(table, "nexus-adapter-null:new", ValidateOptions{Strict: true})

	assert.True(t, result.OK)
	for _, c := range result.Checks {
		assert.Equal(t, StatusPass, c.Status, "check %s", c.ID)
	}
	require.NotNil(t, result.Metadata)
	assert.NotNil(t, result.Metadata.Manifest)
}

func TestValidateManifestKindMismatch(t *testing.T) {
	table := newTable(t)
	require.NoError(t, table.SetManifest("nexus-adapter-null", Manifest{
		"schema_version": 1,
		"kind":           "http",
		"capabilities":   []any{"dry_run"},
	}))

	result := ValidateAdapter(table, "nexus-adapter-null:new", ValidateOptions{})

	assert.False(t, result.OK)
	check := findCheck(t, result, CheckManifestKindMatch)
	assert.Equal(t, StatusFail, check.Status)
	assert.Contains(t, check.Message, `manifest kind "http" does not match adapter_kind "null"`)
}

func TestValidateManifestCapsMismatch(t *testing.T) {
	table := newTable(t)
	require.NoError(t, table.SetManifest("nexus-adapter-null", Manifest{
		"schema_version": 1,
		"kind":           "null",
		"capabilities":   []any{"apply"},
	}))

	result := ValidateAdapter(table, "nexus-adapter-null:new", ValidateOptions{})

	assert.False(t, result.OK)
	check := findCheck(t, result, CheckManifestCapsMatch)
	assert.Equal(t, StatusFail, check.Status)
	assert.Contains(t, check.Message, "extra in manifest: apply")
	assert.Contains(t, check.Message, "missing from manifest: dry_run")
}

func TestValidateManifestSchemaInvalidSkipsCrossChecks(t *testing.T) {
	table := newTable(t)
	require.NoError(t, table.SetManifest("nexus-adapter-null", Manifest{
		"kind": "null",
	}))

	result := ValidateAdapter(table, "nexus-adapter-null:new", ValidateOptions{})

	assert.False(t, result.OK)
	schema := findCheck(t, result, CheckManifestSchema)
	assert.Equal(t, StatusFail, schema.Status)
	assert.Contains(t, schema.Message, "missing required field: schema_version")
	assert.Equal(t, StatusSkip, findCheck(t, result, CheckManifestKindMatch).Status)
	assert.Equal(t, StatusSkip, findCheck(t, result, CheckManifestCapsMatch).Status)
}

func TestValidateUnknownCapabilities(t *testing.T) {
	table := NewFactoryTable()
	require.NoError(t, table.Register("pkg", "new", func(config map[string]any) (dispatch.Adapter, error) {
		return dispatch.NewFakeAdapter("fake",
			dispatch.WithFakeCapabilities("dry_run", "x-custom")), nil
	}))

	strict := ValidateAdapter(table, "pkg:new", ValidateOptions{Strict: true})
	assert.False(t, strict.OK)
	check := findCheck(t, strict, CheckCapabilitiesValid)
	assert.Equal(t, StatusFail, check.Status)
	assert.Contains(t, check.Message, "x-custom")

	lenient := ValidateAdapter(table, "pkg:new", ValidateOptions{})
	assert.True(t, lenient.OK)
	assert.Equal(t, StatusWarn, findCheck(t, lenient, CheckCapabilitiesValid).Status)
}

func TestValidateEmptyAdapterID(t *testing.T) {
	table := NewFactoryTable()
	require.NoError(t, table.Register("pkg", "new", func(config map[string]any) (dispatch.Adapter, error) {
		return dispatch.NewNullAdapter(""), nil
	}))

	result := ValidateAdapter(table, "pkg:new", ValidateOptions{})
	assert.False(t, result.OK)
	assert.Equal(t, StatusFail, findCheck(t, result, CheckAdapterIDFormat).Status)
}

func TestValidateNeverDispatches(t *testing.T) {
	table := NewFactoryTable()
	fake := dispatch.NewFakeAdapter("fake")
	require.NoError(t, table.Register("pkg", "new", func(config map[string]any) (dispatch.Adapter, error) {
		return fake, nil
	}))

	result := ValidateAdapter(table, "pkg:new", ValidateOptions{})
	assert.True(t, result.OK)
	assert.Empty(t, fake.CallLog())
}
