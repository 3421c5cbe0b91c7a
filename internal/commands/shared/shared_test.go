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

package shared

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitErrorMessages(t *testing.T) {
	cause := errors.New("boom")

	err := NewRunFailedError("run failed", cause)
	assert.Equal(t, ExitRunFailed, err.Code)
	assert.Equal(t, "run failed: boom", err.Error())
	assert.Equal(t, cause, errors.Unwrap(err))

	bare := NewBadRequestError("bad request", nil)
	assert.Equal(t, "bad request", bare.Error())

	silent := NewSilentExit(ExitRunFailed)
	assert.True(t, silent.silent())
	assert.Equal(t, "", silent.Error())
}

func TestEmitJSONTo(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EmitJSONTo(&buf, map[string]any{"ok": true}))
	assert.JSONEq(t, `{"ok": true}`, buf.String())
}

func TestReadRequestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "req.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"goal":"g"}`), 0600))

	raw, err := ReadRequest(path)
	require.NoError(t, err)
	assert.Equal(t, `{"goal":"g"}`, string(raw))

	_, err = ReadRequest(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadEnvironmentDefaults(t *testing.T) {
	for _, key := range []string{"NEXUS_ROUTER_DB", "NEXUS_ROUTER_DEFAULT_ADAPTER", "LOG_LEVEL", "LOG_FORMAT", "LOG_SOURCE"} {
		t.Setenv(key, "")
	}

	env, err := LoadEnvironment()
	require.NoError(t, err)

	assert.Equal(t, "nexus-router.db", env.Config.DBPath)
	assert.NotNil(t, env.Logger)
	assert.Equal(t, []string{"null"}, env.Registry.ListIDs())
}
