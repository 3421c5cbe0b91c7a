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

package run

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/nexus-router/internal/cli"
	"github.com/tombee/nexus-router/internal/commands/shared"
)

func newCLI(t *testing.T) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	t.Setenv("NEXUS_ROUTER_DB", "")
	root := cli.NewRootCommand()
	root.AddCommand(NewCommand())

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	return root, &buf
}

func TestRunFromFlags(t *testing.T) {
	root, buf := newCLI(t)
	db := filepath.Join(t.TempDir(), "runs.db")
	root.SetArgs([]string{"run", "--db", db, "--goal", "smoke test", "--mode", "dry_run"})

	require.NoError(t, root.Execute())

	out := buf.String()
	assert.Contains(t, out, "COMPLETED")
	assert.Contains(t, out, "adapter: null")
}

func TestRunFromFile(t *testing.T) {
	root, buf := newCLI(t)
	db := filepath.Join(t.TempDir(), "runs.db")

	reqPath := filepath.Join(t.TempDir(), "request.json")
	require.NoError(t, os.WriteFile(reqPath, []byte(`{
		"goal": "file request",
		"mode": "dry_run",
		"plan_override": [
			{"step_id": "s1", "call": {"tool": "t", "method": "m", "args": {}}}
		]
	}`), 0600))

	root.SetArgs([]string{"run", "--db", db, reqPath})
	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "steps:   1 (m)")
}

func TestRunRejectsBadRequest(t *testing.T) {
	root, _ := newCLI(t)
	db := filepath.Join(t.TempDir(), "runs.db")

	reqPath := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(reqPath, []byte(`{}`), 0600))

	root.SetArgs([]string{"run", "--db", db, reqPath})
	err := root.Execute()
	require.Error(t, err)

	var exitErr *shared.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, shared.ExitBadRequest, exitErr.Code)
}

func TestRunFailedSelectionExitsNonzero(t *testing.T) {
	root, buf := newCLI(t)
	db := filepath.Join(t.TempDir(), "runs.db")
	root.SetArgs([]string{"run", "--db", db, "--goal", "g", "--adapter", "ghost"})

	err := root.Execute()
	require.Error(t, err)

	var exitErr *shared.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, shared.ExitRunFailed, exitErr.Code)
	assert.Contains(t, buf.String(), "UNKNOWN_ADAPTER")
}
