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

package eventstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nxerrors "github.com/tombee/nexus-router/pkg/errors"
	"github.com/tombee/nexus-router/pkg/events"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(Config{Path: filepath.Join(t.TempDir(), "events.db")})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpenDefaultsToMemory(t *testing.T) {
	store, err := Open(Config{})
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, ":memory:", store.Path())
}

func TestCreateRunAndGetRun(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	runID, err := store.CreateRun(ctx, events.ModeDryRun, "summarize")
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	run, err := store.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, events.ModeDryRun, run.Mode)
	assert.Equal(t, "summarize", run.Goal)
	assert.Equal(t, events.StatusRunning, run.Status)

	_, err = time.Parse(TimeFormat, run.CreatedAt)
	assert.NoError(t, err)
}

func TestGetRunNotFound(t *testing.T) {
	store := newStore(t)

	_, err := store.GetRun(context.Background(), "missing")
	oe, ok := nxerrors.AsOperational(err)
	require.True(t, ok)
	assert.Equal(t, nxerrors.CodeRunNotFound, oe.Code)
}

func TestAppendAllocatesContiguousSeq(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	runID, err := store.CreateRun(ctx, events.ModeDryRun, "g")
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		ev, err := store.Append(ctx, runID, events.RunStarted, map[string]any{"i": i})
		require.NoError(t, err)
		assert.Equal(t, int64(i), ev.Seq)
	}

	evs, err := store.ReadEvents(ctx, runID)
	require.NoError(t, err)
	require.Len(t, evs, 3)
	for i, ev := range evs {
		assert.Equal(t, int64(i+1), ev.Seq)
	}
}

func TestAppendNilPayloadBecomesEmptyObject(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	runID, err := store.CreateRun(ctx, events.ModeDryRun, "g")
	require.NoError(t, err)

	_, err = store.Append(ctx, runID, events.RunStarted, nil)
	require.NoError(t, err)

	evs, err := store.ReadEvents(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, evs[0].Payload)
}

func TestReadEventsRoundTripsCanonicalPayload(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	runID, err := store.CreateRun(ctx, events.ModeDryRun, "g")
	require.NoError(t, err)

	_, err = store.Append(ctx, runID, events.ToolCallSucceeded, map[string]any{
		"step_id": "s1",
		"output":  map[string]any{"nested": []any{"a", "b"}},
	})
	require.NoError(t, err)

	evs, err := store.ReadEvents(ctx, runID)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, "s1", evs[0].Payload["step_id"])

	output, ok := evs[0].Payload["output"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{"a", "b"}, output["nested"])
}

func TestSetRunStatus(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	runID, err := store.CreateRun(ctx, events.ModeDryRun, "g")
	require.NoError(t, err)

	require.NoError(t, store.SetRunStatus(ctx, runID, events.StatusCompleted))
	run, err := store.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, events.StatusCompleted, run.Status)

	err = store.SetRunStatus(ctx, "missing", events.StatusFailed)
	oe, ok := nxerrors.AsOperational(err)
	require.True(t, ok)
	assert.Equal(t, nxerrors.CodeRunNotFound, oe.Code)
}

func TestImportRunPreservesIdentityAndRejectsDuplicates(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	run := &events.Run{
		RunID:     "imported-run",
		Mode:      events.ModeDryRun,
		Goal:      "g",
		Status:    events.StatusCompleted,
		CreatedAt: "2026-01-02T03:04:05.000Z",
	}
	evs := []events.Event{
		{EventID: "e1", RunID: run.RunID, Seq: 1, Type: events.RunStarted, Payload: map[string]any{}, TS: run.CreatedAt},
		{EventID: "e2", RunID: run.RunID, Seq: 2, Type: events.RunCompleted, Payload: map[string]any{}, TS: run.CreatedAt},
	}

	require.NoError(t, store.ImportRun(ctx, run, evs))

	got, err := store.ReadEvents(ctx, run.RunID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "e1", got[0].EventID)
	assert.Equal(t, run.CreatedAt, got[0].TS)

	// A colliding seq rolls the whole import back.
	dup := &events.Run{RunID: "dup-run", Mode: events.ModeDryRun, Goal: "g",
		Status: events.StatusCompleted, CreatedAt: run.CreatedAt}
	dupEvents := []events.Event{
		{EventID: "d1", RunID: dup.RunID, Seq: 1, Type: events.RunStarted, Payload: map[string]any{}, TS: run.CreatedAt},
		{EventID: "d2", RunID: dup.RunID, Seq: 1, Type: events.RunCompleted, Payload: map[string]any{}, TS: run.CreatedAt},
	}
	err = store.ImportRun(ctx, dup, dupEvents)
	oe, ok := nxerrors.AsOperational(err)
	require.True(t, ok)
	assert.Equal(t, nxerrors.CodeSeqDuplicate, oe.Code)

	_, err = store.GetRun(ctx, dup.RunID)
	assert.Error(t, err)
}

func TestListRunsFilters(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	first, err := store.CreateRun(ctx, events.ModeDryRun, "first")
	require.NoError(t, err)
	second, err := store.CreateRun(ctx, events.ModeApply, "second")
	require.NoError(t, err)

	_, err = store.Append(ctx, first, events.RunStarted, nil)
	require.NoError(t, err)
	require.NoError(t, store.SetRunStatus(ctx, first, events.StatusCompleted))

	all, err := store.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	completed, err := store.ListRuns(ctx, RunFilter{Status: events.StatusCompleted})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, first, completed[0].RunID)
	assert.Equal(t, int64(1), completed[0].EventCount)

	one, err := store.ListRuns(ctx, RunFilter{RunID: second})
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "second", one[0].Goal)

	limited, err := store.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
