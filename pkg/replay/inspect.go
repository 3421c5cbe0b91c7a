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

package replay

import (
	"context"

	"github.com/tombee/nexus-router/pkg/eventstore"
)

// InspectResult lists persisted runs matching a filter.
type InspectResult struct {
	Runs []eventstore.RunSummary `json:"runs"`
}

// Inspect is a read-only projection of the event store: it lists runs by
// id, status, or time window without touching their event streams.
func Inspect(ctx context.Context, store *eventstore.Store, filter eventstore.RunFilter) (*InspectResult, error) {
	runs, err := store.ListRuns(ctx, filter)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []eventstore.RunSummary{}
	}
	return &InspectResult{Runs: runs}, nil
}

// InspectRun returns the replayed view of a single run, combining the
// listing projection with full event verification.
func InspectRun(ctx context.Context, store *eventstore.Store, runID string) (*Result, error) {
	if _, err := store.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	return Replay(ctx, store, runID)
}
