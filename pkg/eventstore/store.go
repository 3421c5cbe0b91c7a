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

// Package eventstore provides the durable append-only event log backing
// every run. The store is SQLite (file or in-memory) with a unique
// (run_id, seq) index; within a run, seq order matches the causal order of
// router decisions.
package eventstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/tombee/nexus-router/pkg/canonical"
	nxerrors "github.com/tombee/nexus-router/pkg/errors"
	"github.com/tombee/nexus-router/pkg/events"
)

// TimeFormat is the millisecond-precision UTC timestamp layout used for
// run and event rows. It matches the format emitted by compatible stores.
const TimeFormat = "2006-01-02T15:04:05.000Z"

// Store is a SQLite-backed event store.
type Store struct {
	db   *sql.DB
	path string
}

// Config contains store configuration.
type Config struct {
	// Path is the database file path, or ":memory:" for an ephemeral store.
	Path string

	// WAL enables write-ahead logging. Ignored for in-memory stores.
	WAL bool
}

// Open opens (creating if necessary) an event store at the given path.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		cfg.Path = ":memory:"
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serializes writes; a single connection also keeps an
	// in-memory database alive across calls.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{db: db, path: cfg.Path}

	if err := s.configurePragmas(ctx, cfg.WAL && cfg.Path != ":memory:"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure pragmas: %w", err)
	}

	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) configurePragmas(ctx context.Context, enableWAL bool) error {
	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	if enableWAL {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, pragma := range pragmas {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}
	return nil
}

// migrate creates the schema. Statements are idempotent so a database file
// written by a prior compatible version opens without migration.
func (s *Store) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			mode TEXT NOT NULL,
			goal TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			event_id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			type TEXT NOT NULL,
			payload_json TEXT NOT NULL,
			ts TEXT NOT NULL,
			FOREIGN KEY (run_id) REFERENCES runs(run_id)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_events_run_seq ON events(run_id, seq)`,
		`CREATE INDEX IF NOT EXISTS ix_events_run ON events(run_id)`,
	}
	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// CreateRun inserts a new RUNNING run row and returns its run id.
func (s *Store) CreateRun(ctx context.Context, mode, goal string) (string, error) {
	runID := uuid.NewString()
	createdAt := time.Now().UTC().Format(TimeFormat)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, mode, goal, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		runID, mode, goal, events.StatusRunning, createdAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create run: %w", err)
	}
	return runID, nil
}

// Append atomically allocates the next seq for the run, serializes the
// payload canonically, and inserts the event. A duplicate (run_id, seq) is
// an invariant violation: only one logical worker may append to a run.
func (s *Store) Append(ctx context.Context, runID string, typ events.Type, payload map[string]any) (*events.Event, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	payloadJSON, err := canonical.MarshalString(payload)
	if err != nil {
		return nil, nxerrors.Bugf("", "failed to serialize event payload: %v", err)
	}

	eventID := uuid.NewString()
	ts := time.Now().UTC().Format(TimeFormat)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM events WHERE run_id = ?`, runID,
	).Scan(&seq)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate seq: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO events (event_id, run_id, seq, type, payload_json, ts) VALUES (?, ?, ?, ?, ?, ?)`,
		eventID, runID, seq, string(typ), payloadJSON, ts,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, nxerrors.Bugf(nxerrors.CodeSeqDuplicate,
				"duplicate (run_id, seq) for run %s seq %d", runID, seq).
				WithDetails(map[string]any{"run_id": runID, "seq": seq})
		}
		return nil, fmt.Errorf("failed to insert event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit event: %w", err)
	}

	return &events.Event{
		EventID: eventID,
		RunID:   runID,
		Seq:     seq,
		Type:    typ,
		Payload: payload,
		TS:      ts,
	}, nil
}

// ReadEvents returns the run's events ordered by seq.
func (s *Store) ReadEvents(ctx context.Context, runID string) ([]events.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_id, run_id, seq, type, payload_json, ts
		 FROM events WHERE run_id = ? ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		var ev events.Event
		var typ, payloadJSON string
		if err := rows.Scan(&ev.EventID, &ev.RunID, &ev.Seq, &typ, &payloadJSON, &ev.TS); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.Type = events.Type(typ)
		payload, err := canonical.Normalize([]byte(payloadJSON))
		if err != nil {
			return nil, fmt.Errorf("failed to decode event payload: %w", err)
		}
		m, ok := payload.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("event %s payload is not an object", ev.EventID)
		}
		ev.Payload = m
		out = append(out, ev)
	}
	return out, rows.Err()
}

// GetRun retrieves a run row by id. A missing run is an operational
// RUN_NOT_FOUND error.
func (s *Store) GetRun(ctx context.Context, runID string) (*events.Run, error) {
	var run events.Run
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, mode, goal, status, created_at FROM runs WHERE run_id = ?`, runID,
	).Scan(&run.RunID, &run.Mode, &run.Goal, &run.Status, &run.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nxerrors.Operationalf(nxerrors.CodeRunNotFound, "run %s not found", runID).
			WithDetails(map[string]any{"run_id": runID})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// SetRunStatus updates the run's status.
func (s *Store) SetRunStatus(ctx context.Context, runID, status string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ? WHERE run_id = ?`, status, runID)
	if err != nil {
		return fmt.Errorf("failed to set run status: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return nxerrors.Operationalf(nxerrors.CodeRunNotFound, "run %s not found", runID)
	}
	return nil
}

// DeleteRun removes a run and all of its events. Used only by
// overwrite-mode import; normal operation never deletes.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to delete events: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return tx.Commit()
}

// ImportRun inserts a run row and its events in a single transaction,
// preserving the given event ids, seqs, and timestamps. A duplicate
// (run_id, seq) rolls back the whole import as operational SEQ_DUPLICATE.
func (s *Store) ImportRun(ctx context.Context, run *events.Run, evs []events.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, mode, goal, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		run.RunID, run.Mode, run.Goal, run.Status, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, ev := range evs {
		payloadJSON, err := canonical.MarshalString(ev.Payload)
		if err != nil {
			return fmt.Errorf("failed to serialize payload for event %s: %w", ev.EventID, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO events (event_id, run_id, seq, type, payload_json, ts) VALUES (?, ?, ?, ?, ?, ?)`,
			ev.EventID, ev.RunID, ev.Seq, string(ev.Type), payloadJSON, ev.TS,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return nxerrors.Operationalf(nxerrors.CodeSeqDuplicate,
					"duplicate seq %d for run %s", ev.Seq, ev.RunID).
					WithDetails(map[string]any{"run_id": ev.RunID, "seq": ev.Seq})
			}
			return fmt.Errorf("failed to insert event %s: %w", ev.EventID, err)
		}
	}

	return tx.Commit()
}

// RunFilter selects runs for listing.
type RunFilter struct {
	RunID  string
	Status string
	Since  string // inclusive lower bound on created_at
	Limit  int
	Offset int
}

// RunSummary is a read-only projection of a run for inspect listings.
type RunSummary struct {
	RunID      string `json:"run_id"`
	Mode       string `json:"mode"`
	Goal       string `json:"goal"`
	Status     string `json:"status"`
	CreatedAt  string `json:"created_at"`
	EventCount int64  `json:"event_count"`
}

// ListRuns returns run summaries matching the filter, newest first.
func (s *Store) ListRuns(ctx context.Context, filter RunFilter) ([]RunSummary, error) {
	query := `SELECT r.run_id, r.mode, r.goal, r.status, r.created_at,
		(SELECT COUNT(*) FROM events e WHERE e.run_id = r.run_id) AS event_count
		FROM runs r`
	var conds []string
	var args []any
	if filter.RunID != "" {
		conds = append(conds, "r.run_id = ?")
		args = append(args, filter.RunID)
	}
	if filter.Status != "" {
		conds = append(conds, "r.status = ?")
		args = append(args, filter.Status)
	}
	if filter.Since != "" {
		conds = append(conds, "r.created_at >= ?")
		args = append(args, filter.Since)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY r.created_at DESC, r.run_id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.Mode, &r.Goal, &r.Status, &r.CreatedAt, &r.EventCount); err != nil {
			return nil, fmt.Errorf("failed to scan run summary: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
