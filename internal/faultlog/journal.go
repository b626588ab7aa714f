// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package faultlog persists camera faults: an append-only SQLite journal
// and an atomically replaced JSON dump of the most recent fault.
package faultlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ManuGH/camagent/internal/camera/fault"
	"github.com/ManuGH/camagent/internal/persistence/sqlite"
)

// DefaultListLimit caps List when the query does not.
const DefaultListLimit = 100

// Entry is the persisted form of a fault.
type Entry struct {
	ID      string    `json:"id"`
	Agent   string    `json:"agent"`
	Kind    string    `json:"kind"`
	Code    int       `json:"code,omitempty"`
	Error   string    `json:"error,omitempty"`
	History string    `json:"history,omitempty"`
	Action  string    `json:"action,omitempty"`
	State   string    `json:"state,omitempty"`
	Panic   bool      `json:"panic,omitempty"`
	At      time.Time `json:"at"`
}

// EntryFrom converts a reported fault.
func EntryFrom(f *fault.Fault) Entry {
	e := Entry{
		ID:      f.ID,
		Agent:   f.Agent,
		Kind:    string(f.Kind),
		Code:    f.Code,
		History: f.History,
		Action:  f.Action,
		State:   f.State,
		At:      f.At.UTC(),
	}
	if f.Err != nil {
		e.Error = f.Err.Error()
		e.Panic = fault.IsPanic(f.Err)
	}
	return e
}

// Query filters List. Zero fields match everything.
type Query struct {
	Agent string
	Kind  string
	Since time.Time
	Limit int
}

// Journal is the SQLite fault store.
type Journal struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the journal at path.
func Open(ctx context.Context, path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	db, err := sqlite.Open(ctx, path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	j := &Journal{db: db, path: path}
	if err := j.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return j, nil
}

// Path returns the database file path.
func (j *Journal) Path() string { return j.path }

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS faults (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		agent TEXT NOT NULL,
		kind TEXT NOT NULL CHECK(kind IN ('camera_error', 'camera_exception', 'dispatch_exception')),
		code INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		history TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT '',
		panic INTEGER NOT NULL DEFAULT 0,
		at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_faults_agent_at ON faults(agent, at);
	CREATE INDEX IF NOT EXISTS idx_faults_at ON faults(at);
	`
	_, err := j.db.ExecContext(ctx, schema)
	return err
}

// Append stores e. Appending the same ID twice is a no-op.
func (j *Journal) Append(ctx context.Context, e Entry) error {
	if e.ID == "" {
		return errors.New("faultlog: entry without id")
	}
	query := `
	INSERT INTO faults (id, agent, kind, code, error, history, action, state, panic, at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO NOTHING
	`
	_, err := j.db.ExecContext(ctx, query,
		e.ID, e.Agent, e.Kind, e.Code, e.Error, e.History, e.Action, e.State, e.Panic, e.At.UnixNano())
	if err != nil {
		return fmt.Errorf("append fault %s: %w", e.ID, err)
	}
	return nil
}

// List returns matching entries, newest first.
func (j *Journal) List(ctx context.Context, q Query) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	if q.Agent != "" {
		where = append(where, "agent = ?")
		args = append(args, q.Agent)
	}
	if q.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, q.Kind)
	}
	if !q.Since.IsZero() {
		where = append(where, "at >= ?")
		args = append(args, q.Since.UnixNano())
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `SELECT id, agent, kind, code, error, history, action, state, panic, at FROM faults`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY at DESC, seq DESC LIMIT ?"
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list faults: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var (
			e  Entry
			at int64
		)
		if err := rows.Scan(&e.ID, &e.Agent, &e.Kind, &e.Code, &e.Error, &e.History, &e.Action, &e.State, &e.Panic, &at); err != nil {
			return nil, fmt.Errorf("scan fault: %w", err)
		}
		e.At = time.Unix(0, at).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count returns the number of stored faults.
func (j *Journal) Count(ctx context.Context) (int, error) {
	var n int
	if err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM faults`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count faults: %w", err)
	}
	return n, nil
}

// Prune keeps the newest keep entries and deletes the rest.
func (j *Journal) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := j.db.ExecContext(ctx, `
	DELETE FROM faults WHERE seq NOT IN (
		SELECT seq FROM faults ORDER BY at DESC, seq DESC LIMIT ?
	)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune faults: %w", err)
	}
	return res.RowsAffected()
}

// Verify runs a quick integrity check.
func (j *Journal) Verify(ctx context.Context) error {
	issues, err := sqlite.Verify(ctx, j.db, sqlite.CheckQuick)
	if err != nil {
		return err
	}
	if len(issues) > 0 {
		return fmt.Errorf("fault journal corrupt: %s", strings.Join(issues, "; "))
	}
	return nil
}
