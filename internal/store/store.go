// Package store owns the mutable client state of the diagnostic: sessions,
// their accumulated answers, and the persisted result snapshot. It is the
// state container the engine reads from — the engine itself never holds or
// mutates state.
//
// Persistence is a local SQLite file (modernc.org/sqlite, pure Go — no cgo).
// There is no external database: sessions are anonymous and short-lived, and
// a single file next to the binary keeps the deployment to one process.
//
// Dependency rule: store imports catalog and scoring only. It never imports
// api, worker, or ai.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // sqlite driver

	"github.com/exportalisto/backend/internal/catalog"
)

// ─── ERRORS ──────────────────────────────────────────────────────────────────

// ErrSessionNotFound is returned for an unknown session id or token.
var ErrSessionNotFound = errors.New("store: session not found")

// ErrResultNotFound is returned when a session has no stored result yet.
var ErrResultNotFound = errors.New("store: result not found")

// ErrInvalidAnswerValue is returned when an answer's value is not one of its
// question's option values. Wrapped with the question id for context.
var ErrInvalidAnswerValue = errors.New("store: answer value is not a valid option")

// ─── SCHEMA ──────────────────────────────────────────────────────────────────

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id           TEXT PRIMARY KEY,
	anon_token   TEXT NOT NULL UNIQUE,
	company_name TEXT NOT NULL DEFAULT '',
	sector       TEXT NOT NULL DEFAULT '',
	size         TEXT NOT NULL DEFAULT '',
	country      TEXT NOT NULL DEFAULT '',
	completed    INTEGER NOT NULL DEFAULT 0,
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS answers (
	session_id  TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	question_id TEXT NOT NULL,
	category    TEXT NOT NULL,
	value       INTEGER NOT NULL,
	updated_at  TEXT NOT NULL,
	PRIMARY KEY (session_id, question_id)
);

CREATE INDEX IF NOT EXISTS idx_answers_session_category
	ON answers(session_id, category);

CREATE TABLE IF NOT EXISTS results (
	session_id     TEXT PRIMARY KEY REFERENCES sessions(id) ON DELETE CASCADE,
	result_json    TEXT NOT NULL,
	ai_summary     TEXT NOT NULL DEFAULT '',
	summary_failed INTEGER NOT NULL DEFAULT 0,
	summary_error  TEXT NOT NULL DEFAULT '',
	created_at     TEXT NOT NULL
);
`

// ─── STORE ───────────────────────────────────────────────────────────────────

// Store wraps the SQLite pool and validates writes against the catalog.
// Answer uniqueness per question is structural: the (session_id, question_id)
// primary key plus UPSERT makes last-write-wins impossible to get wrong at
// read time.
type Store struct {
	pool *sql.DB
	cat  *catalog.Catalog
}

// Open opens (creating if needed) the SQLite file at path, applies the
// schema, and returns a ready Store.
func Open(path string, cat *catalog.Catalog) (*Store, error) {
	pool, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}

	// modernc.org/sqlite serialises writes internally; a single connection
	// avoids SQLITE_BUSY churn under concurrent handlers.
	pool.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := pool.Exec(p); err != nil {
			pool.Close()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}

	if _, err := pool.Exec(schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}

	return &Store{pool: pool, cat: cat}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// txFunc receives a transaction-scoped handle. Returning a non-nil error
// rolls the transaction back.
type txFunc func(ctx context.Context, tx *sql.Tx) error

// withTx begins a transaction, runs fn, and commits on success or rolls back
// on any error (including panics).
func (s *Store) withTx(ctx context.Context, fn txFunc) error {
	tx, err := s.pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}

	// Roll back on panic so the connection is never left mid-transaction.
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("store: fn error: %w; rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit transaction: %w", err)
	}
	return nil
}

// now returns the canonical timestamp string stored in every row.
func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
