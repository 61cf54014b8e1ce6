package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/exportalisto/backend/internal/scoring"
)

// StoredResult is a persisted DiagnosticResult snapshot plus the optional
// AI-generated executive summary, which is filled in asynchronously by the
// worker after completion.
type StoredResult struct {
	SessionID uuid.UUID
	Result    scoring.DiagnosticResult
	AISummary string
	CreatedAt string
}

// SaveResult persists the result snapshot and marks the session completed,
// atomically. Re-completing a session overwrites the previous snapshot and
// clears any stale AI summary, since the summary described the old result.
func (s *Store) SaveResult(ctx context.Context, sessionID uuid.UUID, result scoring.DiagnosticResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("store: marshal result: %w", err)
	}

	return s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO results (session_id, result_json, created_at)
			VALUES (?, ?, ?)
			ON CONFLICT (session_id)
			DO UPDATE SET result_json    = excluded.result_json,
			              ai_summary     = '',
			              summary_failed = 0,
			              summary_error  = '',
			              created_at     = excluded.created_at`,
			sessionID.String(), string(raw), now())
		if err != nil {
			return fmt.Errorf("store: save result: %w", err)
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE sessions SET completed = 1, updated_at = ? WHERE id = ?`,
			now(), sessionID.String())
		if err != nil {
			return fmt.Errorf("store: mark completed: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrSessionNotFound
		}
		return nil
	})
}

// Result loads the stored result snapshot for a session.
func (s *Store) Result(ctx context.Context, sessionID uuid.UUID) (StoredResult, error) {
	var (
		raw string
		sr  = StoredResult{SessionID: sessionID}
	)
	err := s.pool.QueryRowContext(ctx,
		`SELECT result_json, ai_summary, created_at FROM results WHERE session_id = ?`,
		sessionID.String()).Scan(&raw, &sr.AISummary, &sr.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredResult{}, ErrResultNotFound
	}
	if err != nil {
		return StoredResult{}, fmt.Errorf("store: load result: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &sr.Result); err != nil {
		return StoredResult{}, fmt.Errorf("store: unmarshal result: %w", err)
	}
	return sr, nil
}

// AttachAISummary sets the summary on a stored result. Called by the worker;
// a missing result (e.g. reset raced the job) surfaces ErrResultNotFound so
// the job can drop the work instead of retrying forever.
func (s *Store) AttachAISummary(ctx context.Context, sessionID uuid.UUID, summary string) error {
	res, err := s.pool.ExecContext(ctx,
		`UPDATE results SET ai_summary = ? WHERE session_id = ?`,
		summary, sessionID.String())
	if err != nil {
		return fmt.Errorf("store: attach summary: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrResultNotFound
	}
	return nil
}

// MarkSummaryFailed flags a stored result so the poller stops retrying it.
// Called by the worker after exhausting retries.
func (s *Store) MarkSummaryFailed(ctx context.Context, sessionID uuid.UUID, reason string) error {
	res, err := s.pool.ExecContext(ctx,
		`UPDATE results SET summary_failed = 1, summary_error = ? WHERE session_id = ?`,
		reason, sessionID.String())
	if err != nil {
		return fmt.Errorf("store: mark summary failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrResultNotFound
	}
	return nil
}

// ListResultsMissingSummary returns session ids of stored results with no AI
// summary yet, skipping permanently failed ones. The worker's poller uses
// this as the recovery path for jobs lost to a restart.
func (s *Store) ListResultsMissingSummary(ctx context.Context, limit int) ([]uuid.UUID, error) {
	rows, err := s.pool.QueryContext(ctx,
		`SELECT session_id FROM results
		 WHERE ai_summary = '' AND summary_failed = 0
		 ORDER BY created_at LIMIT ?`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("store: list results missing summary: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("store: scan session id: %w", err)
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("store: parse session id %q: %w", raw, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
