package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/exportalisto/backend/internal/scoring"
)

// Session is one visitor's diagnostic in progress. Company fields are empty
// strings until the profile step is saved.
type Session struct {
	ID          uuid.UUID
	AnonToken   string
	CompanyName string
	Sector      string
	Size        string
	Country     string
	Completed   bool
	CreatedAt   string
	UpdatedAt   string
}

// CompanyInfo returns the session's profile, or nil when the profile step has
// not been completed. The engine treats nil as a hard precondition failure.
func (s Session) CompanyInfo() *scoring.CompanyInfo {
	if s.Sector == "" || s.Size == "" || s.Country == "" {
		return nil
	}
	return &scoring.CompanyInfo{
		Name:    s.CompanyName,
		Sector:  s.Sector,
		Size:    s.Size,
		Country: s.Country,
	}
}

const sessionColumns = `id, anon_token, company_name, sector, size, country, completed, created_at, updated_at`

func scanSession(row *sql.Row) (Session, error) {
	var (
		sess Session
		id   string
	)
	err := row.Scan(&id, &sess.AnonToken, &sess.CompanyName, &sess.Sector,
		&sess.Size, &sess.Country, &sess.Completed, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("store: scan session: %w", err)
	}
	sess.ID, err = uuid.Parse(id)
	if err != nil {
		return Session{}, fmt.Errorf("store: parse session id %q: %w", id, err)
	}
	return sess, nil
}

// CreateSession inserts a new anonymous session with the given token.
func (s *Store) CreateSession(ctx context.Context, anonToken string) (Session, error) {
	id := uuid.New()
	ts := now()
	_, err := s.pool.ExecContext(ctx,
		`INSERT INTO sessions (id, anon_token, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		id.String(), anonToken, ts, ts)
	if err != nil {
		return Session{}, fmt.Errorf("store: create session: %w", err)
	}
	return Session{ID: id, AnonToken: anonToken, CreatedAt: ts, UpdatedAt: ts}, nil
}

// SessionByID loads a session by its id.
func (s *Store) SessionByID(ctx context.Context, id uuid.UUID) (Session, error) {
	row := s.pool.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id.String())
	return scanSession(row)
}

// SessionByToken loads a session by its anonymous token.
func (s *Store) SessionByToken(ctx context.Context, token string) (Session, error) {
	row := s.pool.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE anon_token = ?`, token)
	return scanSession(row)
}

// SetCompanyInfo saves the profile step for a session.
func (s *Store) SetCompanyInfo(ctx context.Context, id uuid.UUID, info scoring.CompanyInfo) (Session, error) {
	res, err := s.pool.ExecContext(ctx,
		`UPDATE sessions SET company_name = ?, sector = ?, size = ?, country = ?, updated_at = ? WHERE id = ?`,
		info.Name, info.Sector, info.Size, info.Country, now(), id.String())
	if err != nil {
		return Session{}, fmt.Errorf("store: set company info: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Session{}, ErrSessionNotFound
	}
	return s.SessionByID(ctx, id)
}

// UpsertAnswer records one answer with last-write-wins semantics. The value
// is validated against the question's options and the category is taken from
// the catalog, never from the caller — the denormalised copy cannot drift.
func (s *Store) UpsertAnswer(ctx context.Context, sessionID uuid.UUID, questionID string, value int) error {
	return s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return upsertAnswerTx(ctx, tx, s, sessionID, questionID, value)
	})
}

// UpsertAnswers records a batch of answers atomically: either the whole batch
// lands or none of it does, so a browser retry of the same payload is safe.
func (s *Store) UpsertAnswers(ctx context.Context, sessionID uuid.UUID, answers []scoring.Answer) error {
	return s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		for _, a := range answers {
			if err := upsertAnswerTx(ctx, tx, s, sessionID, a.QuestionID, a.Value); err != nil {
				return err
			}
		}
		return nil
	})
}

func upsertAnswerTx(ctx context.Context, tx *sql.Tx, s *Store, sessionID uuid.UUID, questionID string, value int) error {
	question, err := s.cat.QuestionByID(questionID)
	if err != nil {
		return err
	}
	if !question.HasOptionValue(value) {
		return fmt.Errorf("%w: question %s, value %d", ErrInvalidAnswerValue, questionID, value)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO answers (session_id, question_id, category, value, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (session_id, question_id)
		DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		sessionID.String(), questionID, question.Category, value, now())
	if err != nil {
		return fmt.Errorf("store: upsert answer %s: %w", questionID, err)
	}
	return nil
}

// AnswersBySession returns the session's answers. Order follows question id
// so repeated reads are deterministic; the engine indexes by question id and
// does not care about slice order.
func (s *Store) AnswersBySession(ctx context.Context, sessionID uuid.UUID) ([]scoring.Answer, error) {
	rows, err := s.pool.QueryContext(ctx,
		`SELECT question_id, category, value FROM answers WHERE session_id = ? ORDER BY question_id`,
		sessionID.String())
	if err != nil {
		return nil, fmt.Errorf("store: answers by session: %w", err)
	}
	defer rows.Close()

	var answers []scoring.Answer
	for rows.Next() {
		var a scoring.Answer
		if err := rows.Scan(&a.QuestionID, &a.Category, &a.Value); err != nil {
			return nil, fmt.Errorf("store: scan answer: %w", err)
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// CategoryComplete reports whether every question in the category has an
// answer. Distinctness is guaranteed by the answers primary key, so a plain
// count suffices.
func (s *Store) CategoryComplete(ctx context.Context, sessionID uuid.UUID, categoryID string) (bool, error) {
	var answered int
	err := s.pool.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM answers WHERE session_id = ? AND category = ?`,
		sessionID.String(), categoryID).Scan(&answered)
	if err != nil {
		return false, fmt.Errorf("store: category complete: %w", err)
	}
	return answered == len(s.cat.QuestionsByCategory(categoryID)), nil
}

// ResetSession wipes the session's answers and result and clears the
// completed flag, keeping the session row and token. The whole reset is one
// transaction — a session is never observed half-wiped.
func (s *Store) ResetSession(ctx context.Context, sessionID uuid.UUID) error {
	return s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM answers WHERE session_id = ?`, sessionID.String()); err != nil {
			return fmt.Errorf("store: reset answers: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM results WHERE session_id = ?`, sessionID.String()); err != nil {
			return fmt.Errorf("store: reset result: %w", err)
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE sessions SET completed = 0, updated_at = ? WHERE id = ?`,
			now(), sessionID.String())
		if err != nil {
			return fmt.Errorf("store: reset session: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrSessionNotFound
		}
		return nil
	})
}
