package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/exportalisto/backend/internal/catalog"
	"github.com/exportalisto/backend/internal/scoring"
	"github.com/exportalisto/backend/internal/store"
)

// openTestStore opens a store against a throwaway sqlite file. The driver is
// pure Go, so tests need no external services.
func openTestStore(t *testing.T) (*store.Store, *catalog.Catalog) {
	t.Helper()
	cat, err := catalog.Load()
	if err != nil {
		t.Fatalf("catalog.Load: %v", err)
	}
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"), cat)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st, cat
}

func createSession(t *testing.T, st *store.Store) store.Session {
	t.Helper()
	session, err := st.CreateSession(context.Background(), "token-"+uuid.NewString())
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return session
}

func testResult() scoring.DiagnosticResult {
	return scoring.DiagnosticResult{
		TotalScore: 42.5,
		Level:      scoring.LevelEarlyStage,
		LevelLabel: "Etapa Inicial",
		CompanyInfo: scoring.CompanyInfo{
			Sector: "agro", Size: "micro", Country: "Chile",
		},
	}
}

// ─── SESSIONS ─────────────────────────────────────────────────────────────────

func TestSessionLifecycle(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()

	session := createSession(t, st)
	if session.Completed {
		t.Error("new session should not be completed")
	}
	if session.CompanyInfo() != nil {
		t.Error("new session should have no company info")
	}

	byToken, err := st.SessionByToken(ctx, session.AnonToken)
	if err != nil {
		t.Fatalf("SessionByToken: %v", err)
	}
	if byToken.ID != session.ID {
		t.Errorf("token lookup returned %s, want %s", byToken.ID, session.ID)
	}

	byID, err := st.SessionByID(ctx, session.ID)
	if err != nil {
		t.Fatalf("SessionByID: %v", err)
	}
	if byID.AnonToken != session.AnonToken {
		t.Error("id lookup returned a different token")
	}

	if _, err := st.SessionByID(ctx, uuid.New()); !errors.Is(err, store.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := st.SessionByToken(ctx, "bogus"); !errors.Is(err, store.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSetCompanyInfo(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()
	session := createSession(t, st)

	updated, err := st.SetCompanyInfo(ctx, session.ID, scoring.CompanyInfo{
		Name: "Café Norte EIRL", Sector: "agro", Size: "micro", Country: "Alemania",
	})
	if err != nil {
		t.Fatalf("SetCompanyInfo: %v", err)
	}

	info := updated.CompanyInfo()
	if info == nil {
		t.Fatal("company info still nil after set")
	}
	if info.Name != "Café Norte EIRL" || info.Country != "Alemania" {
		t.Errorf("unexpected company info: %+v", info)
	}

	if _, err := st.SetCompanyInfo(ctx, uuid.New(), scoring.CompanyInfo{
		Sector: "x", Size: "micro", Country: "y",
	}); !errors.Is(err, store.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

// ─── ANSWERS ──────────────────────────────────────────────────────────────────

func TestUpsertAnswer_LastWriteWins(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()
	session := createSession(t, st)

	if err := st.UpsertAnswer(ctx, session.ID, "prod_01", 1); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := st.UpsertAnswer(ctx, session.ID, "prod_01", 4); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	answers, err := st.AnswersBySession(ctx, session.ID)
	if err != nil {
		t.Fatalf("AnswersBySession: %v", err)
	}
	if len(answers) != 1 {
		t.Fatalf("got %d answers, want 1 (upsert must not duplicate)", len(answers))
	}
	if answers[0].Value != 4 {
		t.Errorf("value = %d, want the most recent write (4)", answers[0].Value)
	}
	if answers[0].Category != "product" {
		t.Errorf("category = %q, want the catalog's category for prod_01", answers[0].Category)
	}
}

func TestUpsertAnswer_Validation(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()
	session := createSession(t, st)

	if err := st.UpsertAnswer(ctx, session.ID, "prod_99", 2); !errors.Is(err, catalog.ErrQuestionNotFound) {
		t.Errorf("unknown question: expected ErrQuestionNotFound, got %v", err)
	}
	if err := st.UpsertAnswer(ctx, session.ID, "prod_01", 7); !errors.Is(err, store.ErrInvalidAnswerValue) {
		t.Errorf("out-of-range value: expected ErrInvalidAnswerValue, got %v", err)
	}
	if err := st.UpsertAnswer(ctx, session.ID, "prod_01", -1); !errors.Is(err, store.ErrInvalidAnswerValue) {
		t.Errorf("negative value: expected ErrInvalidAnswerValue, got %v", err)
	}
}

func TestUpsertAnswers_BatchIsAtomic(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()
	session := createSession(t, st)

	batch := []scoring.Answer{
		{QuestionID: "prod_01", Value: 3},
		{QuestionID: "prod_02", Value: 2},
		{QuestionID: "prod_99", Value: 1}, // unknown — must poison the batch
	}
	if err := st.UpsertAnswers(ctx, session.ID, batch); err == nil {
		t.Fatal("expected the batch to fail on the unknown question")
	}

	answers, err := st.AnswersBySession(ctx, session.ID)
	if err != nil {
		t.Fatalf("AnswersBySession: %v", err)
	}
	if len(answers) != 0 {
		t.Errorf("failed batch left %d answers behind, want 0", len(answers))
	}
}

func TestCategoryComplete(t *testing.T) {
	st, cat := openTestStore(t)
	ctx := context.Background()
	session := createSession(t, st)

	questions := cat.QuestionsByCategory("finance")
	for i, q := range questions {
		done, err := st.CategoryComplete(ctx, session.ID, "finance")
		if err != nil {
			t.Fatalf("CategoryComplete: %v", err)
		}
		if done {
			t.Fatalf("category complete after %d of %d answers", i, len(questions))
		}
		if err := st.UpsertAnswer(ctx, session.ID, q.ID, 2); err != nil {
			t.Fatalf("UpsertAnswer(%s): %v", q.ID, err)
		}
	}

	done, err := st.CategoryComplete(ctx, session.ID, "finance")
	if err != nil {
		t.Fatalf("CategoryComplete: %v", err)
	}
	if !done {
		t.Error("category should be complete after answering every question")
	}
}

// ─── RESULTS ──────────────────────────────────────────────────────────────────

func TestSaveResult_RoundTrip(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()
	session := createSession(t, st)

	if _, err := st.Result(ctx, session.ID); !errors.Is(err, store.ErrResultNotFound) {
		t.Fatalf("expected ErrResultNotFound before save, got %v", err)
	}

	if err := st.SaveResult(ctx, session.ID, testResult()); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	stored, err := st.Result(ctx, session.ID)
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if stored.Result.TotalScore != 42.5 || stored.Result.Level != scoring.LevelEarlyStage {
		t.Errorf("snapshot mismatch: %+v", stored.Result)
	}
	if stored.AISummary != "" {
		t.Errorf("fresh result has summary %q", stored.AISummary)
	}

	reloaded, err := st.SessionByID(ctx, session.ID)
	if err != nil {
		t.Fatalf("SessionByID: %v", err)
	}
	if !reloaded.Completed {
		t.Error("session not marked completed after SaveResult")
	}
}

func TestSaveResult_UnknownSession(t *testing.T) {
	st, _ := openTestStore(t)

	err := st.SaveResult(context.Background(), uuid.New(), testResult())
	if !errors.Is(err, store.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestAttachAISummary(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()
	session := createSession(t, st)

	if err := st.AttachAISummary(ctx, session.ID, "resumen"); !errors.Is(err, store.ErrResultNotFound) {
		t.Fatalf("expected ErrResultNotFound without a result, got %v", err)
	}

	if err := st.SaveResult(ctx, session.ID, testResult()); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	if err := st.AttachAISummary(ctx, session.ID, "La empresa está en etapa inicial."); err != nil {
		t.Fatalf("AttachAISummary: %v", err)
	}

	stored, err := st.Result(ctx, session.ID)
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if stored.AISummary != "La empresa está en etapa inicial." {
		t.Errorf("summary = %q", stored.AISummary)
	}

	// Re-completing replaces the snapshot and clears the stale summary.
	if err := st.SaveResult(ctx, session.ID, testResult()); err != nil {
		t.Fatalf("second SaveResult: %v", err)
	}
	stored, err = st.Result(ctx, session.ID)
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if stored.AISummary != "" {
		t.Errorf("summary survived re-completion: %q", stored.AISummary)
	}
}

func TestListResultsMissingSummary(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()

	withSummary := createSession(t, st)
	missing := createSession(t, st)
	failed := createSession(t, st)

	for _, s := range []store.Session{withSummary, missing, failed} {
		if err := st.SaveResult(ctx, s.ID, testResult()); err != nil {
			t.Fatalf("SaveResult: %v", err)
		}
	}
	if err := st.AttachAISummary(ctx, withSummary.ID, "listo"); err != nil {
		t.Fatalf("AttachAISummary: %v", err)
	}
	if err := st.MarkSummaryFailed(ctx, failed.ID, "provider down"); err != nil {
		t.Fatalf("MarkSummaryFailed: %v", err)
	}

	ids, err := st.ListResultsMissingSummary(ctx, 10)
	if err != nil {
		t.Fatalf("ListResultsMissingSummary: %v", err)
	}
	if len(ids) != 1 || ids[0] != missing.ID {
		t.Errorf("got %v, want exactly [%s]", ids, missing.ID)
	}
}

// ─── RESET ────────────────────────────────────────────────────────────────────

func TestResetSession(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()
	session := createSession(t, st)

	if err := st.UpsertAnswer(ctx, session.ID, "prod_01", 3); err != nil {
		t.Fatalf("UpsertAnswer: %v", err)
	}
	if err := st.SaveResult(ctx, session.ID, testResult()); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	if err := st.ResetSession(ctx, session.ID); err != nil {
		t.Fatalf("ResetSession: %v", err)
	}

	answers, err := st.AnswersBySession(ctx, session.ID)
	if err != nil {
		t.Fatalf("AnswersBySession: %v", err)
	}
	if len(answers) != 0 {
		t.Errorf("reset left %d answers", len(answers))
	}

	if _, err := st.Result(ctx, session.ID); !errors.Is(err, store.ErrResultNotFound) {
		t.Errorf("expected ErrResultNotFound after reset, got %v", err)
	}

	reloaded, err := st.SessionByID(ctx, session.ID)
	if err != nil {
		t.Fatalf("SessionByID: %v", err)
	}
	if reloaded.Completed {
		t.Error("session still marked completed after reset")
	}
	if reloaded.AnonToken != session.AnonToken {
		t.Error("reset must keep the session row and token")
	}
}
