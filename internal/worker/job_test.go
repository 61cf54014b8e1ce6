package worker_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/exportalisto/backend/internal/ai"
	"github.com/exportalisto/backend/internal/catalog"
	"github.com/exportalisto/backend/internal/scoring"
	"github.com/exportalisto/backend/internal/store"
	"github.com/exportalisto/backend/internal/worker"
)

type stubCopilot struct {
	summary string
	err     error
	calls   int
}

func (s *stubCopilot) Chat(ctx context.Context, mode ai.Mode, message string, history []ai.Message) (string, error) {
	return "", errors.New("not used")
}

func (s *stubCopilot) ChatStream(ctx context.Context, mode ai.Mode, message string, history []ai.Message, fn ai.StreamFunc) error {
	return errors.New("not used")
}

func (s *stubCopilot) Summarize(ctx context.Context, result scoring.DiagnosticResult) (string, error) {
	s.calls++
	return s.summary, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStore(t *testing.T) *store.Store {
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
	return st
}

func completedSession(t *testing.T, st *store.Store) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	session, err := st.CreateSession(ctx, "token-"+uuid.NewString())
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	result := scoring.DiagnosticResult{
		TotalScore: 65.3,
		Level:      scoring.LevelDeveloping,
		CompanyInfo: scoring.CompanyInfo{
			Sector: "agro", Size: "small", Country: "EEUU",
		},
	}
	if err := st.SaveResult(ctx, session.ID, result); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	return session.ID
}

func TestJobRun_AttachesSummary(t *testing.T) {
	st := openTestStore(t)
	sessionID := completedSession(t, st)
	copilot := &stubCopilot{summary: "La empresa muestra un nivel intermedio de preparación."}
	job := worker.NewJob(st, copilot, discardLogger())

	if err := job.Run(context.Background(), sessionID); err != nil {
		t.Fatalf("Run: %v", err)
	}

	stored, err := st.Result(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if stored.AISummary != copilot.summary {
		t.Errorf("summary = %q, want %q", stored.AISummary, copilot.summary)
	}
}

func TestJobRun_SkipsWhenSummaryPresent(t *testing.T) {
	st := openTestStore(t)
	sessionID := completedSession(t, st)
	if err := st.AttachAISummary(context.Background(), sessionID, "ya listo"); err != nil {
		t.Fatalf("AttachAISummary: %v", err)
	}

	copilot := &stubCopilot{summary: "nuevo"}
	job := worker.NewJob(st, copilot, discardLogger())

	if err := job.Run(context.Background(), sessionID); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if copilot.calls != 0 {
		t.Errorf("model called %d times for an already-summarized result", copilot.calls)
	}

	stored, err := st.Result(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if stored.AISummary != "ya listo" {
		t.Errorf("existing summary was overwritten: %q", stored.AISummary)
	}
}

func TestJobRun_ModelFailure(t *testing.T) {
	st := openTestStore(t)
	sessionID := completedSession(t, st)
	job := worker.NewJob(st, &stubCopilot{err: errors.New("provider down")}, discardLogger())

	if err := job.Run(context.Background(), sessionID); err == nil {
		t.Fatal("expected the model error to propagate")
	}
}

func TestJobRun_EmptySummaryIsAnError(t *testing.T) {
	st := openTestStore(t)
	sessionID := completedSession(t, st)
	job := worker.NewJob(st, &stubCopilot{summary: ""}, discardLogger())

	if err := job.Run(context.Background(), sessionID); err == nil {
		t.Fatal("an empty model reply must not be attached as a summary")
	}
}

func TestJobRun_ResultGone(t *testing.T) {
	st := openTestStore(t)
	job := worker.NewJob(st, &stubCopilot{summary: "x"}, discardLogger())

	err := job.Run(context.Background(), uuid.New())
	if !errors.Is(err, store.ErrResultNotFound) {
		t.Errorf("expected ErrResultNotFound, got %v", err)
	}
}

func TestEnqueue_DropsWhenQueueFull(t *testing.T) {
	st := openTestStore(t)
	job := worker.NewJob(st, &stubCopilot{summary: "x"}, discardLogger())

	cfg := worker.DefaultRunnerConfig()
	cfg.Workers = 1
	runner := worker.NewRunner(job, st, cfg, discardLogger())

	// The runner is never started, so the buffered queue (Workers*2 slots)
	// eventually fills and Enqueue must fail fast instead of blocking the
	// HTTP handler.
	var full bool
	for i := 0; i < 10; i++ {
		if err := runner.Enqueue(context.Background(), uuid.New()); err != nil {
			full = true
			break
		}
	}
	if !full {
		t.Error("Enqueue never reported a full queue")
	}
}
