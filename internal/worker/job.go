package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/exportalisto/backend/internal/ai"
	"github.com/exportalisto/backend/internal/store"
)

// Job holds the dependencies for the summary pipeline. Each step is a
// separate method call so the Run method reads like a spec.
type Job struct {
	store   *store.Store
	copilot ai.Copilot
	logger  *slog.Logger
}

// NewJob constructs a Job with all required dependencies.
func NewJob(st *store.Store, copilot ai.Copilot, logger *slog.Logger) *Job {
	return &Job{
		store:   st,
		copilot: copilot,
		logger:  logger,
	}
}

// Run executes the summary pipeline for a single completed diagnostic:
//
//  1. Load the stored result snapshot.
//  2. Call the AI to generate the executive summary.
//  3. Attach the summary to the stored result.
//
// Any error is returned to the Runner, which retries up to MaxRetries times
// before calling store.MarkSummaryFailed. A result that already has a
// summary is a no-op, so duplicate enqueues (channel + poller race) are
// harmless.
func (j *Job) Run(ctx context.Context, sessionID uuid.UUID) error {
	log := j.logger.With("session_id", sessionID)
	log.Info("job: starting")

	stored, err := j.store.Result(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("job: load result: %w", err)
	}

	if stored.AISummary != "" {
		log.Debug("job: summary already present, skipping")
		return nil
	}

	log.Debug("job: loaded result",
		"total_score", stored.Result.TotalScore,
		"level", stored.Result.Level,
		"gaps", len(stored.Result.Gaps),
	)

	summary, err := j.copilot.Summarize(ctx, stored.Result)
	if err != nil {
		return fmt.Errorf("job: generate summary: %w", err)
	}
	if summary == "" {
		return fmt.Errorf("job: model returned empty summary")
	}

	if err := j.store.AttachAISummary(ctx, sessionID, summary); err != nil {
		return fmt.Errorf("job: attach summary: %w", err)
	}

	log.Info("job: summary attached", "chars", len(summary))
	return nil
}
