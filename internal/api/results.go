package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/exportalisto/backend/internal/scoring"
	"github.com/exportalisto/backend/internal/store"
)

// ─── GET /api/session/:sessionID/progress ────────────────────────────────────

type categoryProgress struct {
	Category     string                `json:"category"`
	CategoryName string                `json:"category_name"`
	Answered     int                   `json:"answered"`
	Total        int                   `json:"total"`
	Complete     bool                  `json:"complete"`
	Score        scoring.CategoryScore `json:"score"`
}

type progressResponse struct {
	Answered       int                `json:"answered"`
	TotalQuestions int                `json:"total_questions"`
	Complete       bool               `json:"complete"`
	Categories     []categoryProgress `json:"categories"`
}

// handleProgress reports per-category completeness plus interim scores.
// Partial answer sets are always valid here: unanswered questions simply
// contribute zero to the interim score.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())

	answers, err := s.store.AnswersBySession(r.Context(), session.ID)
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("load answers: %w", err))
		return
	}

	answered := make(map[string]int) // category → count
	for _, a := range answers {
		answered[a.Category]++
	}

	cats := s.cat.Categories()
	out := make([]categoryProgress, 0, len(cats))
	for _, c := range cats {
		score, err := s.engine.CategoryScore(c.ID, answers)
		if err != nil {
			s.respondInternalErr(w, r, fmt.Errorf("score category %s: %w", c.ID, err))
			return
		}
		total := len(s.cat.QuestionsByCategory(c.ID))
		out = append(out, categoryProgress{
			Category:     c.ID,
			CategoryName: c.Name,
			Answered:     answered[c.ID],
			Total:        total,
			Complete:     answered[c.ID] == total,
			Score:        score,
		})
	}

	respond(w, http.StatusOK, progressResponse{
		Answered:       len(answers),
		TotalQuestions: s.cat.TotalQuestions(),
		Complete:       len(answers) == s.cat.TotalQuestions(),
		Categories:     out,
	})
}

// ─── POST /api/session/:sessionID/complete ───────────────────────────────────

// handleComplete computes the final diagnostic from the stored answers,
// persists it, and enqueues the AI summary job. Answers may be incomplete —
// unanswered questions score zero — but the company profile is a hard
// precondition (412).
//
// Completing again recomputes from the current answers and replaces the
// stored result.
func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())

	answers, err := s.store.AnswersBySession(r.Context(), session.ID)
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("load answers: %w", err))
		return
	}

	result, err := s.engine.Result(answers, session.CompanyInfo())
	if errors.Is(err, scoring.ErrMissingCompanyInfo) {
		respondErr(w, http.StatusPreconditionFailed, "company info must be set before completing the diagnostic")
		return
	}
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("compute result: %w", err))
		return
	}

	if err := s.store.SaveResult(r.Context(), session.ID, result); err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("save result: %w", err))
		return
	}

	// Summary generation is best-effort: a full queue just defers the job to
	// the worker's poller.
	if err := s.worker.Enqueue(r.Context(), session.ID); err != nil {
		s.logger.Warn("complete: could not enqueue summary job",
			"session_id", session.ID,
			"error", err,
		)
	}

	respond(w, http.StatusOK, result)
}

// ─── POST /api/session/:sessionID/reset ──────────────────────────────────────

// handleReset wipes the session's answers and stored result, keeping the
// session row and its token so the client can start over.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())

	if err := s.store.ResetSession(r.Context(), session.ID); err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("reset session: %w", err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ─── GET /api/session/:sessionID/result ──────────────────────────────────────

type resultResponse struct {
	Result    scoring.DiagnosticResult `json:"result"`
	AISummary string                   `json:"ai_summary,omitempty"`
	CreatedAt string                   `json:"created_at"`
}

// handleGetResult serves the stored diagnostic. The AI summary appears once
// the background worker has attached it; clients poll until it is present or
// simply render the result without it.
func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())

	stored, err := s.store.Result(r.Context(), session.ID)
	if errors.Is(err, store.ErrResultNotFound) {
		respondErr(w, http.StatusNotFound, "no result for this session — complete the diagnostic first")
		return
	}
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("load result: %w", err))
		return
	}

	respond(w, http.StatusOK, resultResponse{
		Result:    stored.Result,
		AISummary: stored.AISummary,
		CreatedAt: stored.CreatedAt,
	})
}
