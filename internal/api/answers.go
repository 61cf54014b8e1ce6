package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/exportalisto/backend/internal/catalog"
	"github.com/exportalisto/backend/internal/scoring"
	"github.com/exportalisto/backend/internal/store"
)

// ─── PUT /api/session/:sessionID/answers ─────────────────────────────────────
//
// Accepts a batch of answers and upserts them atomically. The client sends
// the full current answer set on every navigation (or a partial batch on
// debounce). Upsert means it is safe to replay the same payload; the stored
// value for a question is always the most recently written one.

const maxAnswersPerRequest = 100

type answerInput struct {
	QuestionID string `json:"question_id"`
	Value      int    `json:"value"`
}

type upsertAnswersRequest struct {
	Answers []answerInput `json:"answers"`
}

type upsertAnswersResponse struct {
	Upserted int `json:"upserted"`
}

// handleUpsertAnswers batch-upserts answers for a session. The batch is
// all-or-nothing: an unknown question or out-of-range value rejects the
// whole request with 400 and nothing is written.
func (s *Server) handleUpsertAnswers(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())

	var req upsertAnswersRequest
	if !decode(w, r, &req) {
		return
	}

	if len(req.Answers) == 0 {
		respondErr(w, http.StatusBadRequest, "answers must not be empty")
		return
	}
	if len(req.Answers) > maxAnswersPerRequest {
		respondErr(w, http.StatusBadRequest,
			fmt.Sprintf("too many answers in a single request (max %d)", maxAnswersPerRequest))
		return
	}

	answers := make([]scoring.Answer, len(req.Answers))
	for i, a := range req.Answers {
		if a.QuestionID == "" {
			respondErr(w, http.StatusBadRequest, "each answer must have a non-empty question_id")
			return
		}
		answers[i] = scoring.Answer{QuestionID: a.QuestionID, Value: a.Value}
	}

	if err := s.store.UpsertAnswers(r.Context(), session.ID, answers); err != nil {
		switch {
		case errors.Is(err, catalog.ErrQuestionNotFound):
			respondErr(w, http.StatusBadRequest, "unknown question_id")
		case errors.Is(err, store.ErrInvalidAnswerValue):
			respondErr(w, http.StatusBadRequest, "answer value is not a valid option for the question")
		default:
			s.respondInternalErr(w, r, fmt.Errorf("upsert answers: %w", err))
		}
		return
	}

	respond(w, http.StatusOK, upsertAnswersResponse{Upserted: len(answers)})
}
