package api

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/exportalisto/backend/internal/scoring"
)

// ─── POST /api/session ────────────────────────────────────────────────────────

type createSessionResponse struct {
	SessionID string `json:"session_id"`
	AnonToken string `json:"anon_token"`
}

// handleCreateSession creates an anonymous session for a new visitor.
// Called once when the assessment first loads.
//
// The anon_token is returned to the client and sent as X-Anon-Token on all
// subsequent session-scoped requests.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	// Generate a cryptographically random token. 32 bytes → 64 hex chars.
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("generate anon token: %w", err))
		return
	}
	anonToken := hex.EncodeToString(tokenBytes)

	session, err := s.store.CreateSession(r.Context(), anonToken)
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("create session: %w", err))
		return
	}

	respond(w, http.StatusCreated, createSessionResponse{
		SessionID: session.ID.String(),
		AnonToken: anonToken,
	})
}

// ─── PATCH /api/session/:sessionID/company ────────────────────────────────────

type setCompanyRequest struct {
	Name    string `json:"name"`
	Sector  string `json:"sector"`
	Size    string `json:"size"`
	Country string `json:"country"`
}

type setCompanyResponse struct {
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
	Sector    string `json:"sector"`
	Size      string `json:"size"`
	Country   string `json:"country"`
}

var validCompanySizes = map[string]bool{
	"micro":  true,
	"small":  true,
	"medium": true,
}

// handleSetCompany persists the company profile from the wizard's first step.
// The route is protected by requireAnonToken middleware, so the session in
// the URL is already verified to belong to the token sender.
func (s *Server) handleSetCompany(w http.ResponseWriter, r *http.Request) {
	session := sessionFromContext(r.Context())

	var req setCompanyRequest
	if !decode(w, r, &req) {
		return
	}

	req.Sector = strings.TrimSpace(req.Sector)
	req.Size = strings.TrimSpace(req.Size)
	req.Country = strings.TrimSpace(req.Country)

	if req.Sector == "" || req.Size == "" || req.Country == "" {
		respondErr(w, http.StatusBadRequest, "sector, size, and country are required")
		return
	}
	if !validCompanySizes[req.Size] {
		respondErr(w, http.StatusBadRequest, "size must be one of: micro, small, medium")
		return
	}

	updated, err := s.store.SetCompanyInfo(r.Context(), session.ID, scoring.CompanyInfo{
		Name:    strings.TrimSpace(req.Name),
		Sector:  req.Sector,
		Size:    req.Size,
		Country: req.Country,
	})
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("set company info: %w", err))
		return
	}

	respond(w, http.StatusOK, setCompanyResponse{
		SessionID: updated.ID.String(),
		Name:      updated.CompanyName,
		Sector:    updated.Sector,
		Size:      updated.Size,
		Country:   updated.Country,
	})
}
