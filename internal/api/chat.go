package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/exportalisto/backend/internal/ai"
)

// ─── POST /api/chat ──────────────────────────────────────────────────────────
//
// Copilot proxy. No session auth — the endpoint is public and guarded by a
// per-IP rate limit, matching how an API key proxy for an anonymous frontend
// has to work.

const maxChatMessageLen = 10000

type chatRequest struct {
	Mode                ai.Mode      `json:"mode"`
	Message             string       `json:"message"`
	ConversationHistory []ai.Message `json:"conversation_history,omitempty"`
	Stream              bool         `json:"stream,omitempty"`
}

type chatResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.copilot == nil {
		respondErr(w, http.StatusServiceUnavailable, "AI service not configured")
		return
	}

	if !s.limiter.allow(clientIP(r)) {
		respond(w, http.StatusTooManyRequests, map[string]any{
			"error":       "Too many requests. Please wait a moment.",
			"retry_after": int(s.cfg.ChatRateWindow.Seconds()),
		})
		return
	}

	var req chatRequest
	if !decode(w, r, &req) {
		return
	}

	if _, err := ai.SystemPrompt(req.Mode); err != nil {
		respondErr(w, http.StatusBadRequest, "invalid mode")
		return
	}
	if req.Message == "" || len(req.Message) > maxChatMessageLen {
		respondErr(w, http.StatusBadRequest, "invalid message")
		return
	}
	for _, m := range req.ConversationHistory {
		if m.Role != "user" && m.Role != "assistant" {
			respondErr(w, http.StatusBadRequest, "history roles must be user or assistant")
			return
		}
	}

	if req.Stream {
		s.streamChat(w, r, req)
		return
	}

	reply, err := s.copilot.Chat(r.Context(), req.Mode, req.Message, req.ConversationHistory)
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("chat: %w", err))
		return
	}

	respond(w, http.StatusOK, chatResponse{Success: true, Message: reply})
}

// streamChat relays the model's deltas as server-sent events:
// one `data: {"content": …}` line per delta, then `data: [DONE]`.
func (s *Server) streamChat(w http.ResponseWriter, r *http.Request, req chatRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondErr(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	err := s.copilot.ChatStream(r.Context(), req.Mode, req.Message, req.ConversationHistory,
		func(delta string) error {
			payload, err := json.Marshal(map[string]string{"content": delta})
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return err
			}
			flusher.Flush()
			return nil
		})
	if err != nil && !errors.Is(err, r.Context().Err()) {
		// Headers are already sent; surface the failure in-band.
		s.logger.Error("chat: stream failed", "error", err)
		fmt.Fprintf(w, "data: {\"error\": \"stream interrupted\"}\n\n")
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// clientIP returns the caller's IP. middleware.RealIP has already rewritten
// RemoteAddr from X-Forwarded-For / X-Real-IP when behind a proxy.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
