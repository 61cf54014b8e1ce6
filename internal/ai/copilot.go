// Package ai defines the export copilot interface and provides an
// OpenAI-compatible implementation used both for interactive chat and for
// the asynchronous executive summary attached to diagnostic results.
package ai

import (
	"context"
	"errors"

	"github.com/exportalisto/backend/internal/scoring"
)

// Mode selects the copilot persona. Each mode carries its own system prompt.
type Mode string

const (
	ModeDocumentReview Mode = "documentReview"
	ModeProposalWriter Mode = "proposalWriter"
	ModeMarketResearch Mode = "marketResearch"
)

// ErrUnknownMode is returned when a chat request names a mode with no
// registered system prompt.
var ErrUnknownMode = errors.New("ai: unknown copilot mode")

// systemPrompts maps each mode to its persona instructions. The copilot is
// aimed at Peruvian MYPEs, so every persona answers in Spanish.
var systemPrompts = map[Mode]string{
	ModeDocumentReview: `Eres un experto en comercio exterior peruano. Tu rol es revisar documentos comerciales
para exportación y asegurar que sean profesionales, claros y cumplan con estándares internacionales.
Responde siempre en español. Sé conciso y práctico.`,

	ModeProposalWriter: `Eres un redactor experto en propuestas comerciales para exportación desde Perú.
Ayudas a MYPEs a escribir correos, propuestas y comunicaciones profesionales para compradores internacionales.
Usa un tono profesional pero accesible. Responde en español.`,

	ModeMarketResearch: `Eres un analista de mercados internacionales especializado en productos peruanos.
Ayudas a identificar oportunidades, analizar competencia y entender requisitos de mercados destino.
Basa tus respuestas en conocimiento actualizado de comercio internacional.`,
}

// SystemPrompt returns the persona prompt for mode, or ErrUnknownMode.
func SystemPrompt(mode Mode) (string, error) {
	p, ok := systemPrompts[mode]
	if !ok {
		return "", ErrUnknownMode
	}
	return p, nil
}

// Message is one turn of a copilot conversation. Role is "user" or
// "assistant"; the system turn is injected server-side from the mode.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StreamFunc receives each text delta of a streaming chat response. Returning
// a non-nil error aborts the stream.
type StreamFunc func(delta string) error

// Copilot is the interface the API and worker use to talk to the model.
// Tests inject a stub that returns canned responses.
type Copilot interface {
	// Chat sends one conversation turn and returns the full assistant reply.
	// history carries prior turns oldest-first; implementations truncate it
	// to a bounded window before sending.
	//
	// Implementations must be safe to call concurrently.
	Chat(ctx context.Context, mode Mode, message string, history []Message) (string, error)

	// ChatStream is Chat with incremental delivery: fn is called once per
	// text delta as the model produces it.
	ChatStream(ctx context.Context, mode Mode, message string, history []Message, fn StreamFunc) error

	// Summarize produces a short Spanish executive summary of a completed
	// diagnostic result. A non-nil error means no summary could be
	// generated; the result stays valid without one.
	Summarize(ctx context.Context, result scoring.DiagnosticResult) (string, error)
}
