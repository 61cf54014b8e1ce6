package ai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/exportalisto/backend/internal/scoring"
)

// fallbackCopilot wraps two Copilot implementations. It calls the primary
// first; if that returns an error it logs the failure and tries the
// secondary. This gives you OpenAI as the default with DeepSeek as the
// safety net (or vice versa — the choice is made in main.go).
type fallbackCopilot struct {
	primary   Copilot
	secondary Copilot
	logger    *slog.Logger
}

// NewFallbackCopilot returns a Copilot that calls primary and, on failure,
// falls back to secondary. One of the two may be nil — if primary is nil it
// goes straight to secondary; if secondary is nil and primary fails, the
// primary error is returned directly. Both nil is a wiring bug and panics;
// callers with no provider at all should use a nil Copilot instead.
func NewFallbackCopilot(primary, secondary Copilot, logger *slog.Logger) Copilot {
	if primary == nil && secondary == nil {
		panic("ai: fallback copilot requires at least one provider")
	}
	return &fallbackCopilot{
		primary:   primary,
		secondary: secondary,
		logger:    logger,
	}
}

func (f *fallbackCopilot) Chat(ctx context.Context, mode Mode, message string, history []Message) (string, error) {
	if f.primary != nil {
		reply, err := f.primary.Chat(ctx, mode, message, history)
		if err == nil {
			return reply, nil
		}
		f.logger.Warn("ai: primary copilot failed, trying secondary",
			"op", "chat",
			"mode", mode,
			"error", err,
		)
		if f.secondary == nil {
			return "", fmt.Errorf("ai: primary failed and no secondary configured: %w", err)
		}
	}
	return f.secondary.Chat(ctx, mode, message, history)
}

// ChatStream does not fall back mid-stream: once the primary has emitted any
// delta the client has seen partial output, so a secondary retry happens only
// when the stream failed to produce anything at all.
func (f *fallbackCopilot) ChatStream(ctx context.Context, mode Mode, message string, history []Message, fn StreamFunc) error {
	if f.primary != nil {
		emitted := false
		err := f.primary.ChatStream(ctx, mode, message, history, func(delta string) error {
			emitted = true
			return fn(delta)
		})
		if err == nil || emitted {
			return err
		}
		f.logger.Warn("ai: primary copilot failed, trying secondary",
			"op", "chat_stream",
			"mode", mode,
			"error", err,
		)
		if f.secondary == nil {
			return fmt.Errorf("ai: primary failed and no secondary configured: %w", err)
		}
	}
	return f.secondary.ChatStream(ctx, mode, message, history, fn)
}

func (f *fallbackCopilot) Summarize(ctx context.Context, result scoring.DiagnosticResult) (string, error) {
	if f.primary != nil {
		summary, err := f.primary.Summarize(ctx, result)
		if err == nil {
			return summary, nil
		}
		f.logger.Warn("ai: primary copilot failed, trying secondary",
			"op", "summarize",
			"error", err,
		)
		if f.secondary == nil {
			return "", fmt.Errorf("ai: primary failed and no secondary configured: %w", err)
		}
	}
	return f.secondary.Summarize(ctx, result)
}
