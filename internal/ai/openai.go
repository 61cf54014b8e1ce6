package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/exportalisto/backend/internal/scoring"
)

const (
	// historyLimit bounds the conversation window sent to the model.
	historyLimit = 10

	chatMaxTokens    = 1000
	summaryMaxTokens = 512
	temperature      = 0.7
)

// summarySystemPrompt drives the asynchronous executive summary. Kept apart
// from the chat personas because it answers a diagnostic, not a user.
const summarySystemPrompt = `Eres un consultor de comercio exterior peruano. Recibirás el resultado de un
diagnóstico de preparación exportadora de una MYPE: puntaje total, nivel, puntajes por categoría y brechas
detectadas. Escribe un resumen ejecutivo de 2 a 4 oraciones en español: estado general, la brecha más urgente
y el siguiente paso concreto. Sé directo y específico. Sin listas, sin formato, solo texto plano.`

// client is the concrete Copilot backed by any OpenAI-compatible chat API.
// With the default base URL it talks to OpenAI; pointing baseURL at
// https://api.deepseek.com/v1 gives the DeepSeek safety net the same code path.
type client struct {
	api   *openai.Client
	model string
}

// NewClient returns a Copilot that calls an OpenAI-compatible API.
//   - apiKey:  the provider key
//   - model:   e.g. "gpt-4o-mini" or "deepseek-chat"
//   - baseURL: empty for api.openai.com, or a compatible endpoint
func NewClient(apiKey, model, baseURL string) Copilot {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &client{
		api:   openai.NewClientWithConfig(cfg),
		model: model,
	}
}

// ─── CHAT ────────────────────────────────────────────────────────────────────

func (c *client) Chat(ctx context.Context, mode Mode, message string, history []Message) (string, error) {
	msgs, err := buildMessages(mode, message, history)
	if err != nil {
		return "", err
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: temperature,
		MaxTokens:   chatMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("ai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("ai: no response from model")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *client) ChatStream(ctx context.Context, mode Mode, message string, history []Message, fn StreamFunc) error {
	msgs, err := buildMessages(mode, message, history)
	if err != nil {
		return err
	}

	stream, err := c.api.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: temperature,
		MaxTokens:   chatMaxTokens,
		Stream:      true,
	})
	if err != nil {
		return fmt.Errorf("ai: open chat stream: %w", err)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("ai: read chat stream: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			if err := fn(delta); err != nil {
				return err
			}
		}
	}
}

// buildMessages assembles the system prompt, a bounded slice of history, and
// the new user turn into the wire message list.
func buildMessages(mode Mode, message string, history []Message) ([]openai.ChatCompletionMessage, error) {
	system, err := SystemPrompt(mode)
	if err != nil {
		return nil, err
	}

	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: system,
	})
	for _, m := range history {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: message,
	})
	return msgs, nil
}

// ─── SUMMARY ─────────────────────────────────────────────────────────────────

func (c *client) Summarize(ctx context.Context, result scoring.DiagnosticResult) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: temperature,
		MaxTokens:   summaryMaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: summarySystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildSummaryPrompt(result)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("ai: summarize: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("ai: no summary from model")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// buildSummaryPrompt serialises the diagnostic into a compact prompt string.
func buildSummaryPrompt(result scoring.DiagnosticResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Puntaje total: %.1f/100 (nivel: %s — %s)\n", result.TotalScore, result.Level, result.LevelLabel)
	if result.CompanyInfo.Sector != "" {
		fmt.Fprintf(&sb, "Empresa: sector %s, tamaño %s, país destino %s\n",
			result.CompanyInfo.Sector, result.CompanyInfo.Size, result.CompanyInfo.Country)
	}

	sb.WriteString("\nPuntajes por categoría:\n")
	for _, cs := range result.CategoryScores {
		fmt.Fprintf(&sb, "- %s: %.0f%% (%s)\n", cs.CategoryName, cs.Percentage, cs.Level)
	}

	if len(result.Gaps) > 0 {
		sb.WriteString("\nBrechas detectadas (ordenadas por severidad):\n")
		for _, g := range result.Gaps {
			fmt.Fprintf(&sb, "- [%s] %s: %s\n", g.Severity, g.Title, g.Description)
		}
	} else {
		sb.WriteString("\nSin brechas detectadas.\n")
	}

	return sb.String()
}
