// Package config loads and validates all environment variables at startup.
// Every other package receives typed values — nothing reads os.Getenv directly.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the fully-parsed application configuration.
type Config struct {
	// ── Server ────────────────────────────────────────────────────────────────
	Port           string   // default "8080"
	Env            string   // "development" | "staging" | "production"
	AllowedOrigins []string // CORS allow-list; default localhost dev origins

	// ── Database ──────────────────────────────────────────────────────────────
	DBPath string // SQLite file path, default "exportalisto.db"

	// ── OpenAI ────────────────────────────────────────────────────────────────
	// Primary copilot provider. When OPENAI_API_KEY is empty and no DeepSeek
	// key is set either, chat endpoints answer 503 and results keep their
	// static content with no AI summary.
	OpenAIAPIKey string
	OpenAIModel  string // default "gpt-4o-mini"

	// ── DeepSeek ──────────────────────────────────────────────────────────────
	// Optional. When set, DeepSeek is used as the fallback if the OpenAI call
	// fails (or as the only provider when OPENAI_API_KEY is empty).
	DeepSeekAPIKey string
	DeepSeekModel  string // default "deepseek-chat"

	// ── Chat rate limit ───────────────────────────────────────────────────────
	ChatRateLimit  int           // requests per window per IP, default 20
	ChatRateWindow time.Duration // default 1m

	// ── Worker ────────────────────────────────────────────────────────────────
	WorkerCount  int           // default 2
	PollInterval time.Duration // default 30s
	JobTimeout   time.Duration // default 2m
	MaxRetries   int           // default 3
}

// AIConfigured reports whether at least one copilot provider has a key.
func (c *Config) AIConfigured() bool {
	return c.OpenAIAPIKey != "" || c.DeepSeekAPIKey != ""
}

// Load reads all environment variables and returns a validated Config.
// It automatically loads a .env file from the working directory when present,
// so plain `go run ./cmd/api` works in development without any wrapper.
// Real environment variables always take precedence over .env values.
func Load() (*Config, error) {
	loadDotEnv(".env")

	c := &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")),
		DBPath:         getEnv("DB_PATH", "exportalisto.db"),
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		DeepSeekAPIKey: os.Getenv("DEEPSEEK_API_KEY"),
		DeepSeekModel:  getEnv("DEEPSEEK_MODEL", "deepseek-chat"),
		ChatRateLimit:  getEnvAsInt("CHAT_RATE_LIMIT", 20),
		ChatRateWindow: getEnvAsDuration("CHAT_RATE_WINDOW", time.Minute),
		WorkerCount:    getEnvAsInt("WORKER_COUNT", 2),
		PollInterval:   getEnvAsDuration("POLL_INTERVAL", 30*time.Second),
		JobTimeout:     getEnvAsDuration("JOB_TIMEOUT", 2*time.Minute),
		MaxRetries:     getEnvAsInt("MAX_RETRIES", 3),
	}

	return c, c.validate()
}

func (c *Config) validate() error {
	var errs []error

	if c.DBPath == "" {
		errs = append(errs, fmt.Errorf("DB_PATH must not be empty"))
	}
	if c.ChatRateLimit <= 0 {
		errs = append(errs, fmt.Errorf("CHAT_RATE_LIMIT must be positive, got %d", c.ChatRateLimit))
	}
	if c.ChatRateWindow <= 0 {
		errs = append(errs, fmt.Errorf("CHAT_RATE_WINDOW must be positive, got %s", c.ChatRateWindow))
	}

	// The AI providers are optional: the diagnostic works fully without them.
	// Warn-level handling for the degraded mode happens in main.

	switch c.Env {
	case "development", "staging", "production":
	default:
		errs = append(errs, fmt.Errorf("ENV must be development, staging, or production, got %q", c.Env))
	}

	return errors.Join(errs...)
}

// ─── DOT-ENV LOADER ──────────────────────────────────────────────────────────

// loadDotEnv reads key=value pairs from path and sets them in the environment,
// but only for keys that are not already set. This means real env vars (e.g.
// from Docker / Railway / your shell) always win over the file.
// Missing file, blank lines, and #-comments are all silently ignored.
func loadDotEnv(path string) {
	f, err := os.Open(path)
	if err != nil {
		return // file absent — that's fine
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		// Strip optional surrounding quotes: KEY="value" or KEY='value'
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}
		// Only set if the key isn't already present in the environment.
		if os.Getenv(key) == "" {
			_ = os.Setenv(key, value)
		}
	}
}

// ─── HELPERS ─────────────────────────────────────────────────────────────────

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	// Try a plain integer first, treated as seconds.
	if value, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(value) * time.Second
	}
	// Fall back to Go duration syntax: "30s", "5m", "1h", etc.
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	return defaultValue
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
