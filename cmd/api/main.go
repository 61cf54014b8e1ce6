package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/exportalisto/backend/internal/ai"
	"github.com/exportalisto/backend/internal/api"
	"github.com/exportalisto/backend/internal/catalog"
	"github.com/exportalisto/backend/internal/config"
	"github.com/exportalisto/backend/internal/scoring"
	"github.com/exportalisto/backend/internal/store"
	"github.com/exportalisto/backend/internal/worker"
)

func main() {
	// ── Logger ────────────────────────────────────────────────────────────────
	// JSON in production, pretty text in development.
	var logger *slog.Logger
	if os.Getenv("ENV") == "production" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	// ── Config ────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger.Info("config loaded", "env", cfg.Env, "port", cfg.Port, "db_path", cfg.DBPath)

	// ── Catalog ───────────────────────────────────────────────────────────────
	// Embedded reference data, validated once here. A broken catalog is a
	// build artifact problem and must refuse to start.
	cat, err := catalog.Load()
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	logger.Info("catalog loaded",
		"categories", len(cat.Categories()),
		"questions", cat.TotalQuestions(),
		"gap_templates", len(cat.GapTemplates()),
	)

	// ── Store (sqlite) ────────────────────────────────────────────────────────
	st, err := store.Open(cfg.DBPath, cat)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer st.Close()
	logger.Info("store opened")

	// ── Scoring engine ────────────────────────────────────────────────────────
	engine := scoring.New(cat)

	// ── AI ────────────────────────────────────────────────────────────────────
	// OpenAI is primary. DeepSeek is the fallback when DEEPSEEK_API_KEY is
	// also set. With neither key the copilot stays nil: chat answers 503 and
	// results simply carry no summary.
	var copilot ai.Copilot
	switch {
	case cfg.OpenAIAPIKey != "" && cfg.DeepSeekAPIKey != "":
		primary := ai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, "")
		secondary := ai.NewClient(cfg.DeepSeekAPIKey, cfg.DeepSeekModel, "https://api.deepseek.com/v1")
		copilot = ai.NewFallbackCopilot(primary, secondary, logger)
		logger.Info("ai: using OpenAI with DeepSeek fallback")
	case cfg.OpenAIAPIKey != "":
		copilot = ai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, "")
		logger.Info("ai: using OpenAI only")
	case cfg.DeepSeekAPIKey != "":
		copilot = ai.NewClient(cfg.DeepSeekAPIKey, cfg.DeepSeekModel, "https://api.deepseek.com/v1")
		logger.Info("ai: using DeepSeek only")
	default:
		logger.Warn("ai: no provider configured — chat disabled, summaries skipped")
	}

	// ── Worker ────────────────────────────────────────────────────────────────
	var enqueuer worker.Enqueuer = worker.NopEnqueuer{}
	var runner *worker.Runner
	if copilot != nil {
		job := worker.NewJob(st, copilot, logger)
		runner = worker.NewRunner(job, st, worker.RunnerConfig{
			Workers:      cfg.WorkerCount,
			PollInterval: cfg.PollInterval,
			JobTimeout:   cfg.JobTimeout,
			MaxRetries:   cfg.MaxRetries,
		}, logger)
		enqueuer = runner
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	handler := api.NewServer(
		st,
		cat,
		engine,
		copilot,
		enqueuer,
		api.Config{
			Env:            cfg.Env,
			AllowedOrigins: cfg.AllowedOrigins,
			ChatRateLimit:  cfg.ChatRateLimit,
			ChatRateWindow: cfg.ChatRateWindow,
		},
		logger,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second, // generous — SSE chat streams stay open
		IdleTimeout:  120 * time.Second,
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	// Root context cancelled by OS signal. Worker and HTTP server both respect it.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start the worker pool in a background goroutine. It blocks until ctx is done.
	if runner != nil {
		go runner.Start(ctx)
	}

	// Start the HTTP server in a background goroutine.
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until either a signal arrives or the server dies unexpectedly.
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	// Give in-flight HTTP requests up to 20 seconds to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}
