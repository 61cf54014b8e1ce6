// Package api implements the HTTP layer for the ExportaListo diagnostic.
// Handlers are methods on *Server. Each handler file is responsible for one
// resource group and only imports the dependencies it actually uses.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/exportalisto/backend/internal/ai"
	"github.com/exportalisto/backend/internal/catalog"
	"github.com/exportalisto/backend/internal/scoring"
	"github.com/exportalisto/backend/internal/store"
	"github.com/exportalisto/backend/internal/worker"
)

// Config holds values read from environment variables at startup.
type Config struct {
	// Env is "production", "staging", or "development".
	Env string

	// AllowedOrigins is the CORS allow-list for the frontend.
	AllowedOrigins []string

	// ChatRateLimit / ChatRateWindow bound the copilot endpoint per client IP.
	ChatRateLimit  int
	ChatRateWindow time.Duration
}

// Server holds all shared dependencies. Each handler file attaches methods to
// this type and uses only the fields it needs.
type Server struct {
	// store handles all session, answer, and result persistence.
	store *store.Store

	// cat is the immutable question catalog, used for progress reporting.
	cat *catalog.Catalog

	// engine computes category scores and the final diagnostic.
	engine *scoring.Engine

	// copilot proxies chat requests to the AI provider. Nil when no provider
	// is configured; the chat endpoint then answers 503.
	copilot ai.Copilot

	// worker enqueues summary jobs after a diagnostic is completed.
	worker worker.Enqueuer

	limiter *rateLimiter
	cfg     Config
	logger  *slog.Logger
}

// NewServer constructs the Server and wires the chi router. The returned
// http.Handler is ready to pass to http.ListenAndServe.
func NewServer(
	st *store.Store,
	cat *catalog.Catalog,
	engine *scoring.Engine,
	copilot ai.Copilot,
	enqueuer worker.Enqueuer,
	cfg Config,
	logger *slog.Logger,
) http.Handler {
	s := &Server{
		store:   st,
		cat:     cat,
		engine:  engine,
		copilot: copilot,
		worker:  enqueuer,
		limiter: newRateLimiter(cfg.ChatRateLimit, cfg.ChatRateWindow),
		cfg:     cfg,
		logger:  logger,
	}

	return s.routes()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	// ── Global middleware ─────────────────────────────────────────────────────
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Anon-Token", "X-Request-ID"},
		MaxAge:         86400,
	}).Handler)
	r.Use(middleware.Timeout(60 * time.Second))

	// ── Health ────────────────────────────────────────────────────────────────
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// ── API ───────────────────────────────────────────────────────────────────
	r.Route("/api", func(r chi.Router) {

		// Session creation — no auth required (anonymous).
		r.Post("/session", s.handleCreateSession)

		// Session-scoped routes — require valid anon token header.
		r.Route("/session/{sessionID}", func(r chi.Router) {
			r.Use(s.requireAnonToken)
			r.Patch("/company", s.handleSetCompany)
			r.Put("/answers", s.handleUpsertAnswers)
			r.Get("/progress", s.handleProgress)
			r.Post("/complete", s.handleComplete)
			r.Post("/reset", s.handleReset)
			r.Get("/result", s.handleGetResult)
		})

		// Copilot chat — no session auth, rate limited per IP inside the handler.
		r.Post("/chat", s.handleChat)
	})

	return r
}
