// Package server is the HTTP API and websocket front of oddsbot.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alanyoungcy/oddsbot/internal/domain"
	"github.com/alanyoungcy/oddsbot/internal/metrics"
	"github.com/alanyoungcy/oddsbot/internal/server/handler"
	"github.com/alanyoungcy/oddsbot/internal/server/middleware"
	"github.com/alanyoungcy/oddsbot/internal/server/ws"
)

// WebhookPath is where Telegram delivers updates in webhook mode.
const WebhookPath = "/telegram/webhook"

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	// APIKey protects /api/* except health checks. Empty disables auth.
	APIKey string
	// RateLimit is requests per RateWindow per client IP. Zero disables it.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates the HTTP handlers. Nil members are not mounted.
type Handlers struct {
	Health   *handler.HealthHandler
	Status   *handler.StatusHandler
	Turn     *handler.TurnHandler
	Arb      *handler.ArbHandler
	Analysis *handler.AnalysisHandler
	// Webhook receives Telegram updates at WebhookPath.
	Webhook http.Handler
}

// Deps are the optional collaborators of the server.
type Deps struct {
	Hub      *ws.Hub
	Limiter  domain.RateLimiter
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

// Server is the HTTP + websocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and wraps the mux in the middleware chain.
func NewServer(cfg Config, h Handlers, deps Deps, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           Routes(cfg, h, deps, logger),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			// Analyses can take the full prediction timeout.
			WriteTimeout: 90 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Routes builds the handler tree.
func Routes(cfg Config, h Handlers, deps Deps, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	if h.Health != nil {
		mux.HandleFunc("GET /api/health", h.Health.HealthCheck)
		mux.HandleFunc("GET /api/ready", h.Health.Ready)
	}
	if h.Status != nil {
		mux.HandleFunc("GET /api/status", h.Status.GetStatus)
	}
	if h.Turn != nil {
		mux.HandleFunc("POST /api/turn", h.Turn.HandleTurn)
	}
	if h.Arb != nil {
		mux.HandleFunc("GET /api/arbitrage/recent", h.Arb.ListRecent)
		mux.HandleFunc("POST /api/arbitrage/scan", h.Arb.Scan)
		mux.HandleFunc("GET /api/arbitrage/sports/{sport}", h.Arb.ListBySport)
	}
	if h.Analysis != nil {
		mux.HandleFunc("GET /api/analysis/{id}", h.Analysis.Get)
		mux.HandleFunc("GET /api/events/{id}/analyses", h.Analysis.ListByEvent)
		mux.HandleFunc("GET /api/archive", h.Analysis.ListArchive)
		mux.HandleFunc("GET /api/archive/object", h.Analysis.GetArchived)
	}
	if h.Webhook != nil {
		mux.Handle("POST "+WebhookPath, h.Webhook)
	}
	if deps.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}
	if deps.Hub != nil {
		mux.HandleFunc("GET /ws", deps.Hub.HandleWS)
	}

	var root http.Handler = mux
	root = middleware.Auth(cfg.APIKey, "/api/health", "/api/ready", WebhookPath, "/metrics")(root)
	root = middleware.RateLimit(deps.Limiter, cfg.RateLimit, cfg.RateWindow, logger)(root)
	root = middleware.Logging(logger, deps.Metrics)(root)
	root = middleware.CORS(cfg.CORSOrigins)(root)
	return root
}

// Start listens until the server fails or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown waits for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
