// Package http exposes the summaries over a JSON REST API together with
// health probes and the Prometheus endpoint.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eyd-portfolio/portfolio-analytics/config"
	"github.com/eyd-portfolio/portfolio-analytics/internal/application/command"
	"github.com/eyd-portfolio/portfolio-analytics/internal/application/query"
	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/catalog"
	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/survey"
	"github.com/eyd-portfolio/portfolio-analytics/internal/interface/http/handlers"
	"github.com/eyd-portfolio/portfolio-analytics/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds listener and request limits.
type Config struct {
	Host string
	Port int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// RequestTimeout bounds the work of one API request.
	RequestTimeout time.Duration

	MaxHeaderBytes int

	// APIKeyHeader names the header carrying the API key. Bearer tokens in
	// Authorization are accepted as well.
	APIKeyHeader string

	// APIKeyHashes are bcrypt hashes of the accepted keys. Empty disables auth.
	APIKeyHashes []string

	// Version is reported by the root and health endpoints.
	Version string
}

// DefaultConfig returns the settings used by cmd/api when nothing is set.
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    60 * time.Second,
		RequestTimeout: 20 * time.Second,
		MaxHeaderBytes: 1 << 20,
		APIKeyHeader:   "X-API-Key",
		Version:        "v1",
	}
}

// Address returns host:port.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, fmt.Sprint(c.Port))
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Dependencies are the collaborators behind the routes. A nil handler makes
// its routes answer 501, which is how the worker reuses this server for
// probes only.
type Dependencies struct {
	CoverageMatrix   *query.GetCoverageMatrixHandler
	PortfolioSummary *query.GetPortfolioSummaryHandler
	SurveyResults    *query.GetSurveyResultsHandler

	InvalidateSummaries *command.InvalidateSummariesHandler

	Catalog  *catalog.Catalog
	Registry *survey.Registry

	// Features defaults to config.NewFeatureFlags.
	Features *config.FeatureFlags

	// HealthChecker defaults to a checker that always passes.
	HealthChecker handlers.HealthChecker

	// Metrics serves /metrics; nil disables the endpoint.
	Metrics http.Handler

	Logger *logger.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server is the API listener.
type Server struct {
	config  Config
	deps    Dependencies
	mux     *http.ServeMux
	handler http.Handler
	auth    *handlers.APIKeyAuth
	logger  *logger.Logger
	srv     *http.Server

	mu        sync.Mutex
	listening bool
	startedAt time.Time
}

// NewServer wires routes and middleware. It does not listen yet.
func NewServer(cfg Config, deps Dependencies) *Server {
	if deps.Features == nil {
		deps.Features = config.NewFeatureFlags()
	}
	if deps.HealthChecker == nil {
		deps.HealthChecker = handlers.NewNoopHealthChecker()
	}
	if deps.Logger == nil {
		deps.Logger = logger.Default()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultConfig().RequestTimeout
	}

	s := &Server{
		config:    cfg,
		deps:      deps,
		mux:       http.NewServeMux(),
		auth:      handlers.NewAPIKeyAuth(cfg.APIKeyHeader, cfg.APIKeyHashes),
		logger:    deps.Logger.Named("http"),
		startedAt: time.Now(),
	}
	s.routes()
	s.handler = handlers.ChainHandler(s.mux,
		s.requestIDMiddleware,
		s.recoveryMiddleware,
		s.loggingMiddleware,
		handlers.SecurityHeadersMiddleware,
	)
	s.srv = &http.Server{
		Addr:           cfg.Address(),
		Handler:        s.handler,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}
	return s
}

// Handler returns the router wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) routes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Probes (never authenticated)
	// ─────────────────────────────────────────────────────────────────────────
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /ready", s.handleReady)
	s.mux.HandleFunc("GET /live", s.handleLive)
	s.mux.HandleFunc("GET /{$}", s.handleRoot)

	// ─────────────────────────────────────────────────────────────────────────
	// API v1
	// ─────────────────────────────────────────────────────────────────────────
	s.mux.Handle("GET /api/v1/catalog", s.api(s.handleGetCatalog))
	s.mux.Handle("GET /api/v1/questionnaires", s.api(s.handleGetQuestionnaires))
	s.mux.Handle("GET /api/v1/trainees/{id}/epa-matrix", s.api(s.handleGetEPAMatrix))
	s.mux.Handle("GET /api/v1/trainees/{id}/portfolio-summary", s.api(s.handleGetPortfolioSummary))
	s.mux.Handle("GET /api/v1/trainees/{id}/surveys/{code}/results", s.api(s.handleGetSurveyResults))
	s.mux.Handle("DELETE /api/v1/trainees/{id}/cache", s.api(s.handleInvalidateCache))

	if s.deps.Metrics != nil && s.deps.Features.Enabled(config.FeatureMetricsEndpoint) {
		s.mux.Handle("GET /metrics", s.deps.Metrics)
	}
}

// api adds authentication, no-cache headers and the request deadline.
func (s *Server) api(h http.HandlerFunc) http.Handler {
	timeout := s.config.RequestTimeout
	bounded := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		h(w, r.WithContext(ctx))
	})
	return handlers.ChainHandler(bounded, s.auth.Middleware, handlers.NoCacheMiddleware)
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

const maxRequestIDLen = 128

// requestIDMiddleware keeps a caller supplied X-Request-ID or mints one, and
// stores a logger tagged with it in the request context.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		ctx = logger.WithContext(ctx, s.logger.WithRequestID(id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		logger.FromContext(r.Context()).Info("http request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", sw.status),
			logger.Latency(time.Since(start)),
			logger.String("ip", clientIP(r)),
		)
	})
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				logger.FromContext(r.Context()).Error("panic recovered",
					logger.Any("panic", v),
					logger.String("path", r.URL.Path),
					logger.String("stack", string(debug.Stack())),
				)
				writeJSONError(w, r, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start listens and serves until Shutdown. It returns nil after a clean
// shutdown.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.listening {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.listening = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("HTTP server listening", logger.String("address", s.config.Address()))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// StartAsync runs Start in a goroutine. The channel yields the serve error,
// if any, and is closed when serving ends.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := s.Start(); err != nil {
			errCh <- err
		}
	}()
	return errCh
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	wasListening := s.listening
	s.listening = false
	s.mu.Unlock()
	if !wasListening {
		return nil
	}

	s.logger.Info("HTTP server shutting down")
	return s.srv.Shutdown(ctx)
}

// Uptime returns the time since the server last started.
func (s *Server) Uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.startedAt)
}

// Address returns the listen address.
func (s *Server) Address() string {
	return s.config.Address()
}
