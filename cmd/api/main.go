// Package main is the entry point of the portfolio analytics HTTP API.
//
// The API serves EPA coverage matrices, portfolio progress summaries and
// MSF/PSQ survey results for one trainee at a time, reading a consistent
// snapshot of the trainee's records from PostgreSQL and caching finished
// summaries in Redis when it is available.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eyd-portfolio/portfolio-analytics/config"
	"github.com/eyd-portfolio/portfolio-analytics/internal/bootstrap"
	httpserver "github.com/eyd-portfolio/portfolio-analytics/internal/interface/http"
	"github.com/eyd-portfolio/portfolio-analytics/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := bootstrap.NewLogger(cfg.Observability, cfg.App).Named("api")
	log.Info("starting portfolio analytics API",
		logger.String("version", cfg.App.Version),
		logger.String("address", cfg.HTTP.Addr()),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. SUMMARY ENGINE
	// ─────────────────────────────────────────────────────────────────────────
	engine, err := bootstrap.NewEngine(cfg.Analytics)
	if err != nil {
		return fmt.Errorf("failed to build summary engine: %w", err)
	}
	log.Info("summary engine ready",
		logger.Int("activity_types", engine.Catalog.Len()),
		logger.Int("intensity_classes", len(engine.Scale.Classes)),
		logger.Int("questionnaires", len(engine.Registry.Codes())),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 4. STORAGE (PostgreSQL + optional Redis)
	// ─────────────────────────────────────────────────────────────────────────
	infra, err := bootstrap.OpenInfrastructure(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	// ─────────────────────────────────────────────────────────────────────────
	// 5. APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	app := bootstrap.NewHandlers(infra.Sources(), engine, infra.Store, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	serverCfg := httpserver.DefaultConfig()
	serverCfg.Host = cfg.HTTP.Host
	serverCfg.Port = cfg.HTTP.Port
	serverCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	serverCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	serverCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	serverCfg.APIKeyHashes = cfg.HTTP.APIKeyHashes
	serverCfg.Version = cfg.App.Version

	deps := httpserver.Dependencies{
		CoverageMatrix:      app.CoverageMatrix,
		PortfolioSummary:    app.PortfolioSummary,
		SurveyResults:       app.SurveyResults,
		InvalidateSummaries: app.InvalidateSummaries,
		Catalog:             engine.Catalog,
		Registry:            engine.Registry,
		Features:            cfg.Features,
		HealthChecker:       infra.HealthChecker(cfg.App.Version),
		Logger:              log,
	}
	if cfg.Observability.MetricsEnabled {
		deps.Metrics = promhttp.Handler()
	}
	server := httpserver.NewServer(serverCfg, deps)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. RUN UNTIL SIGNALLED
	// ─────────────────────────────────────────────────────────────────────────
	errCh := server.StartAsync()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", logger.Err(err))
	}
	log.Info("API stopped")
	return nil
}
