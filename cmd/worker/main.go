// Package main is the entry point of the summary refresh worker.
//
// The worker recomputes the coverage, portfolio and survey summaries of every
// active trainee on a cron schedule and writes them to the summary cache, so
// the API can answer from the cache. It exposes health and metrics on a small
// side listener.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eyd-portfolio/portfolio-analytics/config"
	"github.com/eyd-portfolio/portfolio-analytics/internal/bootstrap"
	"github.com/eyd-portfolio/portfolio-analytics/internal/infrastructure/scheduler"
	"github.com/eyd-portfolio/portfolio-analytics/internal/infrastructure/scheduler/jobs"
	httpserver "github.com/eyd-portfolio/portfolio-analytics/internal/interface/http"
	"github.com/eyd-portfolio/portfolio-analytics/internal/interface/http/handlers"
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
	log := bootstrap.NewLogger(cfg.Observability, cfg.App).Named("worker")
	log.Info("starting summary refresh worker",
		logger.String("schedule", cfg.Worker.RefreshSchedule),
		logger.String("timezone", cfg.App.Timezone),
		logger.Int("concurrency", cfg.Worker.Concurrency),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. SUMMARY ENGINE
	// ─────────────────────────────────────────────────────────────────────────
	engine, err := bootstrap.NewEngine(cfg.Analytics)
	if err != nil {
		return fmt.Errorf("failed to build summary engine: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. STORAGE
	// ─────────────────────────────────────────────────────────────────────────
	infra, err := bootstrap.OpenInfrastructure(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	if infra.Store == nil {
		log.Warn("no summary cache configured, refresh runs only validate the records")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. JOBS
	// ─────────────────────────────────────────────────────────────────────────
	app := bootstrap.NewHandlers(infra.Sources(), engine, infra.Store, log)
	app.RefreshSummaries.WithHideRecent(cfg.Features.HidesRecentResponses)

	refreshJob := jobs.NewRefreshSummariesJob(app.RefreshSummaries, jobs.RefreshSummariesConfig{
		Concurrency:     cfg.Worker.Concurrency,
		MaxFailureRatio: cfg.Worker.MaxFailureRatio,
	})

	sched := scheduler.New(scheduler.Config{
		Logger:   log,
		Location: cfg.App.Location,
		Timeout:  cfg.Worker.JobTimeout,
	})
	if err := sched.Register(refreshJob, cfg.Worker.RefreshSchedule); err != nil {
		return fmt.Errorf("failed to register %s: %w", refreshJob.Name(), err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. HEALTH LISTENER
	// ─────────────────────────────────────────────────────────────────────────
	health := infra.HealthChecker(cfg.App.Version)
	health.AddCheck("refresh", handlers.NewFreshnessCheck(refreshJob.LastRunAge, 3*cfg.Worker.JobTimeout, cfg.Worker.JobTimeout))

	healthServer, err := newHealthServer(cfg, health, log)
	if err != nil {
		return err
	}
	healthErr := healthServer.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 7. START
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Features.Enabled(config.FeatureRefreshOnStart) {
		log.Info("running initial refresh")
		if _, err := sched.RunNow(ctx, refreshJob.Name()); err != nil {
			log.Warn("initial refresh failed", logger.Err(err))
		}
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	log.Info("worker started", logger.Int("jobs", len(sched.ListJobs())))

	select {
	case err := <-healthErr:
		if err != nil {
			log.Error("health listener stopped", logger.Err(err))
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := sched.Stop(shutdownCtx); err != nil {
		log.Warn("scheduler did not stop cleanly", logger.Err(err))
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("health listener shutdown failed", logger.Err(err))
	}
	log.Info("worker stopped")
	return nil
}

// newHealthServer serves probes and metrics on WORKER_HEALTH_ADDR. The API
// routes are left unconfigured and answer 501.
func newHealthServer(cfg *config.Config, health handlers.HealthChecker, log *logger.Logger) (*httpserver.Server, error) {
	host, portStr, err := net.SplitHostPort(cfg.Worker.HealthAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_HEALTH_ADDR %q: %w", cfg.Worker.HealthAddr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_HEALTH_ADDR port %q: %w", portStr, err)
	}

	serverCfg := httpserver.DefaultConfig()
	serverCfg.Host = host
	serverCfg.Port = port
	serverCfg.Version = cfg.App.Version

	deps := httpserver.Dependencies{
		Features:      cfg.Features,
		HealthChecker: health,
		Logger:        log.Named("health"),
	}
	if cfg.Observability.MetricsEnabled {
		deps.Metrics = promhttp.Handler()
	}
	return httpserver.NewServer(serverCfg, deps), nil
}
