// Package bootstrap wires configuration, storage and the application layer
// together for the api, worker and eydctl entry points.
package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/eyd-portfolio/portfolio-analytics/config"
	"github.com/eyd-portfolio/portfolio-analytics/internal/application/command"
	"github.com/eyd-portfolio/portfolio-analytics/internal/application/query"
	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/catalog"
	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/epa"
	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/portfolio"
	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/survey"
	"github.com/eyd-portfolio/portfolio-analytics/internal/infrastructure/persistence/postgres"
	"github.com/eyd-portfolio/portfolio-analytics/internal/infrastructure/persistence/redis"
	"github.com/eyd-portfolio/portfolio-analytics/internal/interface/http/handlers"
	"github.com/eyd-portfolio/portfolio-analytics/pkg/circuitbreaker"
	"github.com/eyd-portfolio/portfolio-analytics/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// LOGGING
// ══════════════════════════════════════════════════════════════════════════════

// NewLogger builds the process logger. Every entry carries the service name
// and environment.
func NewLogger(obs config.ObservabilityConfig, app config.AppConfig) *logger.Logger {
	return logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(obs.LogLevel),
		Format:    logger.ParseFormat(obs.LogFormat),
		AddCaller: app.Debug,
	}).With(
		logger.String("service", app.Name),
		logger.String("env", string(app.Environment)),
	)
}

// ══════════════════════════════════════════════════════════════════════════════
// ENGINE
// ══════════════════════════════════════════════════════════════════════════════

// Engine is the computation core shared by every entry point.
type Engine struct {
	Catalog  *catalog.Catalog
	Scale    epa.IntensityScale
	Builder  *epa.Builder
	Registry *survey.Registry
}

// NewEngine resolves the activity catalog and intensity scale and builds the
// matrix builder and questionnaire registry on top of them.
func NewEngine(cfg config.AnalyticsConfig) (*Engine, error) {
	cat, scale, err := cfg.Engine()
	if err != nil {
		return nil, err
	}
	builder, err := epa.NewBuilder(cat, scale)
	if err != nil {
		return nil, err
	}
	return &Engine{
		Catalog:  cat,
		Scale:    scale,
		Builder:  builder,
		Registry: survey.DefaultRegistry(cfg.SurveyRecentLimit),
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// APPLICATION LAYER
// ══════════════════════════════════════════════════════════════════════════════

// Sources bundles the snapshot readers the queries depend on.
type Sources struct {
	Coverage  epa.SnapshotSource
	Portfolio portfolio.SnapshotSource
	Surveys   survey.SnapshotSource
	Trainees  command.TraineeLister
}

// Handlers bundles the query and command handlers.
type Handlers struct {
	CoverageMatrix   *query.GetCoverageMatrixHandler
	PortfolioSummary *query.GetPortfolioSummaryHandler
	SurveyResults    *query.GetSurveyResultsHandler

	InvalidateSummaries *command.InvalidateSummariesHandler
	RefreshSummaries    *command.RefreshSummariesHandler
}

// NewHandlers builds the application layer. store may be nil; RefreshSummaries
// is only built when src.Trainees is set.
func NewHandlers(src Sources, eng *Engine, store query.SummaryStore, log *logger.Logger) *Handlers {
	h := &Handlers{
		CoverageMatrix:      query.NewGetCoverageMatrixHandler(src.Coverage, eng.Builder, store, log),
		PortfolioSummary:    query.NewGetPortfolioSummaryHandler(src.Portfolio, store, log),
		SurveyResults:       query.NewGetSurveyResultsHandler(src.Surveys, eng.Registry, store, log),
		InvalidateSummaries: command.NewInvalidateSummariesHandler(store, log),
	}
	if src.Trainees != nil {
		h.RefreshSummaries = command.NewRefreshSummariesHandler(
			src.Trainees, h.CoverageMatrix, h.PortfolioSummary, h.SurveyResults, eng.Registry, log)
	}
	return h
}

// ══════════════════════════════════════════════════════════════════════════════
// INFRASTRUCTURE
// ══════════════════════════════════════════════════════════════════════════════

// Infrastructure holds the open storage connections.
type Infrastructure struct {
	DB *postgres.Connection

	// Cache is nil when Redis is disabled or was unreachable at startup.
	Cache *redis.Cache

	// Store is nil whenever summaries are not cached.
	Store query.SummaryStore

	log *logger.Logger
}

// OpenInfrastructure connects to PostgreSQL, applies migrations when asked
// to, and connects to Redis. Redis failures are logged and leave the
// service running without a cache.
func OpenInfrastructure(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Infrastructure, error) {
	// ─────────────────────────────────────────────────────────────────────────
	// PostgreSQL
	// ─────────────────────────────────────────────────────────────────────────
	pgCfg := postgres.DefaultConfig()
	pgCfg.URL = cfg.Database.URL
	pgCfg.MaxConns = int32(cfg.Database.MaxConns)
	pgCfg.MinConns = int32(cfg.Database.MinConns)
	pgCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	pgCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime
	pgCfg.QueryTimeout = cfg.Database.QueryTimeout

	db, err := postgres.NewConnection(ctx, pgCfg, log.Named("postgres"))
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	log.Info("connected to PostgreSQL")

	if cfg.Database.AutoMigrate {
		if err := postgres.NewMigrator(db).Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		log.Info("migrations applied")
	}

	infra := &Infrastructure{DB: db, log: log}

	// ─────────────────────────────────────────────────────────────────────────
	// Redis (optional)
	// ─────────────────────────────────────────────────────────────────────────
	switch {
	case cfg.Redis.Disabled:
		log.Info("Redis disabled, summaries are not cached")
	case !cfg.Features.Enabled(config.FeatureSummaryCache):
		log.Info("summary cache feature disabled")
	default:
		cache, err := redis.NewCache(ctx, redisConfig(cfg.Redis), log.Named("redis"))
		if err != nil {
			log.Warn("Redis unavailable, continuing without summary cache", logger.Err(err))
			break
		}
		infra.Cache = cache
		infra.Store = redis.NewSummaryCache(cache, cfg.Redis.SummaryTTL).
			WithBreaker(circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
				log.Warn("circuit breaker state changed",
					logger.Component(name), logger.String("from", from.String()), logger.String("to", to.String()))
			}))
		log.Info("connected to Redis")
	}

	return infra, nil
}

func redisConfig(c config.RedisConfig) redis.Config {
	rc := redis.DefaultConfig()
	rc.URL = c.URL
	rc.Host = c.Host
	rc.Port = c.Port
	rc.Password = c.Password
	rc.DB = c.DB
	rc.PoolSize = c.PoolSize
	rc.MinIdleConns = c.MinIdleConns
	rc.DialTimeout = c.DialTimeout
	rc.ReadTimeout = c.ReadTimeout
	rc.WriteTimeout = c.WriteTimeout
	if c.KeyPrefix != "" {
		rc.KeyPrefix = c.KeyPrefix
	}
	return rc
}

// Sources returns the PostgreSQL snapshot readers.
func (i *Infrastructure) Sources() Sources {
	return Sources{
		Coverage:  postgres.NewCoverageRepository(i.DB),
		Portfolio: postgres.NewPortfolioRepository(i.DB),
		Surveys:   postgres.NewSurveyRepository(i.DB),
		Trainees:  postgres.NewTraineeRepository(i.DB),
	}
}

// HealthChecker returns a checker where the database is required and the
// cache only degrades the service.
func (i *Infrastructure) HealthChecker(version string) *handlers.CompositeHealthChecker {
	hc := handlers.NewCompositeHealthChecker(version)
	hc.AddCheck("database", handlers.NewPingCheck(i.DB))
	if i.Cache != nil {
		hc.AddOptionalCheck("cache", handlers.NewPingCheck(i.Cache))
	}
	return hc
}

// Close releases the connections.
func (i *Infrastructure) Close() {
	if i.Cache != nil {
		if err := i.Cache.Close(); err != nil {
			i.log.Warn("closing Redis", logger.Err(err))
		}
	}
	i.DB.Close()
}
