package query

import (
	"context"
	"time"

	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/portfolio"
	"github.com/eyd-portfolio/portfolio-analytics/internal/infrastructure/observability"
	"github.com/eyd-portfolio/portfolio-analytics/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PORTFOLIO SUMMARY QUERY
// Classifies every tracked category and both review panels of one trainee.
// ══════════════════════════════════════════════════════════════════════════════

// GetPortfolioSummaryQuery identifies the trainee.
type GetPortfolioSummaryQuery struct {
	TraineeID string
	Refresh   bool
}

// GetPortfolioSummaryResult carries the envelope and, when freshly
// computed, the summary itself.
type GetPortfolioSummaryResult struct {
	Envelope *Envelope
	Summary  *portfolio.Summary
}

// GetPortfolioSummaryHandler handles portfolio summary queries.
type GetPortfolioSummaryHandler struct {
	source portfolio.SnapshotSource
	cache  cachedEnvelope
	log    *logger.Logger
}

// NewGetPortfolioSummaryHandler creates the handler. store may be nil.
func NewGetPortfolioSummaryHandler(source portfolio.SnapshotSource, store SummaryStore, log *logger.Logger) *GetPortfolioSummaryHandler {
	log = defaultLogger(log).Named("query.portfolio")
	return &GetPortfolioSummaryHandler{
		source: source,
		cache:  cachedEnvelope{store: store, log: log, now: time.Now},
		log:    log,
	}
}

// Handle loads the counts and summarizes them.
func (h *GetPortfolioSummaryHandler) Handle(ctx context.Context, q GetPortfolioSummaryQuery) (*GetPortfolioSummaryResult, error) {
	const op = "GetPortfolioSummary"

	traineeID, err := validateTraineeID(op, q.TraineeID)
	if err != nil {
		return nil, err
	}

	if env, ok := h.cache.lookup(ctx, observability.KindPortfolio, traineeID, "", q.Refresh); ok {
		return &GetPortfolioSummaryResult{Envelope: env}, nil
	}

	start := time.Now()
	snap, err := h.source.LoadPortfolioSnapshot(ctx, traineeID)
	if err != nil {
		err = sourceError(op, err)
		observability.RecordAggregation(observability.KindPortfolio, outcome(err), time.Since(start))
		h.log.Error("portfolio summary failed", logger.TraineeID(traineeID), logger.Err(err))
		return nil, err
	}

	summary := portfolio.Summarize(snap.Counts, snap.Milestones)
	summary.TraineeID = traineeID
	observability.RecordAggregation(observability.KindPortfolio, observability.OutcomeOK, time.Since(start))

	env, err := h.cache.build(ctx, observability.KindPortfolio, traineeID, "", summary)
	if err != nil {
		return nil, err
	}
	return &GetPortfolioSummaryResult{Envelope: env, Summary: summary}, nil
}
