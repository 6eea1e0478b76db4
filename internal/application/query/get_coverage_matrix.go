package query

import (
	"context"
	"time"

	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/epa"
	"github.com/eyd-portfolio/portfolio-analytics/internal/infrastructure/observability"
	"github.com/eyd-portfolio/portfolio-analytics/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET COVERAGE MATRIX QUERY
// Builds the EPA × activity-type matrix of one trainee.
// ══════════════════════════════════════════════════════════════════════════════

// GetCoverageMatrixQuery identifies the trainee.
type GetCoverageMatrixQuery struct {
	TraineeID string

	// Refresh skips the cache read and overwrites the cached entry.
	Refresh bool
}

// GetCoverageMatrixResult carries the envelope and, when freshly computed,
// the matrix itself.
type GetCoverageMatrixResult struct {
	Envelope *Envelope
	Matrix   *epa.CoverageMatrix
}

// GetCoverageMatrixHandler handles coverage matrix queries.
type GetCoverageMatrixHandler struct {
	source  epa.SnapshotSource
	builder *epa.Builder
	cache   cachedEnvelope
	log     *logger.Logger
}

// NewGetCoverageMatrixHandler creates the handler. store may be nil.
func NewGetCoverageMatrixHandler(
	source epa.SnapshotSource,
	builder *epa.Builder,
	store SummaryStore,
	log *logger.Logger,
) *GetCoverageMatrixHandler {
	log = defaultLogger(log).Named("query.coverage")
	return &GetCoverageMatrixHandler{
		source:  source,
		builder: builder,
		cache:   cachedEnvelope{store: store, log: log, now: time.Now},
		log:     log,
	}
}

// Handle loads the snapshot and builds the matrix.
func (h *GetCoverageMatrixHandler) Handle(ctx context.Context, q GetCoverageMatrixQuery) (*GetCoverageMatrixResult, error) {
	const op = "GetCoverageMatrix"

	traineeID, err := validateTraineeID(op, q.TraineeID)
	if err != nil {
		return nil, err
	}

	if env, ok := h.cache.lookup(ctx, observability.KindCoverage, traineeID, "", q.Refresh); ok {
		return &GetCoverageMatrixResult{Envelope: env}, nil
	}

	start := time.Now()
	matrix, err := h.compute(ctx, op, traineeID)
	observability.RecordAggregation(observability.KindCoverage, outcome(err), time.Since(start))
	if err != nil {
		h.log.Error("coverage matrix failed", logger.TraineeID(traineeID), logger.Err(err))
		return nil, err
	}

	env, err := h.cache.build(ctx, observability.KindCoverage, traineeID, "", matrix)
	if err != nil {
		return nil, err
	}

	progress := matrix.Progress()
	h.log.Debug("coverage matrix built",
		logger.TraineeID(traineeID),
		logger.Int("epas", progress.TotalEPAs),
		logger.Int("activities", progress.TotalActivities),
		logger.Latency(time.Since(start)),
	)
	return &GetCoverageMatrixResult{Envelope: env, Matrix: matrix}, nil
}

func (h *GetCoverageMatrixHandler) compute(ctx context.Context, op, traineeID string) (*epa.CoverageMatrix, error) {
	snap, err := h.source.LoadCoverageSnapshot(ctx, traineeID)
	if err != nil {
		return nil, sourceError(op, err)
	}
	return h.builder.Build(traineeID, snap.EPAs, snap.Links)
}
