package query

import (
	"context"
	"strings"
	"time"

	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/survey"
	"github.com/eyd-portfolio/portfolio-analytics/internal/infrastructure/observability"
	"github.com/eyd-portfolio/portfolio-analytics/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET SURVEY RESULTS QUERY
// Aggregates the responses of one instrument (MSF or PSQ) for a trainee.
// ══════════════════════════════════════════════════════════════════════════════

// GetSurveyResultsQuery identifies the trainee and the instrument.
type GetSurveyResultsQuery struct {
	TraineeID         string
	QuestionnaireCode string
	Refresh           bool

	// HideRecent drops the per-response list from the digest.
	HideRecent bool
}

// GetSurveyResultsResult carries the envelope and, when freshly computed,
// the digest itself.
type GetSurveyResultsResult struct {
	Envelope *Envelope
	Digest   *survey.Digest
}

// GetSurveyResultsHandler handles survey digest queries.
type GetSurveyResultsHandler struct {
	source   survey.SnapshotSource
	registry *survey.Registry
	cache    cachedEnvelope
	log      *logger.Logger
}

// NewGetSurveyResultsHandler creates the handler. store may be nil.
func NewGetSurveyResultsHandler(
	source survey.SnapshotSource,
	registry *survey.Registry,
	store SummaryStore,
	log *logger.Logger,
) *GetSurveyResultsHandler {
	log = defaultLogger(log).Named("query.survey")
	return &GetSurveyResultsHandler{
		source:   source,
		registry: registry,
		cache:    cachedEnvelope{store: store, log: log, now: time.Now},
		log:      log,
	}
}

// Handle loads the responses and aggregates them.
func (h *GetSurveyResultsHandler) Handle(ctx context.Context, q GetSurveyResultsQuery) (*GetSurveyResultsResult, error) {
	const op = "GetSurveyResults"

	traineeID, err := validateTraineeID(op, q.TraineeID)
	if err != nil {
		return nil, err
	}
	code := strings.ToLower(strings.TrimSpace(q.QuestionnaireCode))
	questionnaire, err := h.registry.Lookup(code)
	if err != nil {
		return nil, err
	}
	if q.HideRecent {
		questionnaire = questionnaire.WithRecentLimit(0)
	}

	variant := code
	if q.HideRecent {
		variant += ":norecent"
	}

	if env, ok := h.cache.lookup(ctx, observability.KindSurvey, traineeID, variant, q.Refresh); ok {
		return &GetSurveyResultsResult{Envelope: env}, nil
	}

	start := time.Now()
	digest, err := h.compute(ctx, op, traineeID, questionnaire)
	observability.RecordAggregation(observability.KindSurvey, outcome(err), time.Since(start))
	if err != nil {
		h.log.Error("survey aggregation failed",
			logger.TraineeID(traineeID), logger.Questionnaire(code), logger.Err(err))
		return nil, err
	}

	env, err := h.cache.build(ctx, observability.KindSurvey, traineeID, variant, digest)
	if err != nil {
		return nil, err
	}
	return &GetSurveyResultsResult{Envelope: env, Digest: digest}, nil
}

func (h *GetSurveyResultsHandler) compute(ctx context.Context, op, traineeID string, q survey.Questionnaire) (*survey.Digest, error) {
	set, err := h.source.LoadResponses(ctx, traineeID, q.Code)
	if err != nil {
		return nil, sourceError(op, err)
	}
	return survey.Aggregate(q, set)
}
