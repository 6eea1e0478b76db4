// Package command contains write operations (CQRS - Commands).
// Here the only state the service owns is its summary cache, so commands
// recompute or drop cached summaries.
package command

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/eyd-portfolio/portfolio-analytics/internal/application/query"
	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/survey"
	"github.com/eyd-portfolio/portfolio-analytics/internal/infrastructure/observability"
	"github.com/eyd-portfolio/portfolio-analytics/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REFRESH SUMMARIES COMMAND
// Recomputes and re-caches every summary of every active trainee.
// One trainee's failure is recorded and does not stop the run.
// ══════════════════════════════════════════════════════════════════════════════

// TraineeLister lists trainees whose summaries are kept warm.
type TraineeLister interface {
	ListActiveTrainees(ctx context.Context) ([]string, error)
}

// RefreshSummariesCommand configures one run.
type RefreshSummariesCommand struct {
	// TraineeIDs restricts the run; empty means every active trainee.
	TraineeIDs []string

	// Concurrency bounds parallel trainees. Zero means 4.
	Concurrency int
}

// TraineeFailure records why one trainee could not be refreshed.
type TraineeFailure struct {
	TraineeID string `json:"trainee_id"`
	Kind      string `json:"kind"`
	Error     string `json:"error"`
}

// RefreshSummariesResult reports a run.
type RefreshSummariesResult struct {
	RunID      string           `json:"run_id"`
	Trainees   int              `json:"trainees"`
	Refreshed  int              `json:"refreshed"`
	Failures   []TraineeFailure `json:"failures,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
}

// RefreshSummariesHandler runs refreshes.
type RefreshSummariesHandler struct {
	trainees  TraineeLister
	coverage  *query.GetCoverageMatrixHandler
	portfolio *query.GetPortfolioSummaryHandler
	surveys   *query.GetSurveyResultsHandler
	codes     []string
	log       *logger.Logger

	hideRecent func(traineeID string) bool
}

// NewRefreshSummariesHandler creates the handler.
func NewRefreshSummariesHandler(
	trainees TraineeLister,
	coverage *query.GetCoverageMatrixHandler,
	portfolio *query.GetPortfolioSummaryHandler,
	surveys *query.GetSurveyResultsHandler,
	registry *survey.Registry,
	log *logger.Logger,
) *RefreshSummariesHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &RefreshSummariesHandler{
		trainees:  trainees,
		coverage:  coverage,
		portfolio: portfolio,
		surveys:   surveys,
		codes:     registry.Codes(),
		log:       log.Named("command.refresh"),
	}
}

// WithHideRecent sets the rule that picks the survey variant to warm per
// trainee. It must match the rule the read path applies, or the warmed
// entries are never read.
func (h *RefreshSummariesHandler) WithHideRecent(fn func(traineeID string) bool) *RefreshSummariesHandler {
	h.hideRecent = fn
	return h
}

// Handle refreshes every selected trainee. It returns an error only when the
// trainee list cannot be obtained or ctx is cancelled.
func (h *RefreshSummariesHandler) Handle(ctx context.Context, cmd RefreshSummariesCommand) (*RefreshSummariesResult, error) {
	res := &RefreshSummariesResult{RunID: uuid.NewString(), StartedAt: time.Now().UTC()}
	log := h.log.With(logger.RunID(res.RunID))

	ids := cmd.TraineeIDs
	if len(ids) == 0 {
		var err error
		ids, err = h.trainees.ListActiveTrainees(ctx)
		if err != nil {
			return nil, err
		}
	}
	res.Trainees = len(ids)

	workers := cmd.Concurrency
	if workers <= 0 {
		workers = 4
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(workers)

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			failures := h.refreshOne(ctx, id)

			mu.Lock()
			defer mu.Unlock()
			if len(failures) == 0 {
				res.Refreshed++
			} else {
				res.Failures = append(res.Failures, failures...)
			}
			return nil
		})
	}
	_ = g.Wait()

	res.FinishedAt = time.Now().UTC()
	if err := ctx.Err(); err != nil {
		return res, err
	}

	observability.RecordRefresh(res.FinishedAt)
	log.Info("summary refresh finished",
		logger.Int("trainees", res.Trainees),
		logger.Int("refreshed", res.Refreshed),
		logger.Int("failures", len(res.Failures)),
		logger.Latency(res.FinishedAt.Sub(res.StartedAt)),
	)
	return res, nil
}

func (h *RefreshSummariesHandler) refreshOne(ctx context.Context, traineeID string) []TraineeFailure {
	var failures []TraineeFailure
	fail := func(kind string, err error) {
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}
		observability.RecordRefreshFailure()
		h.log.Warn("trainee refresh failed",
			logger.TraineeID(traineeID), logger.SummaryKind(kind), logger.Err(err))
		failures = append(failures, TraineeFailure{TraineeID: traineeID, Kind: kind, Error: err.Error()})
	}

	_, err := h.coverage.Handle(ctx, query.GetCoverageMatrixQuery{TraineeID: traineeID, Refresh: true})
	fail(observability.KindCoverage, err)

	_, err = h.portfolio.Handle(ctx, query.GetPortfolioSummaryQuery{TraineeID: traineeID, Refresh: true})
	fail(observability.KindPortfolio, err)

	hide := h.hideRecent != nil && h.hideRecent(traineeID)
	for _, code := range h.codes {
		_, err = h.surveys.Handle(ctx, query.GetSurveyResultsQuery{
			TraineeID:         traineeID,
			QuestionnaireCode: code,
			Refresh:           true,
			HideRecent:        hide,
		})
		fail(observability.KindSurvey+":"+code, err)
	}
	return failures
}
