package command

import (
	"context"

	"github.com/eyd-portfolio/portfolio-analytics/internal/application/query"
	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/shared"
	"github.com/eyd-portfolio/portfolio-analytics/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// INVALIDATE SUMMARIES COMMAND
// Drops cached summaries after the collaborator changed a trainee's records.
// ══════════════════════════════════════════════════════════════════════════════

// InvalidateSummariesCommand names the trainee.
type InvalidateSummariesCommand struct {
	TraineeID string
}

// InvalidateSummariesHandler drops cache entries.
type InvalidateSummariesHandler struct {
	store query.SummaryStore
	log   *logger.Logger
}

// NewInvalidateSummariesHandler creates the handler. A nil store makes
// Handle a no-op.
func NewInvalidateSummariesHandler(store query.SummaryStore, log *logger.Logger) *InvalidateSummariesHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &InvalidateSummariesHandler{store: store, log: log.Named("command.invalidate")}
}

// Handle drops every cached summary of the trainee.
func (h *InvalidateSummariesHandler) Handle(ctx context.Context, cmd InvalidateSummariesCommand) error {
	id, err := shared.ValidateTraineeID("command", "InvalidateSummaries", cmd.TraineeID)
	if err != nil {
		return err
	}
	if h.store == nil {
		return nil
	}
	if err := h.store.Invalidate(ctx, id); err != nil {
		return shared.WrapError("command", "InvalidateSummaries", shared.ErrInputUnavailable, "cache invalidation failed", err)
	}
	h.log.Info("summaries invalidated", logger.TraineeID(id))
	return nil
}
