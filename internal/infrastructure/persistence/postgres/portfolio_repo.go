package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/portfolio"
)

// PortfolioRepository implements portfolio.SnapshotSource.
type PortfolioRepository struct {
	conn *Connection
}

// NewPortfolioRepository creates a new PortfolioRepository.
func NewPortfolioRepository(conn *Connection) *PortfolioRepository {
	return &PortfolioRepository{conn: conn}
}

var _ portfolio.SnapshotSource = (*PortfolioRepository)(nil)

const (
	selectActivityCounts = `
		SELECT entity_type,
		       COUNT(*) FILTER (WHERE status = 'completed'),
		       COUNT(*)
		FROM activities
		WHERE trainee_id = $1
		GROUP BY entity_type
	`

	selectLearningNeedCounts = `
		SELECT COUNT(*) FILTER (WHERE status = 'met'), COUNT(*)
		FROM learning_needs
		WHERE trainee_id = $1
	`

	selectRequirements = `
		SELECT category, required FROM portfolio_requirements WHERE trainee_id = $1
	`

	selectReviews = `
		SELECT milestone, supervisor_signed_off, panel_signed_off, outcome, signed_off_at
		FROM review_signoffs
		WHERE trainee_id = $1
	`
)

// LoadPortfolioSnapshot reads category counts and review sign-offs in one
// snapshot transaction. A requirement row replaces the recorded total of its
// category; activity kinds that are not portfolio categories are ignored.
func (r *PortfolioRepository) LoadPortfolioSnapshot(ctx context.Context, traineeID string) (*portfolio.Snapshot, error) {
	snap := &portfolio.Snapshot{TraineeID: traineeID}

	err := r.conn.snapshot(ctx, "portfolio", "LoadPortfolioSnapshot", func(tx pgx.Tx) error {
		if err := requireTrainee(ctx, tx, traineeID); err != nil {
			return err
		}
		if err := loadActivityCounts(ctx, tx, traineeID, &snap.Counts); err != nil {
			return err
		}

		var need portfolio.Count
		if err := tx.QueryRow(ctx, selectLearningNeedCounts, traineeID).Scan(&need.Completed, &need.Total); err != nil {
			return fmt.Errorf("count learning needs: %w", err)
		}
		snap.Counts.Set(portfolio.CategoryLearningNeed, need)

		if err := applyRequirements(ctx, tx, traineeID, &snap.Counts); err != nil {
			return err
		}
		return loadReviews(ctx, tx, traineeID, &snap.Milestones)
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func loadActivityCounts(ctx context.Context, q Querier, traineeID string, counts *portfolio.Counts) error {
	rows, err := q.Query(ctx, selectActivityCounts, traineeID)
	if err != nil {
		return fmt.Errorf("count activities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			entityType string
			c          portfolio.Count
		)
		if err := rows.Scan(&entityType, &c.Completed, &c.Total); err != nil {
			return fmt.Errorf("scan activity counts: %w", err)
		}
		counts.Set(portfolio.Category(entityType), c)
	}
	return rows.Err()
}

func applyRequirements(ctx context.Context, q Querier, traineeID string, counts *portfolio.Counts) error {
	rows, err := q.Query(ctx, selectRequirements, traineeID)
	if err != nil {
		return fmt.Errorf("query requirements: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			category string
			required int
		)
		if err := rows.Scan(&category, &required); err != nil {
			return fmt.Errorf("scan requirements: %w", err)
		}
		cat := portfolio.Category(category)
		c := counts.Get(cat)
		c.Total = required
		counts.Set(cat, c)
	}
	return rows.Err()
}

func loadReviews(ctx context.Context, q Querier, traineeID string, m *portfolio.Milestones) error {
	rows, err := q.Query(ctx, selectReviews, traineeID)
	if err != nil {
		return fmt.Errorf("query reviews: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			milestone string
			rev       portfolio.Review
			at        *time.Time
		)
		if err := rows.Scan(&milestone, &rev.SupervisorSignedOff, &rev.PanelSignedOff, &rev.Outcome, &at); err != nil {
			return fmt.Errorf("scan reviews: %w", err)
		}
		if at != nil {
			utc := at.UTC()
			rev.SignedOffAt = &utc
		}
		switch milestone {
		case "interim":
			m.Interim = rev
		case "final":
			m.Final = rev
		}
	}
	return rows.Err()
}
