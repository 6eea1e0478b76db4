package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/catalog"
	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/epa"
)

// CoverageRepository implements epa.SnapshotSource and epa.EPALister.
type CoverageRepository struct {
	conn *Connection
}

// NewCoverageRepository creates a new CoverageRepository.
func NewCoverageRepository(conn *Connection) *CoverageRepository {
	return &CoverageRepository{conn: conn}
}

var (
	_ epa.SnapshotSource = (*CoverageRepository)(nil)
	_ epa.EPALister      = (*CoverageRepository)(nil)
)

const selectEPAs = `SELECT id, code, title, description FROM epas ORDER BY id`

// Links are aggregated per activity; activities without a link never reach
// a cell so they are not loaded.
const selectActivityLinks = `
	SELECT a.entity_type, a.id, a.title, a.created_at, a.action_reference,
	       array_agg(l.epa_id ORDER BY l.epa_id)
	FROM activities a
	JOIN activity_epa_links l ON l.entity_type = a.entity_type AND l.activity_id = a.id
	WHERE a.trainee_id = $1
	GROUP BY a.entity_type, a.id, a.title, a.created_at, a.action_reference
	ORDER BY a.entity_type, a.id
`

// ListEPAs returns the full EPA framework ordered by id.
func (r *CoverageRepository) ListEPAs(ctx context.Context) ([]epa.EPA, error) {
	var out []epa.EPA
	err := r.conn.snapshot(ctx, "epa", "ListEPAs", func(tx pgx.Tx) error {
		var err error
		out, err = queryEPAs(ctx, tx)
		return err
	})
	return out, err
}

// LoadCoverageSnapshot reads the EPA framework and the trainee's linked
// activities in one snapshot transaction.
func (r *CoverageRepository) LoadCoverageSnapshot(ctx context.Context, traineeID string) (*epa.CoverageSnapshot, error) {
	snap := &epa.CoverageSnapshot{TraineeID: traineeID}

	err := r.conn.snapshot(ctx, "epa", "LoadCoverageSnapshot", func(tx pgx.Tx) error {
		if err := requireTrainee(ctx, tx, traineeID); err != nil {
			return err
		}

		var err error
		if snap.EPAs, err = queryEPAs(ctx, tx); err != nil {
			return err
		}
		snap.Links, err = queryActivityLinks(ctx, tx, traineeID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func queryEPAs(ctx context.Context, q Querier) ([]epa.EPA, error) {
	rows, err := q.Query(ctx, selectEPAs)
	if err != nil {
		return nil, fmt.Errorf("query epas: %w", err)
	}
	epas, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (epa.EPA, error) {
		var e epa.EPA
		err := row.Scan(&e.ID, &e.Code, &e.Title, &e.Description)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan epas: %w", err)
	}
	return epas, nil
}

func queryActivityLinks(ctx context.Context, q Querier, traineeID string) ([]epa.ActivityLink, error) {
	rows, err := q.Query(ctx, selectActivityLinks, traineeID)
	if err != nil {
		return nil, fmt.Errorf("query activity links: %w", err)
	}
	links, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (epa.ActivityLink, error) {
		var (
			l          epa.ActivityLink
			entityType string
			createdAt  time.Time
		)
		err := row.Scan(&entityType, &l.Activity.ID, &l.Activity.Title, &createdAt,
			&l.Activity.ActionReference, &l.EPAIDs)
		l.Activity.Type = catalog.ActivityType(entityType)
		l.Activity.CreatedAt = createdAt.UTC()
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan activity links: %w", err)
	}
	return links, nil
}
