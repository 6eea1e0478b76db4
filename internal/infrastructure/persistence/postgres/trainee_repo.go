package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/shared"
)

// TraineeRepository lists trainees for the refresh worker.
type TraineeRepository struct {
	conn *Connection
}

// NewTraineeRepository creates a new TraineeRepository.
func NewTraineeRepository(conn *Connection) *TraineeRepository {
	return &TraineeRepository{conn: conn}
}

// ListActiveTrainees returns the ids of active trainees in id order.
func (r *TraineeRepository) ListActiveTrainees(ctx context.Context) ([]string, error) {
	rows, err := r.conn.Query(ctx, `SELECT id FROM trainees WHERE status = 'active' ORDER BY id`)
	if err != nil {
		return nil, shared.WrapError("trainee", "ListActive", shared.ErrInputUnavailable, "query failed", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, shared.WrapError("trainee", "ListActive", shared.ErrInputUnavailable, "scan failed", err)
	}
	return ids, nil
}

// requireTrainee fails with ErrTraineeNotFound when id is unknown.
func requireTrainee(ctx context.Context, q Querier, id string) error {
	var one int
	err := q.QueryRow(ctx, `SELECT 1 FROM trainees WHERE id = $1`, id).Scan(&one)
	if IsNoRows(err) {
		return shared.ErrTraineeNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup trainee: %w", err)
	}
	return nil
}
