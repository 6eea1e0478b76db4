package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/survey"
)

// SurveyRepository implements survey.SnapshotSource.
type SurveyRepository struct {
	conn *Connection
}

// NewSurveyRepository creates a new SurveyRepository.
func NewSurveyRepository(conn *Connection) *SurveyRepository {
	return &SurveyRepository{conn: conn}
}

var _ survey.SnapshotSource = (*SurveyRepository)(nil)

// Drafts (submitted_at IS NULL) are never aggregated.
const selectResponses = `
	SELECT id::text, questionnaire_code, submitted_at, scores, comments
	FROM survey_responses
	WHERE trainee_id = $1 AND questionnaire_code = $2 AND submitted_at IS NOT NULL
	ORDER BY submitted_at DESC, id
`

// LoadResponses returns every submitted response of the trainee for one
// instrument. Scores and comments are decoded from JSONB.
func (r *SurveyRepository) LoadResponses(ctx context.Context, traineeID, code string) (survey.ResponseSet, error) {
	var set survey.ResponseSet

	err := r.conn.snapshot(ctx, "survey", "LoadResponses", func(tx pgx.Tx) error {
		if err := requireTrainee(ctx, tx, traineeID); err != nil {
			return err
		}

		rows, err := tx.Query(ctx, selectResponses, traineeID, code)
		if err != nil {
			return fmt.Errorf("query responses: %w", err)
		}
		set.Responses, err = pgx.CollectRows(rows, scanResponse)
		if err != nil {
			return fmt.Errorf("scan responses: %w", err)
		}
		set.TotalSubmitted = len(set.Responses)
		return nil
	})
	if err != nil {
		return survey.ResponseSet{}, err
	}
	return set, nil
}

func scanResponse(row pgx.CollectableRow) (survey.Response, error) {
	var (
		resp        survey.Response
		submittedAt time.Time
	)
	err := row.Scan(&resp.ID, &resp.QuestionnaireCode, &submittedAt, &resp.Scores, &resp.Comments)
	resp.SubmittedAt = submittedAt.UTC()
	return resp, err
}
