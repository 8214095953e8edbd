// Package feedback implements the recommendation feedback repository.
package feedback

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/algoprep/algoprep-backend/internal/adapter/postgres"
	"github.com/algoprep/algoprep-backend/internal/domain"
	"github.com/algoprep/algoprep-backend/internal/metrics"
)

const repoName = "feedback"

// Repo provides feedback persistence backed by PostgreSQL. Records are
// append-only; repeated feedback for the same problem creates new rows.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new feedback repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const createSQL = `
INSERT INTO recommendation_feedback (id, user_id, problem_id, feedback, note, recorded_at)
VALUES ($1, $2, $3, $4, $5, $6)`

const getByUserIDSQL = `
SELECT id, user_id, problem_id, feedback, note, recorded_at
FROM recommendation_feedback
WHERE user_id = $1
ORDER BY recorded_at DESC
LIMIT $2`

// Create appends one feedback record.
func (r *Repo) Create(ctx context.Context, fb *domain.RecommendationFeedback) (_ *domain.RecommendationFeedback, err error) {
	defer observe("create", time.Now(), &err)
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	if fb.ID == uuid.Nil {
		fb.ID = uuid.New()
	}

	_, err = querier.Exec(ctx, createSQL,
		fb.ID, fb.UserID, fb.ProblemID, string(fb.Feedback), fb.Note, fb.RecordedAt)
	if err != nil {
		return nil, postgres.MapError(err, fmt.Sprintf("create feedback %s", fb.ID))
	}
	return fb, nil
}

// GetByUserID returns the user's most recent feedback records.
func (r *Repo) GetByUserID(ctx context.Context, userID uuid.UUID, limit int) (_ []domain.RecommendationFeedback, err error) {
	defer observe("get_by_user_id", time.Now(), &err)
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	rows, err := querier.Query(ctx, getByUserIDSQL, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("get feedback: %w", err)
	}
	defer rows.Close()

	var out []domain.RecommendationFeedback
	for rows.Next() {
		var fb domain.RecommendationFeedback
		var kind string
		if err := rows.Scan(&fb.ID, &fb.UserID, &fb.ProblemID, &kind, &fb.Note, &fb.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		fb.Feedback = domain.FeedbackKind(kind)
		out = append(out, fb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feedback: %w", err)
	}

	if out == nil {
		out = []domain.RecommendationFeedback{}
	}
	return out, nil
}

func observe(op string, start time.Time, err *error) {
	metrics.RecordDBQuery(repoName, op, time.Since(start), *err)
}
