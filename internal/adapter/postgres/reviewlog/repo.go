// Package reviewlog implements the append-only review history repository.
package reviewlog

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

const repoName = "review_log"

// Repo provides review log persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new review log repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const createSQL = `
INSERT INTO review_logs (id, user_id, problem_id, card_id, rating, review_type,
                         elapsed_days, prev_stability, prev_difficulty, reviewed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

// Newest first so the optimizer window always holds recent history.
const getByUserIDSQL = `
SELECT id, user_id, problem_id, card_id, rating, review_type,
       elapsed_days, prev_stability, prev_difficulty, reviewed_at
FROM review_logs
WHERE user_id = $1
ORDER BY reviewed_at DESC
LIMIT $2`

// Create appends one review record. Logs are never updated or deleted.
func (r *Repo) Create(ctx context.Context, log *domain.ReviewLog) (_ *domain.ReviewLog, err error) {
	defer observe("create", time.Now(), &err)
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}

	_, err = querier.Exec(ctx, createSQL,
		log.ID, log.UserID, log.ProblemID, log.CardID,
		int(log.Rating), string(log.ReviewType),
		log.ElapsedDays, log.PrevStability, log.PrevDifficulty, log.ReviewedAt)
	if err != nil {
		return nil, postgres.MapError(err, fmt.Sprintf("create review log %s", log.ID))
	}
	return log, nil
}

// GetByUserID returns up to limit most recent reviews for the user.
func (r *Repo) GetByUserID(ctx context.Context, userID uuid.UUID, limit int) (_ []domain.ReviewLog, err error) {
	defer observe("get_by_user_id", time.Now(), &err)
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	rows, err := querier.Query(ctx, getByUserIDSQL, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("get review logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.ReviewLog
	for rows.Next() {
		var l domain.ReviewLog
		var rating int
		var reviewType string
		if err := rows.Scan(&l.ID, &l.UserID, &l.ProblemID, &l.CardID,
			&rating, &reviewType, &l.ElapsedDays,
			&l.PrevStability, &l.PrevDifficulty, &l.ReviewedAt); err != nil {
			return nil, fmt.Errorf("scan review log: %w", err)
		}
		l.Rating = domain.Rating(rating)
		l.ReviewType = domain.ReviewType(reviewType)
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review logs: %w", err)
	}

	if logs == nil {
		logs = []domain.ReviewLog{}
	}
	return logs, nil
}

func observe(op string, start time.Time, err *error) {
	metrics.RecordDBQuery(repoName, op, time.Since(start), *err)
}
