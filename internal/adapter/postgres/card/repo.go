// Package card implements the FSRS card repository using PostgreSQL.
package card

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/algoprep/algoprep-backend/internal/adapter/postgres"
	"github.com/algoprep/algoprep-backend/internal/domain"
	"github.com/algoprep/algoprep-backend/internal/metrics"
)

const repoName = "card"

// Repo provides card persistence backed by PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new card repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const cardColumns = `id, user_id, problem_id, state, stability, difficulty,
       reps, lapses, last_review, due, created_at, updated_at`

const getByUserProblemSQL = `
SELECT ` + cardColumns + `
FROM cards
WHERE user_id = $1 AND problem_id = $2`

const createSQL = `
INSERT INTO cards (id, user_id, problem_id, state, stability, difficulty,
                   reps, lapses, last_review, due, created_at, updated_at)
VALUES ($1, $2, $3, $4, 0, 0, 0, 0, NULL, $5, $5, $5)
RETURNING ` + cardColumns

const updateSRSSQL = `
UPDATE cards
SET state = $3, stability = $4, difficulty = $5, reps = $6, lapses = $7,
    last_review = $8, due = $9, updated_at = now()
WHERE user_id = $1 AND id = $2
RETURNING ` + cardColumns

// Overdue cards first by due date, unseen cards last.
const getQueueSQL = `
SELECT ` + cardColumns + `
FROM cards
WHERE user_id = $1
  AND (state = 'NEW' OR due <= $2)
ORDER BY
  CASE WHEN state = 'NEW' THEN 1 ELSE 0 END,
  due ASC
LIMIT $3`

const countByStateSQL = `
SELECT state, count(*)
FROM cards
WHERE user_id = $1
GROUP BY state`

// GetByUserProblem returns the card for one (user, problem) pair.
// Returns domain.ErrNotFound if the user never reviewed the problem.
func (r *Repo) GetByUserProblem(ctx context.Context, userID uuid.UUID, problemID int64) (_ *domain.Card, err error) {
	defer observe("get_by_user_problem", time.Now(), &err)
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	card, err := scanCard(querier.QueryRow(ctx, getByUserProblemSQL, userID, problemID))
	if err != nil {
		return nil, postgres.MapError(err, fmt.Sprintf("card user=%s problem=%d", userID, problemID))
	}
	return card, nil
}

// Create inserts a pristine NEW card. A concurrent insert for the same
// (user, problem) pair results in domain.ErrAlreadyExists.
func (r *Repo) Create(ctx context.Context, userID uuid.UUID, problemID int64, now time.Time) (_ *domain.Card, err error) {
	defer observe("create", time.Now(), &err)
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	id := uuid.New()
	card, err := scanCard(querier.QueryRow(ctx, createSQL,
		id, userID, problemID, domain.CardStateNew, now.UTC().Truncate(time.Microsecond)))
	if err != nil {
		return nil, postgres.MapError(err, fmt.Sprintf("create card %s", id))
	}
	return card, nil
}

// UpdateSRS applies the post-review memory state in one statement.
// Returns domain.ErrNotFound if the card does not exist or belongs to
// another user.
func (r *Repo) UpdateSRS(ctx context.Context, userID uuid.UUID, cardID uuid.UUID, params domain.SRSUpdateParams) (_ *domain.Card, err error) {
	defer observe("update_srs", time.Now(), &err)
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	card, err := scanCard(querier.QueryRow(ctx, updateSRSSQL,
		userID, cardID,
		params.State, params.Stability, params.Difficulty,
		params.Reps, params.Lapses, params.LastReview, params.Due))
	if err != nil {
		return nil, postgres.MapError(err, fmt.Sprintf("update card %s", cardID))
	}
	return card, nil
}

// GetQueue returns cards due at now, overdue first, unseen last.
func (r *Repo) GetQueue(ctx context.Context, userID uuid.UUID, now time.Time, limit int) (_ []*domain.Card, err error) {
	defer observe("get_queue", time.Now(), &err)
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	rows, err := querier.Query(ctx, getQueueSQL, userID, now, limit)
	if err != nil {
		return nil, fmt.Errorf("get card queue: %w", err)
	}
	defer rows.Close()

	cards, err := scanCards(rows)
	if err != nil {
		return nil, fmt.Errorf("get card queue: %w", err)
	}
	return cards, nil
}

// CountByState returns per-state queue sizes. Absent states count zero.
func (r *Repo) CountByState(ctx context.Context, userID uuid.UUID) (_ domain.CohortCounts, err error) {
	defer observe("count_by_state", time.Now(), &err)
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	rows, err := querier.Query(ctx, countByStateSQL, userID)
	if err != nil {
		return domain.CohortCounts{}, fmt.Errorf("count cards by state: %w", err)
	}
	defer rows.Close()

	var counts domain.CohortCounts
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return domain.CohortCounts{}, fmt.Errorf("scan state count: %w", err)
		}
		switch domain.CardState(state) {
		case domain.CardStateNew:
			counts.New = n
		case domain.CardStateLearning:
			counts.Learning = n
		case domain.CardStateReview:
			counts.Review = n
		case domain.CardStateRelearning:
			counts.Relearning = n
		}
	}
	if err := rows.Err(); err != nil {
		return domain.CohortCounts{}, fmt.Errorf("iterate state counts: %w", err)
	}
	return counts, nil
}

// ---------------------------------------------------------------------------
// Row scanning helpers
// ---------------------------------------------------------------------------

func scanCard(row pgx.Row) (*domain.Card, error) {
	var c domain.Card
	var state string
	if err := row.Scan(&c.ID, &c.UserID, &c.ProblemID, &state, &c.Stability,
		&c.Difficulty, &c.Reps, &c.Lapses, &c.LastReview, &c.Due,
		&c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.State = domain.CardState(state)
	return &c, nil
}

func scanCards(rows pgx.Rows) ([]*domain.Card, error) {
	var cards []*domain.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if cards == nil {
		cards = []*domain.Card{}
	}
	return cards, nil
}

func observe(op string, start time.Time, err *error) {
	metrics.RecordDBQuery(repoName, op, time.Since(start), *err)
}
