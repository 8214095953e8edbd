// Package params implements per-user FSRS parameter persistence.
package params

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/algoprep/algoprep-backend/internal/adapter/postgres"
	"github.com/algoprep/algoprep-backend/internal/metrics"
	"github.com/algoprep/algoprep-backend/internal/service/review/fsrs"
)

const repoName = "fsrs_params"

// Repo provides FSRS parameter persistence backed by PostgreSQL.
// Weights are stored as a float8 array of exactly 17 elements.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new parameters repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const getByUserIDSQL = `
SELECT weights, request_retention
FROM fsrs_parameters
WHERE user_id = $1`

const upsertSQL = `
INSERT INTO fsrs_parameters (user_id, weights, request_retention, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (user_id)
DO UPDATE SET weights = EXCLUDED.weights,
              request_retention = EXCLUDED.request_retention,
              updated_at = now()`

// GetByUserID returns the user's optimized parameters.
// Returns domain.ErrNotFound for users who never optimized.
func (r *Repo) GetByUserID(ctx context.Context, userID uuid.UUID) (_ fsrs.Parameters, err error) {
	defer observe("get_by_user_id", time.Now(), &err)
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	var weights []float64
	var retention float64
	err = querier.QueryRow(ctx, getByUserIDSQL, userID).Scan(&weights, &retention)
	if err != nil {
		return fsrs.Parameters{}, postgres.MapError(err, fmt.Sprintf("fsrs parameters user=%s", userID))
	}

	if len(weights) != fsrs.WeightCount {
		return fsrs.Parameters{}, fmt.Errorf("fsrs parameters user=%s: stored %d weights, want %d",
			userID, len(weights), fsrs.WeightCount)
	}

	params := fsrs.Parameters{RequestRetention: retention}
	copy(params.W[:], weights)
	return params, nil
}

// Upsert stores the user's parameters, replacing any previous row.
func (r *Repo) Upsert(ctx context.Context, userID uuid.UUID, params fsrs.Parameters) (err error) {
	defer observe("upsert", time.Now(), &err)
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	_, err = querier.Exec(ctx, upsertSQL, userID, params.W[:], params.RequestRetention)
	if err != nil {
		return postgres.MapError(err, fmt.Sprintf("upsert fsrs parameters user=%s", userID))
	}
	return nil
}

func observe(op string, start time.Time, err *error) {
	metrics.RecordDBQuery(repoName, op, time.Since(start), *err)
}
