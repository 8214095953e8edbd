// Package problem implements the read-only problem catalog repository.
// Dynamic filters are composed with squirrel; fixed queries use raw SQL.
package problem

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/algoprep/algoprep-backend/internal/adapter/postgres"
	"github.com/algoprep/algoprep-backend/internal/domain"
	"github.com/algoprep/algoprep-backend/internal/metrics"
)

const repoName = "problem"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Repo provides catalog reads backed by PostgreSQL. The core never writes
// problems; the catalog is maintained out of band.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new problem repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const problemColumns = "id, title, difficulty, tags, categories"

const getByIDsSQL = `
SELECT ` + problemColumns + `
FROM problems
WHERE id = ANY($1::bigint[])`

const getRecentSQL = `
SELECT ` + problemColumns + `
FROM problems
ORDER BY created_at DESC
LIMIT $1`

// GetByIDs returns the problems with the given ids. Unknown ids are
// silently absent from the result.
func (r *Repo) GetByIDs(ctx context.Context, ids []int64) (_ []domain.Problem, err error) {
	defer observe("get_by_ids", time.Now(), &err)
	if len(ids) == 0 {
		return []domain.Problem{}, nil
	}
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	rows, err := querier.Query(ctx, getByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("get problems by ids: %w", err)
	}
	defer rows.Close()

	return scanProblems(rows)
}

// GetRecent returns the newest catalog entries, used as the cold-start
// candidate fallback.
func (r *Repo) GetRecent(ctx context.Context, limit int) (_ []domain.Problem, err error) {
	defer observe("get_recent", time.Now(), &err)
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	rows, err := querier.Query(ctx, getRecentSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent problems: %w", err)
	}
	defer rows.Close()

	return scanProblems(rows)
}

// List returns catalog entries matching the filter, newest first.
func (r *Repo) List(ctx context.Context, filter domain.ProblemFilter) (_ []domain.Problem, err error) {
	defer observe("list", time.Now(), &err)
	querier := postgres.QuerierFromCtx(ctx, r.pool)

	builder := psql.Select(problemColumns).
		From("problems").
		OrderBy("created_at DESC")

	if filter.Difficulty != "" {
		builder = builder.Where(sq.Eq{"difficulty": string(filter.Difficulty)})
	}
	if len(filter.Tags) > 0 {
		builder = builder.Where("tags && ?::text[]", filter.Tags)
	}
	if len(filter.Categories) > 0 {
		builder = builder.Where("categories && ?::bigint[]", filter.Categories)
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		builder = builder.Offset(uint64(filter.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build problem list query: %w", err)
	}

	rows, err := querier.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list problems: %w", err)
	}
	defer rows.Close()

	return scanProblems(rows)
}

func scanProblems(rows pgx.Rows) ([]domain.Problem, error) {
	var problems []domain.Problem
	for rows.Next() {
		var p domain.Problem
		var difficulty string
		if err := rows.Scan(&p.ID, &p.Title, &difficulty, &p.Tags, &p.Categories); err != nil {
			return nil, fmt.Errorf("scan problem: %w", err)
		}
		p.Difficulty = domain.ProblemDifficulty(difficulty)
		problems = append(problems, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate problems: %w", err)
	}

	if problems == nil {
		problems = []domain.Problem{}
	}
	return problems, nil
}

func observe(op string, start time.Time, err *error) {
	metrics.RecordDBQuery(repoName, op, time.Since(start), *err)
}
