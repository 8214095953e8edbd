package testhelper

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/algoprep/algoprep-backend/internal/domain"
)

var problemSeq atomic.Int64

func init() {
	// High base keeps seeded ids clear of any fixture ids tests pick by hand.
	problemSeq.Store(1_000_000)
}

// SeedProblem inserts a catalog entry with a unique id and returns it.
func SeedProblem(t *testing.T, pool *pgxpool.Pool, difficulty domain.ProblemDifficulty, tags ...string) domain.Problem {
	t.Helper()

	p := domain.Problem{
		ID:         problemSeq.Add(1),
		Title:      "seeded problem",
		Difficulty: difficulty,
		Tags:       tags,
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}

	_, err := pool.Exec(context.Background(),
		`INSERT INTO problems (id, title, difficulty, tags) VALUES ($1, $2, $3, $4)`,
		p.ID, p.Title, string(p.Difficulty), p.Tags)
	if err != nil {
		t.Fatalf("testhelper: seed problem: %v", err)
	}
	return p
}
