package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/algoprep/algoprep-backend/internal/domain"
)

// MockProvider returns the first limit candidates with neutral scores.
// It backs tests and local development without network access.
type MockProvider struct{}

func NewMockProvider() *MockProvider { return &MockProvider{} }

func (p *MockProvider) Name() string { return "mock" }

func (p *MockProvider) Rank(_ context.Context, candidates []domain.ProblemCandidate, opts RankOptions) RankResult {
	start := time.Now()

	limit := opts.Limit
	if limit <= 0 || limit > len(candidates) {
		limit = len(candidates)
	}

	items := make([]domain.RankedItem, 0, limit)
	for _, c := range candidates[:limit] {
		items = append(items, domain.RankedItem{
			ProblemID:  c.ProblemID,
			Reason:     fmt.Sprintf("selected for practice (%d attempts on record)", c.Attempts),
			Confidence: 0.5,
			Score:      0.5,
		})
	}

	return RankResult{
		Success:   true,
		Provider:  p.Name(),
		Model:     "mock",
		Items:     items,
		LatencyMs: time.Since(start).Milliseconds(),
	}
}
