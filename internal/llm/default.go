package llm

import (
	"context"

	"github.com/algoprep/algoprep-backend/internal/domain"
)

// DefaultProvider terminates every chain. It never succeeds; its only job
// is to carry the configured fallback strategy back to the caller.
type DefaultProvider struct {
	strategy string
}

// NewDefaultProvider builds the terminal provider for the given strategy,
// one of domain.StrategyFSRSFallback or domain.StrategyBusyMessage.
func NewDefaultProvider(strategy string) *DefaultProvider {
	if strategy == "" {
		strategy = domain.StrategyFSRSFallback
	}
	return &DefaultProvider{strategy: strategy}
}

func (p *DefaultProvider) Name() string { return "default" }

func (p *DefaultProvider) Rank(_ context.Context, _ []domain.ProblemCandidate, _ RankOptions) RankResult {
	return RankResult{
		Provider: p.Name(),
		Items:    []domain.RankedItem{},
		Strategy: p.strategy,
		Err:      NewProviderError(ErrClassOther, nil),
	}
}
