package review

import (
	"context"
	"fmt"
	"time"

	"github.com/algoprep/algoprep-backend/internal/domain"
	"github.com/algoprep/algoprep-backend/pkg/ctxutil"
)

const (
	minQueueLimit     = 1
	maxQueueLimit     = 200
	defaultQueueLimit = 50
)

// GetReviewQueue returns due cards grouped into the four cohorts, ordered
// most overdue first within each cohort.
func (s *Service) GetReviewQueue(ctx context.Context, limit int) (*QueueResult, error) {
	userID, ok := ctxutil.UserIDFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	if limit <= 0 {
		limit = defaultQueueLimit
	}
	if limit < minQueueLimit {
		limit = minQueueLimit
	}
	if limit > maxQueueLimit {
		limit = maxQueueLimit
	}

	now := time.Now().UTC()

	cards, err := s.cards.GetQueue(ctx, userID, now, limit)
	if err != nil {
		return nil, fmt.Errorf("get queue: %w", err)
	}

	result := &QueueResult{}
	for _, card := range cards {
		switch card.State {
		case domain.CardStateNew:
			result.NewCards = append(result.NewCards, card)
		case domain.CardStateLearning:
			result.LearningCards = append(result.LearningCards, card)
		case domain.CardStateReview:
			result.ReviewCards = append(result.ReviewCards, card)
		case domain.CardStateRelearning:
			result.RelearningCards = append(result.RelearningCards, card)
		}
	}
	result.TotalCount = len(result.NewCards) + len(result.LearningCards) +
		len(result.ReviewCards) + len(result.RelearningCards)

	return result, nil
}

// CountCohorts returns the full per-state card counts for the user,
// independent of due dates.
func (s *Service) CountCohorts(ctx context.Context) (domain.CohortCounts, error) {
	userID, ok := ctxutil.UserIDFromCtx(ctx)
	if !ok {
		return domain.CohortCounts{}, domain.ErrUnauthorized
	}

	counts, err := s.cards.CountByState(ctx, userID)
	if err != nil {
		return domain.CohortCounts{}, fmt.Errorf("count by state: %w", err)
	}
	return counts, nil
}
