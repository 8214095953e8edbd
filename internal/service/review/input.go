package review

import (
	"time"

	"github.com/algoprep/algoprep-backend/internal/domain"
)

// SubmitReviewInput is one review submission for a problem.
type SubmitReviewInput struct {
	ProblemID  int64
	Rating     domain.Rating
	ReviewType domain.ReviewType
}

func (in SubmitReviewInput) Validate() error {
	if !in.Rating.Valid() {
		// Rating violations surface as InvalidRating, not a generic
		// validation error, so the handler can map them to 400 directly.
		return domain.ErrInvalidRating
	}
	if in.ProblemID <= 0 {
		return domain.NewValidationError("problemId", "must be positive")
	}
	if in.ReviewType != "" && !in.ReviewType.Valid() {
		return domain.NewValidationError("reviewType", "unknown review type")
	}
	return nil
}

// SubmitReviewResult is the outcome of one accepted review.
type SubmitReviewResult struct {
	Card           *domain.Card
	NewState       domain.CardState
	NextReviewDate time.Time
	// Intervals previews the next interval per rating for the updated card,
	// indexed Again..Easy.
	Intervals [4]int
}

// QueueResult groups due cards by cohort for the review queue endpoint.
type QueueResult struct {
	NewCards        []*domain.Card
	LearningCards   []*domain.Card
	ReviewCards     []*domain.Card
	RelearningCards []*domain.Card
	TotalCount      int
}
