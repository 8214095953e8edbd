package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/algoprep/algoprep-backend/internal/domain"
	"github.com/algoprep/algoprep-backend/internal/metrics"
	"github.com/algoprep/algoprep-backend/internal/service/review/fsrs"
	"github.com/algoprep/algoprep-backend/pkg/ctxutil"
)

// SubmitReview records one review: it runs the scheduling engine, updates
// the card and appends an immutable review log in one transaction.
func (s *Service) SubmitReview(ctx context.Context, input SubmitReviewInput) (*SubmitReviewResult, error) {
	userID, ok := ctxutil.UserIDFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	if err := input.Validate(); err != nil {
		return nil, err
	}

	reviewType := input.ReviewType
	if reviewType == "" {
		reviewType = domain.ReviewTypeScheduled
	}

	lock := s.cardLock(userID, input.ProblemID)
	lock.Lock()
	defer lock.Unlock()

	started := time.Now()
	now := started.UTC()

	card, err := s.loadOrCreateCard(ctx, userID, input.ProblemID, now)
	if err != nil {
		return nil, err
	}

	params := s.userParameters(ctx, userID)

	result, err := fsrs.CalculateNextReview(card, input.Rating, params, now)
	if err != nil {
		return nil, fmt.Errorf("calculate next review: %w", err)
	}

	reps := card.Reps
	if input.Rating.Success() {
		reps++
	}
	lapses := card.Lapses
	if card.State == domain.CardStateReview && input.Rating == domain.RatingAgain {
		lapses++
	}

	lastReview := now
	update := domain.SRSUpdateParams{
		State:      result.NewState,
		Stability:  result.NewStability,
		Difficulty: result.NewDifficulty,
		Reps:       reps,
		Lapses:     lapses,
		LastReview: &lastReview,
		Due:        result.NextReviewTime,
	}

	var updated *domain.Card
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var txErr error
		updated, txErr = s.cards.UpdateSRS(txCtx, userID, card.ID, update)
		if txErr != nil {
			return fmt.Errorf("update card: %w", txErr)
		}

		_, txErr = s.reviews.Create(txCtx, &domain.ReviewLog{
			ID:             uuid.New(),
			UserID:         userID,
			ProblemID:      input.ProblemID,
			CardID:         card.ID,
			Rating:         input.Rating,
			ReviewType:     reviewType,
			ElapsedDays:    result.ElapsedDays,
			PrevStability:  card.Stability,
			PrevDifficulty: card.Difficulty,
			ReviewedAt:     now,
		})
		if txErr != nil {
			return fmt.Errorf("create review log: %w", txErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	intervals, err := fsrs.CalculateAllIntervals(updated, params, now)
	if err != nil {
		return nil, fmt.Errorf("preview intervals: %w", err)
	}

	metrics.RecordReviewSubmission(int(input.Rating), string(result.NewState), time.Since(started))
	s.log.InfoContext(ctx, "review submitted",
		slog.String("user_id", userID.String()),
		slog.Int64("problem_id", input.ProblemID),
		slog.Int("rating", int(input.Rating)),
		slog.String("old_state", string(card.State)),
		slog.String("new_state", string(result.NewState)),
		slog.Float64("stability", result.NewStability),
		slog.Int("interval_days", result.IntervalDays),
	)

	return &SubmitReviewResult{
		Card:           updated,
		NewState:       result.NewState,
		NextReviewDate: result.NextReviewTime,
		Intervals:      intervals,
	}, nil
}

// loadOrCreateCard fetches the card for (user, problem), creating a NEW
// card on first review. Creation races resolve by re-reading.
func (s *Service) loadOrCreateCard(ctx context.Context, userID uuid.UUID, problemID int64, now time.Time) (*domain.Card, error) {
	card, err := s.cards.GetByUserProblem(ctx, userID, problemID)
	if err == nil {
		return card, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get card: %w", err)
	}

	card, err = s.cards.Create(ctx, userID, problemID, now)
	if err == nil {
		return card, nil
	}
	if errors.Is(err, domain.ErrAlreadyExists) {
		card, err = s.cards.GetByUserProblem(ctx, userID, problemID)
		if err != nil {
			return nil, fmt.Errorf("get card after create race: %w", err)
		}
		return card, nil
	}
	return nil, fmt.Errorf("create card: %w", err)
}
