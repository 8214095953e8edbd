package recommend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/algoprep/algoprep-backend/internal/domain"
	"github.com/algoprep/algoprep-backend/pkg/ctxutil"
)

const maxFeedbackNoteLen = 1000

// FeedbackInput is one user reaction to a recommended problem.
type FeedbackInput struct {
	ProblemID int64
	Feedback  domain.FeedbackKind
	Note      string
}

func (in FeedbackInput) Validate() error {
	if in.ProblemID <= 0 {
		return domain.NewValidationError("problemId", "must be positive")
	}
	if !in.Feedback.Valid() {
		return domain.NewValidationError("feedback", "must be one of helpful, not_helpful, mastered")
	}
	if len(in.Note) > maxFeedbackNoteLen {
		return domain.NewValidationError("note", "too long")
	}
	return nil
}

// RecordFeedback appends one feedback record.
func (s *Service) RecordFeedback(ctx context.Context, input FeedbackInput) (*domain.RecommendationFeedback, error) {
	userID, ok := ctxutil.UserIDFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	if err := input.Validate(); err != nil {
		return nil, err
	}

	fb, err := s.feedback.Create(ctx, &domain.RecommendationFeedback{
		ID:         uuid.New(),
		UserID:     userID,
		ProblemID:  input.ProblemID,
		Feedback:   input.Feedback,
		Note:       input.Note,
		RecordedAt: s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("create feedback: %w", err)
	}

	s.log.InfoContext(ctx, "recommendation feedback recorded",
		slog.String("user_id", userID.String()),
		slog.Int64("problem_id", input.ProblemID),
		slog.String("feedback", string(input.Feedback)))
	return fb, nil
}

const (
	defaultFeedbackLimit = 20
	maxFeedbackLimit     = 100
)

// ListFeedback returns the user's feedback records, newest first.
func (s *Service) ListFeedback(ctx context.Context, limit int) ([]domain.RecommendationFeedback, error) {
	userID, ok := ctxutil.UserIDFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	if limit <= 0 {
		limit = defaultFeedbackLimit
	}
	if limit > maxFeedbackLimit {
		limit = maxFeedbackLimit
	}

	records, err := s.feedback.GetByUserID(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	if records == nil {
		records = []domain.RecommendationFeedback{}
	}
	return records, nil
}
