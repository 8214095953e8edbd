package review

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/algoprep/algoprep-backend/internal/domain"
	"github.com/algoprep/algoprep-backend/internal/service/review/fsrs"
	"github.com/algoprep/algoprep-backend/pkg/ctxutil"
)

// optimizerLogWindow caps how much history one optimization run consumes.
const optimizerLogWindow = 10000

// OptimizeUserParameters refits the user's FSRS weights from their review
// history and stores the result. With insufficient history the stored
// parameters are left untouched and the current effective set is returned.
func (s *Service) OptimizeUserParameters(ctx context.Context) (fsrs.Parameters, error) {
	userID, ok := ctxutil.UserIDFromCtx(ctx)
	if !ok {
		return fsrs.Parameters{}, domain.ErrUnauthorized
	}

	logs, err := s.reviews.GetByUserID(ctx, userID, optimizerLogWindow)
	if err != nil {
		return fsrs.Parameters{}, fmt.Errorf("load review logs: %w", err)
	}

	current := s.userParameters(ctx, userID)
	optimized := fsrs.OptimizeParameters(logs, current)

	if optimized == current {
		s.log.InfoContext(ctx, "parameter optimization skipped",
			slog.String("user_id", userID.String()),
			slog.Int("log_count", len(logs)))
		return current, nil
	}

	if err := s.params.Upsert(ctx, userID, optimized); err != nil {
		return fsrs.Parameters{}, fmt.Errorf("store optimized parameters: %w", err)
	}

	s.log.InfoContext(ctx, "parameters optimized",
		slog.String("user_id", userID.String()),
		slog.Int("log_count", len(logs)))
	return optimized, nil
}
