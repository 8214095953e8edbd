// Package review implements review submission and queue building on top of
// the FSRS engine. Cards are mutated only here; everything else reads them.
package review

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/algoprep/algoprep-backend/internal/domain"
	"github.com/algoprep/algoprep-backend/internal/service/review/fsrs"
)

// ---------------------------------------------------------------------------
// Consumer-defined interfaces (private)
// ---------------------------------------------------------------------------

type cardRepo interface {
	GetByUserProblem(ctx context.Context, userID uuid.UUID, problemID int64) (*domain.Card, error)
	Create(ctx context.Context, userID uuid.UUID, problemID int64, now time.Time) (*domain.Card, error)
	UpdateSRS(ctx context.Context, userID uuid.UUID, cardID uuid.UUID, params domain.SRSUpdateParams) (*domain.Card, error)
	GetQueue(ctx context.Context, userID uuid.UUID, now time.Time, limit int) ([]*domain.Card, error)
	CountByState(ctx context.Context, userID uuid.UUID) (domain.CohortCounts, error)
}

type reviewLogRepo interface {
	Create(ctx context.Context, log *domain.ReviewLog) (*domain.ReviewLog, error)
	GetByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]domain.ReviewLog, error)
}

type paramsRepo interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (fsrs.Parameters, error)
	Upsert(ctx context.Context, userID uuid.UUID, params fsrs.Parameters) error
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

// Service implements the review business logic.
type Service struct {
	cards   cardRepo
	reviews reviewLogRepo
	params  paramsRepo
	tx      txManager
	log     *slog.Logger

	defaults fsrs.Parameters

	// Per-card submission lock. Two concurrent submissions for the same
	// (user, problem) must serialize so the card sees both reviews.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates the review service.
func NewService(
	log *slog.Logger,
	cards cardRepo,
	reviews reviewLogRepo,
	params paramsRepo,
	tx txManager,
	defaults fsrs.Parameters,
) (*Service, error) {
	if err := defaults.Validate(); err != nil {
		return nil, fmt.Errorf("invalid default FSRS parameters: %w", err)
	}

	return &Service{
		cards:    cards,
		reviews:  reviews,
		params:   params,
		tx:       tx,
		log:      log.With("service", "review"),
		defaults: defaults,
		locks:    make(map[string]*sync.Mutex),
	}, nil
}

func (s *Service) cardLock(userID uuid.UUID, problemID int64) *sync.Mutex {
	key := fmt.Sprintf("%s|%d", userID, problemID)

	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}

// userParameters loads the user's FSRS parameters, falling back to the
// configured defaults for users who never optimized.
func (s *Service) userParameters(ctx context.Context, userID uuid.UUID) fsrs.Parameters {
	params, err := s.params.GetByUserID(ctx, userID)
	if err != nil {
		return s.defaults
	}
	if err := params.Validate(); err != nil {
		s.log.WarnContext(ctx, "stored FSRS parameters invalid, using defaults",
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()))
		return s.defaults
	}
	return params
}
