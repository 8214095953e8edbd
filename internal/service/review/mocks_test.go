package review

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/algoprep/algoprep-backend/internal/domain"
	"github.com/algoprep/algoprep-backend/internal/service/review/fsrs"
)

// Hand-rolled function-field mocks for the private repo interfaces.

type cardRepoMock struct {
	GetByUserProblemFunc func(ctx context.Context, userID uuid.UUID, problemID int64) (*domain.Card, error)
	CreateFunc           func(ctx context.Context, userID uuid.UUID, problemID int64, now time.Time) (*domain.Card, error)
	UpdateSRSFunc        func(ctx context.Context, userID uuid.UUID, cardID uuid.UUID, params domain.SRSUpdateParams) (*domain.Card, error)
	GetQueueFunc         func(ctx context.Context, userID uuid.UUID, now time.Time, limit int) ([]*domain.Card, error)
	CountByStateFunc     func(ctx context.Context, userID uuid.UUID) (domain.CohortCounts, error)
}

func (m *cardRepoMock) GetByUserProblem(ctx context.Context, userID uuid.UUID, problemID int64) (*domain.Card, error) {
	return m.GetByUserProblemFunc(ctx, userID, problemID)
}

func (m *cardRepoMock) Create(ctx context.Context, userID uuid.UUID, problemID int64, now time.Time) (*domain.Card, error) {
	return m.CreateFunc(ctx, userID, problemID, now)
}

func (m *cardRepoMock) UpdateSRS(ctx context.Context, userID uuid.UUID, cardID uuid.UUID, params domain.SRSUpdateParams) (*domain.Card, error) {
	return m.UpdateSRSFunc(ctx, userID, cardID, params)
}

func (m *cardRepoMock) GetQueue(ctx context.Context, userID uuid.UUID, now time.Time, limit int) ([]*domain.Card, error) {
	return m.GetQueueFunc(ctx, userID, now, limit)
}

func (m *cardRepoMock) CountByState(ctx context.Context, userID uuid.UUID) (domain.CohortCounts, error) {
	return m.CountByStateFunc(ctx, userID)
}

type reviewLogRepoMock struct {
	CreateFunc      func(ctx context.Context, log *domain.ReviewLog) (*domain.ReviewLog, error)
	GetByUserIDFunc func(ctx context.Context, userID uuid.UUID, limit int) ([]domain.ReviewLog, error)
}

func (m *reviewLogRepoMock) Create(ctx context.Context, log *domain.ReviewLog) (*domain.ReviewLog, error) {
	return m.CreateFunc(ctx, log)
}

func (m *reviewLogRepoMock) GetByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]domain.ReviewLog, error) {
	return m.GetByUserIDFunc(ctx, userID, limit)
}

type paramsRepoMock struct {
	GetByUserIDFunc func(ctx context.Context, userID uuid.UUID) (fsrs.Parameters, error)
	UpsertFunc      func(ctx context.Context, userID uuid.UUID, params fsrs.Parameters) error
}

func (m *paramsRepoMock) GetByUserID(ctx context.Context, userID uuid.UUID) (fsrs.Parameters, error) {
	return m.GetByUserIDFunc(ctx, userID)
}

func (m *paramsRepoMock) Upsert(ctx context.Context, userID uuid.UUID, params fsrs.Parameters) error {
	return m.UpsertFunc(ctx, userID, params)
}

// txManagerMock runs the closure directly, no transaction semantics.
type txManagerMock struct{}

func (m *txManagerMock) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
