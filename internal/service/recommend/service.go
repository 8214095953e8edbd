// Package recommend orchestrates the recommendation pipeline: FSRS-derived
// candidates, the LLM provider chain, response mapping and caching.
package recommend

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/algoprep/algoprep-backend/internal/cache"
	"github.com/algoprep/algoprep-backend/internal/domain"
	"github.com/algoprep/algoprep-backend/internal/llm"
)

// Request clamps and whitelist rules live in normalize().
const (
	minLimit   = 1
	maxLimit   = 50
	minTimebox = 5
	maxTimebox = 240

	defaultCacheTTL = time.Hour
)

// ---------------------------------------------------------------------------
// Consumer-defined interfaces (private)
// ---------------------------------------------------------------------------

type cardReader interface {
	GetQueue(ctx context.Context, userID uuid.UUID, now time.Time, limit int) ([]*domain.Card, error)
}

type problemRepo interface {
	GetByIDs(ctx context.Context, ids []int64) ([]domain.Problem, error)
	GetRecent(ctx context.Context, limit int) ([]domain.Problem, error)
	List(ctx context.Context, filter domain.ProblemFilter) ([]domain.Problem, error)
}

type feedbackRepo interface {
	Create(ctx context.Context, fb *domain.RecommendationFeedback) (*domain.RecommendationFeedback, error)
	GetByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]domain.RecommendationFeedback, error)
}

type chainExecutor interface {
	Execute(ctx context.Context, candidates []domain.ProblemCandidate, opts llm.RankOptions) llm.Result
	ID() string
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

// Config holds the static recommendation policy.
type Config struct {
	// DomainWhitelist is the set of request domains accepted in
	// targetDomains; anything else is silently dropped.
	DomainWhitelist map[string]bool
	// TagDomains maps catalog tags onto request domains, used to build the
	// similarity profile for a request.
	TagDomains map[string]string
	// Similarity breaks ties in the fallback ordering; nil disables it.
	Similarity *SimilarityScorer
	CacheTTL   time.Duration
}

// Service implements the recommendation business logic.
type Service struct {
	cards    cardReader
	problems problemRepo
	feedback feedbackRepo
	chain    chainExecutor
	store    cache.Store
	log      *slog.Logger
	cfg      Config
	now      func() time.Time
}

// NewService creates the recommendation service. store may be nil, which
// disables caching entirely.
func NewService(
	log *slog.Logger,
	cards cardReader,
	problems problemRepo,
	feedback feedbackRepo,
	chain chainExecutor,
	store cache.Store,
	cfg Config,
) *Service {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	return &Service{
		cards:    cards,
		problems: problems,
		feedback: feedback,
		chain:    chain,
		store:    store,
		log:      log.With("service", "recommend"),
		cfg:      cfg,
		now:      time.Now,
	}
}

// Request is one recommendation query after transport decoding.
type Request struct {
	Limit                int
	Objective            string
	TargetDomains        []string
	DifficultyPreference string
	TimeboxMinutes       int
}

// normalize applies clamps and drops invalid values without erroring.
func (s *Service) normalize(req Request) Request {
	if req.Limit < minLimit {
		req.Limit = minLimit
	}
	if req.Limit > maxLimit {
		req.Limit = maxLimit
	}

	if req.TimeboxMinutes != 0 {
		if req.TimeboxMinutes < minTimebox {
			req.TimeboxMinutes = minTimebox
		}
		if req.TimeboxMinutes > maxTimebox {
			req.TimeboxMinutes = maxTimebox
		}
	}

	canonical := domain.ProblemDifficulty(strings.ToUpper(req.DifficultyPreference))
	if canonical.Valid() {
		req.DifficultyPreference = string(canonical)
	} else {
		req.DifficultyPreference = ""
	}

	if len(req.TargetDomains) > 0 {
		kept := req.TargetDomains[:0]
		for _, d := range req.TargetDomains {
			if s.cfg.DomainWhitelist[d] {
				kept = append(kept, d)
			}
		}
		req.TargetDomains = kept
	}
	return req
}
