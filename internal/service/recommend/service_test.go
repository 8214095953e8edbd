package recommend

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/algoprep/algoprep-backend/internal/cache"
	"github.com/algoprep/algoprep-backend/internal/domain"
	"github.com/algoprep/algoprep-backend/internal/llm"
	"github.com/algoprep/algoprep-backend/pkg/ctxutil"
)

// ---------------------------------------------------------------------------
// Function-field mocks
// ---------------------------------------------------------------------------

type cardReaderMock struct {
	GetQueueFunc func(ctx context.Context, userID uuid.UUID, now time.Time, limit int) ([]*domain.Card, error)
}

func (m *cardReaderMock) GetQueue(ctx context.Context, userID uuid.UUID, now time.Time, limit int) ([]*domain.Card, error) {
	return m.GetQueueFunc(ctx, userID, now, limit)
}

type problemRepoMock struct {
	GetByIDsFunc  func(ctx context.Context, ids []int64) ([]domain.Problem, error)
	GetRecentFunc func(ctx context.Context, limit int) ([]domain.Problem, error)
	ListFunc      func(ctx context.Context, filter domain.ProblemFilter) ([]domain.Problem, error)
}

func (m *problemRepoMock) GetByIDs(ctx context.Context, ids []int64) ([]domain.Problem, error) {
	return m.GetByIDsFunc(ctx, ids)
}

func (m *problemRepoMock) GetRecent(ctx context.Context, limit int) ([]domain.Problem, error) {
	return m.GetRecentFunc(ctx, limit)
}

func (m *problemRepoMock) List(ctx context.Context, filter domain.ProblemFilter) ([]domain.Problem, error) {
	if m.ListFunc == nil {
		return nil, nil
	}
	return m.ListFunc(ctx, filter)
}

type feedbackRepoMock struct {
	CreateFunc      func(ctx context.Context, fb *domain.RecommendationFeedback) (*domain.RecommendationFeedback, error)
	GetByUserIDFunc func(ctx context.Context, userID uuid.UUID, limit int) ([]domain.RecommendationFeedback, error)
}

func (m *feedbackRepoMock) Create(ctx context.Context, fb *domain.RecommendationFeedback) (*domain.RecommendationFeedback, error) {
	return m.CreateFunc(ctx, fb)
}

func (m *feedbackRepoMock) GetByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]domain.RecommendationFeedback, error) {
	if m.GetByUserIDFunc == nil {
		return nil, nil
	}
	return m.GetByUserIDFunc(ctx, userID, limit)
}

type chainMock struct {
	ExecuteFunc func(ctx context.Context, candidates []domain.ProblemCandidate, opts llm.RankOptions) llm.Result
	calls       int
}

func (m *chainMock) Execute(ctx context.Context, candidates []domain.ProblemCandidate, opts llm.RankOptions) llm.Result {
	m.calls++
	return m.ExecuteFunc(ctx, candidates, opts)
}

func (m *chainMock) ID() string { return "chain-v1" }

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func emptyProblems() *problemRepoMock {
	return &problemRepoMock{
		GetByIDsFunc:  func(context.Context, []int64) ([]domain.Problem, error) { return nil, nil },
		GetRecentFunc: func(context.Context, int) ([]domain.Problem, error) { return nil, nil },
	}
}

func newTestService(t *testing.T, cards *cardReaderMock, problems *problemRepoMock, chain *chainMock, store cache.Store) *Service {
	t.Helper()
	if problems == nil {
		problems = emptyProblems()
	}
	svc := NewService(discardLogger(), cards, problems, &feedbackRepoMock{}, chain, store, Config{
		DomainWhitelist: map[string]bool{"graphs": true, "dp": true},
		CacheTTL:        time.Hour,
	})
	svc.now = func() time.Time { return time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC) }
	return svc
}

func userCtx(userID uuid.UUID) context.Context {
	return ctxutil.WithUserID(context.Background(), userID)
}

func queueOf(cards ...*domain.Card) *cardReaderMock {
	return &cardReaderMock{
		GetQueueFunc: func(context.Context, uuid.UUID, time.Time, int) ([]*domain.Card, error) {
			return cards, nil
		},
	}
}

func successChain(items ...domain.RankedItem) *chainMock {
	return &chainMock{
		ExecuteFunc: func(context.Context, []domain.ProblemCandidate, llm.RankOptions) llm.Result {
			return llm.Result{
				Success: true,
				Hops:    []string{"openai"},
				Ranked:  llm.RankResult{Success: true, Provider: "openai", Items: items},
			}
		},
	}
}

func defaultedChain(strategy, reason string) *chainMock {
	return &chainMock{
		ExecuteFunc: func(context.Context, []domain.ProblemCandidate, llm.RankOptions) llm.Result {
			return llm.Result{
				Hops:          []string{"openai", "default"},
				Strategy:      strategy,
				DefaultReason: reason,
			}
		},
	}
}

// ---------------------------------------------------------------------------
// Candidate builder
// ---------------------------------------------------------------------------

func TestBuildCandidates_AccuracyAndUrgency(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	last := now.Add(-10 * 24 * time.Hour)
	due := now.Add(-3 * 24 * time.Hour)

	card := &domain.Card{
		ProblemID: 5, State: domain.CardStateReview,
		Stability: 15, Difficulty: 6, Reps: 5, Lapses: 1,
		LastReview: &last, Due: due,
	}

	got := candidateFromCard(card, now)

	// acc = 0.3 + (15/30)*0.7 - 0.5 + 0.1 - 0.1 = 0.15
	if diff := got.RecentAccuracy - 0.15; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("accuracy = %f, want 0.15", got.RecentAccuracy)
	}
	if got.Attempts != 5 {
		t.Errorf("attempts = %d, want 5", got.Attempts)
	}
	if got.DaysOverdue != 3 {
		t.Errorf("daysOverdue = %d, want 3", got.DaysOverdue)
	}
	if got.RetentionProbability <= 0 || got.RetentionProbability >= 1 {
		t.Errorf("retention = %f, want in (0,1)", got.RetentionProbability)
	}
	if got.UrgencyScore <= 0 || got.UrgencyScore > 1 {
		t.Errorf("urgency = %f, want in (0,1]", got.UrgencyScore)
	}
}

func TestBuildCandidates_SortsLeastPracticedWeakestFirst(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	last := now.Add(-24 * time.Hour)

	cards := []*domain.Card{
		{ProblemID: 1, State: domain.CardStateReview, Stability: 30, Difficulty: 2, Reps: 5, LastReview: &last, Due: now},
		{ProblemID: 2, State: domain.CardStateReview, Stability: 1, Difficulty: 9, Reps: 5, LastReview: &last, Due: now},
		{ProblemID: 3, State: domain.CardStateLearning, Stability: 1, Difficulty: 5, Reps: 1, LastReview: &last, Due: now},
	}

	svc := newTestService(t, queueOf(cards...), nil, nil, nil)

	got, err := svc.BuildCandidates(context.Background(), uuid.New(), Request{Limit: 10})
	if err != nil {
		t.Fatalf("BuildCandidates: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].ProblemID != 3 {
		t.Errorf("first = %d, want least practiced (3)", got[0].ProblemID)
	}
	if got[1].ProblemID != 2 {
		t.Errorf("second = %d, want weaker of equal-attempts pair (2)", got[1].ProblemID)
	}
}

func TestBuildCandidates_EmptyFallsBackToRecentProblems(t *testing.T) {
	t.Parallel()

	problems := &problemRepoMock{
		GetRecentFunc: func(_ context.Context, limit int) ([]domain.Problem, error) {
			return []domain.Problem{
				{ID: 11, Title: "Two Sum", Difficulty: domain.DifficultyEasy, Tags: []string{"arrays"}},
			}, nil
		},
		GetByIDsFunc: func(context.Context, []int64) ([]domain.Problem, error) { return nil, nil },
	}

	svc := newTestService(t, queueOf(), problems, nil, nil)

	got, err := svc.BuildCandidates(context.Background(), uuid.New(), Request{Limit: 5})
	if err != nil {
		t.Fatalf("BuildCandidates: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].Attempts != 0 || got[0].RecentAccuracy != 0.5 {
		t.Errorf("neutral priors not applied: %+v", got[0])
	}
	if got[0].Topic != "arrays" {
		t.Errorf("topic = %q, want arrays", got[0].Topic)
	}
}

func TestBuildCandidates_CardErrorDegradesToFallback(t *testing.T) {
	t.Parallel()

	cards := &cardReaderMock{
		GetQueueFunc: func(context.Context, uuid.UUID, time.Time, int) ([]*domain.Card, error) {
			return nil, errors.New("db down")
		},
	}
	problems := &problemRepoMock{
		GetRecentFunc: func(context.Context, int) ([]domain.Problem, error) {
			return []domain.Problem{{ID: 1}}, nil
		},
		GetByIDsFunc: func(context.Context, []int64) ([]domain.Problem, error) { return nil, nil },
	}

	svc := newTestService(t, cards, problems, nil, nil)

	got, err := svc.BuildCandidates(context.Background(), uuid.New(), Request{Limit: 5})
	if err != nil {
		t.Fatalf("BuildCandidates: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("len = %d, want fallback candidate", len(got))
	}
}

func TestBuildCandidates_TagEnrichmentFailureSwallowed(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	last := now.Add(-24 * time.Hour)
	problems := &problemRepoMock{
		GetByIDsFunc: func(context.Context, []int64) ([]domain.Problem, error) {
			return nil, errors.New("catalog down")
		},
		GetRecentFunc: func(context.Context, int) ([]domain.Problem, error) { return nil, nil },
	}

	svc := newTestService(t, queueOf(
		&domain.Card{ProblemID: 1, State: domain.CardStateReview, Stability: 5, Difficulty: 5, Reps: 2, LastReview: &last, Due: now},
	), problems, nil, nil)

	got, err := svc.BuildCandidates(context.Background(), uuid.New(), Request{Limit: 5})
	if err != nil {
		t.Fatalf("BuildCandidates: %v", err)
	}
	if len(got) != 1 || got[0].Tags != nil {
		t.Errorf("expected bare candidate, got %+v", got)
	}
}

// ---------------------------------------------------------------------------
// Pipeline
// ---------------------------------------------------------------------------

func TestGetRecommendations_LLMSuccessPreservesOrder(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	last := now.Add(-24 * time.Hour)
	cards := queueOf(
		&domain.Card{ProblemID: 1, State: domain.CardStateReview, Stability: 5, Difficulty: 5, Reps: 2, LastReview: &last, Due: now},
		&domain.Card{ProblemID: 2, State: domain.CardStateReview, Stability: 5, Difficulty: 5, Reps: 3, LastReview: &last, Due: now},
	)
	problems := &problemRepoMock{
		GetByIDsFunc: func(_ context.Context, ids []int64) ([]domain.Problem, error) {
			return []domain.Problem{
				{ID: 1, Title: "Two Sum", Difficulty: domain.DifficultyEasy},
				{ID: 2, Title: "LRU Cache", Difficulty: domain.DifficultyMedium},
			}, nil
		},
		GetRecentFunc: func(context.Context, int) ([]domain.Problem, error) { return nil, nil },
	}
	chain := successChain(
		domain.RankedItem{ProblemID: 2, Reason: "strengthen design skills", Confidence: 0.9, Score: 0.8},
		domain.RankedItem{ProblemID: 1, Reason: "refresh basics", Confidence: 0.7, Score: 0.6},
	)

	svc := newTestService(t, cards, problems, chain, nil)

	resp, err := svc.GetRecommendations(userCtx(uuid.New()), Request{Limit: 10})
	if err != nil {
		t.Fatalf("GetRecommendations: %v", err)
	}

	if resp.Meta.Strategy != domain.StrategyLLM {
		t.Errorf("strategy = %s, want llm", resp.Meta.Strategy)
	}
	if len(resp.Items) != 2 || resp.Items[0].ProblemID != 2 || resp.Items[1].ProblemID != 1 {
		t.Fatalf("order not preserved: %+v", resp.Items)
	}
	if resp.Items[0].Title != "LRU Cache" || resp.Items[0].Source != "openai" {
		t.Errorf("enrichment wrong: %+v", resp.Items[0])
	}
	if len(resp.Meta.ChainHops) != 1 || resp.Meta.ChainHops[0] != "openai" {
		t.Errorf("hops = %v", resp.Meta.ChainHops)
	}
	if resp.Meta.Cached {
		t.Errorf("first call must not be cached")
	}
	if resp.Meta.TraceID == "" || resp.Meta.PromptVersion == "" || resp.Meta.ChainID != "chain-v1" {
		t.Errorf("meta incomplete: %+v", resp.Meta)
	}
}

func TestGetRecommendations_FSRSFallback(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	last := now.Add(-10 * 24 * time.Hour)
	cards := queueOf(
		&domain.Card{ProblemID: 7, State: domain.CardStateReview, Stability: 2, Difficulty: 8, Reps: 1, Lapses: 2, LastReview: &last, Due: now.Add(-5 * 24 * time.Hour)},
	)
	chain := defaultedChain(domain.StrategyFSRSFallback, "TIMEOUT")

	svc := newTestService(t, cards, nil, chain, nil)

	resp, err := svc.GetRecommendations(userCtx(uuid.New()), Request{Limit: 10})
	if err != nil {
		t.Fatalf("GetRecommendations: %v", err)
	}

	if resp.Meta.Strategy != domain.StrategyFSRSFallback {
		t.Errorf("strategy = %s", resp.Meta.Strategy)
	}
	if resp.Meta.FallbackReason != "TIMEOUT" {
		t.Errorf("fallbackReason = %s", resp.Meta.FallbackReason)
	}
	if len(resp.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(resp.Items))
	}
	item := resp.Items[0]
	if item.Source != "FSRS" {
		t.Errorf("source = %s, want FSRS", item.Source)
	}
	if item.Confidence <= 0 || item.Confidence > 1 {
		t.Errorf("confidence = %f, want urgency in (0,1]", item.Confidence)
	}
	if item.Reason == "" {
		t.Errorf("reason must be generated from card signals")
	}
}

func TestGetRecommendations_BusyMessageReturnsEmptyItems(t *testing.T) {
	t.Parallel()

	chain := defaultedChain(domain.StrategyBusyMessage, llm.ReasonChainEmpty)
	svc := newTestService(t, queueOf(), nil, chain, nil)

	resp, err := svc.GetRecommendations(userCtx(uuid.New()), Request{Limit: 5})
	if err != nil {
		t.Fatalf("GetRecommendations: %v", err)
	}

	if resp.Meta.Strategy != domain.StrategyBusyMessage {
		t.Errorf("strategy = %s", resp.Meta.Strategy)
	}
	if resp.Items == nil || len(resp.Items) != 0 {
		t.Errorf("items = %v, want empty non-nil list", resp.Items)
	}
	if resp.Meta.FallbackReason != llm.ReasonChainEmpty {
		t.Errorf("fallbackReason = %s", resp.Meta.FallbackReason)
	}
}

func TestGetRecommendations_CacheHitSkipsChain(t *testing.T) {
	t.Parallel()

	store := cache.NewMemoryStore(0)
	defer store.Close()

	chain := successChain(domain.RankedItem{ProblemID: 1, Reason: "r", Confidence: 0.5, Score: 0.5})
	svc := newTestService(t, queueOf(), nil, chain, store)
	userID := uuid.New()

	first, err := svc.GetRecommendations(userCtx(userID), Request{Limit: 5})
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if first.Meta.Cached {
		t.Errorf("first call reported cached")
	}

	second, err := svc.GetRecommendations(userCtx(userID), Request{Limit: 5})
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if !second.Meta.Cached {
		t.Errorf("second call not served from cache")
	}
	if chain.calls != 1 {
		t.Errorf("chain calls = %d, want 1", chain.calls)
	}
	if len(second.Items) != 1 || second.Items[0].ProblemID != 1 {
		t.Errorf("cached items wrong: %+v", second.Items)
	}

	// A different user must not share the entry.
	if _, err := svc.GetRecommendations(userCtx(uuid.New()), Request{Limit: 5}); err != nil {
		t.Fatalf("third call: %v", err)
	}
	if chain.calls != 2 {
		t.Errorf("chain calls = %d, want 2", chain.calls)
	}
}

func TestGetRecommendations_BusyMessageNotCached(t *testing.T) {
	t.Parallel()

	store := cache.NewMemoryStore(0)
	defer store.Close()

	chain := defaultedChain(domain.StrategyBusyMessage, "RATE_LIMITED")
	svc := newTestService(t, queueOf(), nil, chain, store)
	userID := uuid.New()

	for i := 0; i < 2; i++ {
		if _, err := svc.GetRecommendations(userCtx(userID), Request{Limit: 5}); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if chain.calls != 2 {
		t.Errorf("chain calls = %d, want 2 (busy responses must not be cached)", chain.calls)
	}
}

func TestGetRecommendations_Unauthorized(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, queueOf(), nil, successChain(), nil)

	_, err := svc.GetRecommendations(context.Background(), Request{Limit: 5})
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
}

func TestNormalizeClampsAndFilters(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, queueOf(), nil, nil, nil)

	got := svc.normalize(Request{
		Limit:                500,
		TimeboxMinutes:       1000,
		DifficultyPreference: "medium",
		TargetDomains:        []string{"graphs", "celebrity-gossip", "dp"},
	})

	if got.Limit != maxLimit {
		t.Errorf("limit = %d, want %d", got.Limit, maxLimit)
	}
	if got.TimeboxMinutes != maxTimebox {
		t.Errorf("timebox = %d, want %d", got.TimeboxMinutes, maxTimebox)
	}
	if got.DifficultyPreference != "MEDIUM" {
		t.Errorf("difficulty = %q, want canonical MEDIUM", got.DifficultyPreference)
	}
	if len(got.TargetDomains) != 2 {
		t.Errorf("domains = %v, want whitelist survivors only", got.TargetDomains)
	}

	got = svc.normalize(Request{Limit: 0, TimeboxMinutes: 1, DifficultyPreference: "nightmare"})
	if got.Limit != minLimit || got.TimeboxMinutes != minTimebox || got.DifficultyPreference != "" {
		t.Errorf("lower clamps wrong: %+v", got)
	}
}

// ---------------------------------------------------------------------------
// Cache key
// ---------------------------------------------------------------------------

func TestCacheKeyStableUnderDomainOrder(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	a := cacheKey(userID, Request{Limit: 5, TargetDomains: []string{"dp", "graphs"}}, "v2", "c1")
	b := cacheKey(userID, Request{Limit: 5, TargetDomains: []string{"graphs", "dp"}}, "v2", "c1")
	if a != b {
		t.Errorf("key differs under domain order")
	}

	c := cacheKey(uuid.New(), Request{Limit: 5, TargetDomains: []string{"dp", "graphs"}}, "v2", "c1")
	if a == c {
		t.Errorf("key identical across users")
	}

	d := cacheKey(userID, Request{Limit: 5, TargetDomains: []string{"dp", "graphs"}}, "v1", "c1")
	if a == d {
		t.Errorf("key identical across prompt versions")
	}
}

// ---------------------------------------------------------------------------
// Feedback
// ---------------------------------------------------------------------------

func TestRecordFeedback(t *testing.T) {
	t.Parallel()

	var stored *domain.RecommendationFeedback
	feedback := &feedbackRepoMock{
		CreateFunc: func(_ context.Context, fb *domain.RecommendationFeedback) (*domain.RecommendationFeedback, error) {
			stored = fb
			return fb, nil
		},
	}

	svc := NewService(discardLogger(), queueOf(), emptyProblems(), feedback, successChain(), nil, Config{})
	svc.now = func() time.Time { return time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC) }
	userID := uuid.New()

	got, err := svc.RecordFeedback(userCtx(userID), FeedbackInput{ProblemID: 3, Feedback: domain.FeedbackHelpful, Note: "nice pick"})
	if err != nil {
		t.Fatalf("RecordFeedback: %v", err)
	}
	if got.UserID != userID || stored.ProblemID != 3 || stored.Feedback != domain.FeedbackHelpful {
		t.Errorf("stored = %+v", stored)
	}
	if stored.RecordedAt.IsZero() {
		t.Errorf("recordedAt not set")
	}
}

func TestRecordFeedbackValidation(t *testing.T) {
	t.Parallel()

	svc := NewService(discardLogger(), queueOf(), emptyProblems(), &feedbackRepoMock{}, successChain(), nil, Config{})

	tests := []struct {
		name  string
		input FeedbackInput
	}{
		{"bad problem id", FeedbackInput{ProblemID: 0, Feedback: domain.FeedbackHelpful}},
		{"unknown kind", FeedbackInput{ProblemID: 1, Feedback: "meh"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RecordFeedback(userCtx(uuid.New()), tt.input)
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestBuildCandidates_FallbackHonorsPreferences(t *testing.T) {
	t.Parallel()

	var gotFilter domain.ProblemFilter
	problems := &problemRepoMock{
		GetByIDsFunc: func(context.Context, []int64) ([]domain.Problem, error) { return nil, nil },
		GetRecentFunc: func(context.Context, int) ([]domain.Problem, error) {
			t.Error("filtered listing matched, recent path must not run")
			return nil, nil
		},
		ListFunc: func(_ context.Context, filter domain.ProblemFilter) ([]domain.Problem, error) {
			gotFilter = filter
			return []domain.Problem{
				{ID: 7, Title: "Course Schedule", Difficulty: domain.DifficultyHard, Tags: []string{"graph"}},
			}, nil
		},
	}

	svc := NewService(discardLogger(), queueOf(), problems, &feedbackRepoMock{}, nil, nil, Config{
		TagDomains: map[string]string{"graph": "graphs", "bfs": "graphs", "dp": "dp"},
	})

	got, err := svc.BuildCandidates(context.Background(), uuid.New(), Request{
		Limit:                5,
		TargetDomains:        []string{"graphs"},
		DifficultyPreference: "HARD",
	})
	if err != nil {
		t.Fatalf("BuildCandidates: %v", err)
	}

	if gotFilter.Difficulty != domain.DifficultyHard {
		t.Errorf("filter.Difficulty = %q, want HARD", gotFilter.Difficulty)
	}
	if len(gotFilter.Tags) != 2 || gotFilter.Tags[0] != "bfs" || gotFilter.Tags[1] != "graph" {
		t.Errorf("filter.Tags = %v, want [bfs graph]", gotFilter.Tags)
	}
	if gotFilter.Limit != 5 {
		t.Errorf("filter.Limit = %d, want 5", gotFilter.Limit)
	}
	if len(got) != 1 || got[0].ProblemID != 7 {
		t.Fatalf("candidates = %+v, want filtered problem 7", got)
	}
	if got[0].Difficulty != domain.DifficultyHard || got[0].Topic != "graph" {
		t.Errorf("candidate features = %+v", got[0])
	}
}

func TestBuildCandidates_FilteredEmptyFallsBackToRecent(t *testing.T) {
	t.Parallel()

	problems := &problemRepoMock{
		GetByIDsFunc: func(context.Context, []int64) ([]domain.Problem, error) { return nil, nil },
		ListFunc: func(context.Context, domain.ProblemFilter) ([]domain.Problem, error) {
			return nil, nil
		},
		GetRecentFunc: func(context.Context, int) ([]domain.Problem, error) {
			return []domain.Problem{{ID: 9, Tags: []string{"arrays"}}}, nil
		},
	}

	svc := NewService(discardLogger(), queueOf(), problems, &feedbackRepoMock{}, nil, nil, Config{
		TagDomains: map[string]string{"graph": "graphs"},
	})

	got, err := svc.BuildCandidates(context.Background(), uuid.New(), Request{
		Limit:         5,
		TargetDomains: []string{"graphs"},
	})
	if err != nil {
		t.Fatalf("BuildCandidates: %v", err)
	}
	if len(got) != 1 || got[0].ProblemID != 9 {
		t.Errorf("candidates = %+v, want recent problem 9", got)
	}
}

func TestBuildCandidates_NoPreferencesSkipsFilteredListing(t *testing.T) {
	t.Parallel()

	problems := &problemRepoMock{
		GetByIDsFunc: func(context.Context, []int64) ([]domain.Problem, error) { return nil, nil },
		ListFunc: func(context.Context, domain.ProblemFilter) ([]domain.Problem, error) {
			t.Error("preference-free request must not hit the filtered listing")
			return nil, nil
		},
		GetRecentFunc: func(context.Context, int) ([]domain.Problem, error) {
			return []domain.Problem{{ID: 1}}, nil
		},
	}

	svc := newTestService(t, queueOf(), problems, nil, nil)

	got, err := svc.BuildCandidates(context.Background(), uuid.New(), Request{Limit: 5})
	if err != nil {
		t.Fatalf("BuildCandidates: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("candidates = %+v", got)
	}
}

func TestListFeedback(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	var gotLimit int
	feedback := &feedbackRepoMock{
		GetByUserIDFunc: func(_ context.Context, id uuid.UUID, limit int) ([]domain.RecommendationFeedback, error) {
			if id != userID {
				t.Errorf("user id = %s, want %s", id, userID)
			}
			gotLimit = limit
			return []domain.RecommendationFeedback{
				{ProblemID: 3, Feedback: domain.FeedbackHelpful},
			}, nil
		},
	}

	svc := NewService(discardLogger(), queueOf(), emptyProblems(), feedback, successChain(), nil, Config{})

	got, err := svc.ListFeedback(userCtx(userID), 0)
	if err != nil {
		t.Fatalf("ListFeedback: %v", err)
	}
	if gotLimit != 20 {
		t.Errorf("limit = %d, want default 20", gotLimit)
	}
	if len(got) != 1 || got[0].ProblemID != 3 {
		t.Errorf("records = %+v", got)
	}

	// Oversized limits clamp; anonymous requests are rejected.
	if _, err := svc.ListFeedback(userCtx(userID), 500); err != nil {
		t.Fatalf("ListFeedback: %v", err)
	}
	if gotLimit != 100 {
		t.Errorf("limit = %d, want clamped 100", gotLimit)
	}
	if _, err := svc.ListFeedback(context.Background(), 5); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
}
