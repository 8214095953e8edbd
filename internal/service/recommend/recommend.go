package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/algoprep/algoprep-backend/internal/domain"
	"github.com/algoprep/algoprep-backend/internal/llm"
	"github.com/algoprep/algoprep-backend/internal/metrics"
	"github.com/algoprep/algoprep-backend/internal/prompt"
	"github.com/algoprep/algoprep-backend/pkg/ctxutil"
)

const recommendationCacheType = "recommendation"

// GetRecommendations runs the full pipeline. It never returns an error for
// LLM-path failures: every degradation still yields a coherent response.
func (s *Service) GetRecommendations(ctx context.Context, req Request) (*domain.RecommendationResponse, error) {
	userID, ok := ctxutil.UserIDFromCtx(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	req = s.normalize(req)
	traceID := s.traceID(ctx)
	promptVersion := prompt.CurrentVersion()
	key := cacheKey(userID, req, promptVersion, s.chain.ID())

	if resp, hit := s.cacheGet(ctx, key); hit {
		resp.Meta.Cached = true
		resp.Meta.TraceID = traceID
		metrics.RecordCache(recommendationCacheType, true)
		metrics.RecommendationRequests.WithLabelValues(resp.Meta.Strategy, "true").Inc()
		return resp, nil
	}
	metrics.RecordCache(recommendationCacheType, false)

	candidates, err := s.BuildCandidates(ctx, userID, req)
	if err != nil {
		// Both the primary path and the fallback failed. Degrade to an
		// empty set rather than erroring the request.
		s.log.ErrorContext(ctx, "candidate build and fallback failed",
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()))
		candidates = nil
	}

	chainRes := s.chain.Execute(ctx, candidates, llm.RankOptions{
		UserID:               userID,
		Limit:                req.Limit,
		Objective:            req.Objective,
		TargetDomains:        req.TargetDomains,
		DifficultyPreference: req.DifficultyPreference,
		TimeboxMinutes:       req.TimeboxMinutes,
		PromptVersion:        promptVersion,
	})

	resp := s.assemble(ctx, req, candidates, chainRes)
	resp.Meta.TraceID = traceID
	resp.Meta.ChainID = s.chain.ID()
	resp.Meta.PromptVersion = promptVersion

	metrics.RecommendationRequests.WithLabelValues(resp.Meta.Strategy, "false").Inc()
	if resp.Meta.FallbackReason != "" {
		metrics.RecommendationFallbacks.WithLabelValues(resp.Meta.FallbackReason).Inc()
	}

	// Busy responses are transient by nature; caching one would pin the
	// user to an empty list for the whole TTL.
	if resp.Meta.Strategy != domain.StrategyBusyMessage {
		s.cacheSet(ctx, key, resp)
	}
	return resp, nil
}

func (s *Service) assemble(ctx context.Context, req Request, candidates []domain.ProblemCandidate, chainRes llm.Result) *domain.RecommendationResponse {
	if chainRes.Success {
		return &domain.RecommendationResponse{
			Items: s.mapRankedItems(ctx, chainRes.Ranked),
			Meta: domain.RecommendationMeta{
				Strategy:  domain.StrategyLLM,
				ChainHops: chainRes.Hops,
			},
		}
	}

	if chainRes.Strategy == domain.StrategyBusyMessage {
		return &domain.RecommendationResponse{
			Items: []domain.RecommendationItem{},
			Meta: domain.RecommendationMeta{
				Strategy:       domain.StrategyBusyMessage,
				ChainHops:      chainRes.Hops,
				FallbackReason: chainRes.DefaultReason,
			},
		}
	}

	return &domain.RecommendationResponse{
		Items: s.mapFallbackItems(ctx, req, candidates, req.Limit),
		Meta: domain.RecommendationMeta{
			Strategy:       domain.StrategyFSRSFallback,
			ChainHops:      chainRes.Hops,
			FallbackReason: chainRes.DefaultReason,
		},
	}
}

// mapRankedItems converts provider output to response items, preserving the
// model's order and enriching with catalog details.
func (s *Service) mapRankedItems(ctx context.Context, ranked llm.RankResult) []domain.RecommendationItem {
	ids := make([]int64, 0, len(ranked.Items))
	for _, it := range ranked.Items {
		ids = append(ids, it.ProblemID)
	}
	byID := s.problemDetails(ctx, ids)

	items := make([]domain.RecommendationItem, 0, len(ranked.Items))
	for _, it := range ranked.Items {
		item := domain.RecommendationItem{
			ProblemID:  it.ProblemID,
			Reason:     it.Reason,
			Confidence: it.Confidence,
			Score:      it.Score,
			Source:     ranked.Provider,
		}
		if p, ok := byID[it.ProblemID]; ok {
			item.Title = p.Title
			item.Difficulty = p.Difficulty
		}
		items = append(items, item)
	}
	return items
}

// mapFallbackItems returns the urgency-ordered candidates directly. When the
// request carries domain or difficulty preferences, similarity to that
// profile breaks ties between equally practiced candidates.
func (s *Service) mapFallbackItems(ctx context.Context, req Request, candidates []domain.ProblemCandidate, limit int) []domain.RecommendationItem {
	candidates = s.similarityTieBreak(req, candidates)
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	ids := make([]int64, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ProblemID)
	}
	byID := s.problemDetails(ctx, ids)

	items := make([]domain.RecommendationItem, 0, len(candidates))
	for _, c := range candidates {
		item := domain.RecommendationItem{
			ProblemID:  c.ProblemID,
			Difficulty: c.Difficulty,
			Reason:     fallbackReasonText(c),
			Confidence: c.UrgencyScore,
			Score:      c.UrgencyScore,
			Source:     "FSRS",
		}
		if p, ok := byID[c.ProblemID]; ok {
			item.Title = p.Title
			if item.Difficulty == "" {
				item.Difficulty = p.Difficulty
			}
		}
		items = append(items, item)
	}
	return items
}

// similarityTieBreak reorders candidates that tie on attempts and accuracy
// by descending similarity to the request profile. The primary ordering is
// never disturbed.
func (s *Service) similarityTieBreak(req Request, candidates []domain.ProblemCandidate) []domain.ProblemCandidate {
	if s.cfg.Similarity == nil || (len(req.TargetDomains) == 0 && req.DifficultyPreference == "") {
		return candidates
	}

	profile := s.requestProfile(req)
	scores := make([]float64, len(candidates))
	for i, c := range candidates {
		scores[i] = s.cfg.Similarity.Score(candidateFeatures(c), profile)
	}

	idx := make([]int, len(candidates))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ca, cb := candidates[idx[a]], candidates[idx[b]]
		if ca.Attempts != cb.Attempts {
			return ca.Attempts < cb.Attempts
		}
		if ca.RecentAccuracy != cb.RecentAccuracy {
			return ca.RecentAccuracy < cb.RecentAccuracy
		}
		return scores[idx[a]] > scores[idx[b]]
	})

	out := make([]domain.ProblemCandidate, len(candidates))
	for i, j := range idx {
		out[i] = candidates[j]
	}
	return out
}

// fallbackReasonText renders a human-readable reason from card signals.
func fallbackReasonText(c domain.ProblemCandidate) string {
	retention := int(c.RetentionProbability * 100)
	switch {
	case c.Attempts == 0:
		return "not practiced yet"
	case c.DaysOverdue > 0:
		return fmt.Sprintf("overdue by %d days, estimated retention %d%%", c.DaysOverdue, retention)
	default:
		return fmt.Sprintf("due for review, estimated retention %d%%", retention)
	}
}

func (s *Service) problemDetails(ctx context.Context, ids []int64) map[int64]domain.Problem {
	if len(ids) == 0 {
		return nil
	}
	problems, err := s.problems.GetByIDs(ctx, ids)
	if err != nil {
		s.log.WarnContext(ctx, "problem detail enrichment failed",
			slog.String("error", err.Error()))
		return nil
	}
	byID := make(map[int64]domain.Problem, len(problems))
	for _, p := range problems {
		byID[p.ID] = p
	}
	return byID
}

// ---------------------------------------------------------------------------
// Cache plumbing: errors are logged and swallowed, never surfaced.
// ---------------------------------------------------------------------------

func (s *Service) cacheGet(ctx context.Context, key string) (*domain.RecommendationResponse, bool) {
	if s.store == nil {
		return nil, false
	}
	raw, found, err := s.store.Get(ctx, key)
	if err != nil {
		s.log.WarnContext(ctx, "cache read failed", slog.String("error", err.Error()))
		return nil, false
	}
	if !found {
		return nil, false
	}

	var resp domain.RecommendationResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		s.log.WarnContext(ctx, "cache entry corrupt, recomputing", slog.String("error", err.Error()))
		return nil, false
	}
	return &resp, true
}

func (s *Service) cacheSet(ctx context.Context, key string, resp *domain.RecommendationResponse) {
	if s.store == nil {
		return
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		s.log.WarnContext(ctx, "cache marshal failed", slog.String("error", err.Error()))
		return
	}
	if err := s.store.Set(ctx, key, raw, s.cfg.CacheTTL); err != nil {
		s.log.WarnContext(ctx, "cache write failed", slog.String("error", err.Error()))
	}
}

func (s *Service) traceID(ctx context.Context) string {
	if id, ok := ctxutil.TraceIDFromCtx(ctx); ok && id != "" {
		return id
	}
	return uuid.NewString()
}
