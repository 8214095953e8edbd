package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/algoprep/algoprep-backend/internal/domain"
)

// Accuracy heuristic coefficients. The base starts at 0.3 and moves with
// the card's memory signals, clamped to [0,1].
const (
	accBase            = 0.3
	accStabilityWeight = 0.7
	accStabilityScale  = 30.0
	accDifficultyCap   = 0.5
	accRepsStep        = 0.02
	accRepsCap         = 0.2
	accLapseStep       = 0.1
	accLapseCap        = 0.4

	overdueBoostCap = 0.3

	neutralAccuracy = 0.5
	neutralUrgency  = 0.5
)

// BuildCandidates produces up to req.Limit candidates for the user, ordered
// least-practiced and weakest first. Any failure in the primary path
// degrades to the catalog fallback instead of erroring.
func (s *Service) BuildCandidates(ctx context.Context, userID uuid.UUID, req Request) ([]domain.ProblemCandidate, error) {
	limit := req.Limit
	if limit < minLimit {
		limit = minLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	candidates, err := s.candidatesFromCards(ctx, userID, limit)
	if err != nil {
		s.log.WarnContext(ctx, "candidate build failed, using catalog fallback",
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()))
		return s.catalogFallback(ctx, req, limit)
	}
	if len(candidates) == 0 {
		return s.catalogFallback(ctx, req, limit)
	}

	s.enrichTags(ctx, candidates)
	return candidates, nil
}

func (s *Service) candidatesFromCards(ctx context.Context, userID uuid.UUID, limit int) ([]domain.ProblemCandidate, error) {
	now := s.now().UTC()

	cards, err := s.cards.GetQueue(ctx, userID, now, limit)
	if err != nil {
		return nil, fmt.Errorf("get due cards: %w", err)
	}

	candidates := make([]domain.ProblemCandidate, 0, len(cards))
	for _, card := range cards {
		candidates = append(candidates, candidateFromCard(card, now))
	}

	// Least practiced first, weakest first within equal practice.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Attempts != candidates[j].Attempts {
			return candidates[i].Attempts < candidates[j].Attempts
		}
		return candidates[i].RecentAccuracy < candidates[j].RecentAccuracy
	})

	return candidates, nil
}

func candidateFromCard(card *domain.Card, now time.Time) domain.ProblemCandidate {
	acc := accBase +
		math.Min(card.Stability/accStabilityScale, 1)*accStabilityWeight -
		math.Min(card.Difficulty/10, accDifficultyCap) +
		math.Min(float64(card.Reps)*accRepsStep, accRepsCap) -
		math.Min(float64(card.Lapses)*accLapseStep, accLapseCap)
	acc = clamp01(acc)

	elapsed := card.ElapsedDays(now)
	retention := 0.0
	if card.Stability > 0 {
		retention = clamp01(math.Exp(-float64(elapsed) / card.Stability))
	}

	overdue := 0
	if !card.Due.IsZero() && now.After(card.Due) {
		overdue = int(now.Sub(card.Due).Hours() / 24)
	}

	urgency := clamp01((1 - retention) + math.Min(overdueBoostCap, math.Log(float64(overdue)+1)/10))

	return domain.ProblemCandidate{
		ProblemID:            card.ProblemID,
		Attempts:             card.Reps,
		RecentAccuracy:       acc,
		RetentionProbability: retention,
		DaysOverdue:          overdue,
		UrgencyScore:         urgency,
	}
}

// catalogFallback builds neutral-prior candidates from the catalog, for new
// users or a failed primary path. Requests carrying target domains or a
// difficulty preference get a filtered listing; otherwise, or when the
// filter matches nothing, the newest entries are used.
func (s *Service) catalogFallback(ctx context.Context, req Request, limit int) ([]domain.ProblemCandidate, error) {
	problems, err := s.filteredProblems(ctx, req, limit)
	if err != nil {
		return nil, err
	}
	if len(problems) == 0 {
		problems, err = s.problems.GetRecent(ctx, limit)
		if err != nil {
			return nil, fmt.Errorf("get recent problems: %w", err)
		}
	}

	candidates := make([]domain.ProblemCandidate, 0, len(problems))
	for _, p := range problems {
		candidates = append(candidates, domain.ProblemCandidate{
			ProblemID:            p.ID,
			Topic:                firstTag(p.Tags),
			Difficulty:           p.Difficulty,
			Tags:                 p.Tags,
			Attempts:             0,
			RecentAccuracy:       neutralAccuracy,
			RetentionProbability: neutralAccuracy,
			UrgencyScore:         neutralUrgency,
		})
	}
	return candidates, nil
}

// filteredProblems lists catalog entries matching the request's preferences.
// Returns nil for preference-free requests. A listing failure degrades to
// nil so the caller falls through to the recent-entries path.
func (s *Service) filteredProblems(ctx context.Context, req Request, limit int) ([]domain.Problem, error) {
	if len(req.TargetDomains) == 0 && req.DifficultyPreference == "" {
		return nil, nil
	}

	problems, err := s.problems.List(ctx, domain.ProblemFilter{
		Difficulty: domain.ProblemDifficulty(req.DifficultyPreference),
		Tags:       s.domainTags(req.TargetDomains),
		Limit:      limit,
	})
	if err != nil {
		s.log.WarnContext(ctx, "filtered catalog listing failed, using recent problems",
			slog.String("error", err.Error()))
		return nil, nil
	}
	return problems, nil
}

// domainTags expands request domains to every catalog tag mapped onto one
// of them, sorted for stable queries.
func (s *Service) domainTags(domains []string) []string {
	if len(domains) == 0 {
		return nil
	}
	wanted := make(map[string]bool, len(domains))
	for _, d := range domains {
		wanted[d] = true
	}
	var tags []string
	for tag, dom := range s.cfg.TagDomains {
		if wanted[dom] {
			tags = append(tags, tag)
		}
	}
	sort.Strings(tags)
	return tags
}

// enrichTags fills tags, topic and difficulty from the catalog in a single
// batch lookup. Failures are swallowed: candidates remain usable bare.
func (s *Service) enrichTags(ctx context.Context, candidates []domain.ProblemCandidate) {
	ids := make([]int64, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ProblemID)
	}

	problems, err := s.problems.GetByIDs(ctx, ids)
	if err != nil {
		s.log.WarnContext(ctx, "tag enrichment failed, leaving candidates bare",
			slog.String("error", err.Error()))
		return
	}

	byID := make(map[int64]domain.Problem, len(problems))
	for _, p := range problems {
		byID[p.ID] = p
	}

	for i := range candidates {
		p, ok := byID[candidates[i].ProblemID]
		if !ok {
			continue
		}
		candidates[i].Tags = p.Tags
		candidates[i].Topic = firstTag(p.Tags)
		candidates[i].Difficulty = p.Difficulty
	}
}

func firstTag(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	return tags[0]
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
