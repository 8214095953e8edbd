package recommend

import (
	"github.com/algoprep/algoprep-backend/internal/domain"
)

// SimilarityWeights weighs the three feature channels of the scorer.
type SimilarityWeights struct {
	Tags       float64
	Categories float64
	Difficulty float64
}

// SimilarityScorer computes a [0,1] relatedness score between two problems
// from tag overlap, category overlap and difficulty affinity. A channel where
// either side has no data contributes emptyFeature instead of zero, so sparse
// catalog entries are not unfairly penalized.
type SimilarityScorer struct {
	weights      SimilarityWeights
	emptyFeature float64
}

func NewSimilarityScorer(w SimilarityWeights, emptyFeature float64) *SimilarityScorer {
	return &SimilarityScorer{weights: w, emptyFeature: clamp01(emptyFeature)}
}

// Score returns the weighted average of the per-channel similarities.
// Channels with zero weight are excluded entirely.
func (s *SimilarityScorer) Score(a, b domain.Problem) float64 {
	var sum, wsum float64

	if s.weights.Tags > 0 {
		sum += s.weights.Tags * s.tagSimilarity(a.Tags, b.Tags)
		wsum += s.weights.Tags
	}
	if s.weights.Categories > 0 {
		sum += s.weights.Categories * s.categorySimilarity(a.Categories, b.Categories)
		wsum += s.weights.Categories
	}
	if s.weights.Difficulty > 0 {
		sum += s.weights.Difficulty * s.difficultyAffinity(a.Difficulty, b.Difficulty)
		wsum += s.weights.Difficulty
	}

	if wsum == 0 {
		return 0
	}
	return clamp01(sum / wsum)
}

func (s *SimilarityScorer) tagSimilarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return s.emptyFeature
	}
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	inter := 0
	union := len(set)
	for _, t := range b {
		if set[t] {
			inter++
			set[t] = false
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
}

func (s *SimilarityScorer) categorySimilarity(a, b []int64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return s.emptyFeature
	}
	set := make(map[int64]bool, len(a))
	for _, c := range a {
		set[c] = true
	}
	inter := 0
	union := len(set)
	for _, c := range b {
		if set[c] {
			inter++
			set[c] = false
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
}

// difficultyAffinity is 1 for equal levels, 0.5 for adjacent, 0 otherwise.
func (s *SimilarityScorer) difficultyAffinity(a, b domain.ProblemDifficulty) float64 {
	if a == "" || b == "" {
		return s.emptyFeature
	}
	da, db := difficultyRank(a), difficultyRank(b)
	if da < 0 || db < 0 {
		return s.emptyFeature
	}
	switch diff := da - db; {
	case diff == 0:
		return 1
	case diff == 1 || diff == -1:
		return 0.5
	default:
		return 0
	}
}

func difficultyRank(d domain.ProblemDifficulty) int {
	switch d {
	case domain.DifficultyEasy:
		return 0
	case domain.DifficultyMedium:
		return 1
	case domain.DifficultyHard:
		return 2
	default:
		return -1
	}
}

// requestProfile renders the request's preferences as a pseudo-problem the
// scorer can compare candidates against. Tags are every catalog tag mapped to
// one of the requested domains.
func (s *Service) requestProfile(req Request) domain.Problem {
	return domain.Problem{
		Difficulty: domain.ProblemDifficulty(req.DifficultyPreference),
		Tags:       s.domainTags(req.TargetDomains),
	}
}

func candidateFeatures(c domain.ProblemCandidate) domain.Problem {
	return domain.Problem{Tags: c.Tags, Difficulty: c.Difficulty}
}
