package fsrs

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/algoprep/algoprep-backend/internal/domain"
)

func propertyParams(t *testing.T) *gopter.Properties {
	t.Helper()
	cfg := gopter.DefaultTestParameters()
	cfg.MinSuccessfulTests = 200
	cfg.Rng.Seed(1729)
	return gopter.NewProperties(cfg)
}

var cardStates = []domain.CardState{
	domain.CardStateNew,
	domain.CardStateLearning,
	domain.CardStateReview,
	domain.CardStateRelearning,
}

func TestPropertyResultAlwaysClamped(t *testing.T) {
	properties := propertyParams(t)
	params := DefaultParameters()

	properties.Property("state, stability, difficulty and interval stay in range", prop.ForAll(
		func(stateIdx int, s, d float64, reps, lapses, elapsed, rating int) bool {
			card := &domain.Card{
				State:      cardStates[stateIdx],
				Stability:  s,
				Difficulty: d,
				Reps:       reps,
				Lapses:     lapses,
			}
			if card.State != domain.CardStateNew {
				last := testNow.Add(-time.Duration(elapsed) * 24 * time.Hour)
				card.LastReview = &last
			}

			res, err := CalculateNextReview(card, domain.Rating(rating), params, testNow)
			if err != nil {
				return false
			}
			return res.NewDifficulty >= MinDifficulty && res.NewDifficulty <= MaxDifficulty &&
				res.NewStability >= MinStability && res.NewStability <= MaxStability &&
				res.IntervalDays >= 1 &&
				res.NextReviewTime.After(testNow)
		},
		gen.IntRange(0, len(cardStates)-1),
		gen.Float64Range(0.01, 36500),
		gen.Float64Range(1, 10),
		gen.IntRange(0, 500),
		gen.IntRange(0, 20),
		gen.IntRange(0, 365),
		gen.IntRange(1, 4),
	))

	properties.TestingRun(t)
}

func TestPropertyStateTransitions(t *testing.T) {
	properties := propertyParams(t)
	params := DefaultParameters()

	properties.Property("transition matches the state machine table", prop.ForAll(
		func(stateIdx, rating int) bool {
			state := cardStates[stateIdx]
			card := &domain.Card{State: state, Stability: 5, Difficulty: 5}
			if state != domain.CardStateNew {
				last := testNow.Add(-48 * time.Hour)
				card.LastReview = &last
			}

			res, err := CalculateNextReview(card, domain.Rating(rating), params, testNow)
			if err != nil {
				return false
			}
			return res.NewState == NextState(state, domain.Rating(rating))
		},
		gen.IntRange(0, len(cardStates)-1),
		gen.IntRange(1, 4),
	))

	properties.TestingRun(t)
}

func TestPropertyReviewStabilityOrdering(t *testing.T) {
	properties := propertyParams(t)
	params := DefaultParameters()

	// Lapses fixed at 0: with a lapse history the forget formula w11^lapses*w12
	// can exceed a heavily-penalized recall multiplier.
	properties.Property("easy >= good and again < any success", prop.ForAll(
		func(s, d float64, elapsed int) bool {
			last := testNow.Add(-time.Duration(elapsed) * 24 * time.Hour)
			card := &domain.Card{
				State:      domain.CardStateReview,
				Stability:  s,
				Difficulty: d,
				Reps:       3,
				Lapses:     0,
				LastReview: &last,
			}

			var got [4]float64
			for r := domain.RatingAgain; r <= domain.RatingEasy; r++ {
				res, err := CalculateNextReview(card, r, params, testNow)
				if err != nil {
					return false
				}
				got[int(r)-1] = res.NewStability
			}

			return got[3] >= got[2] &&
				got[0] < got[1] && got[0] < got[2] && got[0] < got[3]
		},
		gen.Float64Range(1, 1000),
		gen.Float64Range(1, 10),
		gen.IntRange(1, 180),
	))

	properties.TestingRun(t)
}

func TestPropertyRetrievabilityMonotone(t *testing.T) {
	properties := propertyParams(t)

	properties.Property("R decreases as elapsed grows for fixed stability", prop.ForAll(
		func(s float64, e1, delta int) bool {
			e2 := e1 + delta
			return retrievability(e2, s) <= retrievability(e1, s)
		},
		gen.Float64Range(0.01, 36500),
		gen.IntRange(0, 1000),
		gen.IntRange(1, 1000),
	))

	properties.TestingRun(t)
}

func TestPropertyParameterArrayRoundTrip(t *testing.T) {
	properties := propertyParams(t)

	properties.Property("ToArray after FromArray is identity", prop.ForAll(
		func(raw []float64) bool {
			var w [WeightCount]float64
			copy(w[:], raw)
			return FromArray(w).ToArray() == w
		},
		gen.SliceOfN(WeightCount, gen.Float64Range(-100, 100)),
	))

	properties.TestingRun(t)
}
