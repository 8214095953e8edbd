package fsrs

import (
	"fmt"
	"math"
	"time"

	"github.com/algoprep/algoprep-backend/internal/domain"
)

// Result is the outcome of a single review calculation.
type Result struct {
	NewState       domain.CardState
	NewStability   float64
	NewDifficulty  float64
	IntervalDays   int
	ElapsedDays    int
	NextReviewTime time.Time
}

// CalculateNextReview computes the card's next memory state for a rating.
// Pure function: the stored card is not mutated; persistence is the caller's
// concern. Returns domain.ErrInvalidRating for ratings outside {1..4} and
// domain.ErrInvalidCard for a nil card or unknown state.
func CalculateNextReview(card *domain.Card, rating domain.Rating, params Parameters, now time.Time) (Result, error) {
	if !rating.Valid() {
		return Result{}, fmt.Errorf("rating %d: %w", rating, domain.ErrInvalidRating)
	}
	if card == nil || !card.State.Valid() {
		return Result{}, domain.ErrInvalidCard
	}

	elapsed := elapsedDays(card.LastReview, now)

	newS, err := nextStability(card, rating, elapsed, params)
	if err != nil {
		return Result{}, err
	}

	var newD float64
	if card.State == domain.CardStateNew {
		newD = CalculateInitialDifficulty(rating, params)
	} else {
		newD = nextDifficulty(card.Difficulty, rating, params)
	}

	if !finite(newS, newD) {
		return Result{}, fmt.Errorf("stability=%v difficulty=%v: %w", newS, newD, domain.ErrCalculation)
	}

	interval := scheduledInterval(newS, params.RequestRetention)

	return Result{
		NewState:       NextState(card.State, rating),
		NewStability:   newS,
		NewDifficulty:  newD,
		IntervalDays:   interval,
		ElapsedDays:    elapsed,
		NextReviewTime: now.Add(time.Duration(interval) * 24 * time.Hour),
	}, nil
}

// CalculateRetrievability predicts the probability of recall right now.
//
//	R = 0.9 ^ (elapsedDays / stability), clamped to [0, 1]
//
// Unseen cards return 1.0; cards with non-positive stability return 0.0.
func CalculateRetrievability(card *domain.Card, now time.Time) float64 {
	if card == nil || card.LastReview == nil {
		return 1.0
	}
	if card.Stability <= 0 {
		return 0.0
	}
	return retrievability(elapsedDays(card.LastReview, now), card.Stability)
}

// PredictOptimalInterval converts stability and a retention target to days.
//
//	interval = stability * ln(targetRetention) / ln(0.9)
//
// Clamped to [1, 36500].
func PredictOptimalInterval(stability, targetRetention float64) float64 {
	interval := stability * math.Log(targetRetention) / math.Log(0.9)
	if math.IsNaN(interval) || interval < 1 {
		return 1
	}
	if interval > MaxIntervalDays {
		return MaxIntervalDays
	}
	return interval
}

// CalculateAllIntervals previews the scheduled interval for each of the four
// ratings without mutating the card.
func CalculateAllIntervals(card *domain.Card, params Parameters, now time.Time) ([4]int, error) {
	var intervals [4]int
	for r := domain.RatingAgain; r <= domain.RatingEasy; r++ {
		res, err := CalculateNextReview(card, r, params, now)
		if err != nil {
			return intervals, err
		}
		intervals[int(r)-1] = res.IntervalDays
	}
	return intervals, nil
}

// CalculateInitialStability selects the first-review stability by rating:
// Again→w0, Hard→w1, Good→w2, Easy→w3. Clamped.
func CalculateInitialStability(rating domain.Rating, params Parameters) float64 {
	idx := int(rating) - 1
	if idx < 0 || idx > 3 {
		idx = 2
	}
	return clampStability(params.W[idx])
}

// CalculateInitialDifficulty computes the first-review difficulty.
//
//	D0 = w4 - exp(w4)*(rating-3)/exp(w4)
//
// The exp terms cancel algebraically; the literal form is kept to match the
// reference calculation bit for bit. Clamped to [1, 10].
func CalculateInitialDifficulty(rating domain.Rating, params Parameters) float64 {
	w4 := params.W[4]
	d := w4 - math.Exp(w4)*float64(int(rating)-3)/math.Exp(w4)
	return clampDifficulty(d)
}

// NextState applies the state machine transition table.
//
//	NEW:        Again/Hard stay NEW, Good/Easy -> LEARNING
//	LEARNING:   Again -> NEW, Hard stays, Good/Easy -> REVIEW
//	REVIEW:     Again -> RELEARNING (lapse), otherwise stays REVIEW
//	RELEARNING: Again/Hard stay, Good/Easy -> REVIEW
func NextState(state domain.CardState, rating domain.Rating) domain.CardState {
	switch state {
	case domain.CardStateNew:
		if rating >= domain.RatingGood {
			return domain.CardStateLearning
		}
		return domain.CardStateNew
	case domain.CardStateLearning:
		switch rating {
		case domain.RatingAgain:
			return domain.CardStateNew
		case domain.RatingHard:
			return domain.CardStateLearning
		default:
			return domain.CardStateReview
		}
	case domain.CardStateReview:
		if rating == domain.RatingAgain {
			return domain.CardStateRelearning
		}
		return domain.CardStateReview
	case domain.CardStateRelearning:
		if rating >= domain.RatingGood {
			return domain.CardStateReview
		}
		return domain.CardStateRelearning
	}
	return state
}

// nextDifficulty updates difficulty after a non-first review.
//
//	D' = D - w5*(rating-3), clamped
func nextDifficulty(d float64, rating domain.Rating, params Parameters) float64 {
	return clampDifficulty(d - params.W[5]*float64(int(rating)-3))
}

// nextStability dispatches the stability update on the pre-review state.
func nextStability(card *domain.Card, rating domain.Rating, elapsed int, params Parameters) (float64, error) {
	w := params.W

	switch card.State {
	case domain.CardStateNew:
		return CalculateInitialStability(rating, params), nil

	case domain.CardStateLearning, domain.CardStateRelearning:
		// S' = S * (1 + k(rating) + w7), relearning damped by 0.8.
		var k float64
		switch rating {
		case domain.RatingAgain:
			k = w[6]
		case domain.RatingHard:
			k = 1.2 * w[6]
		case domain.RatingGood:
			k = 1.5 * w[6]
		case domain.RatingEasy:
			k = 2.0 * w[6]
		}
		s := card.Stability * (1 + k + w[7])
		if card.State == domain.CardStateRelearning {
			s *= 0.8
		}
		if !finite(s) {
			return 0, fmt.Errorf("short-term stability: %w", domain.ErrCalculation)
		}
		return clampStability(s), nil

	case domain.CardStateReview:
		if rating == domain.RatingAgain {
			// Lapse: S' = S * w11^lapses * w12.
			s := card.Stability * math.Pow(w[11], float64(card.Lapses)) * w[12]
			if !finite(s) {
				return 0, fmt.Errorf("lapse stability: %w", domain.ErrCalculation)
			}
			return clampStability(s), nil
		}

		r := retrievability(elapsed, card.Stability)

		var ratingFactor float64
		switch rating {
		case domain.RatingHard:
			ratingFactor = w[8]
		case domain.RatingGood:
			ratingFactor = w[9]
		case domain.RatingEasy:
			ratingFactor = w[10]
		}

		elapsedTerm := 1.0
		if elapsed > 0 {
			elapsedTerm = 1 + w[16]*float64(elapsed)/card.Stability
		}

		mult := ratingFactor *
			math.Exp((1-card.Difficulty)*w[13]) *
			math.Exp((1-r)*w[14]) *
			math.Pow(w[15], float64(card.Lapses)) *
			elapsedTerm

		s := card.Stability * mult
		if !finite(s) {
			return 0, fmt.Errorf("recall stability: %w", domain.ErrCalculation)
		}
		return clampStability(s), nil
	}

	return 0, domain.ErrInvalidCard
}

// retrievability computes 0.9^(elapsed/stability) clamped to [0, 1].
func retrievability(elapsed int, stability float64) float64 {
	if stability <= 0 {
		return 0
	}
	r := math.Pow(0.9, float64(elapsed)/stability)
	return math.Max(0, math.Min(1, r))
}

// scheduledInterval rounds the optimal interval to whole days, min 1.
func scheduledInterval(stability, targetRetention float64) int {
	interval := int(math.Round(PredictOptimalInterval(stability, targetRetention)))
	if interval < 1 {
		return 1
	}
	if interval > MaxIntervalDays {
		return MaxIntervalDays
	}
	return interval
}

// elapsedDays is the whole-day difference between calendar dates.
// Cards without a last review report 0.
func elapsedDays(lastReview *time.Time, now time.Time) int {
	if lastReview == nil {
		return 0
	}
	last := lastReview.UTC().Truncate(24 * time.Hour)
	cur := now.UTC().Truncate(24 * time.Hour)
	days := int(math.Floor(cur.Sub(last).Hours() / 24))
	if days < 0 {
		return 0
	}
	return days
}
