package fsrs

import (
	"math"
	"sort"

	"github.com/algoprep/algoprep-backend/internal/domain"
)

// Optimization hyperparameters.
const (
	minLogsForOptimization = 30
	gradientEpsilon        = 1e-6
	learningRate           = 0.01
	maxIterations          = 100
	gradientTolerance      = 1e-6
)

// OptimizeParameters fits the weight vector to a user's review history with
// numeric gradient descent. The loss is the mean squared error between the
// predicted retrievability 0.9^(elapsed/S) at each review and the observed
// outcome (rating >= Good counts as success), with stabilities obtained by
// replaying each card's log sequence under the candidate weights.
//
// The input parameters are returned unchanged when fewer than 30 logs are
// supplied, when the history yields no usable samples, or when the
// optimization fails for any reason.
func OptimizeParameters(logs []domain.ReviewLog, current Parameters) (out Parameters) {
	out = current

	if len(logs) < minLogsForOptimization {
		return out
	}

	defer func() {
		if r := recover(); r != nil {
			out = current
		}
	}()

	sequences := groupByProblem(logs)

	w := current.W
	if lossOver(sequences, w) < 0 {
		return out
	}

	for iter := 0; iter < maxIterations; iter++ {
		var grad [WeightCount]float64
		var norm float64

		for i := 0; i < WeightCount; i++ {
			up, down := w, w
			up[i] += gradientEpsilon
			down[i] -= gradientEpsilon

			lossUp := lossOver(sequences, up)
			lossDown := lossOver(sequences, down)
			if lossUp < 0 || lossDown < 0 {
				return out
			}

			grad[i] = (lossUp - lossDown) / (2 * gradientEpsilon)
			norm += grad[i] * grad[i]
		}

		if math.Sqrt(norm) < gradientTolerance {
			break
		}

		for i := 0; i < WeightCount; i++ {
			w[i] -= learningRate * grad[i]
		}
		clampWeights(&w)
	}

	fitted := Parameters{W: w, RequestRetention: current.RequestRetention}
	if err := fitted.Validate(); err != nil {
		return out
	}
	return fitted
}

// groupByProblem splits logs into per-card sequences ordered by review time.
func groupByProblem(logs []domain.ReviewLog) [][]domain.ReviewLog {
	byProblem := make(map[int64][]domain.ReviewLog)
	for _, l := range logs {
		byProblem[l.ProblemID] = append(byProblem[l.ProblemID], l)
	}

	sequences := make([][]domain.ReviewLog, 0, len(byProblem))
	for _, seq := range byProblem {
		sort.Slice(seq, func(i, j int) bool {
			return seq[i].ReviewedAt.Before(seq[j].ReviewedAt)
		})
		sequences = append(sequences, seq)
	}
	// Deterministic order across runs.
	sort.Slice(sequences, func(i, j int) bool {
		return sequences[i][0].ProblemID < sequences[j][0].ProblemID
	})
	return sequences
}

// lossOver replays all sequences under the candidate weights and returns the
// mean squared error. Returns -1 when the replay produces no samples or a
// non-finite value.
func lossOver(sequences [][]domain.ReviewLog, w [WeightCount]float64) float64 {
	params := Parameters{W: w, RequestRetention: DefaultRequestRetention}

	var sum float64
	var n int

	for _, seq := range sequences {
		sim := domain.Card{State: domain.CardStateNew}

		for i, l := range seq {
			if i > 0 {
				predicted := retrievability(l.ElapsedDays, sim.Stability)
				observed := 0.0
				if l.Rating.Success() {
					observed = 1.0
				}
				diff := predicted - observed
				sum += diff * diff
				n++
			}

			s, err := nextStability(&sim, l.Rating, l.ElapsedDays, params)
			if err != nil {
				return -1
			}
			if sim.State == domain.CardStateNew {
				sim.Difficulty = CalculateInitialDifficulty(l.Rating, params)
			} else {
				sim.Difficulty = nextDifficulty(sim.Difficulty, l.Rating, params)
			}
			if sim.State == domain.CardStateReview && l.Rating == domain.RatingAgain {
				sim.Lapses++
			}
			sim.Stability = s
			sim.State = NextState(sim.State, l.Rating)
		}
	}

	if n == 0 {
		return -1
	}
	mse := sum / float64(n)
	if !finite(mse) {
		return -1
	}
	return mse
}

// clampWeights pulls each weight back into its valid range after a step.
func clampWeights(w *[WeightCount]float64) {
	for i := 0; i < 4; i++ {
		w[i] = math.Max(0.01, math.Min(100, w[i]))
	}
	for i := 4; i < WeightCount; i++ {
		w[i] = math.Max(-10, math.Min(10, w[i]))
	}
}
