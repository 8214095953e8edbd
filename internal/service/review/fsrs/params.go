// Package fsrs implements the FSRS spaced-repetition memory model used for
// scheduling algorithm-practice reviews: a 17-weight stability/difficulty
// calculator, the card state machine, and a numeric parameter optimizer.
// All functions are pure; the package performs no I/O.
package fsrs

import (
	"fmt"
	"math"
)

// WeightCount is the number of model weights.
const WeightCount = 17

// Clamping bounds for memory state and scheduling.
const (
	MinStability    = 0.01
	MaxStability    = 36500.0
	MinDifficulty   = 1.0
	MaxDifficulty   = 10.0
	MaxIntervalDays = 36500
)

// Bounds for request retention, exclusive on both ends.
const (
	MinRequestRetention = 0.7
	MaxRequestRetention = 0.99
)

// defaultWeights are the stock FSRS model weights (w0..w16).
var defaultWeights = [WeightCount]float64{
	0.4,  // w0  - initial stability for Again
	0.6,  // w1  - initial stability for Hard
	2.4,  // w2  - initial stability for Good
	5.8,  // w3  - initial stability for Easy
	4.93, // w4  - initial difficulty baseline
	0.94, // w5  - difficulty update slope
	0.86, // w6  - short-term stability growth
	0.01, // w7  - short-term stability offset
	1.49, // w8  - recall factor for Hard
	0.14, // w9  - recall factor for Good
	0.94, // w10 - recall factor for Easy
	2.18, // w11 - lapse stability base
	0.05, // w12 - lapse stability multiplier
	0.34, // w13 - difficulty term in recall multiplier
	1.26, // w14 - retrievability term in recall multiplier
	0.29, // w15 - lapse decay in recall multiplier
	2.61, // w16 - elapsed-time term in recall multiplier
}

// DefaultRequestRetention is the target recall probability for scheduling.
const DefaultRequestRetention = 0.9

// Parameters holds the per-user FSRS model configuration.
type Parameters struct {
	W                [WeightCount]float64
	RequestRetention float64
}

// DefaultParameters returns the stock weights and retention target.
func DefaultParameters() Parameters {
	return Parameters{
		W:                defaultWeights,
		RequestRetention: DefaultRequestRetention,
	}
}

// Validate checks weight ranges and the retention target.
// w0..w3 must be in [0.01, 100], w4..w16 in [-10, 10], all finite,
// and RequestRetention strictly inside (0.7, 0.99).
func (p Parameters) Validate() error {
	for i, w := range p.W {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("weight w%d is not finite: %v", i, w)
		}
		if i < 4 {
			if w < 0.01 || w > 100 {
				return fmt.Errorf("weight w%d out of range [0.01, 100]: %v", i, w)
			}
			continue
		}
		if w < -10 || w > 10 {
			return fmt.Errorf("weight w%d out of range [-10, 10]: %v", i, w)
		}
	}
	if math.IsNaN(p.RequestRetention) ||
		p.RequestRetention <= MinRequestRetention || p.RequestRetention >= MaxRequestRetention {
		return fmt.Errorf("request retention out of range (0.7, 0.99): %v", p.RequestRetention)
	}
	return nil
}

// ToArray returns a copy of the weight vector.
func (p Parameters) ToArray() [WeightCount]float64 {
	return p.W
}

// FromArray builds Parameters from a weight vector, keeping the default
// retention target.
func FromArray(w [WeightCount]float64) Parameters {
	return Parameters{W: w, RequestRetention: DefaultRequestRetention}
}

// clampStability constrains stability to [MinStability, MaxStability].
func clampStability(s float64) float64 {
	return math.Max(MinStability, math.Min(MaxStability, s))
}

// clampDifficulty constrains difficulty to [MinDifficulty, MaxDifficulty].
func clampDifficulty(d float64) float64 {
	return math.Max(MinDifficulty, math.Min(MaxDifficulty, d))
}

// finite reports whether all values are representable numbers.
func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
