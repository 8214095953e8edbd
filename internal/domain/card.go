package domain

import (
	"time"

	"github.com/google/uuid"
)

// Card is the FSRS memory state for one (user, problem) pair.
// Cards are created lazily on first review, mutated only through the
// scheduling engine, and never deleted.
type Card struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	ProblemID  int64
	State      CardState
	Stability  float64
	Difficulty float64
	Reps       int
	Lapses     int
	LastReview *time.Time
	Due        time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsDue returns true if the card needs review at the given time.
// NEW cards are always due; other cards are due when Due <= now.
func (c *Card) IsDue(now time.Time) bool {
	if c.State == CardStateNew {
		return true
	}
	return !c.Due.After(now)
}

// ElapsedDays returns whole days since the last review, 0 for unseen cards.
func (c *Card) ElapsedDays(now time.Time) int {
	if c.LastReview == nil {
		return 0
	}
	elapsed := now.Sub(*c.LastReview)
	if elapsed < 0 {
		return 0
	}
	return int(elapsed.Hours() / 24)
}

// SRSUpdateParams carries the post-review card mutation applied in one
// update statement.
type SRSUpdateParams struct {
	State      CardState
	Stability  float64
	Difficulty float64
	Reps       int
	Lapses     int
	LastReview *time.Time
	Due        time.Time
}

// ReviewLog is an append-only record of a single review event.
// It references the card by id only; cards carry no back-pointer.
type ReviewLog struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	ProblemID      int64
	CardID         uuid.UUID
	Rating         Rating
	ReviewType     ReviewType
	ElapsedDays    int
	PrevStability  float64
	PrevDifficulty float64
	ReviewedAt     time.Time
}

// CohortCounts groups queue sizes per card state for the review queue payload.
type CohortCounts struct {
	New        int
	Learning   int
	Review     int
	Relearning int
}

// Total sums all cohorts.
func (c CohortCounts) Total() int {
	return c.New + c.Learning + c.Review + c.Relearning
}
