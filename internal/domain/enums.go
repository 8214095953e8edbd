package domain

// CardState is the FSRS lifecycle state of a card.
type CardState string

const (
	CardStateNew        CardState = "NEW"
	CardStateLearning   CardState = "LEARNING"
	CardStateReview     CardState = "REVIEW"
	CardStateRelearning CardState = "RELEARNING"
)

// Valid reports whether s is one of the four known states.
func (s CardState) Valid() bool {
	switch s {
	case CardStateNew, CardStateLearning, CardStateReview, CardStateRelearning:
		return true
	}
	return false
}

// Rating is the user's 4-point self-assessment of a review.
type Rating int

const (
	RatingAgain Rating = 1
	RatingHard  Rating = 2
	RatingGood  Rating = 3
	RatingEasy  Rating = 4
)

// Valid reports whether r is in {1..4}.
func (r Rating) Valid() bool {
	return r >= RatingAgain && r <= RatingEasy
}

// Success reports whether the rating counts as a successful recall.
func (r Rating) Success() bool {
	return r >= RatingGood
}

// ReviewType distinguishes how a review was initiated.
type ReviewType string

const (
	ReviewTypeScheduled ReviewType = "SCHEDULED"
	ReviewTypeExtra     ReviewType = "EXTRA"
	ReviewTypeCram      ReviewType = "CRAM"
	ReviewTypeManual    ReviewType = "MANUAL"
	ReviewTypeBulk      ReviewType = "BULK"
)

// Valid reports whether t is a known review type.
func (t ReviewType) Valid() bool {
	switch t {
	case ReviewTypeScheduled, ReviewTypeExtra, ReviewTypeCram, ReviewTypeManual, ReviewTypeBulk:
		return true
	}
	return false
}

// ProblemDifficulty is the editorial difficulty of a problem.
type ProblemDifficulty string

const (
	DifficultyEasy   ProblemDifficulty = "EASY"
	DifficultyMedium ProblemDifficulty = "MEDIUM"
	DifficultyHard   ProblemDifficulty = "HARD"
)

// Valid reports whether d is a known difficulty.
func (d ProblemDifficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// FeedbackKind is a user's reaction to a recommended problem.
type FeedbackKind string

const (
	FeedbackHelpful    FeedbackKind = "helpful"
	FeedbackNotHelpful FeedbackKind = "not_helpful"
	FeedbackMastered   FeedbackKind = "mastered"
)

// Valid reports whether f is a known feedback kind.
func (f FeedbackKind) Valid() bool {
	switch f {
	case FeedbackHelpful, FeedbackNotHelpful, FeedbackMastered:
		return true
	}
	return false
}

// Strategy labels how recommendation items were produced.
const (
	StrategyLLM          = "llm"
	StrategyFSRSFallback = "fsrs_fallback"
	StrategyBusyMessage  = "busy_message"
)
