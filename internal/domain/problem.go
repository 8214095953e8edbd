package domain

import (
	"time"

	"github.com/google/uuid"
)

// Problem is an immutable catalog entry. The core never writes problems.
type Problem struct {
	ID         int64
	Title      string
	Difficulty ProblemDifficulty
	Tags       []string
	Categories []int64
}

// ProblemFilter narrows a catalog listing. Zero values mean "no constraint".
type ProblemFilter struct {
	Difficulty ProblemDifficulty
	Tags       []string
	Categories []int64
	Limit      int
	Offset     int
}

// ProblemCandidate is a problem enriched with FSRS-derived urgency signals,
// constructed per request and handed to the ranking chain.
type ProblemCandidate struct {
	ProblemID            int64
	Topic                string
	Difficulty           ProblemDifficulty
	Tags                 []string
	Attempts             int
	RecentAccuracy       float64
	RetentionProbability float64
	DaysOverdue          int
	UrgencyScore         float64
}

// RankedItem is one entry of a ranking provider's output.
type RankedItem struct {
	ProblemID  int64
	Reason     string
	Confidence float64
	Score      float64
	Strategy   string
}

// RecommendationItem is one problem in the final recommendation payload.
type RecommendationItem struct {
	ProblemID  int64
	Title      string
	Difficulty ProblemDifficulty
	Reason     string
	Confidence float64
	Score      float64
	Source     string
}

// RecommendationMeta carries observability metadata for one response.
type RecommendationMeta struct {
	TraceID        string
	Cached         bool
	Strategy       string
	ChainHops      []string
	FallbackReason string
	ChainID        string
	PromptVersion  string
}

// RecommendationResponse is the assembled, ordered recommendation set.
type RecommendationResponse struct {
	Items []RecommendationItem
	Meta  RecommendationMeta
}

// RecommendationFeedback is an append-only user reaction record.
type RecommendationFeedback struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	ProblemID  int64
	Feedback   FeedbackKind
	Note       string
	RecordedAt time.Time
}
