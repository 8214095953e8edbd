// Package prompt builds the versioned system/user messages sent to ranking
// providers. The active version participates in recommendation cache keys,
// so template changes that alter model output must bump the version.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/algoprep/algoprep-backend/internal/domain"
)

// Known template versions.
const (
	VersionV1 = "v1"
	VersionV2 = "v2"
)

// CurrentVersion is the single source of truth for the active template
// version, used by both the builder and the cache key.
func CurrentVersion() string { return VersionV2 }

// Options carries the request context rendered into the user message.
type Options struct {
	Limit                int
	Objective            string
	TargetDomains        []string
	DifficultyPreference string
	TimeboxMinutes       int
}

// Messages is a built system/user message pair.
type Messages struct {
	System string
	User   string
}

// candidatePayload is the JSON shape of one candidate inside the user message.
type candidatePayload struct {
	ProblemID            int64    `json:"problemId"`
	Topic                string   `json:"topic,omitempty"`
	Difficulty           string   `json:"difficulty"`
	Tags                 []string `json:"tags,omitempty"`
	Attempts             int      `json:"attempts"`
	RecentAccuracy       float64  `json:"recentAccuracy"`
	RetentionProbability float64  `json:"retentionProbability"`
	DaysOverdue          int      `json:"daysOverdue"`
	UrgencyScore         float64  `json:"urgencyScore"`
}

// Build renders the messages for the given template version.
// Unknown versions are rejected so that a stale config cannot silently
// produce output the response parser does not understand.
func Build(version string, candidates []domain.ProblemCandidate, opts Options) (Messages, error) {
	switch version {
	case VersionV1:
		return buildV1(candidates, opts)
	case VersionV2:
		return buildV2(candidates, opts)
	default:
		return Messages{}, fmt.Errorf("unknown prompt version %q", version)
	}
}

const systemV2 = `You are a coach for algorithm interview preparation.
You rank practice problems for a learner based on spaced-repetition memory
signals. Respond with a single JSON object and nothing else.`

func buildV2(candidates []domain.ProblemCandidate, opts Options) (Messages, error) {
	payload := make([]candidatePayload, 0, len(candidates))
	for _, c := range candidates {
		payload = append(payload, candidatePayload{
			ProblemID:            c.ProblemID,
			Topic:                c.Topic,
			Difficulty:           string(c.Difficulty),
			Tags:                 c.Tags,
			Attempts:             c.Attempts,
			RecentAccuracy:       round3(c.RecentAccuracy),
			RetentionProbability: round3(c.RetentionProbability),
			DaysOverdue:          c.DaysOverdue,
			UrgencyScore:         round3(c.UrgencyScore),
		})
	}

	candidateJSON, err := json.Marshal(payload)
	if err != nil {
		return Messages{}, fmt.Errorf("marshal candidates: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Select and rank up to %d problems for the next practice session.\n\n", opts.Limit)

	if opts.Objective != "" {
		fmt.Fprintf(&b, "Learner objective: %s\n", opts.Objective)
	}
	if len(opts.TargetDomains) > 0 {
		fmt.Fprintf(&b, "Preferred domains: %s\n", strings.Join(opts.TargetDomains, ", "))
	}
	if opts.DifficultyPreference != "" {
		fmt.Fprintf(&b, "Difficulty preference: %s\n", opts.DifficultyPreference)
	}
	if opts.TimeboxMinutes > 0 {
		fmt.Fprintf(&b, "Available time: %d minutes\n", opts.TimeboxMinutes)
	}

	b.WriteString("\nCandidates (JSON):\n")
	b.Write(candidateJSON)
	b.WriteString("\n\nReturn strictly this JSON shape, using only problemId values from the candidates above:\n")
	b.WriteString(`{"items":[{"problemId":1,"reason":"...","confidence":0.0,"score":0.0}]}`)
	b.WriteString("\nBoth confidence and score must be within [0,1]. Order items best first.")

	return Messages{System: systemV2, User: b.String()}, nil
}

const systemV1 = `You rank coding practice problems. Reply with JSON only.`

// buildV1 is the retired compact template, kept for replaying cached keys
// produced before the v2 rollout.
func buildV1(candidates []domain.ProblemCandidate, opts Options) (Messages, error) {
	ids := make([]int64, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ProblemID)
	}
	idJSON, err := json.Marshal(ids)
	if err != nil {
		return Messages{}, fmt.Errorf("marshal candidate ids: %w", err)
	}

	user := fmt.Sprintf(
		"Rank up to %d of these problem ids for review: %s\n"+
			`Respond as {"items":[{"problemId":1,"reason":"...","confidence":0.5,"score":0.5}]}`,
		opts.Limit, idJSON)

	return Messages{System: systemV1, User: user}, nil
}

func round3(v float64) float64 {
	return float64(int(v*1000+0.5)) / 1000
}
