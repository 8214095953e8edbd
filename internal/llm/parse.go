package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/algoprep/algoprep-backend/internal/domain"
)

type rankedPayload struct {
	Items []rankedItemPayload `json:"items"`
}

type rankedItemPayload struct {
	ProblemID  int64   `json:"problemId"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
	Score      float64 `json:"score"`
	Strategy   string  `json:"strategy"`
}

// ParseRankedItems extracts ranked items from a model completion. The
// content must be a JSON object with an items array, either raw or inside
// a fenced code block. Malformed individual items are dropped.
func ParseRankedItems(content string) ([]domain.RankedItem, error) {
	raw := stripFence(strings.TrimSpace(content))
	if raw == "" {
		return nil, fmt.Errorf("empty completion content")
	}

	var payload rankedPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("decode ranked items: %w", err)
	}

	items := make([]domain.RankedItem, 0, len(payload.Items))
	for _, it := range payload.Items {
		if it.ProblemID <= 0 {
			continue
		}
		items = append(items, domain.RankedItem{
			ProblemID:  it.ProblemID,
			Reason:     it.Reason,
			Confidence: clamp01(it.Confidence),
			Score:      clamp01(it.Score),
			Strategy:   it.Strategy,
		})
	}
	return items, nil
}

// stripFence unwraps ```json ... ``` and bare ``` fences.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		// Drop the language tag line, e.g. "json".
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
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
