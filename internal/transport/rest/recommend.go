package rest

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/algoprep/algoprep-backend/internal/domain"
	"github.com/algoprep/algoprep-backend/internal/service/recommend"
)

type recommendService interface {
	GetRecommendations(ctx context.Context, req recommend.Request) (*domain.RecommendationResponse, error)
	RecordFeedback(ctx context.Context, input recommend.FeedbackInput) (*domain.RecommendationFeedback, error)
	ListFeedback(ctx context.Context, limit int) ([]domain.RecommendationFeedback, error)
}

// RecommendHandler serves the recommendation endpoints.
type RecommendHandler struct {
	svc recommendService
}

// NewRecommendHandler creates a RecommendHandler.
func NewRecommendHandler(svc recommendService) *RecommendHandler {
	return &RecommendHandler{svc: svc}
}

type recommendationItemDTO struct {
	ProblemID  int64   `json:"problemId"`
	Title      string  `json:"title,omitempty"`
	Difficulty string  `json:"difficulty,omitempty"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
	Score      float64 `json:"score"`
	Source     string  `json:"source"`
}

type recommendationMetaDTO struct {
	TraceID        string   `json:"traceId"`
	Cached         bool     `json:"cached"`
	Strategy       string   `json:"strategy"`
	ChainHops      []string `json:"chainHops"`
	FallbackReason string   `json:"fallbackReason,omitempty"`
	ChainID        string   `json:"chainId"`
	PromptVersion  string   `json:"promptVersion"`
}

type recommendationsResponse struct {
	Items []recommendationItemDTO `json:"items"`
	Meta  recommendationMetaDTO   `json:"meta"`
}

// Recommendations handles GET /api/v1/problems/ai-recommendations.
// Debug headers mirror the meta block so callers can see the serving path
// without parsing the body.
func (h *RecommendHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	req := recommend.Request{
		Objective:            q.Get("objective"),
		DifficultyPreference: q.Get("difficulty"),
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, domain.NewValidationError("limit", "must be an integer"))
			return
		}
		req.Limit = n
	}
	if raw := q.Get("timeboxMinutes"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, domain.NewValidationError("timeboxMinutes", "must be an integer"))
			return
		}
		req.TimeboxMinutes = n
	}
	if raw := q.Get("domains"); raw != "" {
		for _, d := range strings.Split(raw, ",") {
			if d = strings.TrimSpace(d); d != "" {
				req.TargetDomains = append(req.TargetDomains, d)
			}
		}
	}

	resp, err := h.svc.GetRecommendations(r.Context(), req)
	if err != nil {
		respondError(w, err)
		return
	}

	w.Header().Set("X-Trace-Id", resp.Meta.TraceID)
	w.Header().Set("X-Cache-Hit", strconv.FormatBool(resp.Meta.Cached))
	w.Header().Set("X-Rec-Source", sourceHeader(resp.Meta.Strategy))
	w.Header().Set("X-Provider-Chain", strings.Join(resp.Meta.ChainHops, ">"))
	if resp.Meta.FallbackReason != "" {
		w.Header().Set("X-Fallback-Reason", resp.Meta.FallbackReason)
	}

	items := make([]recommendationItemDTO, 0, len(resp.Items))
	for _, it := range resp.Items {
		items = append(items, recommendationItemDTO{
			ProblemID:  it.ProblemID,
			Title:      it.Title,
			Difficulty: string(it.Difficulty),
			Reason:     it.Reason,
			Confidence: it.Confidence,
			Score:      it.Score,
			Source:     it.Source,
		})
	}

	writeJSON(w, http.StatusOK, recommendationsResponse{
		Items: items,
		Meta: recommendationMetaDTO{
			TraceID:        resp.Meta.TraceID,
			Cached:         resp.Meta.Cached,
			Strategy:       resp.Meta.Strategy,
			ChainHops:      resp.Meta.ChainHops,
			FallbackReason: resp.Meta.FallbackReason,
			ChainID:        resp.Meta.ChainID,
			PromptVersion:  resp.Meta.PromptVersion,
		},
	})
}

func sourceHeader(strategy string) string {
	switch strategy {
	case domain.StrategyLLM:
		return "LLM"
	case domain.StrategyFSRSFallback:
		return "FSRS"
	default:
		return "DEFAULT"
	}
}

type feedbackRequest struct {
	Feedback string `json:"feedback"`
	Note     string `json:"note,omitempty"`
}

type feedbackResponse struct {
	ID         string    `json:"id"`
	ProblemID  int64     `json:"problemId"`
	Feedback   string    `json:"feedback"`
	RecordedAt time.Time `json:"recordedAt"`
}

// Feedback handles POST /api/v1/problems/{id}/recommendation-feedback.
func (h *RecommendHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	problemID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, domain.NewValidationError("id", "must be an integer"))
		return
	}

	var req feedbackRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}

	fb, err := h.svc.RecordFeedback(r.Context(), recommend.FeedbackInput{
		ProblemID: problemID,
		Feedback:  domain.FeedbackKind(req.Feedback),
		Note:      req.Note,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toFeedbackDTO(fb))
}

type feedbackHistoryResponse struct {
	Items []feedbackResponse `json:"items"`
}

// FeedbackHistory handles GET /api/v1/problems/recommendation-feedback.
func (h *RecommendHandler) FeedbackHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, domain.NewValidationError("limit", "must be an integer"))
			return
		}
		limit = n
	}

	records, err := h.svc.ListFeedback(r.Context(), limit)
	if err != nil {
		respondError(w, err)
		return
	}

	items := make([]feedbackResponse, 0, len(records))
	for i := range records {
		items = append(items, toFeedbackDTO(&records[i]))
	}
	writeJSON(w, http.StatusOK, feedbackHistoryResponse{Items: items})
}

func toFeedbackDTO(fb *domain.RecommendationFeedback) feedbackResponse {
	return feedbackResponse{
		ID:         fb.ID.String(),
		ProblemID:  fb.ProblemID,
		Feedback:   string(fb.Feedback),
		RecordedAt: fb.RecordedAt,
	}
}
