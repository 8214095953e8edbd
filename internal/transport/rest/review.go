package rest

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/algoprep/algoprep-backend/internal/domain"
	"github.com/algoprep/algoprep-backend/internal/service/review"
	"github.com/algoprep/algoprep-backend/internal/service/review/fsrs"
)

type reviewService interface {
	SubmitReview(ctx context.Context, input review.SubmitReviewInput) (*review.SubmitReviewResult, error)
	GetReviewQueue(ctx context.Context, limit int) (*review.QueueResult, error)
	CountCohorts(ctx context.Context) (domain.CohortCounts, error)
	OptimizeUserParameters(ctx context.Context) (fsrs.Parameters, error)
}

// ReviewHandler serves the review endpoints.
type ReviewHandler struct {
	svc reviewService
}

// NewReviewHandler creates a ReviewHandler.
func NewReviewHandler(svc reviewService) *ReviewHandler {
	return &ReviewHandler{svc: svc}
}

type submitReviewRequest struct {
	ProblemID  int64  `json:"problemId"`
	Rating     int    `json:"rating"`
	ReviewType string `json:"reviewType,omitempty"`
}

type cardDTO struct {
	ID         string     `json:"id"`
	ProblemID  int64      `json:"problemId"`
	State      string     `json:"state"`
	Stability  float64    `json:"stability"`
	Difficulty float64    `json:"difficulty"`
	Reps       int        `json:"reps"`
	Lapses     int        `json:"lapses"`
	LastReview *time.Time `json:"lastReview,omitempty"`
	Due        time.Time  `json:"due"`
}

type submitReviewResponse struct {
	Card           cardDTO   `json:"card"`
	NewState       string    `json:"newState"`
	NextReviewDate time.Time `json:"nextReviewDate"`
	// Intervals previews the next interval in days per rating, Again..Easy.
	Intervals [4]int `json:"intervals"`
}

// Submit handles POST /api/v1/review/submit.
func (h *ReviewHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitReviewRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, err)
		return
	}

	result, err := h.svc.SubmitReview(r.Context(), review.SubmitReviewInput{
		ProblemID:  req.ProblemID,
		Rating:     domain.Rating(req.Rating),
		ReviewType: domain.ReviewType(req.ReviewType),
	})
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, submitReviewResponse{
		Card:           toCardDTO(result.Card),
		NewState:       string(result.NewState),
		NextReviewDate: result.NextReviewDate,
		Intervals:      result.Intervals,
	})
}

type queueResponse struct {
	NewCards        []cardDTO `json:"newCards"`
	LearningCards   []cardDTO `json:"learningCards"`
	ReviewCards     []cardDTO `json:"reviewCards"`
	RelearningCards []cardDTO `json:"relearningCards"`
	TotalCount      int       `json:"totalCount"`
}

// Queue handles GET /api/v1/review/queue.
func (h *ReviewHandler) Queue(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, domain.NewValidationError("limit", "must be an integer"))
			return
		}
		limit = n
	}

	result, err := h.svc.GetReviewQueue(r.Context(), limit)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, queueResponse{
		NewCards:        toCardDTOs(result.NewCards),
		LearningCards:   toCardDTOs(result.LearningCards),
		ReviewCards:     toCardDTOs(result.ReviewCards),
		RelearningCards: toCardDTOs(result.RelearningCards),
		TotalCount:      result.TotalCount,
	})
}

type cohortsResponse struct {
	New        int `json:"new"`
	Learning   int `json:"learning"`
	Review     int `json:"review"`
	Relearning int `json:"relearning"`
	Total      int `json:"total"`
}

// Cohorts handles GET /api/v1/review/cohorts.
func (h *ReviewHandler) Cohorts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.svc.CountCohorts(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, cohortsResponse{
		New:        counts.New,
		Learning:   counts.Learning,
		Review:     counts.Review,
		Relearning: counts.Relearning,
		Total:      counts.Total(),
	})
}

type optimizeResponse struct {
	Weights          []float64 `json:"weights"`
	RequestRetention float64   `json:"requestRetention"`
}

// Optimize handles POST /api/v1/review/optimize-parameters.
func (h *ReviewHandler) Optimize(w http.ResponseWriter, r *http.Request) {
	params, err := h.svc.OptimizeUserParameters(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, optimizeResponse{
		Weights:          params.W[:],
		RequestRetention: params.RequestRetention,
	})
}

func toCardDTO(c *domain.Card) cardDTO {
	return cardDTO{
		ID:         c.ID.String(),
		ProblemID:  c.ProblemID,
		State:      string(c.State),
		Stability:  c.Stability,
		Difficulty: c.Difficulty,
		Reps:       c.Reps,
		Lapses:     c.Lapses,
		LastReview: c.LastReview,
		Due:        c.Due,
	}
}

func toCardDTOs(cards []*domain.Card) []cardDTO {
	out := make([]cardDTO, 0, len(cards))
	for _, c := range cards {
		out = append(out, toCardDTO(c))
	}
	return out
}
