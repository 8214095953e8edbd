package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/algoprep/algoprep-backend/internal/transport/middleware"
)

// RouterDeps bundles everything the router mounts.
type RouterDeps struct {
	Review    *ReviewHandler
	Recommend *RecommendHandler
	Health    *HealthHandler

	// Base runs outermost on every route: request id, logging, recovery,
	// CORS, rate limiting.
	Base middleware.Middleware
	// Auth resolves bearer tokens; mounted on the API subtree only.
	Auth middleware.Middleware
}

// NewRouter builds the chi router with all routes mounted.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(deps.Base)

	r.Get("/health", deps.Health.Health)
	r.Get("/health/live", deps.Health.Live)
	r.Get("/health/ready", deps.Health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(deps.Auth)

		api.Route("/review", func(rr chi.Router) {
			rr.Post("/submit", deps.Review.Submit)
			rr.Get("/queue", deps.Review.Queue)
			rr.Get("/cohorts", deps.Review.Cohorts)
			rr.Post("/optimize-parameters", deps.Review.Optimize)
		})

		api.Route("/problems", func(pr chi.Router) {
			pr.Get("/ai-recommendations", deps.Recommend.Recommendations)
			pr.Get("/recommendation-feedback", deps.Recommend.FeedbackHistory)
			pr.Post("/{id}/recommendation-feedback", deps.Recommend.Feedback)
		})
	})

	return r
}
