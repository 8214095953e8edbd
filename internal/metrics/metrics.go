// Package metrics exposes Prometheus instrumentation for the backend:
// review submissions, provider chain behavior, recommendation cache
// efficiency and repository query latency.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Review Metrics
	ReviewSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_submissions_total",
			Help: "Total number of submitted reviews",
		},
		[]string{"rating", "new_state"},
	)

	ReviewScheduleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "review_schedule_duration_seconds",
			Help:    "Duration of a full review submission (schedule + persist)",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Provider Chain Metrics
	ChainExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_chain_executions_total",
			Help: "Total number of provider chain executions",
		},
		[]string{"outcome"}, // "success", "defaulted", "disabled", "empty"
	)

	ChainHops = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "llm_chain_hops",
			Help:    "Number of providers attempted per chain execution",
			Buckets: []float64{1, 2, 3, 4, 5, 8},
		},
	)

	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_provider_requests_total",
			Help: "Total number of provider invocations",
		},
		[]string{"provider", "result"}, // result: "success" or an error class
	)

	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_provider_latency_seconds",
			Help:    "Latency of provider invocations in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider", "success"},
	)

	ProviderTokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_provider_tokens_total",
			Help: "Total number of tokens reported by providers",
		},
		[]string{"provider"},
	)

	ChainRateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_chain_rate_limited_total",
			Help: "Total number of node invocations skipped by rate limiting",
		},
		[]string{"provider", "scope"}, // scope: "global", "user"
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "llm_circuit_breaker_state",
			Help: "Circuit breaker state per provider (0=closed, 1=half-open, 2=open)",
		},
		[]string{"provider"},
	)

	// Recommendation Metrics
	RecommendationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_requests_total",
			Help: "Total number of recommendation requests",
		},
		[]string{"strategy", "cached"},
	)

	RecommendationFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_fallbacks_total",
			Help: "Total number of non-LLM recommendation outcomes by reason",
		},
		[]string{"reason"},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"}, // "recommendation"
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// Repository Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of database queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"repo", "operation"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_query_errors_total",
			Help: "Total number of database query errors",
		},
		[]string{"repo", "operation"},
	)

	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)
)

// RecordReviewSubmission records one submitted review.
func RecordReviewSubmission(rating int, newState string, duration time.Duration) {
	ReviewSubmissions.WithLabelValues(strconv.Itoa(rating), newState).Inc()
	ReviewScheduleDuration.Observe(duration.Seconds())
}

// RecordProviderCall records one provider invocation with its outcome.
func RecordProviderCall(provider, result string, success bool, latency time.Duration) {
	ProviderRequests.WithLabelValues(provider, result).Inc()
	ProviderLatency.WithLabelValues(provider, strconv.FormatBool(success)).Observe(latency.Seconds())
}

// RecordDBQuery records one repository query.
func RecordDBQuery(repo, operation string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(repo, operation).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(repo, operation).Inc()
	}
}

// RecordHTTPRequest records one served HTTP request.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordCache records a cache lookup outcome.
func RecordCache(cacheType string, hit bool) {
	if hit {
		CacheHits.WithLabelValues(cacheType).Inc()
		return
	}
	CacheMisses.WithLabelValues(cacheType).Inc()
}
