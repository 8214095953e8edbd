//go:build e2e

package e2e_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/algoprep/algoprep-backend/internal/adapter/postgres"
	"github.com/algoprep/algoprep-backend/internal/adapter/postgres/card"
	"github.com/algoprep/algoprep-backend/internal/adapter/postgres/feedback"
	"github.com/algoprep/algoprep-backend/internal/adapter/postgres/params"
	"github.com/algoprep/algoprep-backend/internal/adapter/postgres/problem"
	"github.com/algoprep/algoprep-backend/internal/adapter/postgres/reviewlog"
	"github.com/algoprep/algoprep-backend/internal/adapter/postgres/testhelper"
	authpkg "github.com/algoprep/algoprep-backend/internal/auth"
	"github.com/algoprep/algoprep-backend/internal/cache"
	"github.com/algoprep/algoprep-backend/internal/config"
	"github.com/algoprep/algoprep-backend/internal/llm"
	"github.com/algoprep/algoprep-backend/internal/service/recommend"
	"github.com/algoprep/algoprep-backend/internal/service/review"
	"github.com/algoprep/algoprep-backend/internal/service/review/fsrs"
	"github.com/algoprep/algoprep-backend/internal/transport/middleware"
	"github.com/algoprep/algoprep-backend/internal/transport/rest"
)

const testJWTSecret = "e2e-test-secret-string-0123456789abcdef"

// testLogWriter adapts testing.T to io.Writer for slog.
type testLogWriter struct{ t *testing.T }

func (w testLogWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Logf("%s", p)
	return len(p), nil
}

// testServer wraps the full-stack HTTP server for E2E tests.
type testServer struct {
	URL    string
	Client *http.Client
	Pool   *pgxpool.Pool
	jwt    *authpkg.JWTManager
}

// newTestServer wires the complete stack against the shared test database.
// With llmEnabled the ranking chain runs a single mock provider node;
// without it every recommendation degrades to the scheduling fallback.
func newTestServer(t *testing.T, llmEnabled bool) *testServer {
	t.Helper()

	pool := testhelper.SetupTestDB(t)
	logger := slog.New(slog.NewTextHandler(testLogWriter{t}, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cardRepo := card.New(pool)
	reviewLogRepo := reviewlog.New(pool)
	problemRepo := problem.New(pool)
	feedbackRepo := feedback.New(pool)
	paramsRepo := params.New(pool)
	txm := postgres.NewTxManager(pool)

	reviewSvc, err := review.NewService(logger, cardRepo, reviewLogRepo, paramsRepo, txm, fsrs.DefaultParameters())
	require.NoError(t, err)

	chain := llm.NewChain(llm.Config{
		Enabled: llmEnabled,
		ID:      "e2e",
		Nodes: []llm.Node{
			{Name: "mock", Enabled: true, TimeoutMs: 2000},
		},
		DefaultStrategy: "fsrs_fallback",
		GlobalRPS:       100,
		GlobalBurst:     100,
		PerUserPerMin:   1000,
	}, llm.NewCatalog(llm.NewMockProvider()), llm.NewDefaultProvider("fsrs_fallback"), logger)

	store := cache.NewMemoryStore(time.Minute)
	t.Cleanup(store.Close)

	recommendSvc := recommend.NewService(logger, cardRepo, problemRepo, feedbackRepo, chain, store,
		recommend.Config{
			DomainWhitelist: map[string]bool{"graphs": true, "dp": true, "fundamentals": true},
			TagDomains:      map[string]string{"graph": "graphs", "bfs": "graphs", "dp": "dp", "arrays": "fundamentals"},
			Similarity:      recommend.NewSimilarityScorer(recommend.SimilarityWeights{Tags: 0.6, Categories: 0.25, Difficulty: 0.15}, 0.5),
			CacheTTL:        time.Hour,
		})

	jwtManager := authpkg.NewJWTManager(testJWTSecret, "algoprep", 15*time.Minute)

	router := rest.NewRouter(rest.RouterDeps{
		Review:    rest.NewReviewHandler(reviewSvc),
		Recommend: rest.NewRecommendHandler(recommendSvc),
		Health:    rest.NewHealthHandler(pool, "e2e"),
		Base: middleware.Chain(
			middleware.RequestID,
			middleware.Recovery(logger),
			middleware.CORS(config.CORSConfig{AllowedOrigins: "*"}),
		),
		Auth: middleware.Auth(jwtManager),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testServer{
		URL:    srv.URL,
		Client: srv.Client(),
		Pool:   pool,
		jwt:    jwtManager,
	}
}

// token mints an access token for the given user.
func (s *testServer) token(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	tok, err := s.jwt.GenerateAccessToken(userID)
	require.NoError(t, err)
	return tok
}

// doJSON performs an authenticated JSON request and decodes the body into
// a generic map. Returns the raw response for header and status checks.
func (s *testServer) doJSON(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.Client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	// Middleware rejections write plain text; leave the map empty for those.
	result := map[string]any{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &result)
	}
	return resp, result
}

func itemsOf(t *testing.T, result map[string]any) []any {
	t.Helper()
	items, ok := result["items"].([]any)
	require.True(t, ok, "expected items array, got: %v", result)
	return items
}

func metaOf(t *testing.T, result map[string]any) map[string]any {
	t.Helper()
	meta, ok := result["meta"].(map[string]any)
	require.True(t, ok, "expected meta object, got: %v", result)
	return meta
}

func submitPath() string { return "/api/v1/review/submit" }

func recommendationsPath(query string) string {
	p := "/api/v1/problems/ai-recommendations"
	if query != "" {
		p += "?" + query
	}
	return p
}

func feedbackPath(problemID int64) string {
	return fmt.Sprintf("/api/v1/problems/%d/recommendation-feedback", problemID)
}

func feedbackHistoryPath() string { return "/api/v1/problems/recommendation-feedback" }
