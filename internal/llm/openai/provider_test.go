package openai

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/algoprep/algoprep-backend/internal/domain"
	"github.com/algoprep/algoprep-backend/internal/llm"
	"github.com/algoprep/algoprep-backend/internal/prompt"
)

const testKeyEnv = "TEST_OPENAI_API_KEY"

func testProvider(t *testing.T, baseURL string) *Provider {
	t.Helper()
	t.Setenv(testKeyEnv, "sk-test")
	return New(Config{
		BaseURL:   baseURL,
		Model:     "gpt-4o-mini",
		APIKeyEnv: testKeyEnv,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testOpts() llm.RankOptions {
	return llm.RankOptions{Limit: 3, PromptVersion: prompt.CurrentVersion()}
}

var testCandidates = []domain.ProblemCandidate{
	{ProblemID: 1, Difficulty: domain.DifficultyEasy},
	{ProblemID: 2, Difficulty: domain.DifficultyMedium},
}

func completionBody(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
		"usage": map[string]any{"total_tokens": 321},
	})
	return string(b)
}

func TestRankSuccess(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/chat/completions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		io.WriteString(w, completionBody(`{"items":[{"problemId":2,"reason":"overdue","confidence":0.9,"score":0.8},{"problemId":1,"reason":"weak","confidence":0.6,"score":0.5}]}`))
	}))
	defer srv.Close()

	p := testProvider(t, srv.URL)
	res := p.Rank(context.Background(), testCandidates, testOpts())

	require.True(t, res.Success, "err: %v", res.Err)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "gpt-4o-mini", gotReq.Model)
	assert.Equal(t, float64(0), gotReq.Temperature)
	assert.Equal(t, "json_object", gotReq.ResponseFormat.Type)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)

	require.Len(t, res.Items, 2)
	assert.Equal(t, int64(2), res.Items[0].ProblemID)
	assert.Equal(t, 321, res.TokensUsed)
	assert.Equal(t, "openai", res.Provider)
}

func TestRankFencedContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, completionBody("```json\n{\"items\":[{\"problemId\":1,\"reason\":\"r\",\"confidence\":0.5,\"score\":0.5}]}\n```"))
	}))
	defer srv.Close()

	res := testProvider(t, srv.URL).Rank(context.Background(), testCandidates, testOpts())

	require.True(t, res.Success, "err: %v", res.Err)
	require.Len(t, res.Items, 1)
}

func TestRankMissingAPIKey(t *testing.T) {
	t.Setenv(testKeyEnv, "")
	p := New(Config{BaseURL: "http://unused", Model: "m", APIKeyEnv: testKeyEnv},
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	res := p.Rank(context.Background(), testCandidates, testOpts())

	assert.False(t, res.Success)
	assert.Equal(t, llm.ErrClassAPIKeyMissing, res.ErrClass())
}

func TestRankErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   llm.ErrorClass
	}{
		{"rate limited", http.StatusTooManyRequests, `{}`, llm.ErrClassRateLimited},
		{"server error", http.StatusBadGateway, `{}`, llm.ErrClassHTTP5xx},
		{"client error", http.StatusUnauthorized, `{}`, llm.ErrClassHTTP4xx},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			res := testProvider(t, srv.URL).Rank(context.Background(), testCandidates, testOpts())
			assert.False(t, res.Success)
			assert.Equal(t, tt.want, res.ErrClass())
		})
	}
}

func TestRankParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, completionBody("here you go: not json"))
	}))
	defer srv.Close()

	res := testProvider(t, srv.URL).Rank(context.Background(), testCandidates, testOpts())

	assert.False(t, res.Success)
	assert.Equal(t, llm.ErrClassParse, res.ErrClass())
}

func TestRankNoWellFormedItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, completionBody(`{"items":[]}`))
	}))
	defer srv.Close()

	res := testProvider(t, srv.URL).Rank(context.Background(), testCandidates, testOpts())

	assert.False(t, res.Success)
	assert.Equal(t, llm.ErrClassOther, res.ErrClass())
}

func TestRankTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		io.WriteString(w, completionBody(`{"items":[]}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res := testProvider(t, srv.URL).Rank(ctx, testCandidates, testOpts())

	assert.False(t, res.Success)
	assert.Equal(t, llm.ErrClassTimeout, res.ErrClass())
}

func TestClientTimeout(t *testing.T) {
	p := New(Config{BaseURL: "http://unused", Model: "m", APIKeyEnv: testKeyEnv, TimeoutMs: 250},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Equal(t, 250*time.Millisecond, p.client.Timeout)

	p = New(Config{BaseURL: "http://unused", Model: "m", APIKeyEnv: testKeyEnv},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Zero(t, p.client.Timeout, "unset TimeoutMs must leave the client unbounded")
}

func TestClientTimeoutExpires(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		io.WriteString(w, completionBody(`{"items":[]}`))
	}))
	defer srv.Close()

	t.Setenv(testKeyEnv, "sk-test")
	p := New(Config{BaseURL: srv.URL, Model: "m", APIKeyEnv: testKeyEnv, TimeoutMs: 20},
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	res := p.Rank(context.Background(), testCandidates, testOpts())

	assert.False(t, res.Success)
	assert.Equal(t, llm.ErrClassTimeout, res.ErrClass())
}

func TestRankNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	res := testProvider(t, srv.URL).Rank(context.Background(), testCandidates, testOpts())

	assert.False(t, res.Success)
	assert.Equal(t, llm.ErrClassNetwork, res.ErrClass())
}
