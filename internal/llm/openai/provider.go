// Package openai implements the ranking provider for OpenAI-compatible
// chat completion APIs.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/algoprep/algoprep-backend/internal/llm"
	"github.com/algoprep/algoprep-backend/internal/prompt"

	"github.com/algoprep/algoprep-backend/internal/domain"
)

const maxResponseBytes = 1 << 20

// Config holds the provider settings. APIKeyEnv names the environment
// variable carrying the key; the key itself never appears in config files.
type Config struct {
	BaseURL   string
	Model     string
	APIKeyEnv string
	// TimeoutMs bounds the whole HTTP exchange. The chain node context
	// usually expires first; this is the backstop when it does not.
	TimeoutMs int
}

type Provider struct {
	cfg    Config
	client *http.Client
	log    *slog.Logger
}

// New builds the provider. The per-call deadline comes from the chain node
// context; the client timeout is the transport-level backstop.
func New(cfg Config, log *slog.Logger) *Provider {
	client := &http.Client{}
	if cfg.TimeoutMs > 0 {
		client.Timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond
	}
	return &Provider{
		cfg:    cfg,
		client: client,
		log:    log,
	}
}

func (p *Provider) Name() string { return "openai" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

func (p *Provider) Rank(ctx context.Context, candidates []domain.ProblemCandidate, opts llm.RankOptions) llm.RankResult {
	start := time.Now()
	fail := func(class llm.ErrorClass, err error) llm.RankResult {
		return llm.RankResult{
			Provider:  p.Name(),
			Model:     p.cfg.Model,
			LatencyMs: time.Since(start).Milliseconds(),
			Err:       llm.NewProviderError(class, err),
		}
	}

	key := os.Getenv(p.cfg.APIKeyEnv)
	if key == "" {
		return fail(llm.ErrClassAPIKeyMissing, fmt.Errorf("environment variable %s is not set", p.cfg.APIKeyEnv))
	}

	msgs, err := prompt.Build(opts.PromptVersion, candidates, prompt.Options{
		Limit:                opts.Limit,
		Objective:            opts.Objective,
		TargetDomains:        opts.TargetDomains,
		DifficultyPreference: opts.DifficultyPreference,
		TimeboxMinutes:       opts.TimeboxMinutes,
	})
	if err != nil {
		return fail(llm.ErrClassOther, err)
	}

	payload, err := json.Marshal(chatRequest{
		Model: p.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: msgs.System},
			{Role: "user", Content: msgs.User},
		},
		Temperature:    0,
		ResponseFormat: responseFormat{Type: "json_object"},
	})
	if err != nil {
		return fail(llm.ErrClassOther, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return fail(llm.ErrClassOther, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fail(llm.ErrClassTimeout, err)
		}
		return fail(llm.ErrClassNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fail(llm.ErrClassNetwork, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fail(llm.ErrClassRateLimited, statusError(resp.StatusCode, body))
	case resp.StatusCode >= 500:
		return fail(llm.ErrClassHTTP5xx, statusError(resp.StatusCode, body))
	case resp.StatusCode >= 400:
		return fail(llm.ErrClassHTTP4xx, statusError(resp.StatusCode, body))
	}

	var cr chatResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return fail(llm.ErrClassParse, fmt.Errorf("decode completion response: %w", err))
	}
	if len(cr.Choices) == 0 {
		return fail(llm.ErrClassParse, errors.New("completion response has no choices"))
	}

	items, err := llm.ParseRankedItems(cr.Choices[0].Message.Content)
	if err != nil {
		return fail(llm.ErrClassParse, err)
	}
	if len(items) == 0 {
		return fail(llm.ErrClassOther, errors.New("no well-formed items in completion"))
	}

	return llm.RankResult{
		Success:    true,
		Provider:   p.Name(),
		Model:      p.cfg.Model,
		Items:      items,
		LatencyMs:  time.Since(start).Milliseconds(),
		TokensUsed: cr.Usage.TotalTokens,
	}
}

func statusError(code int, body []byte) error {
	snippet := string(body)
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	return fmt.Errorf("upstream returned %d: %s", code, snippet)
}
