// Package anthropic implements the ranking provider for the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/algoprep/algoprep-backend/internal/domain"
	"github.com/algoprep/algoprep-backend/internal/llm"
	"github.com/algoprep/algoprep-backend/internal/prompt"
)

const defaultMaxTokens = 2048

type Config struct {
	Model     string
	APIKeyEnv string
	MaxTokens int
}

type Provider struct {
	cfg Config
	log *slog.Logger
}

func New(cfg Config, log *slog.Logger) *Provider {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	return &Provider{cfg: cfg, log: log}
}

func (p *Provider) Name() string { return "anthropic" }

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

	client := sdk.NewClient(option.WithAPIKey(key))
	msg, err := client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(p.cfg.Model),
		MaxTokens: int64(p.cfg.MaxTokens),
		System: []sdk.TextBlockParam{
			{Text: msgs.System},
		},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(msgs.User)),
		},
	})
	if err != nil {
		return fail(classifyErr(err), err)
	}

	if len(msg.Content) == 0 {
		return fail(llm.ErrClassParse, errors.New("empty message content"))
	}

	items, err := llm.ParseRankedItems(msg.Content[0].Text)
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
		TokensUsed: int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
	}
}

func classifyErr(err error) llm.ErrorClass {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return llm.ErrClassTimeout
	}
	var apierr *sdk.Error
	if errors.As(err, &apierr) {
		switch {
		case apierr.StatusCode == 429:
			return llm.ErrClassRateLimited
		case apierr.StatusCode >= 500:
			return llm.ErrClassHTTP5xx
		case apierr.StatusCode >= 400:
			return llm.ErrClassHTTP4xx
		}
	}
	return llm.ErrClassNetwork
}
