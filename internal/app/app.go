package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/algoprep/algoprep-backend/internal/adapter/postgres"
	"github.com/algoprep/algoprep-backend/internal/adapter/postgres/card"
	"github.com/algoprep/algoprep-backend/internal/adapter/postgres/feedback"
	"github.com/algoprep/algoprep-backend/internal/adapter/postgres/params"
	"github.com/algoprep/algoprep-backend/internal/adapter/postgres/problem"
	"github.com/algoprep/algoprep-backend/internal/adapter/postgres/reviewlog"
	"github.com/algoprep/algoprep-backend/internal/auth"
	"github.com/algoprep/algoprep-backend/internal/cache"
	"github.com/algoprep/algoprep-backend/internal/config"
	"github.com/algoprep/algoprep-backend/internal/llm"
	"github.com/algoprep/algoprep-backend/internal/llm/anthropic"
	"github.com/algoprep/algoprep-backend/internal/llm/openai"
	"github.com/algoprep/algoprep-backend/internal/service/recommend"
	"github.com/algoprep/algoprep-backend/internal/service/review"
	"github.com/algoprep/algoprep-backend/internal/service/review/fsrs"
	"github.com/algoprep/algoprep-backend/internal/transport/middleware"
	"github.com/algoprep/algoprep-backend/internal/transport/rest"
)

// Run is the application entry point. It loads configuration, wires the
// storage, scheduling, and recommendation layers together, and serves HTTP
// until ctx is canceled, then shuts down gracefully.
func Run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := NewLogger(cfg.Log)

	logger.Info("starting application",
		slog.String("version", BuildVersion()),
		slog.String("log_level", cfg.Log.Level),
		slog.Bool("llm_enabled", cfg.LLM.Enabled),
	)

	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, cfg.Database.DSN); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	cardRepo := card.New(pool)
	reviewLogRepo := reviewlog.New(pool)
	problemRepo := problem.New(pool)
	feedbackRepo := feedback.New(pool)
	paramsRepo := params.New(pool)
	txm := postgres.NewTxManager(pool)

	reviewSvc, err := review.NewService(logger, cardRepo, reviewLogRepo, paramsRepo, txm, defaultParameters(cfg.FSRS))
	if err != nil {
		return fmt.Errorf("create review service: %w", err)
	}

	catalog := llm.NewCatalog(
		openai.New(openai.Config{
			BaseURL:   cfg.LLM.OpenAI.BaseURL,
			Model:     cfg.LLM.OpenAI.Model,
			APIKeyEnv: cfg.LLM.OpenAI.APIKeyEnv,
			TimeoutMs: cfg.LLM.OpenAI.TimeoutMs,
		}, logger),
		anthropic.New(anthropic.Config{
			Model:     cfg.LLM.Anthropic.Model,
			APIKeyEnv: cfg.LLM.Anthropic.APIKeyEnv,
			MaxTokens: cfg.LLM.Anthropic.MaxTokens,
		}, logger),
		llm.NewMockProvider(),
	)
	chain := llm.NewChain(chainConfig(cfg.LLM), catalog,
		llm.NewDefaultProvider(cfg.LLM.DefaultStrategy), logger)

	store, closeStore := newCacheStore(cfg.Redis, logger)
	defer closeStore()

	recommendSvc := recommend.NewService(logger, cardRepo, problemRepo, feedbackRepo, chain, store,
		recommend.Config{
			DomainWhitelist: cfg.UserProfiling.DomainWhitelist(),
			TagDomains:      cfg.UserProfiling.TagDomainMapping,
			Similarity: recommend.NewSimilarityScorer(recommend.SimilarityWeights{
				Tags:       cfg.Similarity.Weights.Tags,
				Categories: cfg.Similarity.Weights.Categories,
				Difficulty: cfg.Similarity.Weights.Difficulty,
			}, cfg.Similarity.Thresholds.EmptyFeatureSimilarity),
			CacheTTL: time.Duration(cfg.Recommendation.CacheTTLSeconds) * time.Second,
		})

	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.AccessTokenTTL)

	rateLimiter := middleware.NewRateLimiter(time.Minute)
	defer rateLimiter.Stop()

	router := rest.NewRouter(rest.RouterDeps{
		Review:    rest.NewReviewHandler(reviewSvc),
		Recommend: rest.NewRecommendHandler(recommendSvc),
		Health:    rest.NewHealthHandler(pool, BuildVersion()),
		Base: middleware.Chain(
			middleware.RequestID,
			middleware.Recovery(logger),
			middleware.Logger(logger),
			middleware.CORS(cfg.CORS),
			rateLimiter.Limit(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst),
		),
		Auth: middleware.Auth(jwtManager),
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down",
		slog.Duration("timeout", cfg.Server.ShutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}

// defaultParameters builds the FSRS parameter set applied to users without
// optimized weights.
func defaultParameters(cfg config.FSRSConfig) fsrs.Parameters {
	p := fsrs.DefaultParameters()
	if cfg.HasCustomWeights {
		p.W = cfg.Weights
	}
	p.RequestRetention = cfg.DefaultRequestRetention
	return p
}

func chainConfig(cfg config.LLMConfig) llm.Config {
	nodes := make([]llm.Node, 0, len(cfg.Nodes))
	for _, n := range cfg.Nodes {
		classes := make([]llm.ErrorClass, 0, len(n.OnErrorsToNext))
		for _, c := range n.OnErrorsToNext {
			classes = append(classes, llm.ErrorClass(c))
		}
		nodes = append(nodes, llm.Node{
			Name:            n.Name,
			Enabled:         n.Enabled,
			TimeoutMs:       n.TimeoutMs,
			RetryAttempts:   n.RetryAttempts,
			OnErrorsToNext:  classes,
			RateLimitPerMin: n.RateLimitPerMin,
		})
	}
	return llm.Config{
		Enabled:         cfg.Enabled,
		ID:              cfg.ChainID,
		Nodes:           nodes,
		DefaultStrategy: cfg.DefaultStrategy,
		GlobalRPS:       cfg.GlobalRPS,
		GlobalBurst:     cfg.GlobalBurst,
		PerUserPerMin:   cfg.PerUserPerMin,
	}
}

// newCacheStore picks Redis when an address is configured and an in-process
// store otherwise, so a single-node deployment needs no extra infrastructure.
func newCacheStore(cfg config.RedisConfig, logger *slog.Logger) (cache.Store, func()) {
	if cfg.Addr == "" {
		logger.Info("recommendation cache: in-memory store")
		mem := cache.NewMemoryStore(time.Minute)
		return mem, mem.Close
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	logger.Info("recommendation cache: redis", slog.String("addr", cfg.Addr))
	return cache.NewRedisStore(client), func() { _ = client.Close() }
}
