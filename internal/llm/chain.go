package llm

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/algoprep/algoprep-backend/internal/domain"
	"github.com/algoprep/algoprep-backend/internal/metrics"
)

// Fallback reasons reported when the chain does not reach a provider.
const (
	ReasonLLMDisabled = "llm_disabled"
	ReasonChainEmpty  = "chain_empty"
	ReasonCanceled    = "canceled"
)

const defaultHop = "default"

// Node configures one provider slot in the chain.
type Node struct {
	Name           string
	Enabled        bool
	TimeoutMs      int
	RetryAttempts  int
	OnErrorsToNext []ErrorClass
	// RateLimitPerMin caps invocations of this node alone. Zero disables
	// the per-node limiter; the global and per-user limiters still apply.
	RateLimitPerMin int
}

func (n Node) allowsNext(class ErrorClass) bool {
	for _, c := range n.OnErrorsToNext {
		if c == class {
			return true
		}
	}
	return false
}

// Config describes the whole chain.
type Config struct {
	Enabled         bool
	ID              string
	Nodes           []Node
	DefaultStrategy string
	GlobalRPS       float64
	GlobalBurst     int
	PerUserPerMin   int
}

// Result is the chain outcome. Exactly one of two shapes: Success with a
// provider result, or defaulted with a reason and the default strategy.
type Result struct {
	Success       bool
	Hops          []string
	Ranked        RankResult
	Strategy      string
	DefaultReason string
}

// Chain runs providers in configured order with per-node timeout, retry,
// rate limiting and circuit breaking, descending on configured error
// classes and terminating in the default provider.
type Chain struct {
	cfg      Config
	catalog  *Catalog
	def      Provider
	log      *slog.Logger
	global   *rate.Limiter
	breakers map[string]*gobreaker.CircuitBreaker
	limiters map[string]*rate.Limiter

	mu      sync.Mutex
	perUser map[uuid.UUID]*rate.Limiter
}

func NewChain(cfg Config, catalog *Catalog, def Provider, log *slog.Logger) *Chain {
	c := &Chain{
		cfg:      cfg,
		catalog:  catalog,
		def:      def,
		log:      log,
		breakers: make(map[string]*gobreaker.CircuitBreaker, len(cfg.Nodes)),
		limiters: make(map[string]*rate.Limiter, len(cfg.Nodes)),
		perUser:  make(map[uuid.UUID]*rate.Limiter),
	}

	if cfg.GlobalRPS > 0 {
		burst := cfg.GlobalBurst
		if burst < 1 {
			burst = 1
		}
		c.global = rate.NewLimiter(rate.Limit(cfg.GlobalRPS), burst)
	}

	for _, node := range cfg.Nodes {
		name := node.Name
		c.breakers[name] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:     name,
			Interval: time.Minute,
			Timeout:  30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("circuit breaker state change",
					slog.String("provider", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()))
				metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			},
		})
		if node.RateLimitPerMin > 0 {
			c.limiters[name] = rate.NewLimiter(rate.Limit(float64(node.RateLimitPerMin)/60), node.RateLimitPerMin)
		}
	}
	return c
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}

// Execute runs the chain for one request. It never returns an error: every
// failure mode degrades to the default strategy with a reason.
func (c *Chain) Execute(ctx context.Context, candidates []domain.ProblemCandidate, opts RankOptions) Result {
	if !c.cfg.Enabled {
		metrics.ChainExecutions.WithLabelValues("disabled").Inc()
		return Result{Hops: []string{}, Strategy: c.cfg.DefaultStrategy, DefaultReason: ReasonLLMDisabled}
	}
	if len(c.cfg.Nodes) == 0 {
		metrics.ChainExecutions.WithLabelValues("empty").Inc()
		return Result{Hops: []string{}, Strategy: c.cfg.DefaultStrategy, DefaultReason: ReasonChainEmpty}
	}

	hops := make([]string, 0, len(c.cfg.Nodes)+1)
	var lastClass ErrorClass

	for _, node := range c.cfg.Nodes {
		if !node.Enabled {
			continue
		}
		provider, ok := c.catalog.Lookup(node.Name)
		if !ok {
			c.log.Warn("chain node not in catalog, skipping", slog.String("node", node.Name))
			continue
		}

		if ctx.Err() != nil {
			return c.defaulted(ctx, hops, candidates, opts, ReasonCanceled)
		}

		hops = append(hops, node.Name)

		if scope, ok := c.allow(node, opts.UserID); !ok {
			metrics.ChainRateLimited.WithLabelValues(node.Name, scope).Inc()
			lastClass = ErrClassRateLimited
			if node.allowsNext(ErrClassRateLimited) {
				continue
			}
			break
		}

		res := c.invoke(ctx, node, provider, candidates, opts)
		if res.Success {
			metrics.ChainExecutions.WithLabelValues("success").Inc()
			metrics.ChainHops.Observe(float64(len(hops)))
			return Result{Success: true, Hops: hops, Ranked: res}
		}

		lastClass = res.ErrClass()
		c.log.Warn("provider failed",
			slog.String("provider", node.Name),
			slog.String("class", string(lastClass)),
			slog.Int64("latency_ms", res.LatencyMs))

		if ctx.Err() != nil {
			return c.defaulted(ctx, hops, candidates, opts, ReasonCanceled)
		}
		if !node.allowsNext(lastClass) {
			break
		}
	}

	reason := string(lastClass)
	if reason == "" {
		reason = c.cfg.DefaultStrategy
	}
	return c.defaulted(ctx, hops, candidates, opts, reason)
}

// ExecuteAsync runs Execute on its own goroutine and delivers the result on
// the returned channel. Cancelling ctx cancels in-flight provider calls.
func (c *Chain) ExecuteAsync(ctx context.Context, candidates []domain.ProblemCandidate, opts RankOptions) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		out <- c.Execute(ctx, candidates, opts)
	}()
	return out
}

// ID returns the configured chain identifier.
func (c *Chain) ID() string { return c.cfg.ID }

// Strategy returns the configured default strategy name.
func (c *Chain) Strategy() string { return c.cfg.DefaultStrategy }

func (c *Chain) defaulted(ctx context.Context, hops []string, candidates []domain.ProblemCandidate, opts RankOptions, reason string) Result {
	hops = append(hops, defaultHop)
	metrics.ChainExecutions.WithLabelValues("defaulted").Inc()
	metrics.ChainHops.Observe(float64(len(hops)))

	ranked := c.def.Rank(ctx, candidates, opts)
	strategy := ranked.Strategy
	if strategy == "" {
		strategy = c.cfg.DefaultStrategy
	}
	return Result{Hops: hops, Ranked: ranked, Strategy: strategy, DefaultReason: reason}
}

// allow checks the global, per-user and per-node limiters without blocking.
func (c *Chain) allow(node Node, userID uuid.UUID) (string, bool) {
	if c.global != nil && !c.global.Allow() {
		return "global", false
	}
	if c.cfg.PerUserPerMin > 0 && userID != uuid.Nil && !c.userLimiter(userID).Allow() {
		return "user", false
	}
	if lim, ok := c.limiters[node.Name]; ok && !lim.Allow() {
		return "node", false
	}
	return "", true
}

func (c *Chain) userLimiter(userID uuid.UUID) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	lim, ok := c.perUser[userID]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(float64(c.cfg.PerUserPerMin)/60), c.cfg.PerUserPerMin)
		c.perUser[userID] = lim
	}
	return lim
}

// invoke runs a single node with its timeout, retry policy and breaker.
func (c *Chain) invoke(ctx context.Context, node Node, provider Provider, candidates []domain.ProblemCandidate, opts RankOptions) RankResult {
	attempts := node.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.NewFibonacci(100*time.Millisecond))

	var last RankResult
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		res, err := c.callThroughBreaker(ctx, node, provider, candidates, opts)
		if err != nil {
			// Breaker open: do not keep hammering the node.
			last = RankResult{Provider: node.Name, Err: NewProviderError(ErrClassOther, err)}
			return err
		}
		if !res.Success && res.Err == nil {
			res.Err = NewProviderError(ErrClassOther, nil)
		}
		last = res
		if res.Success {
			return nil
		}
		if transient(res.ErrClass()) {
			return retry.RetryableError(res.Err)
		}
		return res.Err
	})

	c.record(node.Name, last)
	if err != nil && last.Err == nil {
		last = RankResult{Provider: node.Name, Err: classify(err)}
	}
	return last
}

func (c *Chain) callThroughBreaker(ctx context.Context, node Node, provider Provider, candidates []domain.ProblemCandidate, opts RankOptions) (RankResult, error) {
	out, err := c.breakers[node.Name].Execute(func() (any, error) {
		callCtx := ctx
		if node.TimeoutMs > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, time.Duration(node.TimeoutMs)*time.Millisecond)
			defer cancel()
		}
		res := provider.Rank(callCtx, candidates, opts)
		if !res.Success && res.Err != nil && countsAsBreakerFailure(res.ErrClass()) {
			// Returning the error lets the breaker count the failure; the
			// result still travels back for class inspection.
			return res, res.Err
		}
		return res, nil
	})

	if res, ok := out.(RankResult); ok {
		return res, nil
	}
	return RankResult{}, err
}

func (c *Chain) record(name string, res RankResult) {
	result := "success"
	if !res.Success {
		result = string(res.ErrClass())
		if result == "" {
			result = string(ErrClassOther)
		}
	}
	metrics.RecordProviderCall(name, result, res.Success, time.Duration(res.LatencyMs)*time.Millisecond)
	if res.TokensUsed > 0 {
		metrics.ProviderTokensUsed.WithLabelValues(name).Add(float64(res.TokensUsed))
	}
}

// transient errors are worth retrying against the same node.
func transient(class ErrorClass) bool {
	switch class {
	case ErrClassTimeout, ErrClassHTTP5xx, ErrClassNetwork:
		return true
	}
	return false
}

// countsAsBreakerFailure excludes failures that say nothing about node
// health, such as a missing key or a rejected request shape.
func countsAsBreakerFailure(class ErrorClass) bool {
	switch class {
	case ErrClassAPIKeyMissing, ErrClassHTTP4xx, ErrClassParse:
		return false
	}
	return true
}

func classify(err error) *ProviderError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewProviderError(ErrClassTimeout, err)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return NewProviderError(ErrClassOther, err)
	default:
		return NewProviderError(ErrClassOther, err)
	}
}
