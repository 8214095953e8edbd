// Package llm defines the ranking provider contract and the resilient
// provider chain that dispatches recommendation requests across an ordered
// list of providers with a deterministic default at the end.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/algoprep/algoprep-backend/internal/domain"
)

// ErrorClass categorizes provider failures. The chain uses these classes
// to decide whether to descend to the next node or default immediately.
type ErrorClass string

const (
	ErrClassAPIKeyMissing ErrorClass = "API_KEY_MISSING"
	ErrClassTimeout       ErrorClass = "TIMEOUT"
	ErrClassHTTP5xx       ErrorClass = "HTTP_5XX"
	ErrClassHTTP4xx       ErrorClass = "HTTP_4XX"
	ErrClassParse         ErrorClass = "PARSE_ERROR"
	ErrClassRateLimited   ErrorClass = "RATE_LIMITED"
	ErrClassNetwork       ErrorClass = "NETWORK"
	ErrClassOther         ErrorClass = "OTHER"
)

// ProviderError is a classified provider failure. It never reaches API
// clients directly; the chain consumes it to drive descent.
type ProviderError struct {
	Class ErrorClass
	Cause error
}

func (e *ProviderError) Error() string {
	if e.Cause == nil {
		return string(e.Class)
	}
	return fmt.Sprintf("%s: %v", e.Class, e.Cause)
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// NewProviderError wraps cause with an error class.
func NewProviderError(class ErrorClass, cause error) *ProviderError {
	return &ProviderError{Class: class, Cause: cause}
}

// ClassOf extracts the error class from err, defaulting to OTHER.
func ClassOf(err error) ErrorClass {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Class
	}
	return ErrClassOther
}

// RankOptions carries per-request ranking context down to providers.
type RankOptions struct {
	UserID               uuid.UUID
	Limit                int
	Objective            string
	TargetDomains        []string
	DifficultyPreference string
	TimeboxMinutes       int
	PromptVersion        string
}

// RankResult is the outcome of one provider invocation. On failure Err is
// set and Items is empty. The default provider additionally sets Strategy.
type RankResult struct {
	Success    bool
	Provider   string
	Model      string
	Items      []domain.RankedItem
	LatencyMs  int64
	TokensUsed int
	Strategy   string
	Err        *ProviderError
}

// ErrClass returns the failure class of the result, or "" on success.
func (r RankResult) ErrClass() ErrorClass {
	if r.Success || r.Err == nil {
		return ""
	}
	return r.Err.Class
}

// Provider ranks candidate problems. Implementations must be safe for
// concurrent use and must honor ctx cancellation on outbound calls.
// Failures are reported inside the result so the chain can read the class.
type Provider interface {
	Name() string
	Rank(ctx context.Context, candidates []domain.ProblemCandidate, opts RankOptions) RankResult
}

// RankAsync invokes p on its own goroutine and delivers the result on the
// returned channel. Cancelling ctx cancels the underlying call.
func RankAsync(ctx context.Context, p Provider, candidates []domain.ProblemCandidate, opts RankOptions) <-chan RankResult {
	out := make(chan RankResult, 1)
	go func() {
		defer close(out)
		out <- p.Rank(ctx, candidates, opts)
	}()
	return out
}

// Catalog maps configured node names to provider implementations.
type Catalog struct {
	providers map[string]Provider
}

func NewCatalog(providers ...Provider) *Catalog {
	c := &Catalog{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		c.Register(p)
	}
	return c
}

func (c *Catalog) Register(p Provider) {
	c.providers[p.Name()] = p
}

func (c *Catalog) Lookup(name string) (Provider, bool) {
	p, ok := c.providers[name]
	return p, ok
}
