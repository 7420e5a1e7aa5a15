package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	grerrors "github.com/Aman-CERP/grantlens/internal/errors"
)

// ResilienceConfig bounds and protects calls to a Completer.
type ResilienceConfig struct {
	// Timeout bounds a single attempt (default: 30s).
	Timeout time.Duration

	// RatePerSecond limits call starts. Zero disables limiting.
	RatePerSecond float64
	Burst         int

	RetryMaxRetries   int
	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

// DefaultResilienceConfig returns the defaults used for model calls.
func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		Timeout:                 DefaultTimeout,
		RatePerSecond:           5,
		Burst:                   5,
		RetryMaxRetries:         2,
		RetryInitialDelay:       500 * time.Millisecond,
		RetryMaxDelay:           4 * time.Second,
		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 2,
	}
}

func (c ResilienceConfig) normalize() ResilienceConfig {
	def := DefaultResilienceConfig()
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	if c.RetryMaxRetries < 0 {
		c.RetryMaxRetries = 0
	}
	if c.RetryInitialDelay <= 0 {
		c.RetryInitialDelay = def.RetryInitialDelay
	}
	if c.RetryMaxDelay < c.RetryInitialDelay {
		c.RetryMaxDelay = c.RetryInitialDelay
	}
	if c.BreakerMinRequests == 0 {
		c.BreakerMinRequests = def.BreakerMinRequests
	}
	if c.BreakerFailureRatio <= 0 || c.BreakerFailureRatio > 1 {
		c.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if c.BreakerOpenTimeout <= 0 {
		c.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if c.BreakerHalfOpenMaxCalls == 0 {
		c.BreakerHalfOpenMaxCalls = def.BreakerHalfOpenMaxCalls
	}
	return c
}

// CallObserver records the outcome of each model call.
type CallObserver interface {
	ObserveLLMCall(operation, outcome string, duration time.Duration)
}

// ResilientOption configures a Resilient.
type ResilientOption func(*Resilient)

// WithObserver reports every finished call to o.
func WithObserver(o CallObserver) ResilientOption {
	return func(r *Resilient) {
		r.observer = o
	}
}

// Resilient wraps a Completer with rate limiting, per-attempt timeouts,
// retry of transient failures and a circuit breaker per operation.
// Failures come back as GrantErrors in the collaborator category.
type Resilient struct {
	inner    Completer
	cfg      ResilienceConfig
	limiter  *rate.Limiter
	observer CallObserver

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[string]
}

// NewResilient wraps inner.
func NewResilient(inner Completer, cfg ResilienceConfig, opts ...ResilientOption) *Resilient {
	cfg = cfg.normalize()

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	r := &Resilient{
		inner:    inner,
		cfg:      cfg,
		limiter:  rate.NewLimiter(limit, cfg.Burst),
		breakers: make(map[string]*gobreaker.CircuitBreaker[string]),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ModelName implements Completer.
func (r *Resilient) ModelName() string { return r.inner.ModelName() }

// Complete implements Completer.
func (r *Resilient) Complete(ctx context.Context, req Request) (string, error) {
	op := strings.TrimSpace(req.Operation)
	if op == "" {
		op = "complete"
	}

	start := time.Now()
	var (
		out string
		err error
	)
	if r.cfg.BreakerEnabled {
		out, err = r.circuitBreaker(op).Execute(func() (string, error) {
			return r.completeWithRetry(ctx, op, req)
		})
	} else {
		out, err = r.completeWithRetry(ctx, op, req)
	}

	if r.observer != nil {
		r.observer.ObserveLLMCall(op, outcomeOf(err), time.Since(start))
	}
	if err != nil {
		slog.Warn("llm_call_failed",
			slog.String("operation", op),
			slog.String("model", r.inner.ModelName()),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return "", classify(op, err)
	}
	return out, nil
}

func (r *Resilient) completeWithRetry(ctx context.Context, op string, req Request) (string, error) {
	retryCfg := grerrors.RetryConfig{
		MaxRetries:   r.cfg.RetryMaxRetries,
		InitialDelay: r.cfg.RetryInitialDelay,
		MaxDelay:     r.cfg.RetryMaxDelay,
		Multiplier:   2.0,
		Jitter:       true,
		ShouldRetry:  IsTransient,
	}

	attempt := 0
	return grerrors.RetryWithResult(ctx, retryCfg, func() (string, error) {
		attempt++
		if attempt > 1 {
			slog.Debug("llm_retry_attempt",
				slog.String("operation", op),
				slog.Int("attempt", attempt))
		}

		if err := r.limiter.Wait(ctx); err != nil {
			return "", err
		}

		callCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
		return r.inner.Complete(callCtx, req)
	})
}

func (r *Resilient) circuitBreaker(op string) *gobreaker.CircuitBreaker[string] {
	r.mu.Lock()
	defer r.mu.Unlock()

	if breaker, ok := r.breakers[op]; ok {
		return breaker
	}

	settings := gobreaker.Settings{
		Name:        "llm_" + op,
		MaxRequests: r.cfg.BreakerHalfOpenMaxCalls,
		Timeout:     r.cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < r.cfg.BreakerMinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= r.cfg.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellation says nothing about the backend.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("circuit_breaker_state_change",
				slog.String("operation", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	}

	breaker := gobreaker.NewCircuitBreaker[string](settings)
	r.breakers[op] = breaker
	return breaker
}

// IsCircuitOpen reports whether err came from an open or saturated breaker.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case IsCircuitOpen(err):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

func classify(op string, err error) error {
	msg := fmt.Sprintf("language model %s call failed", op)

	var statusErr *StatusError
	switch {
	case IsCircuitOpen(err):
		return grerrors.New(grerrors.ErrCodeCircuitOpen, msg, err).
			WithSuggestion("The language model is failing repeatedly; retry later")
	case errors.Is(err, context.DeadlineExceeded):
		return grerrors.New(grerrors.ErrCodeNetworkTimeout, msg, err)
	case errors.As(err, &statusErr) && statusErr.StatusCode == 429:
		return grerrors.New(grerrors.ErrCodeRateLimited, msg, err)
	case errors.As(err, &statusErr) && (statusErr.StatusCode == 401 || statusErr.StatusCode == 403):
		return grerrors.New(grerrors.ErrCodeLLMFailed, msg, err).
			WithSuggestion("Check the API key (OPENAI_API_KEY or llm.api_key_env)")
	default:
		return grerrors.New(grerrors.ErrCodeLLMFailed, msg, err)
	}
}
