package llm

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-procure/internal/ports"
)

// ErrCircuitOpen is returned while the circuit breaker rejects requests.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// coreFunc adapts a function to CoreLLM for middleware that only
// intercepts DoRequest.
type coreFunc struct {
	next CoreLLM
	do   func(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error)
}

func (c coreFunc) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	return c.do(ctx, prompt, opts)
}

func (c coreFunc) GetModel() string { return c.next.GetModel() }

// TimeoutMiddleware bounds each request by d.
func TimeoutMiddleware(d time.Duration) Middleware {
	return func(next CoreLLM) CoreLLM {
		return coreFunc{next: next, do: func(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next.DoRequest(ctx, prompt, opts)
		}}
	}
}

// RateLimitMiddleware paces requests with a token bucket shared by every
// request through the returned middleware.
func RateLimitMiddleware(limit rate.Limit, burst int) Middleware {
	limiter := rate.NewLimiter(limit, burst)
	return func(next CoreLLM) CoreLLM {
		return coreFunc{next: next, do: func(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
			if err := limiter.Wait(ctx); err != nil {
				return "", 0, 0, fmt.Errorf("rate limit: %w", err)
			}
			return next.DoRequest(ctx, prompt, opts)
		}}
	}
}

// RetryMiddleware retries retryable failures up to maxRetries times with
// jittered exponential backoff capped at maxDelay.
func RetryMiddleware(maxRetries int, baseDelay, maxDelay time.Duration) Middleware {
	return func(next CoreLLM) CoreLLM {
		return coreFunc{next: next, do: func(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
			var lastErr error
			for attempt := 0; attempt <= maxRetries; attempt++ {
				text, in, out, err := next.DoRequest(ctx, prompt, opts)
				if err == nil {
					return text, in, out, nil
				}
				lastErr = err
				if ctx.Err() != nil || !IsRetryable(err) || attempt == maxRetries {
					break
				}
				select {
				case <-ctx.Done():
					return "", 0, 0, ctx.Err()
				case <-time.After(backoff(attempt, baseDelay, maxDelay)):
				}
			}
			return "", 0, 0, lastErr
		}}
	}
}

// backoff returns base·2^attempt with ±25% jitter, capped at limit.
func backoff(attempt int, base, limit time.Duration) time.Duration {
	attempt = min(max(attempt, 0), 30)
	d := base << attempt
	// #nosec G404 - jitter does not need a secure source
	d = d - d/4 + time.Duration(rand.Float64()*float64(d)/2)
	return min(d, limit)
}

// CircuitState is the state of a CircuitBreaker.
type CircuitState int

// Circuit states.
const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	}
	return "closed"
}

// CircuitBreaker opens after maxFailures consecutive failures and rejects
// calls until cooldown has elapsed, then lets one trial call through.
type CircuitBreaker struct {
	mu          sync.Mutex
	state       CircuitState
	failures    int
	maxFailures int
	cooldown    time.Duration
	openedAt    time.Time
	now         func() time.Time
}

// NewCircuitBreaker returns a closed breaker.
func NewCircuitBreaker(maxFailures int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{maxFailures: max(maxFailures, 1), cooldown: cooldown, now: time.Now}
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Call runs fn unless the circuit is open.
func (cb *CircuitBreaker) Call(fn func() error) error {
	cb.mu.Lock()
	if cb.state == StateOpen {
		if cb.now().Sub(cb.openedAt) < cb.cooldown {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.state = StateHalfOpen
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err == nil {
		cb.failures = 0
		cb.state = StateClosed
		return nil
	}
	cb.failures++
	if cb.state == StateHalfOpen || cb.failures >= cb.maxFailures {
		cb.state = StateOpen
		cb.openedAt = cb.now()
	}
	return err
}

// CircuitBreakerMiddleware routes requests through cb.
func CircuitBreakerMiddleware(cb *CircuitBreaker) Middleware {
	return func(next CoreLLM) CoreLLM {
		return coreFunc{next: next, do: func(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
			var (
				text    string
				in, out int
			)
			err := cb.Call(func() error {
				var err error
				text, in, out, err = next.DoRequest(ctx, prompt, opts)
				return err
			})
			return text, in, out, err
		}}
	}
}

// MetricsMiddleware records request latency, outcome and token usage.
func MetricsMiddleware(collector ports.MetricsCollector, provider string) Middleware {
	return func(next CoreLLM) CoreLLM {
		return coreFunc{next: next, do: func(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
			start := time.Now()
			text, in, out, err := next.DoRequest(ctx, prompt, opts)
			labels := map[string]string{"provider": provider, "model": next.GetModel(), "status": requestStatus(err)}
			collector.RecordLatency("llm_request", time.Since(start), labels)
			collector.RecordCounter("llm_requests_total", 1, labels)
			if err == nil {
				collector.RecordCounter("llm_tokens_total", float64(in), map[string]string{"provider": provider, "direction": "input"})
				collector.RecordCounter("llm_tokens_total", float64(out), map[string]string{"provider": provider, "direction": "output"})
			}
			return text, in, out, err
		}}
	}
}

func requestStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ports.ErrTimeout):
		return "timeout"
	case errors.Is(err, ports.ErrRateLimited):
		return "rate_limited"
	}
	return "error"
}

// TracingMiddleware wraps each request in a span.
func TracingMiddleware(tracer trace.Tracer, provider string) Middleware {
	return func(next CoreLLM) CoreLLM {
		return coreFunc{next: next, do: func(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
			ctx, span := tracer.Start(ctx, "llm.request", trace.WithAttributes(
				attribute.String("llm.provider", provider),
				attribute.String("llm.model", next.GetModel()),
				attribute.Int("llm.prompt.length", len(prompt)),
			))
			defer span.End()

			text, in, out, err := next.DoRequest(ctx, prompt, opts)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return text, in, out, err
			}
			span.SetAttributes(attribute.Int("llm.tokens.input", in), attribute.Int("llm.tokens.output", out))
			return text, in, out, nil
		}}
	}
}
