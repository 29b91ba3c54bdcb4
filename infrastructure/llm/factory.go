package llm

import (
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-procure/internal/config"
	"github.com/ahrav/go-procure/internal/ports"
)

// Backoff bounds used by the configured retry middleware.
const (
	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 8 * time.Second
)

// Option adds instrumentation to the client built by FromConfig.
type Option func(*factoryOptions)

type factoryOptions struct {
	metrics ports.MetricsCollector
	tracer  trace.Tracer
}

// WithMetrics records request metrics through m.
func WithMetrics(m ports.MetricsCollector) Option {
	return func(o *factoryOptions) { o.metrics = m }
}

// WithTracer wraps requests in spans from t.
func WithTracer(t trace.Tracer) Option {
	return func(o *factoryOptions) { o.tracer = t }
}

// FromConfig builds the client described by cfg. The chain, outermost
// first, is tracing, metrics, circuit breaker, retry, rate limit and the
// per-attempt timeout, so a retried request is traced and counted once
// and each attempt waits for its own rate-limit token.
func FromConfig(cfg config.LLMConfig, opts ...Option) (*Client, error) {
	var fo factoryOptions
	for _, opt := range opts {
		opt(&fo)
	}

	var mws []Middleware
	if fo.tracer != nil {
		mws = append(mws, TracingMiddleware(fo.tracer, cfg.Provider))
	}
	if fo.metrics != nil {
		mws = append(mws, MetricsMiddleware(fo.metrics, cfg.Provider))
	}
	mws = append(mws,
		CircuitBreakerMiddleware(NewCircuitBreaker(cfg.CircuitBreaker.FailureThreshold, cfg.CircuitBreaker.Cooldown)),
		RetryMiddleware(cfg.MaxRetries, retryBaseDelay, retryMaxDelay),
	)
	if cfg.RequestsPerSec > 0 {
		mws = append(mws, RateLimitMiddleware(rate.Limit(cfg.RequestsPerSec), max(cfg.Burst, 1)))
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout > 0 {
		mws = append(mws, TimeoutMiddleware(timeout))
	}

	return NewClient(cfg.Provider, ClientConfig{
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		BaseURL:    cfg.BaseURL,
		Timeout:    timeout,
		Middleware: mws,
	})
}
