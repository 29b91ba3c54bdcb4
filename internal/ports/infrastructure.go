package ports

import (
	"context"
	"time"
)

// LLMClient defines the interface for interacting with Large Language
// Model providers.
// Implementations should handle provider-specific details like authentication,
// request formatting, and response parsing.
type LLMClient interface {
	// Complete sends a completion request to the LLM provider.
	// It returns the generated text and any error encountered.
	// The implementation should handle rate limiting, retries, and timeouts.
	//
	// Parameters:
	//   - ctx: Context for cancellation and deadline propagation
	//   - prompt: The input prompt for the LLM
	//   - options: Provider-specific options (temperature, max tokens, etc.)
	//
	// The options map allows flexibility for different providers without
	// changing the interface. Common options include:
	//   - "temperature": float64 (0.0-1.0)
	//   - "max_tokens": int
	//   - "model": string (specific model version)
	Complete(ctx context.Context, prompt string, options map[string]any) (string, error)

	// EstimateTokens calculates the approximate token count for a given text.
	// This is useful for cost estimation and staying within model limits.
	// The estimation method may vary by provider.
	EstimateTokens(text string) (int, error)

	// GetModel returns the model identifier being used by this client.
	// This is useful for logging and debugging purposes.
	GetModel() string
}

// MetricsCollector defines the interface for collecting operational metrics.
// The production implementation is backed by Prometheus.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	// This is useful for tracking events like cache hits/misses, flags raised, etc.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	// This is useful for tracking values like candidate counts and
	// cumulative rewards.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	// This is useful for tracking distributions like total scores.
	RecordHistogram(metric string, value float64, labels map[string]string)
}
