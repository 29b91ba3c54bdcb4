// Package middleware provides cross-cutting concerns for the procurement
// pipeline: Prometheus metrics and observed unit execution.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/go-procure/internal/ports"
)

// Metric names understood by PrometheusMetrics. Other names fall through
// to the generic operation series.
const (
	MetricLLMRequests    = "llm_requests_total"
	MetricLLMTokens      = "llm_tokens_total"
	MetricUnitExecutions = "unit_executions_total"
	MetricQuotes         = "quotes_total"
	MetricEvidenceFails  = "evidence_failures_total"
	MetricSelectedScore  = "selected_total_score"
	MetricCandidates     = "candidates_per_quote"
)

const unknownLabel = "unknown"

// PrometheusMetrics implements the MetricsCollector interface using
// Prometheus. Series are registered on the Registerer passed to
// NewPrometheusMetrics.
type PrometheusMetrics struct {
	latency        *prometheus.HistogramVec
	llmRequests    *prometheus.CounterVec
	llmTokens      *prometheus.CounterVec
	unitExecutions *prometheus.CounterVec
	quotes         *prometheus.CounterVec
	operations     *prometheus.CounterVec
	gauges         *prometheus.GaugeVec
	scores         *prometheus.HistogramVec
	values         *prometheus.HistogramVec
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics registers the procurement metrics on reg. A nil reg
// uses the default registerer.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &PrometheusMetrics{
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "procure_operation_duration_seconds",
				Help:    "Duration of pipeline units and collaborator calls.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "component", "status"},
		),
		llmRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "procure_llm_requests_total",
				Help: "Language model requests by provider, model and outcome.",
			},
			[]string{"provider", "model", "status"},
		),
		llmTokens: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "procure_llm_tokens_total",
				Help: "Estimated language model tokens by direction.",
			},
			[]string{"provider", "direction"},
		),
		unitExecutions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "procure_unit_executions_total",
				Help: "Pipeline unit executions by outcome.",
			},
			[]string{"unit", "status"},
		),
		quotes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "procure_quotes_total",
				Help: "Generated quotes by outcome.",
			},
			[]string{"status"},
		),
		operations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "procure_operations_total",
				Help: "Other counted operations.",
			},
			[]string{"metric", "component"},
		),
		gauges: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "procure_state",
				Help: "Current values such as cache sizes.",
			},
			[]string{"metric", "component"},
		),
		scores: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "procure_score_distribution",
				Help:    "Distribution of recommendation scores.",
				Buckets: prometheus.LinearBuckets(0, 0.1, 12),
			},
			[]string{"metric"},
		),
		values: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "procure_value_distribution",
				Help:    "Distribution of counts such as candidates per quote.",
				Buckets: prometheus.ExponentialBuckets(1, 2, 8),
			},
			[]string{"metric"},
		),
	}
}

// RecordLatency implements the MetricsCollector interface.
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	pm.latency.WithLabelValues(operation, component(labels), label(labels, "status")).Observe(duration.Seconds())
}

// RecordCounter implements the MetricsCollector interface.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	switch metric {
	case MetricLLMRequests:
		pm.llmRequests.WithLabelValues(label(labels, "provider"), label(labels, "model"), label(labels, "status")).Add(value)
	case MetricLLMTokens:
		pm.llmTokens.WithLabelValues(label(labels, "provider"), label(labels, "direction")).Add(value)
	case MetricUnitExecutions:
		pm.unitExecutions.WithLabelValues(label(labels, "unit"), label(labels, "status")).Add(value)
	case MetricQuotes:
		pm.quotes.WithLabelValues(label(labels, "status")).Add(value)
	default:
		pm.operations.WithLabelValues(metric, component(labels)).Add(value)
	}
}

// RecordGauge implements the MetricsCollector interface.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, labels map[string]string) {
	pm.gauges.WithLabelValues(metric, component(labels)).Set(value)
}

// RecordHistogram implements the MetricsCollector interface. Score metrics
// use buckets over [0, 1.1]; everything else uses exponential buckets.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, _ map[string]string) {
	if metric == MetricSelectedScore {
		pm.scores.WithLabelValues(metric).Observe(value)
		return
	}
	pm.values.WithLabelValues(metric).Observe(value)
}

func label(labels map[string]string, key string) string {
	if v := labels[key]; v != "" {
		return v
	}
	return unknownLabel
}

// component names what produced a sample: a unit, an LLM provider or a
// cache.
func component(labels map[string]string) string {
	for _, k := range []string{"unit", "provider", "component"} {
		if v := labels[k]; v != "" {
			return v
		}
	}
	return unknownLabel
}
