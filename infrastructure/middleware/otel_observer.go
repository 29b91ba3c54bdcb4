package middleware

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ahrav/go-procure/internal/domain"
	"github.com/ahrav/go-procure/internal/ports"
)

var _ UnitObserver = (*OTelObserver)(nil)

// Unit execution outcomes used as the status label.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusTimeout = "timeout"
)

// OTelObserver traces each unit execution with an OpenTelemetry span and
// records its latency and outcome through a MetricsCollector. The span is
// carried in the context, so one observer can serve concurrent runs.
type OTelObserver struct {
	tracer  trace.Tracer
	metrics ports.MetricsCollector
	log     *zap.Logger
}

// ObserverOption configures an OTelObserver.
type ObserverOption func(*OTelObserver)

// WithTracer sets the tracer. The default is the global "procure-pipeline"
// tracer.
func WithTracer(t trace.Tracer) ObserverOption {
	return func(o *OTelObserver) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m ports.MetricsCollector) ObserverOption {
	return func(o *OTelObserver) { o.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ObserverOption {
	return func(o *OTelObserver) {
		if l != nil {
			o.log = l
		}
	}
}

// NewOTelObserver creates an observer.
func NewOTelObserver(opts ...ObserverOption) *OTelObserver {
	o := &OTelObserver{tracer: otel.Tracer("procure-pipeline"), log: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// PreExecute starts the unit span.
func (o *OTelObserver) PreExecute(ctx context.Context, unit string) context.Context {
	ctx, _ = o.tracer.Start(ctx, "unit."+unit, trace.WithAttributes(attribute.String("unit.id", unit)))
	return ctx
}

// PostExecute ends the span started by PreExecute and records metrics.
func (o *OTelObserver) PostExecute(ctx context.Context, unit string, elapsed time.Duration, err error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	status := executionStatus(err)
	span.SetAttributes(
		attribute.Int64("unit.latency_ms", elapsed.Milliseconds()),
		attribute.String("unit.status", status),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.log.Warn("unit failed", zap.String("unit", unit), zap.Duration("elapsed", elapsed), zap.Error(err))
	} else {
		span.SetStatus(codes.Ok, "")
		o.log.Debug("unit completed", zap.String("unit", unit), zap.Duration("elapsed", elapsed))
	}

	if o.metrics != nil {
		labels := map[string]string{"unit": unit, "status": status}
		o.metrics.RecordLatency("unit_execute", elapsed, labels)
		o.metrics.RecordCounter(MetricUnitExecutions, 1, labels)
	}
}

func executionStatus(err error) string {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, ErrStageTimeout), errors.Is(err, context.DeadlineExceeded):
		return StatusTimeout
	default:
		var stateErr *domain.StateError
		if errors.As(err, &stateErr) {
			return "missing_input"
		}
		return StatusError
	}
}
