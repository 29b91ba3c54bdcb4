package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ahrav/go-procure/infrastructure/middleware"
	"github.com/ahrav/go-procure/internal/domain"
	"github.com/ahrav/go-procure/internal/environment"
	"github.com/ahrav/go-procure/internal/inference"
	"github.com/ahrav/go-procure/internal/ports"
)

// Notes used when a quote has no ranked candidates.
const (
	NoteNoMatches    = "No supplier matches found for the query"
	NoteDefault      = "Quote generated successfully"
	noteErrorPrefix  = "Error during quote generation: "
	noteSeparator    = " | "
	quoteStatusOK    = "success"
	quoteStatusEmpty = "empty"
	quoteStatusError = "error"
)

// ErrNoFeedbackStore is returned by RecordFeedback when the orchestrator
// was built without a feedback store.
var ErrNoFeedbackStore = errors.New("no feedback store configured")

// Orchestrator runs the quote pipeline for buyer requests and drives
// episodes through the environment and the inference engine.
//
// An Orchestrator is safe for concurrent use. Each episode constructs its
// own environment and knowledge base.
type Orchestrator struct {
	pipeline *Pipeline
	advisor  ports.Advisor
	feedback ports.FeedbackStore
	metrics  ports.MetricsCollector
	log      *zap.Logger
	tracer   trace.Tracer

	envConfig      environment.Config
	inferenceRules []domain.ProductionRule
	maxRounds      int

	now   func() time.Time
	newID func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithAdvisor sets the advisor used for the quote summary.
func WithAdvisor(a ports.Advisor) Option {
	return func(o *Orchestrator) { o.advisor = a }
}

// WithFeedbackStore sets the store used by RecordFeedback and the
// episode's learning action.
func WithFeedbackStore(s ports.FeedbackStore) Option {
	return func(o *Orchestrator) { o.feedback = s }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m ports.MetricsCollector) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithTracer sets the tracer. The global tracer provider is used by
// default.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// WithEnvironment sets the configuration of the per-episode environment.
func WithEnvironment(cfg environment.Config) Option {
	return func(o *Orchestrator) { o.envConfig = cfg }
}

// WithInference sets the production rules and the forward chaining round
// cap of the per-episode inference engine.
func WithInference(rules []domain.ProductionRule, maxRounds int) Option {
	return func(o *Orchestrator) {
		o.inferenceRules = rules
		o.maxRounds = maxRounds
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator validates the static configuration (environment and
// inference rules) and returns an orchestrator over p.
func NewOrchestrator(p *Pipeline, opts ...Option) (*Orchestrator, error) {
	if p == nil {
		return nil, fmt.Errorf("pipeline is required")
	}
	o := &Orchestrator{
		pipeline:       p,
		log:            zap.NewNop(),
		tracer:         otel.Tracer("orchestrator"),
		envConfig:      environment.DefaultConfig(),
		inferenceRules: inference.DefaultRules(),
		maxRounds:      inference.DefaultMaxRounds,
		now:            time.Now,
		newID:          uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}

	if err := inference.ValidateRules(o.inferenceRules); err != nil {
		return nil, fmt.Errorf("inference rules: %w", err)
	}
	if _, err := environment.New(o.envConfig); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	return o, nil
}

// Quote runs the pipeline for req. An invalid request is returned as a
// *domain.ValidationError, a stage failure as a *domain.PipelineError.
// Empty retrieval is not an error: the quote has no candidates and
// NoteNoMatches as its notes.
func (o *Orchestrator) Quote(ctx context.Context, req domain.BuyerRequest) (*domain.Quote, error) {
	req, err := domain.NewBuyerRequest(req)
	if err != nil {
		return nil, err
	}

	ctx, span := o.tracer.Start(ctx, "Orchestrator.Quote",
		trace.WithAttributes(attribute.String("quote.query", req.Query)))
	defer span.End()

	start := o.now()
	id := o.newID()
	state, err := o.pipeline.Execute(ctx, o.initialState(req, id, nil))
	if err != nil {
		o.recordFailure(span, id, err, o.now().Sub(start))
		return nil, err
	}

	q := o.buildQuote(ctx, id, req, state, o.now().Sub(start))
	o.recordQuote(span, q)
	return q, nil
}

// ErrorQuote builds the user facing quote reported when generation failed.
func ErrorQuote(req domain.BuyerRequest, err error) *domain.Quote {
	return &domain.Quote{
		ID:          uuid.NewString(),
		Request:     req,
		Candidates:  []*domain.Candidate{},
		Notes:       noteErrorPrefix + err.Error(),
		GeneratedAt: time.Now().UTC(),
	}
}

// RecordFeedback stores the buyer's choice of sku for q.
func (o *Orchestrator) RecordFeedback(ctx context.Context, q *domain.Quote, sku string, rating int, comment string) (domain.Selection, error) {
	if o.feedback == nil {
		return domain.Selection{}, ErrNoFeedbackStore
	}
	if rating < 0 || rating > 5 {
		return domain.Selection{}, fmt.Errorf("rating must be within [0,5], got %d: %w", rating, domain.ErrInvalidConfiguration)
	}
	sel, ok := domain.NewSelection(q, sku, rating, comment)
	if !ok {
		return domain.Selection{}, fmt.Errorf("%w: %s", domain.ErrUnknownSKU, sku)
	}
	if err := o.feedback.Record(ctx, sel); err != nil {
		return domain.Selection{}, fmt.Errorf("record feedback: %w", err)
	}
	o.log.Info("feedback recorded",
		zap.String("query", sel.Query),
		zap.String("selected_sku", sel.SelectedSKU),
		zap.Bool("agreed", sel.Agreed()),
		zap.Int("rating", sel.Rating),
	)
	return sel, nil
}

func (o *Orchestrator) initialState(req domain.BuyerRequest, id string, queries []string) domain.State {
	state := domain.With(domain.NewState(), domain.KeyRequest, req)
	state = state.WithExecutionContext(domain.ExecutionContext{
		PipelineID:  o.pipeline.ID(),
		ExecutionID: id,
	})
	if len(queries) > 0 {
		state = domain.With(state, domain.KeyQueries, queries)
	}
	return state
}

// buildQuote assembles the quote from the final pipeline state and writes
// its notes.
func (o *Orchestrator) buildQuote(ctx context.Context, id string, req domain.BuyerRequest, state domain.State, elapsed time.Duration) *domain.Quote {
	candidates, _ := domain.Get(state, domain.KeyCandidates)
	if candidates == nil {
		candidates = []*domain.Candidate{}
	}
	offers, _ := domain.Get(state, domain.KeyOffers)
	queries, _ := domain.Get(state, domain.KeyQueries)
	rulesFired, _ := domain.Get(state, domain.KeyRulesFired)
	ruleLog, _ := domain.Get(state, domain.KeyRuleLog)
	stats, _ := domain.Get(state, domain.KeyStatistics)
	alternatives, _ := domain.Get(state, domain.KeyAlternatives)
	analysis, _ := domain.Get(state, domain.KeyQueryAnalysis)
	failures, _ := domain.Get(state, domain.KeyEvidenceFailures)

	q := &domain.Quote{
		ID:          id,
		Request:     req,
		Candidates:  candidates,
		GeneratedAt: o.now().UTC(),
		Metadata: domain.QuoteMetadata{
			ExpandedQueries:  queries,
			SuppliersFound:   len(offers),
			RulesFired:       rulesFired,
			RuleLog:          ruleLog,
			Statistics:       stats,
			Alternatives:     alternatives,
			QueryAnalysis:    analysis,
			AdvisorEnabled:   o.advisorEnabled(),
			ElapsedMillis:    elapsed.Milliseconds(),
			EvidenceFailures: failures,
		},
	}

	// The selection is looked up among the candidates so that it carries
	// the rationales added after selection.
	if selected, ok := domain.Get(state, domain.KeySelected); ok && selected != nil {
		q.Selected = selected
		for _, c := range candidates {
			if c.Item.SKU == selected.Item.SKU {
				q.Selected = c
				break
			}
		}
	}

	if len(offers) == 0 {
		q.Notes = NoteNoMatches
		return q
	}
	q.Notes = ExecutionNotes(q.Metadata)
	if o.advisorEnabled() {
		q.Notes = o.advisor.Summarize(ctx, q) + noteSeparator + q.Notes
	}
	return q
}

// ExecutionNotes summarizes how a quote was produced: supplier items
// found, rules executed, the score range and the alternatives suggestion.
func ExecutionNotes(md domain.QuoteMetadata) string {
	notes := []string{
		fmt.Sprintf("Found %d supplier items", md.SuppliersFound),
		fmt.Sprintf("Executed %d production rules", md.RulesFired),
	}
	if md.Statistics.Count > 0 {
		t := md.Statistics.Total
		notes = append(notes, fmt.Sprintf("Score range: %.3f - %.3f (mean: %.3f)", t.Min, t.Max, t.Mean))
	}
	if md.Alternatives != "" {
		notes = append(notes, md.Alternatives)
	}
	return strings.Join(notes, noteSeparator)
}

func (o *Orchestrator) advisorEnabled() bool {
	return o.advisor != nil && o.advisor.Enabled()
}

func (o *Orchestrator) recordFailure(span trace.Span, id string, err error, elapsed time.Duration) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	var pe *domain.PipelineError
	stage := "unknown"
	if errors.As(err, &pe) {
		stage = string(pe.Stage)
	}
	o.log.Error("quote generation failed",
		zap.String("quote_id", id),
		zap.String("stage", stage),
		zap.Error(err),
	)
	if o.metrics != nil {
		o.metrics.RecordCounter(middleware.MetricQuotes, 1, map[string]string{"status": quoteStatusError})
		o.metrics.RecordLatency("quote", elapsed, map[string]string{"component": "orchestrator", "status": quoteStatusError})
	}
}

func (o *Orchestrator) recordQuote(span trace.Span, q *domain.Quote) {
	status := quoteStatusOK
	if len(q.Candidates) == 0 {
		status = quoteStatusEmpty
	}
	span.SetAttributes(
		attribute.String("quote.id", q.ID),
		attribute.Int("quote.candidates", len(q.Candidates)),
		attribute.String("quote.status", status),
	)
	span.SetStatus(codes.Ok, "")

	fields := []zap.Field{
		zap.String("quote_id", q.ID),
		zap.String("query", q.Request.Query),
		zap.Int("suppliers_found", q.Metadata.SuppliersFound),
		zap.Int("candidates", len(q.Candidates)),
		zap.Int64("elapsed_ms", q.Metadata.ElapsedMillis),
	}
	if q.Selected != nil {
		fields = append(fields, zap.String("selected_sku", q.Selected.Item.SKU), zap.Float64("total_score", q.Selected.TotalScore))
	}
	o.log.Info("quote generated", fields...)

	if o.metrics == nil {
		return
	}
	o.metrics.RecordCounter(middleware.MetricQuotes, 1, map[string]string{"status": status})
	o.metrics.RecordLatency("quote", time.Duration(q.Metadata.ElapsedMillis)*time.Millisecond,
		map[string]string{"component": "orchestrator", "status": status})
	o.metrics.RecordHistogram(middleware.MetricCandidates, float64(len(q.Candidates)), nil)
	if q.Selected != nil {
		o.metrics.RecordHistogram(middleware.MetricSelectedScore, q.Selected.TotalScore, nil)
	}
	if n := q.Metadata.EvidenceFailures; n > 0 {
		o.metrics.RecordCounter(middleware.MetricEvidenceFails, float64(n), map[string]string{"component": "evidence"})
	}
}
