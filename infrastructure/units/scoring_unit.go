package units

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-procure/internal/domain"
	"github.com/ahrav/go-procure/internal/ports"
	"github.com/ahrav/go-procure/internal/scoring"
)

var _ ports.Unit = (*ScoringUnit)(nil)

// ScoringUnit scores the rule-annotated candidates and ranks them best
// first. It must run after RulesUnit.
type ScoringUnit struct {
	name   string
	tracer trace.Tracer
}

// NewScoringUnit creates a scoring unit.
func NewScoringUnit(name string) (*ScoringUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	return &ScoringUnit{name: name, tracer: otel.Tracer("scoring-unit")}, nil
}

// Name returns the unit identifier.
func (u *ScoringUnit) Name() string { return u.name }

// Execute reads domain.KeyRequest and domain.KeyCandidates, and writes the
// ranked candidates and domain.KeyStatistics.
func (u *ScoringUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	_, span := u.tracer.Start(ctx, "ScoringUnit.Execute",
		trace.WithAttributes(
			attribute.String("unit.type", "scoring"),
			attribute.String("unit.id", u.name),
		),
	)
	defer span.End()

	req, ok := domain.Get(state, domain.KeyRequest)
	if !ok {
		err := domain.MissingKey(domain.KeyRequest, "scoring")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return state, err
	}
	cands, ok := domain.Get(state, domain.KeyCandidates)
	if !ok {
		err := domain.MissingKey(domain.KeyCandidates, "scoring")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return state, err
	}

	engine := scoring.NewEngine()
	ranked := engine.Score(cands, req)
	stats := engine.Statistics()
	span.SetAttributes(
		attribute.Int("scoring.candidates", stats.Count),
		attribute.Float64("scoring.max", stats.Total.Max),
	)

	next := domain.With(state, domain.KeyCandidates, ranked)
	return domain.With(next, domain.KeyStatistics, stats), nil
}

// Validate always succeeds.
func (u *ScoringUnit) Validate() error { return nil }

// UnmarshalParameters accepts an empty parameter block.
func (u *ScoringUnit) UnmarshalParameters(params yaml.Node) error {
	_, err := unmarshalParameters(params, struct{}{})
	return err
}

// CreateScoringUnit builds a ScoringUnit. The configuration map is ignored.
func CreateScoringUnit(id string, _ map[string]any) (*ScoringUnit, error) {
	return NewScoringUnit(id)
}
