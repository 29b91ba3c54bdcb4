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
	"github.com/ahrav/go-procure/internal/rules"
)

var _ ports.Unit = (*RulesUnit)(nil)

// RulesUnit applies the production rules to every candidate exactly once.
// It has no parameters.
type RulesUnit struct {
	name   string
	tracer trace.Tracer
}

// NewRulesUnit creates a rules unit.
func NewRulesUnit(name string) (*RulesUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	return &RulesUnit{name: name, tracer: otel.Tracer("rules-unit")}, nil
}

// Name returns the unit identifier.
func (u *RulesUnit) Name() string { return u.name }

// Execute reads domain.KeyRequest and domain.KeyCandidates, and writes the
// annotated candidates, domain.KeyRulesFired and domain.KeyRuleLog.
func (u *RulesUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	_, span := u.tracer.Start(ctx, "RulesUnit.Execute",
		trace.WithAttributes(
			attribute.String("unit.type", "rules"),
			attribute.String("unit.id", u.name),
		),
	)
	defer span.End()

	req, ok := domain.Get(state, domain.KeyRequest)
	if !ok {
		err := domain.MissingKey(domain.KeyRequest, "rules")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return state, err
	}
	cands, ok := domain.Get(state, domain.KeyCandidates)
	if !ok {
		err := domain.MissingKey(domain.KeyCandidates, "rules")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return state, err
	}

	engine := rules.NewEngine()
	cands = engine.Apply(cands, req)
	span.SetAttributes(attribute.Int("rules.fired", engine.RulesFired()))

	return state.WithMultiple(map[string]any{
		domain.KeyCandidates.Name(): cands,
		domain.KeyRulesFired.Name(): engine.RulesFired(),
		domain.KeyRuleLog.Name():    engine.Log(),
	}), nil
}

// Validate always succeeds.
func (u *RulesUnit) Validate() error { return nil }

// UnmarshalParameters accepts an empty parameter block.
func (u *RulesUnit) UnmarshalParameters(params yaml.Node) error {
	_, err := unmarshalParameters(params, struct{}{})
	return err
}

// CreateRulesUnit builds a RulesUnit. The configuration map is ignored.
func CreateRulesUnit(id string, _ map[string]any) (*RulesUnit, error) {
	return NewRulesUnit(id)
}
