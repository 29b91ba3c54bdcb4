package units

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-procure/internal/domain"
	"github.com/ahrav/go-procure/internal/ports"
)

var _ ports.Unit = (*ExplainUnit)(nil)

// RationaleAI attributes advisor explanations in candidate rationales.
const RationaleAI = "AI Analysis"

// ExplainUnit annotates the best candidates with advisor explanations and
// stores the alternatives suggestion. It passes state through unchanged
// when the advisor is disabled.
type ExplainUnit struct {
	name    string
	config  ExplainConfig
	advisor ports.Advisor
	tracer  trace.Tracer
}

// ExplainConfig controls how many candidates are explained.
type ExplainConfig struct {
	// TopN is the number of leading candidates that receive an explanation.
	TopN int `yaml:"top_n" json:"top_n" validate:"min=0,max=20"`

	// Alternatives enables the alternatives suggestion.
	Alternatives bool `yaml:"alternatives" json:"alternatives"`
}

// DefaultExplainConfig explains the top three and suggests alternatives.
func DefaultExplainConfig() ExplainConfig {
	return ExplainConfig{TopN: 3, Alternatives: true}
}

// NewExplainUnit creates an explanation unit.
func NewExplainUnit(name string, config ExplainConfig, advisor ports.Advisor) (*ExplainUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if advisor == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingDependency, ConfigAdvisor)
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &ExplainUnit{name: name, config: config, advisor: advisor, tracer: otel.Tracer("explain-unit")}, nil
}

// Name returns the unit identifier.
func (u *ExplainUnit) Name() string { return u.name }

// Execute reads domain.KeyRequest, the ranked domain.KeyCandidates and
// domain.KeySelected. It rewrites the candidates with explanation
// rationales and writes domain.KeyAlternatives.
func (u *ExplainUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	ctx, span := u.tracer.Start(ctx, "ExplainUnit.Execute",
		trace.WithAttributes(
			attribute.String("unit.type", "explain"),
			attribute.String("unit.id", u.name),
			attribute.Bool("advisor.enabled", u.advisor.Enabled()),
		),
	)
	defer span.End()

	if !u.advisor.Enabled() {
		return state, nil
	}

	req, ok := domain.Get(state, domain.KeyRequest)
	if !ok {
		err := domain.MissingKey(domain.KeyRequest, "explain")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return state, err
	}
	cands, ok := domain.Get(state, domain.KeyCandidates)
	if !ok {
		err := domain.MissingKey(domain.KeyCandidates, "explain")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return state, err
	}
	if len(cands) == 0 {
		return state, nil
	}

	for i, c := range TopK(cands, u.config.TopN) {
		c.AddRationale(RationaleAI, u.advisor.Explain(ctx, c, req, i+1))
	}
	next := domain.With(state, domain.KeyCandidates, cands)

	selected, _ := domain.Get(state, domain.KeySelected)
	if u.config.Alternatives && selected != nil && len(cands) > 1 {
		alts := u.advisor.SuggestAlternatives(ctx, selected, cands, req)
		next = domain.With(next, domain.KeyAlternatives, alts)
	}
	return next, nil
}

// Validate verifies the unit configuration.
func (u *ExplainUnit) Validate() error {
	if err := validate.Struct(u.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// UnmarshalParameters replaces the configuration with params.
func (u *ExplainUnit) UnmarshalParameters(params yaml.Node) error {
	cfg, err := unmarshalParameters(params, DefaultExplainConfig())
	if err != nil {
		return err
	}
	u.config = cfg
	return nil
}

// CreateExplainUnit builds an ExplainUnit from a configuration map. The
// advisor is required under ConfigAdvisor.
func CreateExplainUnit(id string, config map[string]any) (*ExplainUnit, error) {
	advisor, err := dependency[ports.Advisor](config, ConfigAdvisor)
	if err != nil {
		return nil, err
	}
	cfg := DefaultExplainConfig()
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, err
	}
	return NewExplainUnit(id, cfg, advisor)
}
