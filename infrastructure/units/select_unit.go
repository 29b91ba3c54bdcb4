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

var _ ports.Unit = (*SelectUnit)(nil)

// SelectUnit picks the recommendation and a shortlist from the ranked
// candidates. With no candidates the selection is nil.
type SelectUnit struct {
	name   string
	config SelectConfig
	tracer trace.Tracer
}

// SelectConfig sets the shortlist size.
type SelectConfig struct {
	TopK int `yaml:"top_k" json:"top_k" validate:"min=1,max=100"`
}

// DefaultSelectConfig shortlists three candidates.
func DefaultSelectConfig() SelectConfig { return SelectConfig{TopK: 3} }

// NewSelectUnit creates a selection unit.
func NewSelectUnit(name string, config SelectConfig) (*SelectUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &SelectUnit{name: name, config: config, tracer: otel.Tracer("select-unit")}, nil
}

// Name returns the unit identifier.
func (u *SelectUnit) Name() string { return u.name }

// Execute reads the ranked domain.KeyCandidates and writes
// domain.KeyShortlist and domain.KeySelected.
func (u *SelectUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	_, span := u.tracer.Start(ctx, "SelectUnit.Execute",
		trace.WithAttributes(
			attribute.String("unit.type", "select"),
			attribute.String("unit.id", u.name),
			attribute.Int("config.top_k", u.config.TopK),
		),
	)
	defer span.End()

	cands, ok := domain.Get(state, domain.KeyCandidates)
	if !ok {
		err := domain.MissingKey(domain.KeyCandidates, "select")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return state, err
	}

	shortlist := TopK(cands, u.config.TopK)
	var selected *domain.Candidate
	if len(shortlist) > 0 {
		selected = shortlist[0]
		span.SetAttributes(attribute.String("select.sku", selected.Item.SKU))
	}
	next := domain.With(state, domain.KeyShortlist, shortlist)
	return domain.With(next, domain.KeySelected, selected), nil
}

// TopK returns the first k ranked candidates.
func TopK(ranked []*domain.Candidate, k int) []*domain.Candidate {
	return ranked[:min(len(ranked), max(k, 0))]
}

// Validate verifies the unit configuration.
func (u *SelectUnit) Validate() error {
	if err := validate.Struct(u.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// UnmarshalParameters replaces the configuration with params.
func (u *SelectUnit) UnmarshalParameters(params yaml.Node) error {
	cfg, err := unmarshalParameters(params, DefaultSelectConfig())
	if err != nil {
		return err
	}
	u.config = cfg
	return nil
}

// CreateSelectUnit builds a SelectUnit from a configuration map.
func CreateSelectUnit(id string, config map[string]any) (*SelectUnit, error) {
	cfg := DefaultSelectConfig()
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, err
	}
	return NewSelectUnit(id, cfg)
}
