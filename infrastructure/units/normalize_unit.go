package units

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-procure/internal/domain"
	"github.com/ahrav/go-procure/internal/ports"
)

var _ ports.Unit = (*NormalizeUnit)(nil)

// Litre conversion factors keyed by case-folded unit name, with the micro
// prefix spelled "u".
var litreFactors = map[string]float64{
	"ml": 1e-3, "milliliter": 1e-3, "milliliters": 1e-3,
	"ul": 1e-6, "microliter": 1e-6, "microliters": 1e-6,
	"l": 1, "liter": 1, "liters": 1,
}

// PackLiters converts a pack size to litres. Units that are not volumes
// keep the raw size. The result is never negative.
func PackLiters(unit string, size float64) float64 {
	// Folding maps the micro sign to Greek mu; both spell "u".
	u := cases.Fold().String(strings.TrimSpace(unit))
	u = strings.NewReplacer("\u00b5", "u", "\u03bc", "u").Replace(u)
	if f, ok := litreFactors[u]; ok {
		size *= f
	}
	return max(0, size)
}

// NormalizeUnit wraps each offer in a fresh candidate and records the
// pack size in litres under domain.NormPackLiters.
type NormalizeUnit struct {
	name   string
	config NormalizeConfig
	log    *zap.Logger
	tracer trace.Tracer
}

// NormalizeConfig controls the handling of malformed offers.
type NormalizeConfig struct {
	// SkipInvalid drops offers that fail validation instead of failing the
	// stage.
	SkipInvalid bool `yaml:"skip_invalid" json:"skip_invalid"`
}

// DefaultNormalizeConfig skips invalid offers.
func DefaultNormalizeConfig() NormalizeConfig {
	return NormalizeConfig{SkipInvalid: true}
}

// NewNormalizeUnit creates a normalization unit.
func NewNormalizeUnit(name string, config NormalizeConfig, log *zap.Logger) (*NormalizeUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &NormalizeUnit{name: name, config: config, log: log, tracer: otel.Tracer("normalize-unit")}, nil
}

// Name returns the unit identifier.
func (u *NormalizeUnit) Name() string { return u.name }

// Execute reads domain.KeyOffers and writes domain.KeyCandidates in offer
// order.
func (u *NormalizeUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	_, span := u.tracer.Start(ctx, "NormalizeUnit.Execute",
		trace.WithAttributes(
			attribute.String("unit.type", "normalize"),
			attribute.String("unit.id", u.name),
		),
	)
	defer span.End()

	offers, ok := domain.Get(state, domain.KeyOffers)
	if !ok {
		err := domain.MissingKey(domain.KeyOffers, "normalize")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return state, err
	}

	cands := make([]*domain.Candidate, 0, len(offers))
	skipped := 0
	for _, o := range offers {
		if err := o.Validate(); err != nil {
			if !u.config.SkipInvalid {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return state, err
			}
			u.log.Warn("skipping invalid offer", zap.String("sku", o.SKU), zap.Error(err))
			skipped++
			continue
		}
		c := domain.NewCandidate(o)
		c.SetNormalized(domain.NormPackLiters, PackLiters(o.Unit, o.PackSize))
		cands = append(cands, c)
	}

	span.SetAttributes(
		attribute.Int("normalize.candidates", len(cands)),
		attribute.Int("normalize.skipped", skipped),
	)
	return domain.With(state, domain.KeyCandidates, cands), nil
}

// Validate verifies the unit configuration.
func (u *NormalizeUnit) Validate() error { return nil }

// UnmarshalParameters replaces the configuration with params.
func (u *NormalizeUnit) UnmarshalParameters(params yaml.Node) error {
	cfg, err := unmarshalParameters(params, DefaultNormalizeConfig())
	if err != nil {
		return err
	}
	u.config = cfg
	return nil
}

// CreateNormalizeUnit builds a NormalizeUnit from a configuration map.
func CreateNormalizeUnit(id string, config map[string]any) (*NormalizeUnit, error) {
	cfg := DefaultNormalizeConfig()
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	return NewNormalizeUnit(id, cfg, loggerFrom(config))
}
