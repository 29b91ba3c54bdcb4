package units

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-procure/internal/domain"
	"github.com/ahrav/go-procure/internal/ports"
)

var _ ports.Unit = (*EvidenceUnit)(nil)

// EvidenceUnit assigns every candidate an evidence score from the
// configured scorer. Lookups run concurrently with a bounded number in
// flight. A failed lookup leaves the candidate at zero evidence and is
// counted under domain.KeyEvidenceFailures; only cancellation fails the
// stage.
type EvidenceUnit struct {
	name   string
	config EvidenceConfig
	scorer ports.EvidenceScorer
	log    *zap.Logger
	tracer trace.Tracer
}

// EvidenceConfig bounds the evidence fan-out.
type EvidenceConfig struct {
	// MaxConcurrency limits concurrent lookups.
	MaxConcurrency int `yaml:"max_concurrency" json:"max_concurrency" validate:"min=1,max=64"`

	// Timeout bounds each lookup. Zero disables the per-lookup deadline.
	Timeout time.Duration `yaml:"timeout" json:"timeout" validate:"min=0"`
}

// DefaultEvidenceConfig runs eight lookups at a time with a ten second
// deadline each.
func DefaultEvidenceConfig() EvidenceConfig {
	return EvidenceConfig{MaxConcurrency: 8, Timeout: 10 * time.Second}
}

// NewEvidenceUnit creates an evidence unit.
func NewEvidenceUnit(name string, config EvidenceConfig, scorer ports.EvidenceScorer, log *zap.Logger) (*EvidenceUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if scorer == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingDependency, ConfigEvidenceScorer)
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &EvidenceUnit{
		name:   name,
		config: config,
		scorer: scorer,
		log:    log,
		tracer: otel.Tracer("evidence-unit"),
	}, nil
}

// Name returns the unit identifier.
func (u *EvidenceUnit) Name() string { return u.name }

// Execute reads and rewrites domain.KeyCandidates and writes
// domain.KeyEvidenceFailures.
func (u *EvidenceUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	ctx, span := u.tracer.Start(ctx, "EvidenceUnit.Execute",
		trace.WithAttributes(
			attribute.String("unit.type", "evidence"),
			attribute.String("unit.id", u.name),
			attribute.Int("config.max_concurrency", u.config.MaxConcurrency),
		),
	)
	defer span.End()

	cands, ok := domain.Get(state, domain.KeyCandidates)
	if !ok {
		err := domain.MissingKey(domain.KeyCandidates, "evidence")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return state, err
	}

	var failures atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(u.config.MaxConcurrency)
	for _, c := range cands {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			score, err := u.lookup(ctx, c.Item)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				failures.Add(1)
				u.log.Warn("evidence lookup failed, using zero",
					zap.String("sku", c.Item.SKU), zap.String("vendor", c.Item.Vendor), zap.Error(err))
				score = 0
			}
			c.EvidenceScore = domain.Clamp01(score)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return state, fmt.Errorf("evidence scoring: %w", err)
	}

	n := int(failures.Load())
	span.SetAttributes(
		attribute.Int("evidence.candidates", len(cands)),
		attribute.Int("evidence.failures", n),
	)
	next := domain.With(state, domain.KeyCandidates, cands)
	return domain.With(next, domain.KeyEvidenceFailures, n), nil
}

func (u *EvidenceUnit) lookup(ctx context.Context, o domain.Offer) (float64, error) {
	if u.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.config.Timeout)
		defer cancel()
	}
	return u.scorer.Score(ctx, o.Name, o.SpecText)
}

// Validate verifies the unit configuration.
func (u *EvidenceUnit) Validate() error {
	if err := validate.Struct(u.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// UnmarshalParameters replaces the configuration with params.
func (u *EvidenceUnit) UnmarshalParameters(params yaml.Node) error {
	cfg, err := unmarshalParameters(params, DefaultEvidenceConfig())
	if err != nil {
		return err
	}
	u.config = cfg
	return nil
}

// CreateEvidenceUnit builds an EvidenceUnit from a configuration map. The
// scorer is required under ConfigEvidenceScorer.
func CreateEvidenceUnit(id string, config map[string]any) (*EvidenceUnit, error) {
	scorer, err := dependency[ports.EvidenceScorer](config, ConfigEvidenceScorer)
	if err != nil {
		return nil, err
	}
	cfg := DefaultEvidenceConfig()
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, err
	}
	return NewEvidenceUnit(id, cfg, scorer, loggerFrom(config))
}
