package units

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-procure/infrastructure/suppliers"
	"github.com/ahrav/go-procure/internal/domain"
	"github.com/ahrav/go-procure/internal/ports"
)

var _ ports.Unit = (*RetrieveUnit)(nil)

// RetrieveUnit turns the buyer query into search queries and collects the
// deduplicated offers returned by the supplier searcher.
//
// Queries already present under domain.KeyQueries are searched as given.
// Otherwise, when an enabled advisor is configured, the query is expanded
// first and the analysis is stored under domain.KeyQueryAnalysis. Without
// an advisor the request query is searched as is.
type RetrieveUnit struct {
	name     string
	config   RetrieveConfig
	searcher ports.SupplierSearcher
	advisor  ports.Advisor
	log      *zap.Logger
	tracer   trace.Tracer
}

// RetrieveConfig controls query expansion.
type RetrieveConfig struct {
	// Expand enables advisor query expansion when an advisor is enabled.
	Expand bool `yaml:"expand" json:"expand"`

	// MaxQueries caps the number of queries sent to the searcher.
	MaxQueries int `yaml:"max_queries" json:"max_queries" validate:"min=1,max=10"`
}

// DefaultRetrieveConfig expands queries and searches at most five.
func DefaultRetrieveConfig() RetrieveConfig {
	return RetrieveConfig{Expand: true, MaxQueries: 5}
}

// NewRetrieveUnit creates a retrieval unit. advisor may be nil.
func NewRetrieveUnit(
	name string,
	config RetrieveConfig,
	searcher ports.SupplierSearcher,
	advisor ports.Advisor,
	log *zap.Logger,
) (*RetrieveUnit, error) {
	if name == "" {
		return nil, ErrEmptyUnitName
	}
	if searcher == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingDependency, ConfigSearcher)
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RetrieveUnit{
		name:     name,
		config:   config,
		searcher: searcher,
		advisor:  advisor,
		log:      log,
		tracer:   otel.Tracer("retrieve-unit"),
	}, nil
}

// Name returns the unit identifier.
func (u *RetrieveUnit) Name() string { return u.name }

// Execute reads domain.KeyRequest and optionally domain.KeyQueries, and
// writes domain.KeyQueries, domain.KeyOffers and, when expansion ran,
// domain.KeyQueryAnalysis.
func (u *RetrieveUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	ctx, span := u.tracer.Start(ctx, "RetrieveUnit.Execute",
		trace.WithAttributes(
			attribute.String("unit.type", "retrieve"),
			attribute.String("unit.id", u.name),
		),
	)
	defer span.End()

	req, ok := domain.Get(state, domain.KeyRequest)
	if !ok {
		err := domain.MissingKey(domain.KeyRequest, "retrieve")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return state, err
	}

	queries := []string{req.Query}
	var analysis *domain.QueryAnalysis
	if seeded, ok := domain.Get(state, domain.KeyQueries); ok && len(seeded) > 0 {
		queries = seeded
	} else if u.config.Expand && u.advisor != nil && u.advisor.Enabled() {
		a := u.advisor.AnalyzeQuery(ctx, req)
		analysis = &a
		if len(a.ExpandedQueries) > 0 {
			queries = a.ExpandedQueries
		}
	}
	queries = queries[:min(len(queries), u.config.MaxQueries)]

	start := time.Now()
	offers, err := suppliers.SearchAll(ctx, u.searcher, queries)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return state, fmt.Errorf("supplier search: %w", err)
	}

	u.log.Debug("retrieved offers",
		zap.Strings("queries", queries),
		zap.Int("offers", len(offers)),
		zap.Duration("elapsed", time.Since(start)),
	)
	span.SetAttributes(
		attribute.Int("retrieve.queries", len(queries)),
		attribute.Int("retrieve.offers", len(offers)),
	)

	next := domain.With(state, domain.KeyQueries, queries)
	next = domain.With(next, domain.KeyOffers, offers)
	if analysis != nil {
		next = domain.With(next, domain.KeyQueryAnalysis, analysis)
	}
	return next, nil
}

// Validate verifies the unit configuration.
func (u *RetrieveUnit) Validate() error {
	if err := validate.Struct(u.config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// UnmarshalParameters replaces the configuration with params.
func (u *RetrieveUnit) UnmarshalParameters(params yaml.Node) error {
	cfg, err := unmarshalParameters(params, DefaultRetrieveConfig())
	if err != nil {
		return err
	}
	u.config = cfg
	return nil
}

// CreateRetrieveUnit builds a RetrieveUnit from a configuration map. The
// searcher is required under ConfigSearcher; the advisor and logger are
// optional.
func CreateRetrieveUnit(id string, config map[string]any) (*RetrieveUnit, error) {
	searcher, err := dependency[ports.SupplierSearcher](config, ConfigSearcher)
	if err != nil {
		return nil, err
	}
	cfg := DefaultRetrieveConfig()
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, err
	}
	return NewRetrieveUnit(id, cfg, searcher,
		optionalDependency[ports.Advisor](config, ConfigAdvisor), loggerFrom(config))
}
