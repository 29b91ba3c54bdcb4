package application

import (
	"bytes"
	"context"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-procure/infrastructure/middleware"
	"github.com/ahrav/go-procure/internal/domain"
	"github.com/ahrav/go-procure/internal/ports"
)

//go:embed pipelines/default.yaml
var defaultPipeline []byte

// DefaultPipelineYAML returns the built-in pipeline definition.
func DefaultPipelineYAML() []byte { return slices.Clone(defaultPipeline) }

// PipelineLoader parses, validates and compiles pipeline definitions.
// Compiled pipelines are cached by the SHA256 of their normalized
// definition.
type PipelineLoader struct {
	validator    *validator.Validate
	unitRegistry ports.UnitRegistry
	observer     middleware.UnitObserver
	overrides    map[string]map[string]any

	// cache holds compiled pipelines. Cached pipelines MUST NOT be
	// mutated with Add.
	cache   map[string]*Pipeline
	cacheMu sync.RWMutex

	// sf prevents duplicate compilation when several goroutines load the
	// same definition simultaneously.
	sf singleflight.Group
}

// LoaderOption configures a PipelineLoader.
type LoaderOption func(*PipelineLoader)

// WithObserver wraps every compiled unit with observer hooks.
func WithObserver(o middleware.UnitObserver) LoaderOption {
	return func(l *PipelineLoader) { l.observer = o }
}

// WithOverrides sets parameters that replace the definition's parameters
// for every unit of unitType.
func WithOverrides(unitType string, params map[string]any) LoaderOption {
	return func(l *PipelineLoader) { l.overrides[unitType] = maps.Clone(params) }
}

// NewPipelineLoader creates a loader that builds units through
// unitRegistry.
func NewPipelineLoader(unitRegistry ports.UnitRegistry, opts ...LoaderOption) (*PipelineLoader, error) {
	if unitRegistry == nil {
		return nil, fmt.Errorf("unit registry is required")
	}
	v := validator.New()
	if err := RegisterPipelineValidators(v); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}

	l := &PipelineLoader{
		validator:    v,
		unitRegistry: unitRegistry,
		overrides:    make(map[string]map[string]any),
		cache:        make(map[string]*Pipeline),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// LoadDefault compiles the built-in pipeline.
func (pl *PipelineLoader) LoadDefault(ctx context.Context) (*Pipeline, error) {
	return pl.load(ctx, defaultPipeline)
}

// LoadFromFile compiles the pipeline definition stored at path.
func (pl *PipelineLoader) LoadFromFile(ctx context.Context, path string) (*Pipeline, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return pl.load(ctx, data)
}

// LoadFromReader compiles the pipeline definition read from r.
func (pl *PipelineLoader) LoadFromReader(ctx context.Context, r io.Reader) (*Pipeline, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	return pl.load(ctx, data)
}

func (pl *PipelineLoader) load(ctx context.Context, data []byte) (*Pipeline, error) {
	def, err := pl.parseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Hash the normalized definition, not the raw bytes.
	hash, err := calculateDefinitionHash(def)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate hash: %w", err)
	}

	v, err, _ := pl.sf.Do(hash, func() (any, error) {
		if p, ok := pl.getCached(hash); ok {
			return p, nil
		}
		if err := pl.Validate(def); err != nil {
			return nil, fmt.Errorf("validation failed: %w", err)
		}
		p, err := pl.build(ctx, def)
		if err != nil {
			return nil, fmt.Errorf("failed to build pipeline: %w", err)
		}
		pl.setCached(hash, p)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Pipeline), nil
}

// parseYAML decodes data strictly: unknown fields are errors.
func (pl *PipelineLoader) parseYAML(data []byte) (*PipelineDefinition, error) {
	var def PipelineDefinition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("YAML decode failed: %w", err)
	}
	return &def, nil
}

// Validate runs struct validation followed by the semantic checks: unique
// ids, resolvable references, stage order and required stages.
func (pl *PipelineLoader) Validate(def *PipelineDefinition) error {
	if err := pl.validator.Struct(def); err != nil {
		return fmt.Errorf("struct validation failed: %w", err)
	}
	if err := pl.validateSemantics(def); err != nil {
		return fmt.Errorf("semantic validation failed: %w", err)
	}
	return nil
}

func (pl *PipelineLoader) validateSemantics(def *PipelineDefinition) error {
	byID := make(map[string]UnitConfig, len(def.Units))
	for _, u := range def.Units {
		if _, exists := byID[u.ID]; exists {
			return fmt.Errorf("duplicate unit ID %q", u.ID)
		}
		byID[u.ID] = u

		if err := ValidateUnitParameters(pl.validator, u.Type, u.Parameters); err != nil {
			return fmt.Errorf("unit %s parameter validation failed: %w", u.ID, err)
		}
	}

	used := make(map[string]struct{}, len(def.Pipeline))
	types := make(map[string]struct{}, len(def.Pipeline))
	lastRank := -1
	for _, id := range def.Pipeline {
		u, ok := byID[id]
		if !ok {
			return fmt.Errorf("pipeline references non-existent unit: %s", id)
		}
		if _, dup := used[id]; dup {
			return fmt.Errorf("unit %s appears more than once in the pipeline", id)
		}
		used[id] = struct{}{}

		rank := stageOrder[u.Type]
		if rank <= lastRank {
			return fmt.Errorf("unit %s: %s stage is out of order", id, u.Type)
		}
		lastRank = rank
		types[u.Type] = struct{}{}
	}

	for _, u := range def.Units {
		if _, ok := used[u.ID]; !ok {
			return fmt.Errorf("unit %s is declared but not part of the pipeline", u.ID)
		}
	}
	for _, t := range requiredTypes {
		if _, ok := types[t]; !ok {
			return fmt.Errorf("pipeline has no %s stage", t)
		}
	}
	return nil
}

// build creates every unit through the registry and chains them in
// pipeline order. Each unit is validated, wrapped with its time budget and
// observer, and adapted to its stage.
func (pl *PipelineLoader) build(_ context.Context, def *PipelineDefinition) (*Pipeline, error) {
	byID := make(map[string]UnitConfig, len(def.Units))
	for _, u := range def.Units {
		byID[u.ID] = u
	}

	p := NewPipeline(def.Metadata.Name)
	for _, id := range def.Pipeline {
		cfg := byID[id]
		unit, err := pl.createUnit(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create unit %s: %w", id, err)
		}
		if err := unit.Validate(); err != nil {
			return nil, fmt.Errorf("unit %s is invalid: %w", id, err)
		}

		observed := middleware.NewObservedUnit(unit, cfg.Timeout, pl.observer)
		if err := p.Add(NewUnitAdapter(observed, id, domain.Stage(cfg.Type))); err != nil {
			return nil, fmt.Errorf("failed to add unit to pipeline: %w", err)
		}
	}
	return p, nil
}

func (pl *PipelineLoader) createUnit(cfg UnitConfig) (ports.Unit, error) {
	params := make(map[string]any)
	if cfg.Parameters.Kind != 0 {
		if err := cfg.Parameters.Decode(&params); err != nil {
			return nil, fmt.Errorf("failed to decode parameters: %w", err)
		}
	}
	maps.Copy(params, pl.overrides[cfg.Type])

	unit, err := pl.unitRegistry.CreateUnit(cfg.Type, cfg.ID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create unit: %w", err)
	}
	return unit, nil
}

// calculateDefinitionHash hashes the re-encoded definition so that
// formatting differences do not defeat the cache.
func calculateDefinitionHash(def *PipelineDefinition) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(def); err != nil {
		return "", fmt.Errorf("failed to encode definition for hashing: %w", err)
	}
	hash := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(hash[:]), nil
}

func (pl *PipelineLoader) getCached(hash string) (*Pipeline, bool) {
	pl.cacheMu.RLock()
	defer pl.cacheMu.RUnlock()

	p, ok := pl.cache[hash]
	return p, ok
}

func (pl *PipelineLoader) setCached(hash string, p *Pipeline) {
	pl.cacheMu.Lock()
	defer pl.cacheMu.Unlock()

	pl.cache[hash] = p
}

// ClearCache drops every compiled pipeline.
func (pl *PipelineLoader) ClearCache() {
	pl.cacheMu.Lock()
	defer pl.cacheMu.Unlock()

	pl.cache = make(map[string]*Pipeline)
}
