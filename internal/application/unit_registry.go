package application

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/ahrav/go-procure/infrastructure/advisor"
	"github.com/ahrav/go-procure/infrastructure/units"
	"github.com/ahrav/go-procure/internal/ports"
)

// Verify interface compliance at compile time.
var _ ports.UnitRegistry = (*DefaultUnitRegistry)(nil)

// Dependencies are the collaborators injected into the units that need
// them. Advisor and Logger are optional; a nil Advisor is replaced by a
// disabled one that only produces fallback text.
type Dependencies struct {
	Searcher       ports.SupplierSearcher
	EvidenceScorer ports.EvidenceScorer
	Advisor        ports.Advisor
	Logger         *zap.Logger
}

// DefaultUnitRegistry creates the built-in pipeline units, injecting the
// collaborators each of them needs.
type DefaultUnitRegistry struct {
	factories map[string]ports.UnitFactory
	mu        sync.RWMutex
	deps      Dependencies
}

// NewDefaultUnitRegistry returns a registry with every built-in unit type
// registered.
func NewDefaultUnitRegistry(deps Dependencies) *DefaultUnitRegistry {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Advisor == nil {
		deps.Advisor = advisor.New(nil, advisor.WithLogger(deps.Logger))
	}
	registry := &DefaultUnitRegistry{
		factories: make(map[string]ports.UnitFactory),
		deps:      deps,
	}
	registry.registerBuiltinFactories()
	return registry
}

func (r *DefaultUnitRegistry) registerBuiltinFactories() {
	deps := r.deps

	r.factories[UnitTypeRetrieve] = func(id string, config map[string]any) (ports.Unit, error) {
		config[units.ConfigSearcher] = deps.Searcher
		config[units.ConfigLogger] = deps.Logger
		config[units.ConfigAdvisor] = deps.Advisor
		return units.CreateRetrieveUnit(id, config)
	}

	r.factories[UnitTypeNormalize] = func(id string, config map[string]any) (ports.Unit, error) {
		config[units.ConfigLogger] = deps.Logger
		return units.CreateNormalizeUnit(id, config)
	}

	r.factories[UnitTypeEvidence] = func(id string, config map[string]any) (ports.Unit, error) {
		config[units.ConfigEvidenceScorer] = deps.EvidenceScorer
		config[units.ConfigLogger] = deps.Logger
		return units.CreateEvidenceUnit(id, config)
	}

	r.factories[UnitTypeRules] = func(id string, config map[string]any) (ports.Unit, error) {
		return units.CreateRulesUnit(id, config)
	}

	r.factories[UnitTypeScoring] = func(id string, config map[string]any) (ports.Unit, error) {
		return units.CreateScoringUnit(id, config)
	}

	r.factories[UnitTypeSelect] = func(id string, config map[string]any) (ports.Unit, error) {
		return units.CreateSelectUnit(id, config)
	}

	r.factories[UnitTypeExplain] = func(id string, config map[string]any) (ports.Unit, error) {
		config[units.ConfigAdvisor] = deps.Advisor
		return units.CreateExplainUnit(id, config)
	}
}

// CreateUnit builds a unit of the registered type.
func (r *DefaultUnitRegistry) CreateUnit(unitType, id string, config map[string]any) (ports.Unit, error) {
	r.mu.RLock()
	factory, exists := r.factories[unitType]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unsupported unit type: %s", unitType)
	}
	if id == "" {
		return nil, fmt.Errorf("unit ID cannot be empty")
	}

	// Factories inject collaborators into the map, so never hand them the
	// caller's copy.
	params := make(map[string]any, len(config)+4)
	maps.Copy(params, config)

	unit, err := factory(id, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create unit %s of type %s: %w", id, unitType, err)
	}
	return unit, nil
}

// RegisterUnitFactory adds a factory for unitType. Registering a type
// twice is an error.
func (r *DefaultUnitRegistry) RegisterUnitFactory(unitType string, factory ports.UnitFactory) error {
	if unitType == "" {
		return fmt.Errorf("unit type cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("factory function cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[unitType]; exists {
		return fmt.Errorf("unit type %s is already registered", unitType)
	}
	r.factories[unitType] = factory
	return nil
}

// GetSupportedTypes lists the registered unit types in sorted order.
func (r *DefaultUnitRegistry) GetSupportedTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Sorted(maps.Keys(r.factories))
}
