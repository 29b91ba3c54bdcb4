// Package units provides the procurement pipeline stages that implement the
// ports.Unit interface: retrieval, normalization, evidence scoring, the
// production rules, scoring, selection and explanation.
package units

import (
	"errors"
	"fmt"
	"maps"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Config keys under which the unit registry injects collaborators. They
// are removed before the remaining parameters are decoded.
const (
	ConfigSearcher       = "searcher"
	ConfigEvidenceScorer = "evidence_scorer"
	ConfigAdvisor        = "advisor"
	ConfigLogger         = "logger"
)

var dependencyKeys = []string{ConfigSearcher, ConfigEvidenceScorer, ConfigAdvisor, ConfigLogger}

// Common errors returned by the units.
var (
	// ErrEmptyUnitName is returned when attempting to create a unit with an empty name.
	ErrEmptyUnitName = errors.New("unit name cannot be empty")

	// ErrMissingDependency is returned when a required collaborator was not
	// injected into the unit configuration.
	ErrMissingDependency = errors.New("missing dependency")
)

// Package-level validator instance for configuration validation.
var validate = validator.New()

// decodeConfig overlays the serializable entries of config onto cfg, then
// validates the result.
func decodeConfig[T any](config map[string]any, cfg *T) error {
	params := maps.Clone(config)
	for _, k := range dependencyKeys {
		delete(params, k)
	}
	data, err := yaml.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// dependency extracts a collaborator of type T from config.
func dependency[T any](config map[string]any, key string) (T, error) {
	v, ok := config[key].(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s", ErrMissingDependency, key)
	}
	return v, nil
}

// optionalDependency returns the collaborator stored under key, or the zero
// value when absent.
func optionalDependency[T any](config map[string]any, key string) T {
	v, _ := config[key].(T)
	return v
}

// loggerFrom returns the injected logger or a no-op logger.
func loggerFrom(config map[string]any) *zap.Logger {
	if l := optionalDependency[*zap.Logger](config, ConfigLogger); l != nil {
		return l
	}
	return zap.NewNop()
}

// unmarshalParameters decodes params into a fresh config and validates it.
func unmarshalParameters[T any](params yaml.Node, def T) (T, error) {
	cfg := def
	if err := params.Decode(&cfg); err != nil {
		return def, fmt.Errorf("failed to decode parameters: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return def, fmt.Errorf("parameter validation failed: %w", err)
	}
	return cfg, nil
}
