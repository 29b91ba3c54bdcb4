package application

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-procure/infrastructure/units"
)

var unitIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// ValidateUnitParameters decodes params strictly into the configuration
// struct of unitType and validates the result. Unknown keys are rejected
// so that a misspelled parameter is not silently ignored.
func ValidateUnitParameters(v *validator.Validate, unitType string, params yaml.Node) error {
	switch unitType {
	case UnitTypeRetrieve:
		return decodeStrict(v, params, units.DefaultRetrieveConfig())
	case UnitTypeNormalize:
		return decodeStrict(v, params, units.DefaultNormalizeConfig())
	case UnitTypeEvidence:
		return decodeStrict(v, params, units.DefaultEvidenceConfig())
	case UnitTypeSelect:
		return decodeStrict(v, params, units.DefaultSelectConfig())
	case UnitTypeExplain:
		return decodeStrict(v, params, units.DefaultExplainConfig())
	case UnitTypeRules, UnitTypeScoring:
		return decodeStrict(v, params, struct{}{})
	default:
		return fmt.Errorf("unknown unit type: %s", unitType)
	}
}

// decodeStrict re-encodes the parameter node and decodes it over def with
// KnownFields enabled. An absent parameter block is valid.
func decodeStrict[T any](v *validator.Validate, params yaml.Node, def T) error {
	if params.Kind == 0 {
		return nil
	}
	data, err := yaml.Marshal(&params)
	if err != nil {
		return fmt.Errorf("failed to encode parameters: %w", err)
	}

	cfg := def
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	return nil
}

// RegisterPipelineValidators installs the semver and unitid tags used by
// PipelineDefinition.
func RegisterPipelineValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("semver", validateSemver); err != nil {
		return fmt.Errorf("failed to register semver validator: %w", err)
	}
	if err := v.RegisterValidation("unitid", validateUnitID); err != nil {
		return fmt.Errorf("failed to register unitid validator: %w", err)
	}
	return nil
}

// validateSemver accepts X.Y.Z where X, Y and Z are non-negative integers.
func validateSemver(fl validator.FieldLevel) bool {
	var major, minor, patch int
	var rest string
	n, _ := fmt.Sscanf(fl.Field().String(), "%d.%d.%d%s", &major, &minor, &patch, &rest)
	return n == 3 && major >= 0 && minor >= 0 && patch >= 0
}

func validateUnitID(fl validator.FieldLevel) bool {
	return unitIDPattern.MatchString(fl.Field().String())
}
