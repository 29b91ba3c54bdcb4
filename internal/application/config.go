package application

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Unit types understood by the pipeline loader, in the order their stages
// must run.
const (
	UnitTypeRetrieve  = "retrieve"
	UnitTypeNormalize = "normalize"
	UnitTypeEvidence  = "evidence"
	UnitTypeRules     = "rules"
	UnitTypeScoring   = "scoring"
	UnitTypeSelect    = "select"
	UnitTypeExplain   = "explain"
)

// stageOrder ranks the unit types. A pipeline lists its units in strictly
// increasing rank, so no type appears twice.
var stageOrder = map[string]int{
	UnitTypeRetrieve:  0,
	UnitTypeNormalize: 1,
	UnitTypeEvidence:  2,
	UnitTypeRules:     3,
	UnitTypeScoring:   4,
	UnitTypeSelect:    5,
	UnitTypeExplain:   6,
}

// requiredTypes must appear in every pipeline. Evidence and
// explanation are optional stages.
var requiredTypes = []string{
	UnitTypeRetrieve, UnitTypeNormalize, UnitTypeRules, UnitTypeScoring, UnitTypeSelect,
}

// PipelineDefinition is the declarative form of a quote pipeline as read
// from YAML.
type PipelineDefinition struct {
	// Version is the semantic version of the definition schema.
	Version string `yaml:"version" validate:"required,semver"`

	Metadata Metadata `yaml:"metadata" validate:"required"`

	// Units declares every stage instance with its parameters.
	Units []UnitConfig `yaml:"units" validate:"required,min=1,dive"`

	// Pipeline lists unit ids in execution order.
	Pipeline []string `yaml:"pipeline" validate:"required,min=1,dive,unitid"`
}

// Metadata describes a pipeline definition.
type Metadata struct {
	Name        string            `yaml:"name" validate:"required,min=1,max=255"`
	Description string            `yaml:"description" validate:"max=1000"`
	Tags        []string          `yaml:"tags" validate:"max=20,dive,min=1,max=50"`
	Labels      map[string]string `yaml:"labels" validate:"max=50"`
}

// UnitConfig declares one unit of the pipeline.
type UnitConfig struct {
	// ID names the unit within the definition. Lowercase letters, digits,
	// '_' and '-' only.
	ID string `yaml:"id" validate:"required,min=1,max=100,unitid"`

	Type string `yaml:"type" validate:"required,oneof=retrieve normalize evidence rules scoring select explain"`

	// Timeout bounds a single execution of the unit. Zero means no budget
	// beyond the caller's context.
	Timeout time.Duration `yaml:"timeout" validate:"gte=0,lte=10m"`

	// Parameters holds the type specific settings. They are decoded
	// strictly against the unit's configuration struct.
	Parameters yaml.Node `yaml:"parameters"`
}
