// Package ports defines the core interfaces that form the contract between
// the domain/application layers and the infrastructure layer.
// These interfaces enable dependency inversion and make the system testable.
package ports

import (
	"context"

	"github.com/ahrav/go-procure/internal/domain"
)

// Unit represents the fundamental building block of the decision pipeline.
// Each Unit performs a specific transformation on the State, enabling
// composable and reusable pipeline stages.
// Units should be stateless and safe for concurrent execution.
type Unit interface {
	// Name returns a unique identifier for this unit.
	// The name is used for logging, metrics, and configuration.
	Name() string

	// Execute performs the unit's transformation on the provided State.
	// It returns a new State containing the results of the transformation.
	// The original State is never modified.
	//
	// The context parameter allows for cancellation and deadline propagation.
	// Units that call external collaborators must respect cancellation.
	Execute(ctx context.Context, state domain.State) (domain.State, error)

	// Validate checks if the unit is properly configured and ready for
	// execution. It is called once when the pipeline is assembled.
	Validate() error
}

// UnitFactory builds a unit of one type from its id and raw parameters.
type UnitFactory func(id string, config map[string]any) (Unit, error)

// UnitRegistry creates units by type name.
type UnitRegistry interface {
	// CreateUnit builds a unit of the registered type.
	CreateUnit(unitType, id string, config map[string]any) (Unit, error)

	// RegisterUnitFactory adds a factory for unitType. Registering a type
	// twice is an error.
	RegisterUnitFactory(unitType string, factory UnitFactory) error

	// GetSupportedTypes lists the registered unit types in sorted order.
	GetSupportedTypes() []string
}

// Executable is anything that transforms State and can be identified.
type Executable interface {
	Execute(ctx context.Context, state domain.State) (domain.State, error)
	ID() string
}

// Pipeline executes its executables sequentially, feeding the output
// State of each into the next.
type Pipeline interface {
	Executable
	Add(exec Executable) error
	Executables() []Executable
}
