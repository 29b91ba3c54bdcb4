package application

import (
	"context"

	"github.com/ahrav/go-procure/internal/domain"
	"github.com/ahrav/go-procure/internal/ports"
)

// UnitAdapter wraps a ports.Unit to implement ports.Executable and records
// the pipeline stage the unit belongs to.
type UnitAdapter struct {
	unit  ports.Unit
	id    string
	stage domain.Stage
}

// NewUnitAdapter creates an adapter for unit with the given pipeline id and
// stage.
func NewUnitAdapter(unit ports.Unit, id string, stage domain.Stage) *UnitAdapter {
	return &UnitAdapter{
		unit:  unit,
		id:    id,
		stage: stage,
	}
}

// Execute delegates to the wrapped unit.
func (ua *UnitAdapter) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	return ua.unit.Execute(ctx, state)
}

// ID returns the adapter identifier.
func (ua *UnitAdapter) ID() string { return ua.id }

// Stage returns the pipeline stage of the wrapped unit.
func (ua *UnitAdapter) Stage() domain.Stage { return ua.stage }

// Unit returns the wrapped unit.
func (ua *UnitAdapter) Unit() ports.Unit { return ua.unit }
