package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahrav/go-procure/internal/domain"
	"github.com/ahrav/go-procure/internal/ports"
)

// ErrStageTimeout is returned when a unit exceeds its time budget.
var ErrStageTimeout = errors.New("stage time budget exceeded")

// UnitObserver provides observability hooks around unit execution.
// Implementations can add tracing, metrics and logging without coupling
// those concerns to the units.
type UnitObserver interface {
	// PreExecute is called before the unit runs. The returned context is
	// passed to the unit and to PostExecute.
	PreExecute(ctx context.Context, unit string) context.Context

	// PostExecute is called after the unit returns.
	PostExecute(ctx context.Context, unit string, elapsed time.Duration, err error)
}

// ObservedUnit wraps a unit with an optional time budget and an observer.
// It is stateless and safe for concurrent use.
type ObservedUnit struct {
	next     ports.Unit
	timeout  time.Duration
	observer UnitObserver
}

var _ ports.Unit = (*ObservedUnit)(nil)

// NewObservedUnit wraps next. A zero timeout disables the time budget and a
// nil observer disables the hooks.
func NewObservedUnit(next ports.Unit, timeout time.Duration, observer UnitObserver) *ObservedUnit {
	if next == nil {
		panic("observed unit: next unit is required")
	}
	return &ObservedUnit{next: next, timeout: timeout, observer: observer}
}

// Name returns the wrapped unit's name.
func (u *ObservedUnit) Name() string { return u.next.Name() }

// Unwrap returns the wrapped unit.
func (u *ObservedUnit) Unwrap() ports.Unit { return u.next }

// Execute runs the wrapped unit within its time budget. Exceeding the
// budget yields an error wrapping both ErrStageTimeout and
// context.DeadlineExceeded.
func (u *ObservedUnit) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	if u.observer != nil {
		ctx = u.observer.PreExecute(ctx, u.Name())
	}

	runCtx := ctx
	if u.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}

	start := time.Now()
	next, err := u.next.Execute(runCtx, state)
	elapsed := time.Since(start)

	if err != nil && ctx.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w after %s: %w", ErrStageTimeout, u.timeout, err)
	}
	if u.observer != nil {
		u.observer.PostExecute(ctx, u.Name(), elapsed, err)
	}
	if err != nil {
		return state, err
	}
	return next, nil
}

// Validate checks the time budget and delegates to the wrapped unit.
func (u *ObservedUnit) Validate() error {
	if u.timeout < 0 {
		return fmt.Errorf("observed unit %s: timeout cannot be negative, got %s", u.Name(), u.timeout)
	}
	return u.next.Validate()
}
