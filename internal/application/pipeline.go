package application

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ahrav/go-procure/internal/domain"
	"github.com/ahrav/go-procure/internal/ports"
)

// Verify interface compliance at compile time.
var _ ports.Pipeline = (*Pipeline)(nil)

// StageHook observes the state after each executable of a pipeline has
// run. Returning an error aborts the run.
type StageHook func(ctx context.Context, stage domain.Stage, state domain.State) error

// staged is implemented by executables that belong to a pipeline stage.
type staged interface {
	Stage() domain.Stage
}

// Pipeline is a sequential execution container that processes executables
// in strict order, where each executable's output becomes the input for
// the next one.
type Pipeline struct {
	id          string
	executables []ports.Executable

	// idSet tracks executable IDs for O(1) duplicate detection.
	idSet map[string]struct{}
	mu    sync.RWMutex
}

// NewPipeline creates an empty pipeline with the given identifier.
func NewPipeline(id string) *Pipeline {
	return &Pipeline{
		id:          id,
		executables: make([]ports.Executable, 0),
		idSet:       make(map[string]struct{}),
	}
}

// Execute runs every executable in order. A failure is returned as a
// *domain.PipelineError naming the stage that failed; the returned state
// is the last successful one.
func (p *Pipeline) Execute(ctx context.Context, state domain.State) (domain.State, error) {
	return p.Run(ctx, state, nil)
}

// Run is Execute with a hook called after every executable. Hook errors
// are wrapped the same way as execution errors.
func (p *Pipeline) Run(ctx context.Context, state domain.State, hook StageHook) (domain.State, error) {
	current := state
	for _, exec := range p.Executables() {
		stage := stageOf(exec)
		if err := ctx.Err(); err != nil {
			return current, domain.NewPipelineError(stage, err)
		}

		next, err := exec.Execute(ctx, current)
		if err != nil {
			return current, stageError(stage, fmt.Errorf("pipeline %s: execution failed at %s: %w", p.id, exec.ID(), err))
		}
		current = next

		if hook != nil {
			if err := hook(ctx, stage, current); err != nil {
				return current, stageError(stage, err)
			}
		}
	}
	return current, nil
}

// ID returns the pipeline identifier.
func (p *Pipeline) ID() string { return p.id }

// Add appends an executable. It rejects nil executables and duplicate IDs.
func (p *Pipeline) Add(exec ports.Executable) error {
	if exec == nil {
		return fmt.Errorf("cannot add nil executable to pipeline")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	execID := exec.ID()
	if _, exists := p.idSet[execID]; exists {
		return fmt.Errorf("executable with ID %s already exists in pipeline", execID)
	}

	p.executables = append(p.executables, exec)
	p.idSet[execID] = struct{}{}
	return nil
}

// Executables returns a copy of the ordered executables.
func (p *Pipeline) Executables() []ports.Executable {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]ports.Executable, len(p.executables))
	copy(result, p.executables)
	return result
}

// Stages lists the stage of every executable in order.
func (p *Pipeline) Stages() []domain.Stage {
	execs := p.Executables()
	stages := make([]domain.Stage, len(execs))
	for i, e := range execs {
		stages[i] = stageOf(e)
	}
	return stages
}

func stageOf(exec ports.Executable) domain.Stage {
	if s, ok := exec.(staged); ok {
		return s.Stage()
	}
	return domain.Stage(exec.ID())
}

// stageError wraps err unless it already names a stage.
func stageError(stage domain.Stage, err error) error {
	var pe *domain.PipelineError
	if errors.As(err, &pe) {
		return err
	}
	return domain.NewPipelineError(stage, err)
}
