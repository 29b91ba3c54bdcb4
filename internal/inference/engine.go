package inference

import (
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/ahrav/go-procure/internal/domain"
)

// Mode selects which chaining strategies Reason runs.
type Mode string

// Reasoning modes.
const (
	ModeForward  Mode = "forward"
	ModeBackward Mode = "backward"
	ModeHybrid   Mode = "hybrid"
)

// ParseMode converts a mode name, rejecting unknown values.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeForward, ModeBackward, ModeHybrid:
		return m, nil
	default:
		return "", fmt.Errorf("unknown reasoning mode %q: %w", s, domain.ErrInvalidConfiguration)
	}
}

const (
	// DefaultMaxRounds caps forward chaining.
	DefaultMaxRounds = 10

	// maxDepth bounds the backward chaining recursion.
	maxDepth = 5
)

// GoalResult is the backward chaining outcome for one goal.
type GoalResult struct {
	Goal     string   `json:"goal"`
	Achieved bool     `json:"achieved"`
	Missing  []string `json:"missing_facts"`
}

// Result is the outcome of Reason.
type Result struct {
	// Actions are the forward chaining actions, as "<rule>:<action>".
	Actions []string `json:"actions"`

	// GoalAchieved is true only when backward chaining ran and every goal
	// was achieved.
	GoalAchieved bool `json:"goal_achieved"`

	MissingFacts []string     `json:"missing_facts"`
	Trace        []string     `json:"inference_trace"`
	Goals        []GoalResult `json:"goals,omitempty"`
}

// Engine chains over one episode's knowledge base. It is not safe for
// concurrent use; every request constructs its own.
type Engine struct {
	kb        *domain.KnowledgeBase
	rules     []domain.ProductionRule
	fired     map[string]bool
	maxRounds int
	log       *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRules replaces the default rule set.
func WithRules(rules []domain.ProductionRule) Option {
	return func(e *Engine) { e.rules = slices.Clone(rules) }
}

// WithMaxRounds overrides the forward chaining round cap.
func WithMaxRounds(n int) Option {
	return func(e *Engine) { e.maxRounds = n }
}

// WithLogger sets the logger used for chaining decisions.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// NewEngine builds an engine with an empty knowledge base. It fails when
// the rule set does not pass ValidateRules.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		kb:        domain.NewKnowledgeBase(),
		rules:     DefaultRules(),
		fired:     make(map[string]bool),
		maxRounds: DefaultMaxRounds,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := ValidateRules(e.rules); err != nil {
		return nil, err
	}
	if e.maxRounds <= 0 {
		return nil, fmt.Errorf("max rounds must be positive, got %d: %w", e.maxRounds, domain.ErrInvalidConfiguration)
	}
	slices.SortStableFunc(e.rules, func(a, b domain.ProductionRule) int { return b.Priority - a.Priority })
	return e, nil
}

// KnowledgeBase exposes the engine's facts.
func (e *Engine) KnowledgeBase() *domain.KnowledgeBase { return e.kb }

// AddPercepts asserts each percept as a fact with the percept source.
func (e *Engine) AddPercepts(percepts map[string]any) {
	names := make([]string, 0, len(percepts))
	for name := range percepts {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		e.kb.Assert(domain.NewFact(name, percepts[name], domain.SourcePercept))
	}
}

// Assert adds a fact.
func (e *Engine) Assert(f domain.Fact) { e.kb.Assert(f) }

// Reset clears the knowledge base and the fired-rule memory for a new
// episode.
func (e *Engine) Reset() {
	e.kb.Clear()
	clear(e.fired)
}

// Forward runs data-driven chaining. A rule whose conditions hold fires
// its action once per episode. A rule whose conditions do not hold fires
// its else action every round it stays unmet. Chaining stops after a round
// that executed nothing or at the round cap.
func (e *Engine) Forward() []string {
	var actions []string
	round := 0
	for round < e.maxRounds {
		round++
		executed := false
		for _, r := range e.rules {
			if e.fired[r.ID] {
				continue
			}
			switch {
			case r.Triggered(e.kb):
				actions = append(actions, e.execute(r.Action, r.ID))
				e.fired[r.ID] = true
				executed = true
				e.log.Debug("rule fired", zap.String("rule", r.ID), zap.String("action", r.Action))
			case r.ElseAction != "":
				actions = append(actions, e.execute(r.ElseAction, r.ID))
				executed = true
				e.log.Debug("rule else branch", zap.String("rule", r.ID), zap.String("action", r.ElseAction))
			}
		}
		if !executed {
			break
		}
	}
	e.log.Debug("forward chaining completed", zap.Int("rounds", round), zap.Int("actions", len(actions)))
	return actions
}

func (e *Engine) execute(action, ruleID string) string {
	if fact, ok := DerivedFact(action); ok {
		e.kb.Assert(domain.NewFact(fact, true, ruleID))
	}
	return ruleID + ":" + action
}

// Backward checks one goal. Missing facts are searched for a rule that can
// produce them with satisfiable conditions; nothing is asserted.
func (e *Engine) Backward(goal string) (GoalResult, []string) {
	res := GoalResult{Goal: goal, Missing: []string{}}
	var trace []string
	for _, name := range Requirements(goal) {
		if e.kb.Has(name) {
			continue
		}
		trace = append(trace, "Missing: "+name)
		if e.derive(name, 0, &trace) {
			trace = append(trace, "Inferred: "+name)
			continue
		}
		res.Missing = append(res.Missing, name)
	}
	res.Achieved = len(res.Missing) == 0
	e.log.Debug("goal checked", zap.String("goal", goal), zap.Bool("achieved", res.Achieved), zap.Strings("missing", res.Missing))
	return res, trace
}

func (e *Engine) derive(fact string, depth int, trace *[]string) bool {
	if depth > maxDepth {
		return false
	}
	for _, r := range e.rules {
		if derivableActions[r.Action] != fact {
			continue
		}
		if e.satisfiable(r.Conditions, depth+1, trace) {
			*trace = append(*trace, fmt.Sprintf("Rule %s can produce %s", r.ID, fact))
			return true
		}
	}
	return false
}

func (e *Engine) satisfiable(conditions []string, depth int, trace *[]string) bool {
	for _, c := range conditions {
		if !e.kb.Has(c) && !e.derive(c, depth, trace) {
			return false
		}
	}
	return true
}

// Reason runs the chaining strategies selected by mode. In hybrid mode
// forward chaining runs first so that derived facts count towards the
// goals. The trace accumulates across all goals.
func (e *Engine) Reason(mode Mode) Result {
	res := Result{Actions: []string{}, MissingFacts: []string{}, Trace: []string{}}
	if mode == ModeForward || mode == ModeHybrid {
		res.Actions = append(res.Actions, e.Forward()...)
	}
	if mode == ModeBackward || mode == ModeHybrid {
		res.GoalAchieved = true
		for _, goal := range Goals {
			g, trace := e.Backward(goal)
			res.Goals = append(res.Goals, g)
			res.Trace = append(res.Trace, trace...)
			if !g.Achieved {
				res.GoalAchieved = false
				res.MissingFacts = append(res.MissingFacts, g.Missing...)
			}
		}
	}
	return res
}
