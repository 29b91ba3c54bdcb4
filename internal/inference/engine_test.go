package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-procure/internal/domain"
)

func newEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(opts...)
	require.NoError(t, err)
	return e
}

func TestForward_FiresOnceAndNagsUnmetRules(t *testing.T) {
	// Given every condition except feedback
	e := newEngine(t)
	e.AddPercepts(map[string]any{
		"product_retrieved":  true,
		"price_available":    true,
		"budget_set":         true,
		"evidence_retrieved": true,
		"stock_checked":      true,
	})

	// When forward chaining runs
	actions := e.Forward()

	// Then satisfied rules fire once in priority order and R5 falls back
	// to its else action in every round
	require.GreaterOrEqual(t, len(actions), 5)
	assert.Equal(t, []string{
		"R1:normalize_spec",
		"R2:mark_as_candidate",
		"R4:confirm_vendor",
		"R3:reward_candidate",
		"R5:retain_policy",
	}, actions[:5])
	assert.Len(t, actions, 4+DefaultMaxRounds, "R5's else branch repeats every round.")
	for _, a := range actions[5:] {
		assert.Equal(t, "R5:retain_policy", a)
	}

	kb := e.KnowledgeBase()
	for _, f := range []string{"specs_normalized", "candidate_added", "vendor_confirmed", "candidate_rewarded", "policy_retained"} {
		assert.True(t, kb.Has(f), "expected derived fact %s", f)
	}
	fact, _ := kb.Get("candidate_added")
	assert.Equal(t, "R2", fact.Source, "Derived facts record the rule that produced them.")
}

func TestForward_StopsWhenNothingExecutes(t *testing.T) {
	rules := []domain.ProductionRule{
		{ID: "R1", Conditions: []string{"product_retrieved"}, Action: "normalize_spec", Priority: 1},
	}
	e := newEngine(t, WithRules(rules))
	e.Assert(domain.NewFact("product_retrieved", true, domain.SourcePercept))

	assert.Equal(t, []string{"R1:normalize_spec"}, e.Forward())
	assert.Empty(t, e.Forward(), "A fired rule never fires again in the same episode.")

	e.Reset()
	e.Assert(domain.NewFact("product_retrieved", true, domain.SourcePercept))
	assert.Equal(t, []string{"R1:normalize_spec"}, e.Forward(), "Reset forgets fired rules.")
}

func TestForward_ElseBranchCanEnableLaterRule(t *testing.T) {
	// retain_policy derives policy_retained, which a custom rule waits on.
	rules := []domain.ProductionRule{
		{ID: "A", Conditions: []string{"policy_retained"}, Action: "confirm_vendor", Priority: 10},
		{ID: "B", Conditions: []string{"feedback_received"}, Action: "adjust_weights", ElseAction: "retain_policy", Priority: 1},
	}
	e := newEngine(t, WithRules(rules), WithMaxRounds(3))

	actions := e.Forward()

	assert.Equal(t, []string{"B:retain_policy", "A:confirm_vendor", "B:retain_policy", "B:retain_policy"}, actions)
}

func TestBackward_EmptyKnowledgeBase(t *testing.T) {
	e := newEngine(t)

	res := e.Reason(ModeBackward)

	assert.False(t, res.GoalAchieved)
	assert.Empty(t, res.Actions)
	require.Len(t, res.Goals, 3)
	for _, g := range res.Goals {
		assert.False(t, g.Achieved, "goal %s", g.Goal)
		assert.NotEmpty(t, g.Missing, "goal %s should enumerate missing facts", g.Goal)
	}
	assert.Equal(t, []string{
		"candidate_added", "vendor_confirmed", "specs_normalized",
		"price_available", "budget_set", "candidate_added",
		"evidence_retrieved", "candidate_rewarded",
	}, res.MissingFacts)
	assert.Contains(t, res.Trace, "Missing: evidence_retrieved", "The trace spans every goal.")
	assert.Equal(t, 0, e.KnowledgeBase().Len(), "Proving never asserts facts.")
}

func TestBackward_DerivesThroughRules(t *testing.T) {
	// Given the preconditions of every derivable fact but not the facts
	e := newEngine(t)
	e.AddPercepts(map[string]any{
		"product_retrieved":  true,
		"price_available":    true,
		"budget_set":         true,
		"evidence_retrieved": true,
		"stock_checked":      true,
	})

	// When only backward chaining runs
	res := e.Reason(ModeBackward)

	// Then every goal is provable
	assert.True(t, res.GoalAchieved)
	assert.Empty(t, res.MissingFacts)
	assert.Equal(t, []string{
		"Missing: candidate_added", "Rule R2 can produce candidate_added", "Inferred: candidate_added",
		"Missing: vendor_confirmed", "Rule R4 can produce vendor_confirmed", "Inferred: vendor_confirmed",
		"Missing: specs_normalized", "Rule R1 can produce specs_normalized", "Inferred: specs_normalized",
	}, res.Trace[:9])
}

func TestBackward_UnknownGoalRequiresItself(t *testing.T) {
	e := newEngine(t)

	g, trace := e.Backward("weights_adjusted")
	assert.False(t, g.Achieved)
	assert.Equal(t, []string{"weights_adjusted"}, g.Missing)
	assert.Equal(t, []string{"Missing: weights_adjusted"}, trace, "adjust_weights is not a derivable action.")

	e.Assert(domain.NewFact("weights_adjusted", true, "A5"))
	g, _ = e.Backward("weights_adjusted")
	assert.True(t, g.Achieved)
}

func TestBackward_CyclicRulesTerminate(t *testing.T) {
	rules := []domain.ProductionRule{
		{ID: "X", Conditions: []string{"candidate_added"}, Action: "normalize_spec", Priority: 2},
		{ID: "Y", Conditions: []string{"specs_normalized"}, Action: "mark_as_candidate", Priority: 1},
	}
	e := newEngine(t, WithRules(rules))

	g, _ := e.Backward(GoalQuotationComplete)

	assert.False(t, g.Achieved)
	assert.Contains(t, g.Missing, "specs_normalized")
}

func TestReason_Hybrid(t *testing.T) {
	e := newEngine(t)
	e.AddPercepts(map[string]any{"budget_set": true, "user_request_received": true})

	res := e.Reason(ModeHybrid)

	assert.False(t, res.GoalAchieved)
	assert.Contains(t, res.Actions, "R2:search_equivalent_product")
	assert.Contains(t, res.MissingFacts, "price_available")
	assert.True(t, e.KnowledgeBase().Has("substitute_search_needed"), "Forward chaining ran first.")
}

func TestReason_ForwardOnlyNeverClaimsGoal(t *testing.T) {
	e := newEngine(t)

	res := e.Reason(ModeForward)

	assert.False(t, res.GoalAchieved)
	assert.Empty(t, res.Goals)
	assert.NotEmpty(t, res.Actions)
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"forward", "backward", "hybrid"} {
		m, err := ParseMode(s)
		require.NoError(t, err)
		assert.Equal(t, Mode(s), m)
	}
	_, err := ParseMode("sideways")
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestValidateRules(t *testing.T) {
	assert.NoError(t, ValidateRules(DefaultRules()))

	err := ValidateRules([]domain.ProductionRule{
		{ID: "R1", Conditions: []string{"a"}, Action: "launch_rocket"},
		{ID: "R1", Conditions: nil, Action: "normalize_spec", ElseAction: "shrug"},
	})

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{
		`rule R1: undefined action "launch_rocket"`,
		"rule R1: duplicate id",
		"rule R1: at least one condition is required",
		`rule R1: undefined else action "shrug"`,
	}, verr.Errors)

	_, err = NewEngine(WithRules([]domain.ProductionRule{{ID: "Z", Conditions: []string{"a"}, Action: "nope"}}))
	assert.Error(t, err, "NewEngine refuses malformed rule sets.")
	_, err = NewEngine(WithMaxRounds(0))
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}
