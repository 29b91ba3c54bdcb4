package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewState verifies that a new State instance is initialized correctly.
func TestNewState(t *testing.T) {
	state := NewState()

	assert.NotNil(t, state.data, "NewState() should initialize the data map.")
	assert.Empty(t, state.Keys(), "NewState() should create an empty state.")
}

// TestState_With verifies that With is copy-on-write.
func TestState_With(t *testing.T) {
	original := NewState()
	updated := With(original, KeyQueries, []string{"taq"})

	_, ok := Get(original, KeyQueries)
	assert.False(t, ok, "With() should not modify the original state.")

	got, ok := Get(updated, KeyQueries)
	require.True(t, ok, "With() should add a new value to the state.")
	assert.Equal(t, []string{"taq"}, got, "With() returned an incorrect value.")

	updated2 := With(updated, KeyQueries, []string{"pcr"})
	v, _ := Get(updated, KeyQueries)
	assert.Equal(t, []string{"taq"}, v, "With() should not modify the previous state when updating.")
	v2, _ := Get(updated2, KeyQueries)
	assert.Equal(t, []string{"pcr"}, v2, "With() returned an incorrect updated value.")
}

// TestState_CandidatesAreDeepCopied ensures a unit mutating the candidates
// it read cannot corrupt the state it read them from.
func TestState_CandidatesAreDeepCopied(t *testing.T) {
	// Given a state holding one candidate
	c := NewCandidate(Offer{SKU: "A", Vendor: "V", Price: 10})
	c.AddFlag(FlagOverBudget)
	c.SetNormalized(NormPackLiters, 0.001)
	state := With(NewState(), KeyCandidates, []*Candidate{c})

	// When the retrieved copy is mutated
	got, ok := Get(state, KeyCandidates)
	require.True(t, ok, "Candidates should be present.")
	require.Len(t, got, 1)
	got[0].CostFitness = 0.9
	got[0].AddRationale("R1", "changed")
	got[0].Normalized[NormPackLiters] = 5
	got[0].Flags[0] = FlagLowEvidence

	// Then the stored candidate is unchanged
	again, _ := Get(state, KeyCandidates)
	assert.Zero(t, again[0].CostFitness, "Stored cost fitness should be untouched.")
	assert.Empty(t, again[0].Rationales, "Stored rationales should be untouched.")
	assert.Equal(t, 0.001, again[0].Normalized[NormPackLiters], "Stored normalized map should be untouched.")
	assert.Equal(t, []Flag{FlagOverBudget}, again[0].Flags, "Stored flags should be untouched.")
	assert.Equal(t, c.CreatedAt, again[0].CreatedAt, "Timestamps survive the copy.")

	// And the caller's original is not aliased either
	c.TotalScore = 1
	again, _ = Get(state, KeyCandidates)
	assert.Zero(t, again[0].TotalScore, "State should not alias the caller's candidate.")
}

// TestState_WithMultiple tests the batch update functionality.
func TestState_WithMultiple(t *testing.T) {
	log := []RuleLogEntry{{Rule: "R1", Outcome: "passed", SKU: "A"}}
	updated := NewState().WithMultiple(map[string]any{
		KeyRulesFired.name: 5,
		KeyRuleLog.name:    log,
	})

	fired, ok := Get(updated, KeyRulesFired)
	require.True(t, ok, "WithMultiple() should apply the counter update.")
	assert.Equal(t, 5, fired)

	gotLog, ok := Get(updated, KeyRuleLog)
	require.True(t, ok, "WithMultiple() should apply the log update.")
	assert.Equal(t, log, gotLog)
	assert.Len(t, updated.Keys(), 2, "Keys() should return both keys.")
}

// TestState_TypeMismatch verifies that reading a key with the wrong type
// reports absence instead of panicking.
func TestState_TypeMismatch(t *testing.T) {
	state := NewState().WithRaw(KeyRulesFired.Name(), "not an int")

	_, ok := Get(state, KeyRulesFired)
	assert.False(t, ok, "Get() should reject a value of the wrong type.")

	raw, ok := state.GetRaw(KeyRulesFired.Name())
	assert.True(t, ok)
	assert.Equal(t, "not an int", raw)
}

// TestState_ExecutionContext round-trips the execution metadata.
func TestState_ExecutionContext(t *testing.T) {
	_, ok := NewState().GetExecutionContext()
	assert.False(t, ok, "An empty state has no execution context.")

	state := NewState().WithExecutionContext(ExecutionContext{PipelineID: "quote", ExecutionID: "abc"})
	got, ok := state.GetExecutionContext()
	require.True(t, ok)
	assert.Equal(t, ExecutionContext{PipelineID: "quote", ExecutionID: "abc"}, got)
}
