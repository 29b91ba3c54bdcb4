package units

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-procure/infrastructure/advisor"
	"github.com/ahrav/go-procure/internal/domain"
	"github.com/ahrav/go-procure/internal/testutils"
)

func selectedState(t *testing.T) domain.State {
	t.Helper()
	unit, err := NewSelectUnit("select", DefaultSelectConfig())
	require.NoError(t, err)
	state, err := unit.Execute(context.Background(), rankState(t))
	require.NoError(t, err)
	return state
}

func aiRationales(c *domain.Candidate) []string {
	var out []string
	for _, r := range c.Rationales {
		if strings.HasPrefix(r, RationaleAI+": ") {
			out = append(out, r)
		}
	}
	return out
}

func TestExplainUnit_Enabled(t *testing.T) {
	// Given an enabled advisor and two ranked candidates
	client := testutils.NewMockLLMClient("mock")
	unit, err := NewExplainUnit("explain", DefaultExplainConfig(), advisor.New(client))
	require.NoError(t, err)

	// When the unit runs
	state, err := unit.Execute(context.Background(), selectedState(t))
	require.NoError(t, err)

	// Then both candidates carry one explanation and alternatives are stored
	cands, _ := domain.Get(state, domain.KeyCandidates)
	require.Len(t, cands, 2)
	for _, c := range cands {
		assert.Equal(t, []string{RationaleAI + ": " + testutils.ExplanationResponse}, aiRationales(c))
	}
	alts, ok := domain.Get(state, domain.KeyAlternatives)
	require.True(t, ok)
	assert.Equal(t, testutils.AlternativesResponse, alts)
}

func TestExplainUnit_TopNLimit(t *testing.T) {
	client := testutils.NewMockLLMClient("mock")
	unit, err := NewExplainUnit("explain", ExplainConfig{TopN: 1}, advisor.New(client))
	require.NoError(t, err)

	state, err := unit.Execute(context.Background(), selectedState(t))
	require.NoError(t, err)

	cands, _ := domain.Get(state, domain.KeyCandidates)
	assert.Len(t, aiRationales(cands[0]), 1)
	assert.Empty(t, aiRationales(cands[1]))
	_, ok := domain.Get(state, domain.KeyAlternatives)
	assert.False(t, ok)
}

func TestExplainUnit_Disabled(t *testing.T) {
	// Given a disabled advisor
	unit, err := CreateExplainUnit("explain", map[string]any{ConfigAdvisor: advisor.New(nil)})
	require.NoError(t, err)
	in := selectedState(t)

	// When the unit runs
	out, err := unit.Execute(context.Background(), in)
	require.NoError(t, err)

	// Then nothing is added
	cands, _ := domain.Get(out, domain.KeyCandidates)
	for _, c := range cands {
		assert.Empty(t, aiRationales(c))
	}
	_, ok := domain.Get(out, domain.KeyAlternatives)
	assert.False(t, ok)
}

func TestCreateExplainUnit(t *testing.T) {
	_, err := CreateExplainUnit("explain", map[string]any{})
	assert.ErrorIs(t, err, ErrMissingDependency)

	unit, err := CreateExplainUnit("explain", map[string]any{
		ConfigAdvisor:  advisor.New(nil),
		"top_n":        2,
		"alternatives": false,
	})
	require.NoError(t, err)
	assert.Equal(t, ExplainConfig{TopN: 2, Alternatives: false}, unit.config)
}
