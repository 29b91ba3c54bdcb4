package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-procure/internal/domain"
	"github.com/ahrav/go-procure/internal/environment"
	"github.com/ahrav/go-procure/internal/inference"
	"github.com/ahrav/go-procure/internal/testutils"
)

func TestEpisodeQueries(t *testing.T) {
	assert.Equal(t, []string{"Taq Polymerase", "taq polymerase", "Taq-Polymerase"}, EpisodeQueries("Taq Polymerase"))
}

func TestOrchestrator_RunEpisode(t *testing.T) {
	// Given offers at 50 and 150 and a budget of 100
	f := newOrchestratorFixture(t, nil, budgetOffers()...)

	// When a hybrid episode runs
	ep, err := f.orch.RunEpisode(context.Background(), testutils.Request("product", 100), inference.ModeHybrid)

	// Then the five actions ran and four of them stepped the environment
	require.NoError(t, err)
	assert.Equal(t, []string{
		ActionPerceiveRetrieve, ActionNormalize, ActionEvaluateScore, ActionGenerateExplain, ActionLearnRefine,
	}, ep.ActionsExecuted)
	require.Len(t, ep.Rewards, 4)
	require.Len(t, ep.History, 4)
	assert.Equal(t, string(inference.ModeHybrid), ep.Mode)

	kinds := make([]string, len(ep.History))
	for i, h := range ep.History {
		kinds[i] = h.Kind
		assert.Equal(t, ep.Rewards[i], h.Reward)
	}
	assert.Equal(t, []string{
		environment.ActionQueryVendors.Name(),
		environment.ActionNormalizeSpecs.Name(),
		environment.ActionScoreRank.Name(),
		environment.ActionBuildQuotation.Name(),
	}, kinds)

	assert.Equal(t, []string{"product_retrieved"}, ep.History[0].Facts)
	assert.Equal(t, []string{"specs_normalized", "price_available"}, ep.History[1].Facts)
	assert.Equal(t, []string{"evidence_retrieved", "stock_checked"}, ep.History[2].Facts)
	assert.Equal(t, []string{"candidate_added", "candidate_rewarded", "vendor_confirmed"}, ep.History[3].Facts)

	// And the episode totals come from the environment
	var sum float64
	for _, r := range ep.Rewards {
		sum += r
	}
	assert.InDelta(t, sum, ep.CumulativeReward, 1e-9)
	assert.Equal(t, 1.0, ep.Cumulative.Completeness)
	assert.Equal(t, ep.History[3].Cumulative, ep.Cumulative)

	// And every inference goal holds
	assert.True(t, ep.InferenceGoal)
	assert.Empty(t, ep.MissingFacts)
	assert.NotEmpty(t, ep.InferenceTrace)
	assert.Contains(t, ep.InferredActions, "R5:retain_policy")

	// And the quote matches what Quote produces
	require.NotNil(t, ep.Quote)
	require.NotNil(t, ep.Quote.Selected)
	assert.Equal(t, "CHEAP", ep.Quote.Selected.Item.SKU)
	assert.Equal(t, ep.ID, ep.Quote.ID)
	f.assertOneQuote(t, "success")
}

func TestOrchestrator_RunEpisodeSeedsQueryVariants(t *testing.T) {
	f := newOrchestratorFixture(t, nil, budgetOffers()...)

	ep, err := f.orch.RunEpisode(context.Background(), testutils.Request("Product CHEAP", 100), inference.ModeForward)

	require.NoError(t, err)
	assert.Equal(t, EpisodeQueries("Product CHEAP"), f.searcher.Queries())
	assert.Equal(t, EpisodeQueries("Product CHEAP"), ep.Quote.Metadata.ExpandedQueries)

	// Forward mode never runs backward chaining.
	assert.False(t, ep.InferenceGoal)
	assert.Empty(t, ep.InferenceTrace)
	assert.NotEmpty(t, ep.InferredActions)
}

func TestOrchestrator_RunEpisodeWithoutMatches(t *testing.T) {
	f := newOrchestratorFixture(t, nil, budgetOffers()...)

	ep, err := f.orch.RunEpisode(context.Background(), testutils.Request("centrifuge", 100), inference.ModeHybrid)

	require.NoError(t, err)
	assert.Len(t, ep.ActionsExecuted, 5)
	assert.Empty(t, ep.History[0].Facts)
	assert.False(t, ep.InferenceGoal)
	assert.NotEmpty(t, ep.MissingFacts)
	assert.False(t, ep.GoalAchieved)
	assert.Equal(t, NoteNoMatches, ep.Quote.Notes)
	assert.Nil(t, ep.Quote.Selected)
}

func TestOrchestrator_RunEpisodeLearnsFromFeedback(t *testing.T) {
	// Given a store that already holds a decision
	f := newOrchestratorFixture(t, nil, budgetOffers()...)
	f.feedback.selections = []domain.Selection{{Query: "product", SelectedSKU: "CHEAP"}}

	// When an episode runs
	ep, err := f.orch.RunEpisode(context.Background(), testutils.Request("product", 100), inference.ModeForward)

	// Then the learning rule adjusts the weights
	require.NoError(t, err)
	assert.Contains(t, ep.InferredActions, "R5:adjust_weights")
	assert.NotContains(t, ep.InferredActions, "R5:retain_policy")
}

func TestOrchestrator_RunEpisodeRejectsInput(t *testing.T) {
	f := newOrchestratorFixture(t, nil, budgetOffers()...)

	_, err := f.orch.RunEpisode(context.Background(), testutils.Request("product", 100), inference.Mode("sideways"))
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)

	_, err = f.orch.RunEpisode(context.Background(), domain.BuyerRequest{Query: "product"}, inference.ModeHybrid)
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)

	assert.Empty(t, f.searcher.Queries())
}

func TestOrchestrator_RunEpisodeIsolatesEnvironments(t *testing.T) {
	f := newOrchestratorFixture(t, nil, budgetOffers()...)
	ctx := context.Background()

	first, err := f.orch.RunEpisode(ctx, testutils.Request("product", 100), inference.ModeHybrid)
	require.NoError(t, err)
	second, err := f.orch.RunEpisode(ctx, testutils.Request("product", 100), inference.ModeHybrid)
	require.NoError(t, err)

	assert.Equal(t, first.Rewards, second.Rewards)
	assert.Equal(t, first.Cumulative, second.Cumulative)
	assert.NotEqual(t, first.ID, second.ID)
}
