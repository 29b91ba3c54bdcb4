package environment

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-procure/internal/domain"
)

func testRequest(t *testing.T) domain.BuyerRequest {
	t.Helper()
	req, err := domain.NewBuyerRequest(domain.BuyerRequest{
		Query:            "taq polymerase",
		Budget:           100,
		DeadlineDays:     10,
		PreferredVendors: []string{"Promega"},
	})
	require.NoError(t, err)
	return req
}

func newEnv(t *testing.T, opts ...Option) *Environment {
	t.Helper()
	env, err := New(DefaultConfig(), opts...)
	require.NoError(t, err)
	env.Reset(testRequest(t))
	return env
}

func TestCheckGoalState(t *testing.T) {
	cfg := DefaultRewardConfig()
	base := domain.CumulativeRewards{Cost: 0.8, Evidence: 0.7, Completeness: 0.9}

	assert.True(t, cfg.CheckGoalState(base), "All buckets above threshold achieve the goal.")

	tests := []struct {
		name   string
		mutate func(*domain.CumulativeRewards)
	}{
		{"cost below threshold", func(c *domain.CumulativeRewards) { c.Cost = 0.69 }},
		{"evidence below threshold", func(c *domain.CumulativeRewards) { c.Evidence = 0.59 }},
		{"completeness below threshold", func(c *domain.CumulativeRewards) { c.Completeness = 0.79 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cum := base
			tt.mutate(&cum)
			assert.False(t, cfg.CheckGoalState(cum))
		})
	}

	exact := domain.CumulativeRewards{Cost: 0.7, Evidence: 0.6, Completeness: 0.8}
	assert.True(t, cfg.CheckGoalState(exact), "Thresholds are inclusive.")
}

func TestComputeTerms(t *testing.T) {
	req := testRequest(t)

	tests := []struct {
		name string
		res  func() StepResult
		want Terms
	}{
		{
			name: "unmeasured result",
			res:  NewStepResult,
			want: Terms{Cost: 0, Evidence: 0, Availability: 0, Preferences: 0.5},
		},
		{
			name: "cheap, fast, preferred",
			res: func() StepResult {
				r := NewStepResult()
				r.TotalCost, r.ETADays, r.Vendor, r.EvidenceScore = 25, 2, "Promega", 0.6
				return r
			},
			want: Terms{Cost: 0.75, Evidence: 0.6, Availability: 0.8, Preferences: 1.0},
		},
		{
			name: "over budget, late, penalised",
			res: func() StepResult {
				r := NewStepResult()
				r.TotalCost, r.ETADays = 150, 11
				r.OutOfStock, r.MissingSpecs, r.StaleData = true, 2, true
				return r
			},
			want: Terms{Cost: 0, Availability: 0, Preferences: 0.5, Penalty: 1.0},
		},
		{
			name: "vendor matching is exact",
			res: func() StepResult {
				r := NewStepResult()
				r.Vendor = "promega"
				return r
			},
			want: Terms{Preferences: 0.5},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTerms(req, tt.res())
			assert.InDelta(t, tt.want.Cost, got.Cost, 1e-9)
			assert.InDelta(t, tt.want.Evidence, got.Evidence, 1e-9)
			assert.InDelta(t, tt.want.Availability, got.Availability, 1e-9)
			assert.InDelta(t, tt.want.Preferences, got.Preferences, 1e-9)
			assert.InDelta(t, tt.want.Penalty, got.Penalty, 1e-9)
		})
	}
}

func TestAvailabilityTerm_ZeroDeadline(t *testing.T) {
	assert.Equal(t, 1.0, availabilityTerm(0, 0), "Same-day delivery meets a zero deadline.")
	assert.Equal(t, 0.0, availabilityTerm(1, 0))
	assert.False(t, math.IsNaN(availabilityTerm(0, 0)))
}

func TestStep_AccumulatesAndDiscounts(t *testing.T) {
	// Given a fresh episode
	env := newEnv(t)

	// When two steps report sub-scores
	r1 := NewStepResult()
	r1.TotalCost, r1.ETADays, r1.EvidenceScore, r1.CostFitness, r1.Completeness = 50, 5, 0.5, 0.4, 0.25
	out1 := env.Step(ActionQueryVendors, r1)

	r2 := NewStepResult()
	r2.EvidenceScore, r2.CostFitness, r2.Completeness = 0.2, 0.5, 0.5
	out2 := env.Step(ActionNormalizeSpecs, r2)

	// Then rewards follow the weighted sum
	// r1: 1.0*0.5 + 1.0*0.5 + 1.0*0.5 + 0.5*0.5 = 1.75
	assert.InDelta(t, 1.75, out1.Reward, 1e-9)
	// r2: 0 + 0.2 + 0 + 0.25 = 0.45
	assert.InDelta(t, 0.45, out2.Reward, 1e-9)

	// And cost and evidence add up while completeness is overwritten
	cum := out2.Info.Cumulative
	assert.InDelta(t, 0.9, cum.Cost, 1e-9)
	assert.InDelta(t, 0.7, cum.Evidence, 1e-9)
	assert.Equal(t, 0.5, cum.Completeness)

	assert.InDelta(t, 2.2, out2.Info.CumulativeReward, 1e-9)
	assert.InDelta(t, 1.75+0.95*0.45, out2.Info.DiscountedReturn, 1e-9)
	assert.False(t, out2.Done, "Completeness 0.5 is below its threshold.")

	// When a final step completes the quotation
	r3 := NewStepResult()
	r3.Completeness = 1.0
	out3 := env.Step(ActionBuildQuotation, r3)

	assert.True(t, out3.Done)
	assert.True(t, out3.Info.GoalAchieved)
	assert.True(t, env.GoalAchieved())
	assert.Len(t, env.Rewards(), 3)
}

func TestReset_ClearsEpisode(t *testing.T) {
	env := newEnv(t)
	r := NewStepResult()
	r.CostFitness, r.EvidenceScore, r.Completeness = 1, 1, 1
	env.Step(ActionScoreRank, r)
	require.NotZero(t, env.CumulativeReward())

	env.Reset(testRequest(t))

	assert.Equal(t, domain.CumulativeRewards{}, env.Cumulative())
	assert.Empty(t, env.Rewards())
	assert.Zero(t, env.DiscountedReturn())
}

func TestStochastic_IsReproducible(t *testing.T) {
	skus := make([]string, 200)
	for i := range skus {
		skus[i] = "SKU-" + string(rune('A'+i%26)) + string(rune('a'+i/26))
	}
	run := func() map[string]Availability {
		env := newEnv(t, WithStochastic(42))
		r := NewStepResult()
		r.Candidates = skus
		env.Step(ActionQueryVendors, r)
		env.Step(ActionNormalizeSpecs, NewStepResult())
		out := make(map[string]Availability)
		for _, sku := range skus {
			if a, ok := env.Availability(sku); ok {
				out[sku] = a
			}
		}
		return out
	}

	first, second := run(), run()

	assert.Equal(t, first, second, "The same seed perturbs the same SKUs.")
	assert.NotEmpty(t, first, "Over 400 draws some SKU sells out.")
	for sku, a := range first {
		assert.Zero(t, a.Stock, sku)
		assert.GreaterOrEqual(t, a.ETADays, 7, sku)
		assert.LessOrEqual(t, a.ETADays, 29, sku)
	}
}

func TestDeterministicByDefault(t *testing.T) {
	env := newEnv(t)
	r := NewStepResult()
	r.Candidates = []string{"A", "B"}
	for range 50 {
		env.Step(ActionQueryVendors, r)
	}
	_, ok := env.Availability("A")
	assert.False(t, ok, "No perturbation without WithStochastic.")
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Gamma = 1.5
	_, err := New(cfg)
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)

	cfg = DefaultConfig()
	cfg.Reward.W5Penalty = -1
	_, err = New(cfg)
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestActions(t *testing.T) {
	actions := Actions()
	require.Len(t, actions, 7)
	assert.Equal(t, "query_vendors", actions[0].Name())
	assert.Equal(t, "request_clarification", actions[6].Name())
	assert.Equal(t, "a9", ActionType("a9").Name())
}
