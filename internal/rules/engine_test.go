package rules

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-procure/internal/domain"
)

func request(t *testing.T, budget float64, deadline int, preferred ...string) domain.BuyerRequest {
	t.Helper()
	req, err := domain.NewBuyerRequest(domain.BuyerRequest{
		Query:            "taq polymerase",
		Budget:           budget,
		DeadlineDays:     deadline,
		PreferredVendors: preferred,
	})
	require.NoError(t, err)
	return req
}

func candidate(sku string, price float64, stock, eta int, spec string, evidence float64) *domain.Candidate {
	c := domain.NewCandidate(domain.Offer{
		SKU: sku, Vendor: "Promega", Name: "GoTaq", SpecText: spec,
		Price: price, Stock: stock, ETADays: eta, Currency: "EUR",
	})
	c.EvidenceScore = evidence
	return c
}

func TestEngine_R1SpecValidation(t *testing.T) {
	tests := []struct {
		name         string
		spec         string
		evidence     float64
		wantEvidence float64
		wantFlag     bool
		wantOutcome  string
	}{
		{name: "missing spec halves evidence", spec: "", evidence: 0.6, wantEvidence: 0.3, wantFlag: true, wantOutcome: OutcomeViolated},
		{name: "whitespace spec counts as missing", spec: "  \t", evidence: 0.4, wantEvidence: 0.2, wantFlag: true, wantOutcome: OutcomeViolated},
		{name: "present spec earns bonus", spec: "5 U/µL", evidence: 0.5, wantEvidence: 0.525, wantOutcome: OutcomePassed},
		{name: "bonus is capped at one", spec: "5 U/µL", evidence: 0.99, wantEvidence: 1.0, wantOutcome: OutcomePassed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := candidate("A", 10, 5, 1, tt.spec, tt.evidence)
			e := NewEngine()

			e.Apply([]*domain.Candidate{c}, request(t, 100, 14))

			assert.InDelta(t, tt.wantEvidence, c.EvidenceScore, 1e-9)
			assert.Equal(t, tt.wantFlag, c.HasFlag(domain.FlagSpecMissing))
			assert.Equal(t, domain.RuleLogEntry{Rule: "R1", Outcome: tt.wantOutcome, SKU: "A"}, e.Log()[0])
		})
	}
}

func TestEngine_R2BudgetCompliance(t *testing.T) {
	t.Run("over budget zeroes cost fitness", func(t *testing.T) {
		c := candidate("A", 150, 5, 1, "spec", 0.5)

		NewEngine().Apply([]*domain.Candidate{c}, request(t, 100, 14))

		assert.True(t, c.HasFlag(domain.FlagOverBudget))
		assert.Equal(t, 0.0, c.CostFitness)
		assert.Contains(t, c.Rationales, "R2: Price €150.00 exceeds budget €100.00 by €50.00 → substitute recommended")
	})

	t.Run("within budget sets provisional cost fitness", func(t *testing.T) {
		c := candidate("A", 25, 5, 1, "spec", 0.5)

		NewEngine().Apply([]*domain.Candidate{c}, request(t, 100, 14))

		assert.False(t, c.HasFlag(domain.FlagOverBudget))
		assert.InDelta(t, 0.75, c.CostFitness, 1e-9)
		assert.Contains(t, c.Rationales, "R2: Within budget (€25.00/€100.00) → cost_fitness=0.75")
	})

	t.Run("price equal to budget is within budget", func(t *testing.T) {
		c := candidate("A", 100, 5, 1, "spec", 0.5)

		NewEngine().Apply([]*domain.Candidate{c}, request(t, 100, 14))

		assert.False(t, c.HasFlag(domain.FlagOverBudget))
		assert.Equal(t, 0.0, c.CostFitness)
	})
}

func TestEngine_R3EvidenceThreshold(t *testing.T) {
	// Given evidence that drops under the threshold only after the R1 penalty
	low := candidate("LOW", 10, 5, 1, "", 0.3)
	ok := candidate("OK", 10, 5, 1, "spec", 0.2)

	NewEngine().Apply([]*domain.Candidate{low, ok}, request(t, 100, 14))

	// Then R3 sees the accumulated score
	assert.True(t, low.HasFlag(domain.FlagLowEvidence), "0.3 halved to 0.15 is below 0.2.")
	assert.False(t, ok.HasFlag(domain.FlagLowEvidence), "0.2 raised to 0.21 meets the threshold.")
	assert.Contains(t, low.Rationales, "R3: Evidence score 0.15 below threshold 0.20 → penalized")
}

func TestEngine_R3ZeroThresholdNeverFlags(t *testing.T) {
	zero := 0.0
	req, err := domain.NewBuyerRequest(domain.BuyerRequest{Query: "q", Budget: 100, MinEvidenceThreshold: &zero})
	require.NoError(t, err)
	c := candidate("NONE", 10, 5, 1, "spec", 0)

	NewEngine().Apply([]*domain.Candidate{c}, req)

	assert.False(t, c.HasFlag(domain.FlagLowEvidence))
}

func TestEngine_R4Availability(t *testing.T) {
	tests := []struct {
		name     string
		stock    int
		eta      int
		deadline int
		want     float64
		wantFlag bool
	}{
		{name: "out of stock", stock: 0, eta: 1, deadline: 14, want: 0, wantFlag: true},
		{name: "on time", stock: 3, eta: 14, deadline: 14, want: 1},
		{name: "four days late", stock: 3, eta: 18, deadline: 14, want: 0.8},
		{name: "very late floors at zero", stock: 3, eta: 60, deadline: 14, want: 0},
		{name: "zero deadline", stock: 3, eta: 2, deadline: 0, want: 0.9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := candidate("A", 10, tt.stock, tt.eta, "spec", 0.5)

			NewEngine().Apply([]*domain.Candidate{c}, request(t, 100, tt.deadline))

			assert.InDelta(t, tt.want, c.AvailabilityScore, 1e-9)
			assert.Equal(t, tt.wantFlag, c.HasFlag(domain.FlagOutOfStock))
		})
	}
}

func TestEngine_R5PreferredVendor(t *testing.T) {
	preferred := candidate("A", 10, 5, 1, "spec", 0.5)
	other := candidate("B", 10, 5, 1, "spec", 0.5)
	other.Item.Vendor = "Qiagen"

	e := NewEngine()
	e.Apply([]*domain.Candidate{preferred, other}, request(t, 100, 14, "Promega"))

	assert.True(t, preferred.HasFlag(domain.FlagPreferredVendor))
	assert.False(t, other.HasFlag(domain.FlagPreferredVendor))
	assert.Equal(t, "R5: Vendor 'Promega' is in preferred list → bonus applied", preferred.Rationales[4])
	assert.Equal(t, OutcomeNeutral, e.Log()[9].Outcome)
}

func TestEngine_OrderAndLog(t *testing.T) {
	cands := []*domain.Candidate{
		candidate("A", 10, 5, 1, "spec", 0.5),
		candidate("B", 10, 5, 1, "spec", 0.5),
	}
	e := NewEngine()

	out := e.Apply(cands, request(t, 100, 14))

	assert.Same(t, cands[0], out[0], "Apply mutates in place.")
	assert.Equal(t, 10, e.RulesFired())
	require.Len(t, e.Log(), 10)
	for i, want := range []string{"R1", "R2", "R3", "R4", "R5"} {
		assert.Equal(t, want, e.Log()[i].Rule)
		assert.Equal(t, "A", e.Log()[i].SKU)
		assert.Equal(t, "B", e.Log()[i+5].SKU)
		assert.Regexp(t, "^"+want+": ", cands[0].Rationales[i], "Rationales follow rule order.")
	}

	// A second Apply resets the log.
	e.Apply(cands[:1], request(t, 100, 14))
	assert.Equal(t, 5, e.Summary().RulesFired)
}

// TestEngine_FlagImpliesZeroScore checks over randomised candidates that
// over_budget implies zero cost fitness and out_of_stock implies zero
// availability, with every sub-score kept in [0,1].
func TestEngine_FlagImpliesZeroScore(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	req := request(t, 100, 7)

	for i := 0; i < 500; i++ {
		c := candidate("X", rng.Float64()*300, rng.IntN(4), rng.IntN(40), []string{"", "spec"}[rng.IntN(2)], rng.Float64())

		NewEngine().Apply([]*domain.Candidate{c}, req)

		if c.HasFlag(domain.FlagOverBudget) {
			assert.Equal(t, 0.0, c.CostFitness)
		}
		if c.HasFlag(domain.FlagOutOfStock) {
			assert.Equal(t, 0.0, c.AvailabilityScore)
		}
		for _, v := range []float64{c.CostFitness, c.EvidenceScore, c.AvailabilityScore} {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}
}
