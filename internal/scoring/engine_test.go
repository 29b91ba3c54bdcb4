package scoring

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-procure/internal/domain"
	"github.com/ahrav/go-procure/internal/rules"
)

func newRequest(t *testing.T, budget float64, w domain.Weights, preferred ...string) domain.BuyerRequest {
	t.Helper()
	req, err := domain.NewBuyerRequest(domain.BuyerRequest{
		Query: "q", Budget: budget, DeadlineDays: 14, Weights: w, PreferredVendors: preferred,
	})
	require.NoError(t, err)
	return req
}

func offer(sku, vendor string, price float64) domain.Offer {
	return domain.Offer{SKU: sku, Vendor: vendor, Name: sku, SpecText: "spec", Price: price, Stock: 10, ETADays: 2}
}

var equalWeights = domain.Weights{Cost: 1.0 / 3, Evidence: 1.0 / 3, Availability: 1.0 / 3}

func TestScore_Empty(t *testing.T) {
	e := NewEngine()

	out := e.Score(nil, newRequest(t, 100, equalWeights))

	assert.Empty(t, out)
	assert.Zero(t, e.Statistics().Count)
}

func TestScore_MedianRelativeCostFitness(t *testing.T) {
	tests := []struct {
		price float64
		want  float64
	}{
		{price: 50, want: 0.5 + 0.5*0.5},
		{price: 100, want: 0.5},
		{price: 200, want: 0.25},
	}
	cands := make([]*domain.Candidate, 0, len(tests))
	for _, tt := range tests {
		cands = append(cands, domain.NewCandidate(offer("S", "V", tt.price)))
	}

	NewEngine().Score(cands, newRequest(t, 1000, equalWeights))

	byPrice := map[float64]float64{}
	for _, c := range cands {
		byPrice[c.Item.Price] = c.CostFitness
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, byPrice[tt.price], 1e-9, "price %v", tt.price)
	}
}

func TestScore_Degenerate(t *testing.T) {
	t.Run("single candidate sits at the median", func(t *testing.T) {
		c := domain.NewCandidate(offer("A", "V", 42))

		NewEngine().Score([]*domain.Candidate{c}, newRequest(t, 100, equalWeights))

		assert.Equal(t, 0.5, c.CostFitness)
	})

	t.Run("all zero prices are neutral", func(t *testing.T) {
		a := domain.NewCandidate(offer("A", "V", 0))
		b := domain.NewCandidate(offer("B", "V", 0))

		e := NewEngine()
		e.Score([]*domain.Candidate{a, b}, newRequest(t, 100, equalWeights))

		assert.Equal(t, 0.5, a.CostFitness)
		assert.Equal(t, 0.5, b.CostFitness)
		assert.Zero(t, e.Statistics().Total.Stdev, "Identical candidates have no spread.")
	})

	t.Run("zero price among priced candidates is free", func(t *testing.T) {
		// Given a free offer next to one at 40
		free := domain.NewCandidate(offer("A", "V", 0))
		paid := domain.NewCandidate(offer("B", "V", 40))

		// When scored
		NewEngine().Score([]*domain.Candidate{paid, free}, newRequest(t, 100, equalWeights))

		// Then the free offer gets full cost fitness and ranks first
		assert.Equal(t, 1.0, free.CostFitness)
		assert.Equal(t, 0.5, paid.CostFitness)
		assert.Greater(t, free.TotalScore, paid.TotalScore)
	})
}

func TestScore_OverBudgetKeepsZeroCost(t *testing.T) {
	c := domain.NewCandidate(offer("A", "V", 10))
	c.AddFlag(domain.FlagOverBudget)
	c.CostFitness = 0

	NewEngine().Score([]*domain.Candidate{c}, newRequest(t, 5, equalWeights))

	assert.Equal(t, 0.0, c.CostFitness)
}

func TestScore_VendorBonusRatio(t *testing.T) {
	// Given two otherwise-identical candidates
	a := domain.NewCandidate(offer("A", "Preferred", 40))
	b := domain.NewCandidate(offer("B", "Other", 40))
	for _, c := range []*domain.Candidate{a, b} {
		c.EvidenceScore = 0.6
		c.AvailabilityScore = 1
	}

	// When only one vendor is preferred
	NewEngine().Score([]*domain.Candidate{b, a}, newRequest(t, 100, domain.DefaultWeights(), "Preferred"))

	// Then the totals differ by exactly the bonus
	assert.InDelta(t, 1.10, a.TotalScore/b.TotalScore, 0.001)
	assert.True(t, a.HasFlag(domain.FlagPreferredVendor))
	assert.Equal(t, 1.10, a.Normalized[domain.NormVendorBonus])
	assert.Equal(t, 1.0, b.Normalized[domain.NormVendorBonus])
	assert.Contains(t, a.Rationales[len(a.Rationales)-1], "× 1.10 (preferred vendor bonus)")
}

func TestScore_Rationale(t *testing.T) {
	c := domain.NewCandidate(offer("A", "V", 10))
	c.EvidenceScore = 0.8
	c.AvailabilityScore = 1

	NewEngine().Score([]*domain.Candidate{c}, newRequest(t, 100, domain.DefaultWeights()))

	assert.Equal(t,
		"SCORING: (0.35×0.50) + (0.45×0.80) + (0.20×1.00) = 0.735 → Total: 0.7350",
		c.Rationales[len(c.Rationales)-1])
	assert.Equal(t, 0.735, c.TotalScore)
}

func TestScore_StableOrderOnTies(t *testing.T) {
	cands := []*domain.Candidate{
		domain.NewCandidate(offer("first", "V", 10)),
		domain.NewCandidate(offer("second", "V", 10)),
		domain.NewCandidate(offer("third", "V", 10)),
	}

	NewEngine().Score(cands, newRequest(t, 100, equalWeights))

	assert.Equal(t, "first", cands[0].Item.SKU)
	assert.Equal(t, "second", cands[1].Item.SKU)
	assert.Equal(t, "third", cands[2].Item.SKU)
}

// TestScore_Properties runs the rule and scoring engines over random
// batches and checks bounds, ordering and cost monotonicity.
func TestScore_Properties(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	vendors := []string{"Promega", "Qiagen", "Gibco"}

	for round := 0; round < 200; round++ {
		// Weight sums spread over the accepted range [0.99, 1.01].
		total := 0.99 + rng.Float64()*0.02
		a := rng.Float64() * total
		b := rng.Float64() * (total - a)
		req := newRequest(t, 50+rng.Float64()*200,
			domain.Weights{Cost: a, Evidence: b, Availability: total - a - b}, vendors[rng.IntN(3)])

		n := 1 + rng.IntN(12)
		cands := make([]*domain.Candidate, n)
		for i := range cands {
			price := rng.Float64() * 300
			if rng.IntN(6) == 0 {
				price = 0
			}
			o := offer("S", vendors[rng.IntN(3)], price)
			o.Stock = rng.IntN(3)
			o.ETADays = rng.IntN(30)
			if rng.IntN(4) == 0 {
				o.SpecText = ""
			}
			cands[i] = domain.NewCandidate(o)
			cands[i].EvidenceScore = rng.Float64()
		}

		rules.NewEngine().Apply(cands, req)
		NewEngine().Score(cands, req)

		for i, c := range cands {
			assert.GreaterOrEqual(t, c.TotalScore, 0.0)
			assert.LessOrEqual(t, c.TotalScore, PreferredVendorBonus+1e-9)
			if i+1 < len(cands) {
				assert.GreaterOrEqual(t, c.TotalScore, cands[i+1].TotalScore, "Output must be sorted descending.")
			}
			for _, d := range cands {
				if c.HasFlag(domain.FlagOverBudget) || d.HasFlag(domain.FlagOverBudget) {
					continue
				}
				if c.Item.Price < d.Item.Price {
					assert.GreaterOrEqual(t, c.CostFitness, d.CostFitness, "Cheaper must not score worse on cost.")
				}
			}
		}
	}
}

func TestScore_TotalsStayBoundedAtWeightTolerance(t *testing.T) {
	// Given weights summing to 1.01 and a near-free preferred offer with
	// perfect evidence and availability
	w := domain.Weights{Cost: 0.34, Evidence: 0.34, Availability: 0.33}
	cheap := domain.NewCandidate(offer("A", "Preferred", 0.001))
	dear := domain.NewCandidate(offer("B", "Other", 100))
	for _, c := range []*domain.Candidate{cheap, dear} {
		c.EvidenceScore = 1
		c.AvailabilityScore = 1
	}

	// When scored
	NewEngine().Score([]*domain.Candidate{dear, cheap}, newRequest(t, 1000, w, "Preferred"))

	// Then neither total leaves [0, 1.10] and only the bonus passes 1
	assert.LessOrEqual(t, cheap.TotalScore, PreferredVendorBonus)
	assert.InDelta(t, PreferredVendorBonus, cheap.TotalScore, 0.001)
	assert.LessOrEqual(t, dear.TotalScore, 1.0)
}

// TestScore_BudgetScenario walks the two-offer scenario end to end: a 50 and
// a 150 offer against a budget of 100 with equal weights.
func TestScore_BudgetScenario(t *testing.T) {
	req := newRequest(t, 100, equalWeights)
	cheap := domain.NewCandidate(offer("CHEAP", "V", 50))
	pricey := domain.NewCandidate(offer("PRICEY", "V", 150))
	for _, c := range []*domain.Candidate{cheap, pricey} {
		c.EvidenceScore = 0.5
	}
	cands := []*domain.Candidate{pricey, cheap}

	rules.NewEngine().Apply(cands, req)
	NewEngine().Score(cands, req)

	require.Equal(t, "CHEAP", cands[0].Item.SKU)
	assert.Greater(t, cheap.CostFitness, pricey.CostFitness)
	assert.True(t, pricey.HasFlag(domain.FlagOverBudget))
	assert.Equal(t, 0.0, pricey.CostFitness)
}
