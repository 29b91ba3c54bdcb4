// Package scoring turns rule-annotated candidates into a ranked list.
//
// Cost fitness is computed relative to the median price of the batch, so
// the score of one candidate depends on the whole set it is scored with.
// Everything else is per candidate.
package scoring

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/ahrav/go-procure/internal/domain"
)

const (
	// PreferredVendorBonus multiplies the total score of preferred vendors.
	PreferredVendorBonus = 1.10

	// neutralCostFitness is assigned when the batch has no positive price,
	// and is the fitness of a price exactly at the median.
	neutralCostFitness = 0.5
)

// Engine scores and ranks candidates. It keeps the statistics of the last
// batch and is therefore not safe for concurrent use.
type Engine struct {
	stats domain.ScoreStatistics
}

// NewEngine returns a scoring engine.
func NewEngine() *Engine { return &Engine{} }

// Score computes cost fitness, vendor bonus and total score for every
// candidate, then sorts cands in place by descending total score. Ties keep
// their input order. An empty input yields an empty result.
func (e *Engine) Score(cands []*domain.Candidate, req domain.BuyerRequest) []*domain.Candidate {
	e.stats = domain.ScoreStatistics{}
	if len(cands) == 0 {
		return cands
	}

	e.costFitness(cands)
	for _, c := range cands {
		c.EvidenceScore = domain.Clamp01(c.EvidenceScore)
	}
	e.vendorBonus(cands, req)
	e.totals(cands, req.Weights)

	slices.SortStableFunc(cands, func(a, b *domain.Candidate) int {
		return cmp.Compare(b.TotalScore, a.TotalScore)
	})
	e.stats = Statistics(cands)
	return cands
}

// Statistics returns the statistics of the last scored batch.
func (e *Engine) Statistics() domain.ScoreStatistics { return e.stats }

func (e *Engine) costFitness(cands []*domain.Candidate) {
	prices := make([]float64, 0, len(cands))
	for _, c := range cands {
		if c.Item.Price > 0 {
			prices = append(prices, c.Item.Price)
		}
	}
	if len(prices) == 0 {
		for _, c := range cands {
			if c.HasFlag(domain.FlagOverBudget) {
				continue
			}
			c.CostFitness = neutralCostFitness
		}
		return
	}

	median := Median(prices)
	for _, c := range cands {
		if c.HasFlag(domain.FlagOverBudget) {
			continue
		}
		c.CostFitness = CostFitness(c.Item.Price, median)
	}
}

// CostFitness maps a price to [0,1] relative to the batch median: linear
// from 1 (free) to 0.5 (at the median), then 0.5/ratio above it. A zero
// price among priced offers is free and scores 1.
func CostFitness(price, median float64) float64 {
	if median <= 0 {
		return 0
	}
	ratio := max(price, 0) / median
	var fitness float64
	if ratio <= 1 {
		fitness = neutralCostFitness + (1-ratio)*neutralCostFitness
	} else {
		fitness = neutralCostFitness / ratio
	}
	return domain.Clamp01(fitness)
}

func (e *Engine) vendorBonus(cands []*domain.Candidate, req domain.BuyerRequest) {
	if len(req.PreferredVendors) == 0 {
		return
	}
	for _, c := range cands {
		if req.IsPreferred(c.Item.Vendor) {
			c.AddFlag(domain.FlagPreferredVendor)
			c.SetNormalized(domain.NormVendorBonus, PreferredVendorBonus)
			continue
		}
		c.SetNormalized(domain.NormVendorBonus, 1.0)
	}
}

// totals divides the weighted sum by the weight sum, so a triple accepted
// within WeightSumTolerance still keeps the base in [0,1] and only the
// vendor bonus lifts a total above 1.
func (e *Engine) totals(cands []*domain.Candidate, w domain.Weights) {
	sum := w.Sum()
	for _, c := range cands {
		base := w.Cost*c.CostFitness + w.Evidence*c.EvidenceScore + w.Availability*c.AvailabilityScore
		if sum > 0 {
			base = domain.Clamp01(base / sum)
		}
		bonus := c.NormalizedOr(domain.NormVendorBonus, 1.0)
		c.TotalScore = min(round4(base*bonus), PreferredVendorBonus)

		explanation := fmt.Sprintf("SCORING: (%.2f×%.2f) + (%.2f×%.2f) + (%.2f×%.2f) = %.3f",
			w.Cost, c.CostFitness, w.Evidence, c.EvidenceScore, w.Availability, c.AvailabilityScore, base)
		if bonus > 1 {
			explanation += fmt.Sprintf(" × %.2f (preferred vendor bonus)", bonus)
		}
		explanation += fmt.Sprintf(" → Total: %.4f", c.TotalScore)
		c.Rationales = append(c.Rationales, explanation)
	}
}

func round4(v float64) float64 { return math.Round(v*1e4) / 1e4 }
