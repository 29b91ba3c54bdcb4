// Package feedback persists buyer selections and derives learning signals
// from them: agreement statistics, preferred weights and vendor
// performance.
package feedback

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/ahrav/go-procure/internal/domain"
)

const (
	// minPreferenceSamples is the number of entries needed before
	// preferences are inferred.
	minPreferenceSamples = 3

	// minBlendConfidence is the confidence below which the buyer's own
	// weights are used unchanged.
	minBlendConfidence = 0.3
)

// Entry is one recorded selection.
type Entry struct {
	ID        string           `json:"id"`
	CreatedAt time.Time        `json:"timestamp"`
	Agreed    bool             `json:"agreed"`
	Selection domain.Selection `json:"selection"`
}

// Preferences are weights inferred from what buyers actually selected.
type Preferences struct {
	Weights    domain.Weights `json:"weights"`
	Confidence float64        `json:"confidence"`
}

// VendorStats summarises selections of one vendor.
type VendorStats struct {
	Vendor        string  `json:"vendor"`
	Selections    int     `json:"selections"`
	AvgRating     float64 `json:"avg_rating"`
	RatingsCount  int     `json:"ratings_count"`
	AvgPrice      float64 `json:"avg_price"`
	SelectionRate float64 `json:"selection_rate"`
}

// ComputeStatistics summarises entries. Unrated entries do not count
// towards the average rating.
func ComputeStatistics(entries []Entry) domain.FeedbackStatistics {
	var st domain.FeedbackStatistics
	st.TotalDecisions = len(entries)
	if st.TotalDecisions == 0 {
		return st
	}
	agreements, ratingSum := 0, 0
	for _, e := range entries {
		if e.Agreed {
			agreements++
		}
		if e.Selection.Rating > 0 {
			ratingSum += e.Selection.Rating
			st.TotalRatings++
		}
	}
	st.AgreementRate = float64(agreements) / float64(st.TotalDecisions) * 100
	if st.TotalRatings > 0 {
		st.AvgRating = float64(ratingSum) / float64(st.TotalRatings)
	}
	return st
}

// ComputePreferences infers weights from the mean sub-scores of selected
// products. Fewer than three entries, or all-zero means, yield the default
// weights with zero confidence.
func ComputePreferences(entries []Entry) Preferences {
	def := Preferences{Weights: domain.DefaultWeights()}
	if len(entries) < minPreferenceSamples {
		return def
	}
	var cost, evidence, availability float64
	for _, e := range entries {
		cost += e.Selection.CostFitness
		evidence += e.Selection.EvidenceScore
		availability += e.Selection.AvailabilityScore
	}
	n := float64(len(entries))
	cost, evidence, availability = cost/n, evidence/n, availability/n
	total := cost + evidence + availability
	if total == 0 {
		return def
	}
	return Preferences{
		Weights: domain.Weights{
			Cost:         round2(cost / total),
			Evidence:     round2(evidence / total),
			Availability: round2(availability / total),
		},
		Confidence: round2(min(n/10, 1)),
	}
}

// AdaptWeights blends the buyer's weights with learned preferences in
// proportion to the learned confidence, then renormalises. Below a
// confidence of 0.3 the buyer's weights are returned unchanged.
func AdaptWeights(user domain.Weights, learned Preferences) domain.Weights {
	c := learned.Confidence
	if c < minBlendConfidence {
		return user
	}
	blend := func(u, l float64) float64 { return round2(u*(1-c) + l*c) }
	w := domain.Weights{
		Cost:         blend(user.Cost, learned.Weights.Cost),
		Evidence:     blend(user.Evidence, learned.Weights.Evidence),
		Availability: blend(user.Availability, learned.Weights.Availability),
	}
	total := w.Sum()
	if total == 0 {
		return user
	}
	return domain.Weights{
		Cost:         round2(w.Cost / total),
		Evidence:     round2(w.Evidence / total),
		Availability: round2(w.Availability / total),
	}
}

// ComputeVendorPerformance aggregates entries per selected vendor, sorted
// by selections descending then vendor name.
func ComputeVendorPerformance(entries []Entry) []VendorStats {
	if len(entries) == 0 {
		return nil
	}
	type acc struct {
		VendorStats
		ratingSum int
		priceSum  float64
	}
	byVendor := make(map[string]*acc)
	for _, e := range entries {
		v := e.Selection.Vendor
		a, ok := byVendor[v]
		if !ok {
			a = &acc{VendorStats: VendorStats{Vendor: v}}
			byVendor[v] = a
		}
		a.Selections++
		a.priceSum += e.Selection.Price
		if e.Selection.Rating > 0 {
			a.ratingSum += e.Selection.Rating
			a.RatingsCount++
		}
	}
	out := make([]VendorStats, 0, len(byVendor))
	for _, a := range byVendor {
		s := a.VendorStats
		if s.RatingsCount > 0 {
			s.AvgRating = float64(a.ratingSum) / float64(s.RatingsCount)
		}
		s.AvgPrice = a.priceSum / float64(s.Selections)
		s.SelectionRate = float64(s.Selections) / float64(len(entries)) * 100
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b VendorStats) int {
		if a.Selections != b.Selections {
			return b.Selections - a.Selections
		}
		return cmp.Compare(a.Vendor, b.Vendor)
	})
	return out
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
