package scoring

import (
	"math"
	"slices"

	"github.com/ahrav/go-procure/internal/domain"
)

// Statistics summarises each score dimension of a batch. The standard
// deviation is the sample deviation and is 0 for a single candidate.
func Statistics(cands []*domain.Candidate) domain.ScoreStatistics {
	if len(cands) == 0 {
		return domain.ScoreStatistics{}
	}
	total := make([]float64, len(cands))
	cost := make([]float64, len(cands))
	evidence := make([]float64, len(cands))
	availability := make([]float64, len(cands))
	for i, c := range cands {
		total[i] = c.TotalScore
		cost[i] = c.CostFitness
		evidence[i] = c.EvidenceScore
		availability[i] = c.AvailabilityScore
	}
	return domain.ScoreStatistics{
		Count:        len(cands),
		Total:        summarize(total),
		CostFitness:  summarize(cost),
		Evidence:     summarize(evidence),
		Availability: summarize(availability),
	}
}

func summarize(vs []float64) domain.Summary {
	return domain.Summary{
		Mean:   Mean(vs),
		Median: Median(vs),
		Min:    slices.Min(vs),
		Max:    slices.Max(vs),
		Stdev:  SampleStdev(vs),
	}
}

// Mean returns the arithmetic mean, or 0 for no values.
func Mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

// Median returns the middle value, averaging the two middle values of an
// even-length input. It does not modify vs.
func Median(vs []float64) float64 {
	n := len(vs)
	if n == 0 {
		return 0
	}
	sorted := slices.Clone(vs)
	slices.Sort(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// SampleStdev returns the sample standard deviation (n-1 denominator).
func SampleStdev(vs []float64) float64 {
	if len(vs) < 2 {
		return 0
	}
	mean := Mean(vs)
	var ss float64
	for _, v := range vs {
		ss += (v - mean) * (v - mean)
	}
	return math.Sqrt(ss / float64(len(vs)-1))
}
