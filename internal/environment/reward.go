// Package environment keeps the reward and goal bookkeeping of one
// procurement episode.
//
// An Environment is a per-episode accumulator, not a general MDP solver.
// Each pipeline action reports a StepResult; the environment turns it into
// an instantaneous reward, folds the sub-scores into three cumulative
// buckets and checks the goal state over them.
package environment

import (
	"fmt"
	"math"

	"github.com/ahrav/go-procure/internal/domain"
)

// RewardConfig holds the goal thresholds and the reward term weights.
type RewardConfig struct {
	// Goal thresholds over the cumulative buckets.
	ThetaCost      float64 `yaml:"theta_cost" mapstructure:"theta_cost" validate:"gte=0"`
	ThetaEvidence  float64 `yaml:"theta_evidence" mapstructure:"theta_evidence" validate:"gte=0"`
	ThetaQuotation float64 `yaml:"theta_quotation" mapstructure:"theta_quotation" validate:"gte=0"`

	// Term weights of R = w1·r1 + w2·r2 + w3·r3 + w4·r4 − w5·r5.
	W1Cost         float64 `yaml:"w1_cost" mapstructure:"w1_cost" validate:"gte=0"`
	W2Evidence     float64 `yaml:"w2_evidence" mapstructure:"w2_evidence" validate:"gte=0"`
	W3Availability float64 `yaml:"w3_availability" mapstructure:"w3_availability" validate:"gte=0"`
	W4Preferences  float64 `yaml:"w4_preferences" mapstructure:"w4_preferences" validate:"gte=0"`
	W5Penalty      float64 `yaml:"w5_penalty" mapstructure:"w5_penalty" validate:"gte=0"`
}

// DefaultRewardConfig returns the default thresholds and weights.
func DefaultRewardConfig() RewardConfig {
	return RewardConfig{
		ThetaCost:      0.7,
		ThetaEvidence:  0.6,
		ThetaQuotation: 0.8,
		W1Cost:         1.0,
		W2Evidence:     1.0,
		W3Availability: 1.0,
		W4Preferences:  0.5,
		W5Penalty:      2.0,
	}
}

// Defaults for StepResult fields that a stage did not measure.
const (
	UnknownETADays = 999
)

// StepResult is what a pipeline action reports to the environment.
// Build it with NewStepResult so that unmeasured cost and ETA do not read
// as free and instant.
type StepResult struct {
	TotalCost     float64
	EvidenceScore float64
	ETADays       int
	Vendor        string

	OutOfStock   bool
	MissingSpecs int
	StaleData    bool

	// CostFitness and EvidenceScore feed the cumulative buckets;
	// Completeness overwrites the completeness bucket.
	CostFitness  float64
	Completeness float64

	// Candidates lists the SKUs under consideration after the action. Nil
	// keeps the previous set.
	Candidates []string
}

// NewStepResult returns a result with an infinite total cost and an
// unknown ETA.
func NewStepResult() StepResult {
	return StepResult{TotalCost: math.Inf(1), ETADays: UnknownETADays}
}

// Terms breaks a reward into its components.
type Terms struct {
	Cost         float64 `json:"r1_cost"`
	Evidence     float64 `json:"r2_evidence"`
	Availability float64 `json:"r3_availability"`
	Preferences  float64 `json:"r4_preferences"`
	Penalty      float64 `json:"r5_penalty"`
}

// ComputeTerms evaluates the five reward terms of a result against a
// request.
func ComputeTerms(req domain.BuyerRequest, res StepResult) Terms {
	return Terms{
		Cost:         costTerm(res.TotalCost, req.Budget),
		Evidence:     res.EvidenceScore,
		Availability: availabilityTerm(res.ETADays, req.DeadlineDays),
		Preferences:  preferenceTerm(req, res.Vendor),
		Penalty:      penaltyTerm(res),
	}
}

// Reward combines terms with the configured weights.
func (c RewardConfig) Reward(t Terms) float64 {
	return c.W1Cost*t.Cost +
		c.W2Evidence*t.Evidence +
		c.W3Availability*t.Availability +
		c.W4Preferences*t.Preferences -
		c.W5Penalty*t.Penalty
}

// CheckGoalState reports whether every cumulative bucket meets its
// threshold.
func (c RewardConfig) CheckGoalState(cum domain.CumulativeRewards) bool {
	return cum.Cost >= c.ThetaCost &&
		cum.Evidence >= c.ThetaEvidence &&
		cum.Completeness >= c.ThetaQuotation
}

func (c RewardConfig) String() string {
	return fmt.Sprintf("θ=(%.2f, %.2f, %.2f) w=(%.2f, %.2f, %.2f, %.2f, -%.2f)",
		c.ThetaCost, c.ThetaEvidence, c.ThetaQuotation,
		c.W1Cost, c.W2Evidence, c.W3Availability, c.W4Preferences, c.W5Penalty)
}

func costTerm(cost, budget float64) float64 {
	if budget <= 0 || cost > budget || math.IsNaN(cost) {
		return 0
	}
	return 1 - cost/budget
}

func availabilityTerm(eta, deadline int) float64 {
	if deadline <= 0 {
		if eta <= 0 {
			return 1
		}
		return 0
	}
	if eta > deadline {
		return 0
	}
	return 1 - float64(eta)/float64(deadline)
}

func preferenceTerm(req domain.BuyerRequest, vendor string) float64 {
	if vendor != "" && req.IsPreferred(vendor) {
		return 1.0
	}
	return 0.5
}

func penaltyTerm(res StepResult) float64 {
	var p float64
	if res.OutOfStock {
		p += 0.5
	}
	if res.MissingSpecs > 0 {
		p += 0.3
	}
	if res.StaleData {
		p += 0.2
	}
	return p
}
