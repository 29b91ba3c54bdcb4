package domain

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// Default request parameters.
const (
	DefaultDeadlineDays         = 14
	DefaultMinEvidenceThreshold = 0.2

	// WeightSumTolerance is how far the weight triple may drift from 1.0.
	WeightSumTolerance = 0.01
)

// Weights is the (cost, evidence, availability) triple used to combine
// sub-scores into a total score.
type Weights struct {
	Cost         float64 `json:"alpha_cost" yaml:"alpha_cost" mapstructure:"alpha_cost"`
	Evidence     float64 `json:"beta_evidence" yaml:"beta_evidence" mapstructure:"beta_evidence"`
	Availability float64 `json:"gamma_availability" yaml:"gamma_availability" mapstructure:"gamma_availability"`
}

// DefaultWeights favours evidence, then cost, then availability.
func DefaultWeights() Weights {
	return Weights{Cost: 0.35, Evidence: 0.45, Availability: 0.20}
}

// Sum returns α+β+γ.
func (w Weights) Sum() float64 { return w.Cost + w.Evidence + w.Availability }

// IsZero reports whether no weight has been set.
func (w Weights) IsZero() bool { return w == Weights{} }

// Validate checks that every weight is non-negative and that the triple
// sums to 1.0 within WeightSumTolerance.
func (w Weights) Validate() error {
	verr := NewValidationError("weights")
	w.collect(verr)
	if verr.HasErrors() {
		return verr
	}
	return nil
}

func (w Weights) collect(verr *ValidationError) {
	for name, v := range map[string]float64{
		"alpha_cost":         w.Cost,
		"beta_evidence":      w.Evidence,
		"gamma_availability": w.Availability,
	} {
		if v < 0 || math.IsNaN(v) {
			verr.AddError(fmt.Sprintf("%s must be non-negative, got %v", name, v))
		}
	}
	if sum := w.Sum(); math.Abs(sum-1.0) > WeightSumTolerance+1e-9 {
		verr.AddError(fmt.Sprintf("weights must sum to 1.0, got %.3f", sum))
	}
	slices.Sort(verr.Errors)
}

// BuyerRequest describes what the buyer wants and the constraints the
// recommendation must respect. It is immutable for the duration of one
// decision; construct it with NewBuyerRequest.
type BuyerRequest struct {
	// Query is the free-text product description.
	Query string `json:"query"`

	// Budget is the maximum acceptable price. Always positive.
	Budget float64 `json:"budget"`

	// DeadlineDays is the latest acceptable delivery time. Never negative.
	DeadlineDays int `json:"deadline_days"`

	// PreferredVendors lists vendors whose offers receive a score bonus.
	PreferredVendors []string `json:"preferred_vendors"`

	// Weights combines the sub-scores into the total score.
	Weights Weights `json:"weights"`

	// Currency is the currency Budget is expressed in.
	Currency string `json:"currency"`

	// MinEvidenceThreshold is the evidence score below which a candidate
	// is flagged low_evidence. Nil means DefaultMinEvidenceThreshold; an
	// explicit 0 disables the flag.
	MinEvidenceThreshold *float64 `json:"min_evidence_threshold,omitempty"`
}

// NewBuyerRequest validates r and fills unset optional fields (weights,
// currency, evidence threshold) with their defaults. Invalid values are
// never coerced: the request is rejected with a *ValidationError that
// lists every problem.
func NewBuyerRequest(r BuyerRequest) (BuyerRequest, error) {
	if r.Weights.IsZero() {
		r.Weights = DefaultWeights()
	}
	if r.Currency == "" {
		r.Currency = DefaultCurrency
	}
	threshold := r.EvidenceThreshold()
	r.MinEvidenceThreshold = &threshold
	r.PreferredVendors = slices.Clone(r.PreferredVendors)

	verr := NewValidationError("buyer request")
	if strings.TrimSpace(r.Query) == "" {
		verr.AddError("query is required")
	}
	if !(r.Budget > 0) || math.IsInf(r.Budget, 0) {
		verr.AddError(fmt.Sprintf("budget must be positive, got %v", r.Budget))
	}
	if r.DeadlineDays < 0 {
		verr.AddError(fmt.Sprintf("deadline_days must be >= 0, got %d", r.DeadlineDays))
	}
	if !(threshold >= 0 && threshold <= 1) {
		verr.AddError(fmt.Sprintf("min_evidence_threshold must be within [0,1], got %v", threshold))
	}
	r.Weights.collect(verr)
	if verr.HasErrors() {
		return BuyerRequest{}, verr
	}
	return r, nil
}

// EvidenceThreshold returns MinEvidenceThreshold, or the default when it
// is unset.
func (r BuyerRequest) EvidenceThreshold() float64 {
	if r.MinEvidenceThreshold == nil {
		return DefaultMinEvidenceThreshold
	}
	return *r.MinEvidenceThreshold
}

// IsPreferred reports whether vendor is one of the buyer's preferred
// vendors. Matching is exact.
func (r BuyerRequest) IsPreferred(vendor string) bool {
	return slices.Contains(r.PreferredVendors, vendor)
}
