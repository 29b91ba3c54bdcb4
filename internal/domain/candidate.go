package domain

import (
	"fmt"
	"slices"
	"time"
)

// Flag marks a candidate with a condition detected during evaluation.
type Flag string

// Flags raised by the rule and scoring stages.
const (
	FlagSpecMissing     Flag = "spec_missing"
	FlagOverBudget      Flag = "over_budget"
	FlagLowEvidence     Flag = "low_evidence"
	FlagOutOfStock      Flag = "out_of_stock"
	FlagPreferredVendor Flag = "preferred_vendor"
)

// Keys used in Candidate.Normalized.
const (
	NormPackLiters  = "pack_liters"
	NormVendorBonus = "vendor_bonus"
)

// Candidate is the working record for one offer during a single decision.
// It is created once per offer, mutated in place by the rule stage and then
// the scoring stage, and never shared between requests.
//
// All fields are exported so that State can deep copy candidates between
// pipeline units.
type Candidate struct {
	// Item is the offer under evaluation.
	Item Offer `json:"item"`

	// Normalized holds canonical numeric attributes such as the pack size
	// in litres and the vendor bonus multiplier.
	Normalized map[string]float64 `json:"normalized"`

	// EvidenceScore reflects how well documented the product is, in [0,1].
	EvidenceScore float64 `json:"evidence_score"`

	// CostFitness reflects price attractiveness, in [0,1].
	CostFitness float64 `json:"cost_fitness"`

	// AvailabilityScore reflects stock and delivery timeliness, in [0,1].
	AvailabilityScore float64 `json:"availability_score"`

	// TotalScore is the weighted combination of the three sub-scores
	// multiplied by the vendor bonus.
	TotalScore float64 `json:"total_score"`

	// Rationales is the append-only explanation trail.
	Rationales []string `json:"rationales"`

	// Flags holds unique condition markers.
	Flags []Flag `json:"flags"`

	// CreatedAt is when evaluation of this offer started.
	CreatedAt time.Time `json:"created_at"`
}

// NewCandidate wraps an offer in a fresh candidate with zero scores.
func NewCandidate(item Offer) *Candidate {
	return &Candidate{
		Item:       item,
		Normalized: make(map[string]float64),
		Rationales: make([]string, 0, 8),
		Flags:      make([]Flag, 0, 2),
		CreatedAt:  time.Now().UTC(),
	}
}

// NewCandidates wraps every offer, preserving order.
func NewCandidates(items []Offer) []*Candidate {
	out := make([]*Candidate, 0, len(items))
	for _, item := range items {
		out = append(out, NewCandidate(item))
	}
	return out
}

// AddRationale appends a rationale attributed to a rule or stage.
func (c *Candidate) AddRationale(ruleID, message string) {
	c.Rationales = append(c.Rationales, fmt.Sprintf("%s: %s", ruleID, message))
}

// AddFlag records f once.
func (c *Candidate) AddFlag(f Flag) {
	if !c.HasFlag(f) {
		c.Flags = append(c.Flags, f)
	}
}

// HasFlag reports whether f has been raised.
func (c *Candidate) HasFlag(f Flag) bool { return slices.Contains(c.Flags, f) }

// SetNormalized stores a normalized attribute, allocating the map if a
// zero-value candidate is used.
func (c *Candidate) SetNormalized(key string, v float64) {
	if c.Normalized == nil {
		c.Normalized = make(map[string]float64)
	}
	c.Normalized[key] = v
}

// NormalizedOr returns the normalized attribute or def when absent.
func (c *Candidate) NormalizedOr(key string, def float64) float64 {
	if v, ok := c.Normalized[key]; ok {
		return v
	}
	return def
}

// FlagNames returns the flags as plain strings.
func (c *Candidate) FlagNames() []string {
	names := make([]string, len(c.Flags))
	for i, f := range c.Flags {
		names[i] = string(f)
	}
	return names
}

// Clamp01 bounds v to [0,1].
func Clamp01(v float64) float64 { return max(0, min(1, v)) }
