// Package rules applies the candidate production rules R1–R5.
//
// Every rule is an IF-THEN-ELSE over a single candidate and the buyer
// request. Rules run in a fixed order and are not idempotent: applying the
// engine twice to the same candidate double-penalizes it, so callers apply
// it exactly once per candidate per decision.
package rules

import (
	"fmt"

	"github.com/ahrav/go-procure/internal/domain"
)

// Rule identifiers in application order.
const (
	RuleSpecValidation   = "R1"
	RuleBudgetCompliance = "R2"
	RuleEvidenceQuality  = "R3"
	RuleAvailability     = "R4"
	RulePreferredVendor  = "R5"
)

// Outcomes recorded in the execution log.
const (
	OutcomePassed   = "passed"
	OutcomeViolated = "violated"
	OutcomeFlagged  = "flagged"
	OutcomeNeutral  = "neutral"
)

const (
	specMissingPenalty = 0.5
	specPresentBonus   = 1.05

	// delayDecayPerDay is the availability lost per day of delivery beyond
	// the deadline.
	delayDecayPerDay = 0.05
)

// Summary reports what the last Apply did.
type Summary struct {
	RulesFired int                   `json:"total_rules_fired"`
	Log        []domain.RuleLogEntry `json:"execution_log"`
}

// Engine applies the production rules. The zero value is ready to use.
// An Engine keeps the log of its last Apply call and is therefore not safe
// for concurrent use; construct one per pipeline run.
type Engine struct {
	fired int
	log   []domain.RuleLogEntry
}

// NewEngine returns an engine with an empty log.
func NewEngine() *Engine { return &Engine{} }

// Apply evaluates R1–R5 against every candidate in place and returns the
// same slice. Candidates are independent of one another.
func (e *Engine) Apply(cands []*domain.Candidate, req domain.BuyerRequest) []*domain.Candidate {
	e.fired = 0
	e.log = make([]domain.RuleLogEntry, 0, len(cands)*5)

	for _, c := range cands {
		e.specValidation(c)
		e.budgetCompliance(c, req)
		e.evidenceQuality(c, req)
		e.availability(c, req)
		e.preferredVendor(c, req)
	}
	return cands
}

// RulesFired returns how many rule evaluations the last Apply performed.
func (e *Engine) RulesFired() int { return e.fired }

// Log returns a copy of the execution log of the last Apply.
func (e *Engine) Log() []domain.RuleLogEntry {
	return append([]domain.RuleLogEntry(nil), e.log...)
}

// Summary returns the fired counter and the execution log.
func (e *Engine) Summary() Summary {
	return Summary{RulesFired: e.fired, Log: e.Log()}
}

// R1: IF spec missing THEN flag for clarification ELSE normalize.
func (e *Engine) specValidation(c *domain.Candidate) {
	if !c.Item.HasSpec() {
		c.AddFlag(domain.FlagSpecMissing)
		c.AddRationale(RuleSpecValidation, "Missing spec → flagged for clarification")
		c.EvidenceScore = max(0, c.EvidenceScore*specMissingPenalty)
		e.record(RuleSpecValidation, OutcomeViolated, c)
		return
	}
	c.AddRationale(RuleSpecValidation, "Spec OK → normalized")
	c.EvidenceScore = min(1, c.EvidenceScore*specPresentBonus)
	e.record(RuleSpecValidation, OutcomePassed, c)
}

// R2: IF price > budget THEN search substitute ELSE mark as candidate.
// The in-budget cost fitness is provisional; the scoring engine replaces
// it with the median-relative value.
func (e *Engine) budgetCompliance(c *domain.Candidate, req domain.BuyerRequest) {
	price := c.Item.Price
	if price > req.Budget {
		c.AddFlag(domain.FlagOverBudget)
		c.CostFitness = 0
		c.AddRationale(RuleBudgetCompliance, fmt.Sprintf(
			"Price €%.2f exceeds budget €%.2f by €%.2f → substitute recommended",
			price, req.Budget, price-req.Budget))
		e.record(RuleBudgetCompliance, OutcomeViolated, c)
		return
	}
	c.CostFitness = max(0, 1-price/req.Budget)
	c.AddRationale(RuleBudgetCompliance, fmt.Sprintf(
		"Within budget (€%.2f/€%.2f) → cost_fitness=%.2f", price, req.Budget, c.CostFitness))
	e.record(RuleBudgetCompliance, OutcomePassed, c)
}

// R3: IF evidence below threshold THEN penalize ELSE reward.
func (e *Engine) evidenceQuality(c *domain.Candidate, req domain.BuyerRequest) {
	threshold := req.EvidenceThreshold()
	if c.EvidenceScore < threshold {
		c.AddFlag(domain.FlagLowEvidence)
		c.AddRationale(RuleEvidenceQuality, fmt.Sprintf(
			"Evidence score %.2f below threshold %.2f → penalized", c.EvidenceScore, threshold))
		e.record(RuleEvidenceQuality, OutcomeFlagged, c)
		return
	}
	c.AddRationale(RuleEvidenceQuality, fmt.Sprintf(
		"Evidence score %.2f meets threshold %.2f → approved", c.EvidenceScore, threshold))
	e.record(RuleEvidenceQuality, OutcomePassed, c)
}

// R4: IF out of stock THEN suggest substitute ELSE score availability.
func (e *Engine) availability(c *domain.Candidate, req domain.BuyerRequest) {
	if c.Item.Stock <= 0 {
		c.AddFlag(domain.FlagOutOfStock)
		c.AvailabilityScore = 0
		c.AddRationale(RuleAvailability, "Out of stock → availability_score=0, substitute suggested")
		e.record(RuleAvailability, OutcomeViolated, c)
		return
	}
	c.AvailabilityScore = AvailabilityScore(c.Item.ETADays, req.DeadlineDays)
	c.AddRationale(RuleAvailability, fmt.Sprintf(
		"In stock (%d units), ETA %dd → availability_score=%.2f",
		c.Item.Stock, c.Item.ETADays, c.AvailabilityScore))
	e.record(RuleAvailability, OutcomePassed, c)
}

// R5: IF preferred vendor THEN mark for the downstream bonus.
func (e *Engine) preferredVendor(c *domain.Candidate, req domain.BuyerRequest) {
	if req.IsPreferred(c.Item.Vendor) {
		c.AddFlag(domain.FlagPreferredVendor)
		c.AddRationale(RulePreferredVendor, fmt.Sprintf(
			"Vendor '%s' is in preferred list → bonus applied", c.Item.Vendor))
		e.record(RulePreferredVendor, OutcomePassed, c)
		return
	}
	c.AddRationale(RulePreferredVendor, "Vendor not in preferred list → no adjustment")
	e.record(RulePreferredVendor, OutcomeNeutral, c)
}

func (e *Engine) record(rule, outcome string, c *domain.Candidate) {
	e.log = append(e.log, domain.RuleLogEntry{Rule: rule, Outcome: outcome, SKU: c.Item.SKU})
	e.fired++
}

// AvailabilityScore is 1 for deliveries within the deadline and decays by
// 5% per day of delay, floored at 0.
func AvailabilityScore(etaDays, deadlineDays int) float64 {
	if etaDays <= deadlineDays {
		return 1
	}
	delay := float64(etaDays - deadlineDays)
	return max(0, 1-delay*delayDecayPerDay)
}
