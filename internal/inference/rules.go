// Package inference implements hybrid forward/backward chaining over a
// per-episode knowledge base of facts.
//
// Forward chaining drives side-effect actions from perceived facts.
// Backward chaining checks whether the facts required by the three goals
// (quotation complete, cost acceptable, evidence sufficient) are present or
// derivable. Neither ever fails for an unreachable goal: the missing facts
// are the result.
package inference

import (
	"fmt"
	"maps"
	"slices"

	"github.com/ahrav/go-procure/internal/domain"
)

// Actions and the facts they derive.
var actionFacts = map[string]string{
	"normalize_spec":                   "specs_normalized",
	"mark_as_candidate":                "candidate_added",
	"search_equivalent_product":        "substitute_search_needed",
	"reward_candidate":                 "candidate_rewarded",
	"penalize_candidate":               "candidate_penalized",
	"confirm_vendor":                   "vendor_confirmed",
	"substitute_from_preferred_vendor": "substitute_requested",
	"adjust_weights":                   "weights_adjusted",
	"retain_policy":                    "policy_retained",
	"request_spec_from_supplier":       "",
}

// derivableActions are the then-actions backward chaining may rely on to
// produce a missing fact.
var derivableActions = map[string]string{
	"normalize_spec":    "specs_normalized",
	"mark_as_candidate": "candidate_added",
	"reward_candidate":  "candidate_rewarded",
	"confirm_vendor":    "vendor_confirmed",
}

// Goal names checked in hybrid and backward mode.
const (
	GoalQuotationComplete  = "quotation_complete"
	GoalCostAcceptable     = "cost_acceptable"
	GoalEvidenceSufficient = "evidence_sufficient"
)

// Goals lists the three sub-goals of the goal state, in evaluation order.
var Goals = []string{GoalQuotationComplete, GoalCostAcceptable, GoalEvidenceSufficient}

var goalRequirements = map[string][]string{
	GoalQuotationComplete:  {"candidate_added", "vendor_confirmed", "specs_normalized"},
	GoalCostAcceptable:     {"price_available", "budget_set", "candidate_added"},
	GoalEvidenceSufficient: {"evidence_retrieved", "candidate_rewarded"},
}

// Requirements returns the facts a goal needs. An unknown goal requires the
// fact of the same name.
func Requirements(goal string) []string {
	if req, ok := goalRequirements[goal]; ok {
		return slices.Clone(req)
	}
	return []string{goal}
}

// DerivedFact returns the fact an action asserts and whether it asserts one.
func DerivedFact(action string) (string, bool) {
	f := actionFacts[action]
	return f, f != ""
}

// KnownActions lists every action name, sorted.
func KnownActions() []string { return slices.Sorted(maps.Keys(actionFacts)) }

// DefaultRules returns the procurement production rules R1–R5.
func DefaultRules() []domain.ProductionRule {
	return []domain.ProductionRule{
		{ID: "R1", Conditions: []string{"product_retrieved"}, Action: "normalize_spec", ElseAction: "request_spec_from_supplier", Priority: 10},
		{ID: "R2", Conditions: []string{"price_available", "budget_set"}, Action: "mark_as_candidate", ElseAction: "search_equivalent_product", Priority: 9},
		{ID: "R3", Conditions: []string{"evidence_retrieved"}, Action: "reward_candidate", ElseAction: "penalize_candidate", Priority: 7},
		{ID: "R4", Conditions: []string{"stock_checked"}, Action: "confirm_vendor", ElseAction: "substitute_from_preferred_vendor", Priority: 8},
		{ID: "R5", Conditions: []string{"feedback_received"}, Action: "adjust_weights", ElseAction: "retain_policy", Priority: 5},
	}
}

// ValidateRules checks a rule set once at startup. A rule without an id or
// conditions, a duplicate id, or an action missing from the action table
// is a configuration error.
func ValidateRules(rules []domain.ProductionRule) error {
	verr := domain.NewValidationError("production rules")
	seen := make(map[string]bool, len(rules))
	for i, r := range rules {
		if r.ID == "" {
			verr.AddError(fmt.Sprintf("rule %d: id is required", i))
		} else if seen[r.ID] {
			verr.AddError(fmt.Sprintf("rule %s: duplicate id", r.ID))
		}
		seen[r.ID] = true
		if len(r.Conditions) == 0 {
			verr.AddError(fmt.Sprintf("rule %s: at least one condition is required", r.ID))
		}
		if _, ok := actionFacts[r.Action]; !ok {
			verr.AddError(fmt.Sprintf("rule %s: undefined action %q", r.ID, r.Action))
		}
		if r.ElseAction != "" {
			if _, ok := actionFacts[r.ElseAction]; !ok {
				verr.AddError(fmt.Sprintf("rule %s: undefined else action %q", r.ID, r.ElseAction))
			}
		}
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}
