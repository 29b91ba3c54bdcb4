package domain

import "time"

// CumulativeRewards holds the three goal-state accumulators of an episode.
// Cost and Evidence accumulate by addition; Completeness is overwritten by
// each step.
type CumulativeRewards struct {
	Cost         float64 `json:"cost"`
	Evidence     float64 `json:"evidence"`
	Completeness float64 `json:"quotation_completeness"`
}

// RuleLogEntry records one rule evaluation against one candidate.
type RuleLogEntry struct {
	Rule    string `json:"rule"`
	Outcome string `json:"status"`
	SKU     string `json:"sku"`
}

// Summary aggregates the distribution of one score dimension.
type Summary struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Stdev  float64 `json:"stdev"`
}

// ScoreStatistics describes a scored batch.
type ScoreStatistics struct {
	Count        int     `json:"total_candidates"`
	Total        Summary `json:"total_score"`
	CostFitness  Summary `json:"cost_fitness"`
	Evidence     Summary `json:"evidence"`
	Availability Summary `json:"availability"`
}

// QueryAnalysis is the outcome of query expansion.
type QueryAnalysis struct {
	OriginalQuery    string   `json:"original_query"`
	ExpandedQueries  []string `json:"expanded_queries"`
	DetectedNeeds    []string `json:"detected_needs"`
	RecommendedSpecs []string `json:"recommended_specs"`
	Warnings         []string `json:"warnings"`
}

// QuoteMetadata records how a quote was produced.
type QuoteMetadata struct {
	ExpandedQueries  []string        `json:"expanded_queries,omitempty"`
	SuppliersFound   int             `json:"suppliers_found"`
	RulesFired       int             `json:"rules_fired"`
	RuleLog          []RuleLogEntry  `json:"rule_log,omitempty"`
	Statistics       ScoreStatistics `json:"scoring_stats"`
	Alternatives     string          `json:"alternatives_suggestion,omitempty"`
	QueryAnalysis    *QueryAnalysis  `json:"query_analysis,omitempty"`
	AdvisorEnabled   bool            `json:"advisor_enabled"`
	ElapsedMillis    int64           `json:"elapsed_ms"`
	EvidenceFailures int             `json:"evidence_failures,omitempty"`
}

// Quote is the outcome of one decision: the ranked candidates, the
// selection and human readable notes.
type Quote struct {
	ID          string        `json:"id"`
	Request     BuyerRequest  `json:"request"`
	Candidates  []*Candidate  `json:"candidates"`
	Selected    *Candidate    `json:"selected,omitempty"`
	Notes       string        `json:"notes"`
	GeneratedAt time.Time     `json:"generated_at"`
	Metadata    QuoteMetadata `json:"metadata"`
}

// Selection is the buyer's final choice for a quote, used as feedback.
type Selection struct {
	Query          string  `json:"query"`
	Budget         float64 `json:"budget"`
	RecommendedSKU string  `json:"our_recommendation_sku"`
	SelectedSKU    string  `json:"user_selected_sku"`

	// Rating is 1..5, or 0 when the buyer did not rate.
	Rating  int    `json:"user_rating,omitempty"`
	Comment string `json:"user_comment,omitempty"`

	// Product is the selected candidate's scores at decision time.
	Vendor            string  `json:"vendor"`
	Name              string  `json:"name"`
	Price             float64 `json:"price"`
	CostFitness       float64 `json:"cost_fitness"`
	EvidenceScore     float64 `json:"evidence_score"`
	AvailabilityScore float64 `json:"availability_score"`
	TotalScore        float64 `json:"total_score"`

	Weights Weights `json:"weights_used"`
}

// Agreed reports whether the buyer took the recommendation.
func (s Selection) Agreed() bool {
	return s.RecommendedSKU != "" && s.SelectedSKU == s.RecommendedSKU
}

// NewSelection builds a selection from a quote and the SKU the buyer
// picked. It returns false when the SKU is not among the quote candidates.
func NewSelection(q *Quote, sku string, rating int, comment string) (Selection, bool) {
	for _, c := range q.Candidates {
		if c.Item.SKU != sku {
			continue
		}
		sel := Selection{
			Query:             q.Request.Query,
			Budget:            q.Request.Budget,
			SelectedSKU:       sku,
			Rating:            rating,
			Comment:           comment,
			Vendor:            c.Item.Vendor,
			Name:              c.Item.Name,
			Price:             c.Item.Price,
			CostFitness:       c.CostFitness,
			EvidenceScore:     c.EvidenceScore,
			AvailabilityScore: c.AvailabilityScore,
			TotalScore:        c.TotalScore,
			Weights:           q.Request.Weights,
		}
		if q.Selected != nil {
			sel.RecommendedSKU = q.Selected.Item.SKU
		}
		return sel, true
	}
	return Selection{}, false
}

// FeedbackStatistics summarises the feedback log.
type FeedbackStatistics struct {
	TotalDecisions int     `json:"total_decisions"`
	AgreementRate  float64 `json:"agreement_rate"`
	AvgRating      float64 `json:"avg_rating"`
	TotalRatings   int     `json:"total_ratings"`
}
