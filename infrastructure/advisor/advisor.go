// Package advisor enriches procurement decisions with generated text: query
// expansion, per-candidate explanations, alternatives and an executive
// summary. Every method degrades to deterministic text when no language
// model is configured or a call fails.
package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/ahrav/go-procure/internal/domain"
	"github.com/ahrav/go-procure/internal/ports"
)

var _ ports.Advisor = (*Advisor)(nil)

// Limits applied to the query analysis.
const (
	maxExpandedQueries = 5
	maxDetectedNeeds   = 3
	maxRecommendedSpec = 5
	maxAlternatives    = 3
	alternativesWindow = 4
)

// Generation settings per prompt.
var (
	analyzeOpts      = map[string]any{"temperature": 0.3, "max_tokens": 500}
	explainOpts      = map[string]any{"temperature": 0.5, "max_tokens": 150}
	alternativesOpts = map[string]any{"temperature": 0.6, "max_tokens": 150}
	summaryOpts      = map[string]any{"temperature": 0.4, "max_tokens": 200}
)

var jsonFence = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// Advisor is the ports.Advisor backed by an optional LLM client.
type Advisor struct {
	client ports.LLMClient
	log    *zap.Logger
}

// Option configures an Advisor.
type Option func(*Advisor)

// WithLogger sets the logger used to report failed generations.
func WithLogger(l *zap.Logger) Option {
	return func(a *Advisor) {
		if l != nil {
			a.log = l
		}
	}
}

// New returns an advisor. A nil client yields a disabled advisor that only
// produces fallback text.
func New(client ports.LLMClient, opts ...Option) *Advisor {
	a := &Advisor{client: client, log: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Enabled reports whether a client is configured.
func (a *Advisor) Enabled() bool { return a.client != nil }

// complete calls the model. It returns "" on any failure.
func (a *Advisor) complete(ctx context.Context, op string, prompt string, opts map[string]any) string {
	text, err := a.client.Complete(ctx, prompt, opts)
	if err != nil {
		a.log.Warn("advisor generation failed, using fallback", zap.String("operation", op), zap.Error(err))
		return ""
	}
	return strings.TrimSpace(text)
}

// analysisResponse is the JSON shape the analysis prompt asks for.
type analysisResponse struct {
	ExpandedQueries []string `json:"expanded_queries"`
	ImplicitNeeds   []string `json:"implicit_needs"`
	KeySpecs        []string `json:"key_specs"`
	Warnings        []string `json:"warnings"`
}

// AnalyzeQuery expands the buyer query. The original query is always the
// first expanded query.
func (a *Advisor) AnalyzeQuery(ctx context.Context, req domain.BuyerRequest) domain.QueryAnalysis {
	fallback := domain.QueryAnalysis{
		OriginalQuery:    req.Query,
		ExpandedQueries:  []string{req.Query},
		DetectedNeeds:    []string{},
		RecommendedSpecs: []string{},
		Warnings:         []string{},
	}
	if !a.Enabled() {
		return fallback
	}
	prompt, err := render(analyzeTmpl, req)
	if err != nil {
		a.log.Error("render analysis prompt", zap.Error(err))
		return fallback
	}
	text := a.complete(ctx, "analyze", prompt, analyzeOpts)
	if text == "" {
		return fallback
	}
	resp, err := parseAnalysis(text)
	if err != nil {
		a.log.Warn("unparseable query analysis, using fallback", zap.Error(err))
		return fallback
	}

	expanded := make([]string, 0, len(resp.ExpandedQueries)+1)
	expanded = append(expanded, req.Query)
	for _, q := range resp.ExpandedQueries {
		if q = strings.TrimSpace(q); q != "" && !slices.Contains(expanded, q) {
			expanded = append(expanded, q)
		}
	}
	return domain.QueryAnalysis{
		OriginalQuery:    req.Query,
		ExpandedQueries:  expanded[:min(len(expanded), maxExpandedQueries)],
		DetectedNeeds:    head(resp.ImplicitNeeds, maxDetectedNeeds),
		RecommendedSpecs: head(resp.KeySpecs, maxRecommendedSpec),
		Warnings:         head(resp.Warnings, len(resp.Warnings)),
	}
}

// parseAnalysis decodes the model output, accepting a fenced JSON block.
func parseAnalysis(text string) (analysisResponse, error) {
	if m := jsonFence.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	var resp analysisResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return analysisResponse{}, fmt.Errorf("decode analysis: %w", err)
	}
	return resp, nil
}

func head(s []string, n int) []string {
	out := make([]string, 0, min(len(s), n))
	return append(out, s[:min(len(s), n)]...)
}

// Explain describes why c holds position rank.
func (a *Advisor) Explain(ctx context.Context, c *domain.Candidate, req domain.BuyerRequest, rank int) string {
	if a.Enabled() {
		prompt, err := render(explainTmpl, struct {
			C    *domain.Candidate
			Req  domain.BuyerRequest
			Rank int
		}{c, req, rank})
		if err == nil {
			if text := a.complete(ctx, "explain", prompt, explainOpts); text != "" {
				return text
			}
		}
	}
	return FallbackExplanation(c, rank)
}

// FallbackExplanation names the candidate's rank, its strongest sub-score
// and its flags.
func FallbackExplanation(c *domain.Candidate, rank int) string {
	parts := make([]string, 0, 3)
	if rank == 1 {
		parts = append(parts, "This is our top recommendation")
	} else {
		parts = append(parts, fmt.Sprintf("This is option #%d", rank))
	}

	// Ties resolve to the earlier aspect.
	aspects := []struct {
		name  string
		score float64
	}{
		{"cost-effectiveness", c.CostFitness},
		{"scientific evidence", c.EvidenceScore},
		{"availability", c.AvailabilityScore},
	}
	best := aspects[0]
	for _, asp := range aspects[1:] {
		if asp.score > best.score {
			best = asp
		}
	}
	parts = append(parts, fmt.Sprintf("with excellent %s (score: %.2f)", best.name, best.score))

	if len(c.Flags) > 0 {
		parts = append(parts, "Note: "+strings.Join(c.FlagNames(), ", "))
	}
	return strings.Join(parts, ". ") + "."
}

// SuggestAlternatives explains when the runners-up are a better choice.
// It returns "" when disabled, with fewer than two candidates, or when
// generation fails.
func (a *Advisor) SuggestAlternatives(ctx context.Context, selected *domain.Candidate, ranked []*domain.Candidate, req domain.BuyerRequest) string {
	if !a.Enabled() || selected == nil || len(ranked) < 2 {
		return ""
	}
	alts := Alternatives(selected, ranked)
	if len(alts) == 0 {
		return ""
	}
	prompt, err := render(alternativesTmpl, struct {
		Selected     *domain.Candidate
		Alternatives []*domain.Candidate
		Req          domain.BuyerRequest
	}{selected, alts, req})
	if err != nil {
		a.log.Error("render alternatives prompt", zap.Error(err))
		return ""
	}
	return a.complete(ctx, "alternatives", prompt, alternativesOpts)
}

// Alternatives returns up to three of the top four candidates other than
// selected, in rank order.
func Alternatives(selected *domain.Candidate, ranked []*domain.Candidate) []*domain.Candidate {
	out := make([]*domain.Candidate, 0, maxAlternatives)
	for _, c := range ranked[:min(len(ranked), alternativesWindow)] {
		if c == selected || (c.Item.SKU == selected.Item.SKU && c.Item.Vendor == selected.Item.Vendor) {
			continue
		}
		out = append(out, c)
		if len(out) == maxAlternatives {
			break
		}
	}
	return out
}

// Summarize writes an executive summary of q. The fallback is the quote's
// notes, or "Quote generated successfully" when there are none.
func (a *Advisor) Summarize(ctx context.Context, q *domain.Quote) string {
	fallback := q.Notes
	if fallback == "" {
		fallback = "Quote generated successfully"
	}
	if !a.Enabled() || len(q.Candidates) == 0 {
		return fallback
	}
	lo, hi := q.Candidates[0].Item.Price, q.Candidates[0].Item.Price
	for _, c := range q.Candidates[1:] {
		lo, hi = min(lo, c.Item.Price), max(hi, c.Item.Price)
	}
	prompt, err := render(summaryTmpl, struct {
		Q                  *domain.Quote
		MinPrice, MaxPrice float64
	}{q, lo, hi})
	if err != nil {
		a.log.Error("render summary prompt", zap.Error(err))
		return fallback
	}
	if text := a.complete(ctx, "summary", prompt, summaryOpts); text != "" {
		return text
	}
	return fallback
}
