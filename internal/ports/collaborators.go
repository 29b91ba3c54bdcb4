package ports

import (
	"context"

	"github.com/ahrav/go-procure/internal/domain"
)

// SupplierSearcher returns the offers matching a free-text query.
// An empty result is not an error.
type SupplierSearcher interface {
	Search(ctx context.Context, query string) ([]domain.Offer, error)
}

// EvidenceScorer rates how well documented a product is, in [0,1],
// from its name and specification text.
type EvidenceScorer interface {
	Score(ctx context.Context, name, spec string) (float64, error)
}

// FeedbackStore is the append-only log of buyer selections.
type FeedbackStore interface {
	// Record appends one selection.
	Record(ctx context.Context, sel domain.Selection) error

	// Statistics summarises every recorded selection.
	Statistics(ctx context.Context) (domain.FeedbackStatistics, error)
}

// Advisor enriches a decision with generated text. Implementations never
// fail: when generation is unavailable they return deterministic fallback
// text, so callers do not need an error path.
type Advisor interface {
	// Enabled reports whether generated text is available. When false every
	// method returns its fallback.
	Enabled() bool

	// AnalyzeQuery expands the buyer query into search variants. The
	// original query is always the first expanded query.
	AnalyzeQuery(ctx context.Context, req domain.BuyerRequest) domain.QueryAnalysis

	// Explain describes why c holds position rank (1-based).
	Explain(ctx context.Context, c *domain.Candidate, req domain.BuyerRequest, rank int) string

	// SuggestAlternatives explains when the runners-up would be a better
	// choice than selected. It returns "" when there is nothing to suggest.
	SuggestAlternatives(ctx context.Context, selected *domain.Candidate, ranked []*domain.Candidate, req domain.BuyerRequest) string

	// Summarize writes an executive summary of q.
	Summarize(ctx context.Context, q *domain.Quote) string
}
