package cache

import (
	"context"
	"slices"

	"github.com/ahrav/go-procure/internal/domain"
	"github.com/ahrav/go-procure/internal/ports"
)

var (
	_ ports.SupplierSearcher = (*Searcher)(nil)
	_ ports.EvidenceScorer   = (*EvidenceScorer)(nil)
)

// Searcher memoizes a supplier searcher by normalized query.
type Searcher struct {
	next ports.SupplierSearcher
	memo *Memo[[]domain.Offer]
}

// NewSearcher wraps next with a memo cache.
func NewSearcher(next ports.SupplierSearcher, cfg Config) *Searcher {
	return &Searcher{next: next, memo: NewMemo[[]domain.Offer](cfg)}
}

// Search returns a copy of the cached offers so callers never share the
// backing array.
func (s *Searcher) Search(ctx context.Context, query string) ([]domain.Offer, error) {
	offers, err := s.memo.Get(ctx, Key("search", query), func(ctx context.Context) ([]domain.Offer, error) {
		return s.next.Search(ctx, query)
	})
	return slices.Clone(offers), err
}

// Stats reports the search cache counters.
func (s *Searcher) Stats() Stats { return s.memo.Stats() }

// EvidenceScorer memoizes an evidence scorer by (name, spec).
type EvidenceScorer struct {
	next ports.EvidenceScorer
	memo *Memo[float64]
}

// NewEvidenceScorer wraps next with a memo cache.
func NewEvidenceScorer(next ports.EvidenceScorer, cfg Config) *EvidenceScorer {
	return &EvidenceScorer{next: next, memo: NewMemo[float64](cfg)}
}

// Score returns the cached score for name and spec.
func (e *EvidenceScorer) Score(ctx context.Context, name, spec string) (float64, error) {
	return e.memo.Get(ctx, Key("evidence", name, spec), func(ctx context.Context) (float64, error) {
		return e.next.Score(ctx, name, spec)
	})
}

// Stats reports the evidence cache counters.
func (e *EvidenceScorer) Stats() Stats { return e.memo.Stats() }
