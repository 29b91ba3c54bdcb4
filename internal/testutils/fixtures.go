package testutils

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/ahrav/go-procure/internal/domain"
	"github.com/ahrav/go-procure/internal/ports"
)

// Offer returns a well-formed offer that callers adjust per test.
func Offer(sku, vendor string, price float64) domain.Offer {
	return domain.Offer{
		SKU:      sku,
		Vendor:   vendor,
		Name:     "Product " + sku,
		SpecText: "Documented specification for " + sku,
		Unit:     "mL",
		PackSize: 1,
		Price:    price,
		Currency: domain.DefaultCurrency,
		Stock:    10,
		ETADays:  3,
	}
}

// Request returns a validated request for query with the given budget and
// default everything else. It panics on invalid input.
func Request(query string, budget float64) domain.BuyerRequest {
	req, err := domain.NewBuyerRequest(domain.BuyerRequest{
		Query:        query,
		Budget:       budget,
		DeadlineDays: domain.DefaultDeadlineDays,
	})
	if err != nil {
		panic(err)
	}
	return req
}

// StaticSearcher is a ports.SupplierSearcher over a fixed offer list. A
// query matches an offer when the lowercased query occurs in its name or
// specification; the query "*" matches everything.
type StaticSearcher struct {
	Offers []domain.Offer
	Err    error

	mu      sync.Mutex
	queries []string
}

var _ ports.SupplierSearcher = (*StaticSearcher)(nil)

// Search implements ports.SupplierSearcher.
func (s *StaticSearcher) Search(ctx context.Context, query string) ([]domain.Offer, error) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}
	q := strings.ToLower(query)
	var out []domain.Offer
	for _, o := range s.Offers {
		if q == "*" || strings.Contains(strings.ToLower(o.Name+" "+o.SpecText), q) {
			out = append(out, o)
		}
	}
	return out, nil
}

// Queries returns the queries received so far.
func (s *StaticSearcher) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

// ErrEvidenceUnavailable is returned by MapEvidenceScorer for products
// listed in Fail.
var ErrEvidenceUnavailable = errors.New("evidence unavailable")

// MapEvidenceScorer returns Scores[name], Default otherwise, and fails for
// names listed in Fail.
type MapEvidenceScorer struct {
	Scores  map[string]float64
	Fail    map[string]bool
	Default float64
}

var _ ports.EvidenceScorer = (*MapEvidenceScorer)(nil)

// Score implements ports.EvidenceScorer.
func (m *MapEvidenceScorer) Score(ctx context.Context, name, _ string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if m.Fail[name] {
		return 0, ErrEvidenceUnavailable
	}
	if v, ok := m.Scores[name]; ok {
		return v, nil
	}
	return m.Default, nil
}
