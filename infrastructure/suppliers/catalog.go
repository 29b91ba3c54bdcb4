// Package suppliers provides an in-memory supplier catalog and a text
// based evidence scorer.
package suppliers

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-procure/internal/domain"
	"github.com/ahrav/go-procure/internal/ports"
)

var _ ports.SupplierSearcher = (*Catalog)(nil)

const (
	// maxResults caps the offers one query returns.
	maxResults = 10

	// fuzzyMinRunes is the shortest query word eligible for fuzzy matching.
	fuzzyMinRunes = 5
)

// Catalog is an immutable, concurrency-safe list of offers searched by
// keyword relevance.
type Catalog struct {
	offers []indexedOffer
	log    *zap.Logger
}

type indexedOffer struct {
	offer  domain.Offer
	text   string
	tokens []string
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithLogger sets the catalog logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Catalog) { c.log = l }
}

// NewCatalog indexes offers. Offers that fail validation are rejected.
func NewCatalog(offers []domain.Offer, opts ...Option) (*Catalog, error) {
	c := &Catalog{log: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	for _, o := range offers {
		if err := o.Validate(); err != nil {
			return nil, eris.Wrapf(err, "catalog: offer %q", o.SKU)
		}
		if o.Currency == "" {
			o.Currency = domain.DefaultCurrency
		}
		text := strings.ToLower(o.Name + " " + o.SpecText)
		c.offers = append(c.offers, indexedOffer{offer: o, text: text, tokens: tokenize(text)})
	}
	return c, nil
}

// NewBuiltinCatalog returns the bundled catalog.
func NewBuiltinCatalog(opts ...Option) *Catalog {
	c, err := NewCatalog(BuiltinOffers(), opts...)
	if err != nil {
		panic(err)
	}
	return c
}

type catalogFile struct {
	Offers []domain.Offer `yaml:"offers"`
}

// LoadCatalog reads a YAML catalog of the form `offers: [...]`.
func LoadCatalog(path string, opts ...Option) (*Catalog, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, eris.Wrap(err, "catalog: read file")
	}
	var f catalogFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, eris.Wrap(err, "catalog: decode")
	}
	return NewCatalog(f.Offers, opts...)
}

// Len returns the number of offers.
func (c *Catalog) Len() int { return len(c.offers) }

// Search returns up to ten offers whose name or spec matches words of the
// query, most relevant first. Relevance is the number of query words
// found; ties keep catalog order. An empty query matches nothing.
func (c *Catalog) Search(ctx context.Context, query string) ([]domain.Offer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}
	words := strings.Fields(q)

	type match struct {
		score int
		offer domain.Offer
	}
	var matches []match
	for _, ix := range c.offers {
		score := 0
		for _, w := range words {
			if ix.matches(w) {
				score++
			}
		}
		if score > 0 {
			matches = append(matches, match{score: score, offer: ix.offer})
		}
	}
	slices.SortStableFunc(matches, func(a, b match) int { return b.score - a.score })

	out := make([]domain.Offer, 0, min(len(matches), maxResults))
	for _, m := range matches[:min(len(matches), maxResults)] {
		out = append(out, m.offer)
	}
	out = Dedupe(out)
	c.log.Debug("catalog search", zap.String("query", q), zap.Int("matches", len(matches)), zap.Int("returned", len(out)))
	return out, nil
}

// SearchExpanded runs every query and returns the deduplicated union in
// query order.
func (c *Catalog) SearchExpanded(ctx context.Context, queries []string) ([]domain.Offer, error) {
	return SearchAll(ctx, c, queries)
}

// SearchAll runs every query against s and returns the deduplicated union
// in query order.
func SearchAll(ctx context.Context, s ports.SupplierSearcher, queries []string) ([]domain.Offer, error) {
	var all []domain.Offer
	for _, q := range queries {
		offers, err := s.Search(ctx, q)
		if err != nil {
			return nil, eris.Wrapf(err, "search %q", q)
		}
		all = append(all, offers...)
	}
	return Dedupe(all), nil
}

func (ix indexedOffer) matches(word string) bool {
	if strings.Contains(ix.text, word) {
		return true
	}
	if utf8.RuneCountInString(word) < fuzzyMinRunes {
		return false
	}
	for _, tok := range ix.tokens {
		if levenshtein.ComputeDistance(word, tok) <= 1 {
			return true
		}
	}
	return false
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
}

// Dedupe drops offers whose (vendor, name) pair, compared case-folded,
// was already seen. Order is preserved.
func Dedupe(offers []domain.Offer) []domain.Offer {
	fold := cases.Fold()
	seen := make(map[[2]string]struct{}, len(offers))
	out := make([]domain.Offer, 0, len(offers))
	for _, o := range offers {
		key := [2]string{fold.String(o.Vendor), fold.String(o.Name)}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, o)
	}
	return out
}
