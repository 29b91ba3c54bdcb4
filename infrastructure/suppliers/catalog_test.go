package suppliers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-procure/internal/domain"
)

func skus(offers []domain.Offer) []string {
	out := make([]string, len(offers))
	for i, o := range offers {
		out[i] = o.SKU
	}
	return out
}

func TestBuiltinCatalog(t *testing.T) {
	c := NewBuiltinCatalog()
	assert.Equal(t, 15, c.Len())
	for _, o := range BuiltinOffers() {
		assert.NoError(t, o.Validate(), o.SKU)
		assert.Equal(t, "EUR", o.Currency)
	}
}

func TestSearch_RelevanceOrder(t *testing.T) {
	c := NewBuiltinCatalog()

	// Given a two-word query
	offers, err := c.Search(context.Background(), "  DNA Polymerase ")
	require.NoError(t, err)

	// Then offers matching both words come first in catalog order
	assert.Equal(t, []string{"TAQ-001", "DNAP-500", "POL-300"}, skus(offers)[:3])
	for _, o := range offers {
		text := strings.ToLower(o.Name + " " + o.SpecText)
		assert.True(t, strings.Contains(text, "dna") || strings.Contains(text, "polymerase"), o.SKU)
	}
}

func TestSearch_SingleWordRanksByCatalogOrder(t *testing.T) {
	c := NewBuiltinCatalog()

	offers, err := c.Search(context.Background(), "pcr")
	require.NoError(t, err)

	assert.Equal(t, []string{"TAQ-001", "POL-300", "RT-PCR-200", "PCR-MIX-100", "PRIM-KIT-50"}, skus(offers))
}

func TestSearch_EmptyAndUnknown(t *testing.T) {
	c := NewBuiltinCatalog()

	offers, err := c.Search(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, offers)

	offers, err = c.Search(context.Background(), "zzzz")
	require.NoError(t, err)
	assert.Empty(t, offers)
}

func TestSearch_FuzzyMatchesTypos(t *testing.T) {
	c := NewBuiltinCatalog()

	// "ligse" is one edit away from "ligase"
	offers, err := c.Search(context.Background(), "ligse")
	require.NoError(t, err)
	assert.Equal(t, []string{"LIG-T4-50"}, skus(offers))

	// Short words never match fuzzily
	offers, err = c.Search(context.Background(), "tak")
	require.NoError(t, err)
	assert.Empty(t, offers)
}

func TestSearch_CapsResults(t *testing.T) {
	offers := make([]domain.Offer, 0, 20)
	for i := range 20 {
		offers = append(offers, domain.Offer{
			SKU:      "S" + string(rune('A'+i)),
			Vendor:   "V",
			Name:     "buffer " + string(rune('A'+i)),
			SpecText: "sterile",
			Price:    10,
		})
	}
	c, err := NewCatalog(offers)
	require.NoError(t, err)

	got, err := c.Search(context.Background(), "buffer")
	require.NoError(t, err)
	assert.Len(t, got, 10)
}

func TestSearch_RespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewBuiltinCatalog().Search(ctx, "taq")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDedupe(t *testing.T) {
	offers := []domain.Offer{
		{SKU: "1", Vendor: "Promega", Name: "GoTaq"},
		{SKU: "2", Vendor: "PROMEGA", Name: "gotaq"},
		{SKU: "3", Vendor: "Promega", Name: "T4 Ligase"},
	}

	assert.Equal(t, []string{"1", "3"}, skus(Dedupe(offers)))
}

func TestSearchExpanded(t *testing.T) {
	c := NewBuiltinCatalog()

	offers, err := c.SearchExpanded(context.Background(), []string{"taq", "Taq", "pbs"})
	require.NoError(t, err)

	got := skus(offers)
	assert.Contains(t, got, "PBS-1L")
	seen := map[string]bool{}
	for _, s := range got {
		assert.False(t, seen[s], "duplicate %s", s)
		seen[s] = true
	}
}

type failingSearcher struct{}

func (failingSearcher) Search(context.Context, string) ([]domain.Offer, error) {
	return nil, errors.New("down")
}

func TestSearchAll_PropagatesErrors(t *testing.T) {
	_, err := SearchAll(context.Background(), failingSearcher{}, []string{"taq"})
	assert.ErrorContains(t, err, "down")
}

func TestNewCatalog_RejectsInvalidOffers(t *testing.T) {
	_, err := NewCatalog([]domain.Offer{{SKU: "X", Price: -1}})
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	data := `
offers:
  - sku: ACME-1
    vendor: Acme
    name: Agarose
    spec_text: Low EEO, molecular biology grade
    unit: g
    pack_size: 100
    price: 60
    stock: 5
    eta_days: 4
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())

	offers, err := c.Search(context.Background(), "agarose")
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, "EUR", offers[0].Currency, "Missing currency defaults to EUR.")

	require.NoError(t, os.WriteFile(path, []byte("offers:\n  - sku: A\n    colour: red\n"), 0o644))
	_, err = LoadCatalog(path)
	assert.Error(t, err, "Unknown fields are rejected.")

	_, err = LoadCatalog(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestTextEvidenceScorer(t *testing.T) {
	s := TextEvidenceScorer{}

	got, err := s.Score(context.Background(), "Taq DNA Polymerase", "High fidelity, 5 U/µL, for PCR amplification")
	require.NoError(t, err)
	// 18 + 1 + 44 runes
	assert.InDelta(t, 63.0/200.0, got, 1e-9)

	got, err = s.Score(context.Background(), strings.Repeat("x", 300), "")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)
}
