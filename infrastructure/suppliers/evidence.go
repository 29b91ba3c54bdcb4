package suppliers

import (
	"context"
	"unicode/utf8"

	"github.com/ahrav/go-procure/internal/ports"
)

var _ ports.EvidenceScorer = TextEvidenceScorer{}

// evidenceTextSaturation is the description length, in runes, that earns
// full evidence.
const evidenceTextSaturation = 200.0

// TextEvidenceScorer approximates evidence from how thoroughly an offer is
// described: min(len(name + " " + spec) / 200, 1).
type TextEvidenceScorer struct{}

// Score implements ports.EvidenceScorer.
func (TextEvidenceScorer) Score(ctx context.Context, name, spec string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n := utf8.RuneCountInString(name + " " + spec)
	return min(float64(n)/evidenceTextSaturation, 1.0), nil
}
