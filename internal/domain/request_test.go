package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBuyerRequest_Defaults(t *testing.T) {
	req, err := NewBuyerRequest(BuyerRequest{Query: "taq polymerase", Budget: 100})

	require.NoError(t, err)
	assert.Equal(t, DefaultWeights(), req.Weights, "Unset weights take the defaults.")
	assert.Equal(t, "EUR", req.Currency)
	require.NotNil(t, req.MinEvidenceThreshold)
	assert.Equal(t, 0.2, *req.MinEvidenceThreshold)
	assert.Equal(t, 0.2, req.EvidenceThreshold())
	assert.Equal(t, 0, req.DeadlineDays, "A zero deadline is valid and kept.")
}

func TestNewBuyerRequest_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		req     BuyerRequest
		wantMsg string
	}{
		{
			name:    "weights off by more than tolerance",
			req:     BuyerRequest{Query: "q", Budget: 10, Weights: Weights{Cost: 0.5, Evidence: 0.5, Availability: 0.1}},
			wantMsg: "weights must sum to 1.0, got 1.100",
		},
		{
			name:    "non-positive budget",
			req:     BuyerRequest{Query: "q", Budget: 0},
			wantMsg: "budget must be positive, got 0",
		},
		{
			name:    "negative deadline",
			req:     BuyerRequest{Query: "q", Budget: 10, DeadlineDays: -1},
			wantMsg: "deadline_days must be >= 0, got -1",
		},
		{
			name:    "negative weight",
			req:     BuyerRequest{Query: "q", Budget: 10, Weights: Weights{Cost: -0.2, Evidence: 0.6, Availability: 0.6}},
			wantMsg: "alpha_cost must be non-negative, got -0.2",
		},
		{
			name:    "evidence threshold above one",
			req:     BuyerRequest{Query: "q", Budget: 10, MinEvidenceThreshold: ptr(1.5)},
			wantMsg: "min_evidence_threshold must be within [0,1], got 1.5",
		},
		{
			name:    "empty query",
			req:     BuyerRequest{Query: "  ", Budget: 10},
			wantMsg: "query is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBuyerRequest(tt.req)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr, "Invalid requests must be rejected, not coerced.")
			assert.Contains(t, verr.Errors, tt.wantMsg)
		})
	}
}

func ptr[T any](v T) *T { return &v }

func TestNewBuyerRequest_KeepsExplicitZeroEvidenceThreshold(t *testing.T) {
	// Given a request that disables the evidence threshold
	in := BuyerRequest{Query: "q", Budget: 10, MinEvidenceThreshold: ptr(0.0)}

	// When it is validated
	req, err := NewBuyerRequest(in)

	// Then the zero survives instead of reverting to the default
	require.NoError(t, err)
	assert.Equal(t, 0.0, req.EvidenceThreshold())
	assert.Equal(t, 0.2, BuyerRequest{}.EvidenceThreshold(), "Unset falls back to the default.")
}

func TestWeights_ToleranceBoundary(t *testing.T) {
	assert.NoError(t, Weights{Cost: 0.34, Evidence: 0.33, Availability: 0.33}.Validate())
	assert.NoError(t, Weights{Cost: 1.0 / 3, Evidence: 1.0 / 3, Availability: 1.0 / 3}.Validate())
	assert.NoError(t, Weights{Cost: 0.35, Evidence: 0.45, Availability: 0.21}.Validate(), "1.01 is inside the tolerance.")
	assert.Error(t, Weights{Cost: 0.35, Evidence: 0.45, Availability: 0.22}.Validate())
}

func TestBuyerRequest_IsPreferred(t *testing.T) {
	req, err := NewBuyerRequest(BuyerRequest{Query: "q", Budget: 1, PreferredVendors: []string{"Promega"}})
	require.NoError(t, err)

	assert.True(t, req.IsPreferred("Promega"))
	assert.False(t, req.IsPreferred("promega"), "Matching is exact.")
}
