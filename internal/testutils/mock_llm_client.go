// Package testutils provides deterministic collaborators and fixtures for
// tests of the procurement pipeline.
package testutils

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/ahrav/go-procure/internal/ports"
)

// Verify interface compliance at compile time.
var _ ports.LLMClient = (*MockLLMClient)(nil)

// Canned responses returned for the advisor prompts.
const (
	AnalysisResponse = "```json\n" +
		`{"expanded_queries": ["Taq polymerase", "DNA polymerase", "PCR enzyme", "hot start polymerase", "thermostable polymerase"],` +
		` "implicit_needs": ["dNTPs", "PCR buffer", "primers", "thermal cycler"],` +
		` "key_specs": ["fidelity", "processivity"],` +
		` "warnings": ["check buffer compatibility"]}` +
		"\n```"
	ExplanationResponse  = "Strong balance of price and documentation within budget."
	AlternativesResponse = "Consider the runner-up when delivery speed matters more than price."
	SummaryResponse      = "The recommended product fits the budget with solid evidence."
)

// MockResponse maps a prompt substring to a response.
type MockResponse struct {
	// Pattern is matched case-insensitively against the prompt.
	Pattern string

	// Response is returned for matching prompts.
	Response string
}

// Call records one Complete invocation.
type Call struct {
	Prompt  string
	Options map[string]any
}

// MockLLMClient implements ports.LLMClient with pattern-matched responses
// for the advisor prompts. It is safe for concurrent use.
type MockLLMClient struct {
	mu        sync.Mutex
	model     string
	responses []MockResponse
	err       error
	calls     []Call
}

// NewMockLLMClient returns a client that answers the analysis, explanation,
// alternatives and summary prompts.
func NewMockLLMClient(model string) *MockLLMClient {
	m := &MockLLMClient{model: model}
	m.setupDefaultResponses()
	return m
}

func (m *MockLLMClient) setupDefaultResponses() {
	m.responses = []MockResponse{
		{Pattern: "analyze this query", Response: AnalysisResponse},
		{Pattern: "explaining a product recommendation", Response: ExplanationResponse},
		{Pattern: "understand their options", Response: AlternativesResponse},
		{Pattern: "summarize this procurement", Response: SummaryResponse},
	}
}

// AddResponse registers a response that takes precedence over the
// defaults.
func (m *MockLLMClient) AddResponse(r MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append([]MockResponse{r}, m.responses...)
}

// FailWith makes every subsequent call return err. A nil err restores
// normal behaviour.
func (m *MockLLMClient) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Complete returns the first response whose pattern occurs in prompt.
func (m *MockLLMClient) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Prompt: prompt, Options: options})
	if m.err != nil {
		return "", m.err
	}
	if prompt == "" {
		return "", errors.New("prompt cannot be empty")
	}
	lower := strings.ToLower(prompt)
	for _, r := range m.responses {
		if strings.Contains(lower, strings.ToLower(r.Pattern)) {
			return r.Response, nil
		}
	}
	return "Mock response for testing purposes.", nil
}

// EstimateTokens approximates four characters per token.
func (m *MockLLMClient) EstimateTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	return max(len(text)/4, 1), nil
}

// GetModel returns the mock model identifier.
func (m *MockLLMClient) GetModel() string { return m.model }

// Calls returns a copy of the recorded invocations.
func (m *MockLLMClient) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// Reset clears recorded calls, custom responses and injected errors.
func (m *MockLLMClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.err = nil
	m.setupDefaultResponses()
}
