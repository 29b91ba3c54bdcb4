package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

// GoogleDefaultModel is used when the configuration names no model.
const GoogleDefaultModel = "gemini-2.0-flash"

func init() { RegisterProvider("google", newGoogleProvider) }

type googleProvider struct {
	client *genai.Client
	model  string
}

func newGoogleProvider(cfg ClientConfig) (CoreLLM, error) {
	if cfg.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}
	gc := &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI}
	if cfg.BaseURL != "" {
		gc.HTTPOptions.BaseURL = cfg.BaseURL
	}
	client, err := genai.NewClient(context.Background(), gc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = GoogleDefaultModel
	}
	return &googleProvider{client: client, model: model}, nil
}

func (p *googleProvider) GetModel() string { return p.model }

func (p *googleProvider) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	o := ParseRequestOptions(opts, p.model)
	gen := &genai.GenerateContentConfig{MaxOutputTokens: int32(min(o.MaxTokens, math.MaxInt32))}
	if o.Temperature != nil {
		gen.Temperature = genai.Ptr(float32(*o.Temperature))
	}
	if o.TopP != nil {
		gen.TopP = genai.Ptr(float32(*o.TopP))
	}
	if o.System != "" {
		gen.SystemInstruction = genai.NewContentFromText(o.System, genai.RoleUser)
	}

	resp, err := p.client.Models.GenerateContent(ctx, o.Model, genai.Text(prompt), gen)
	if err != nil {
		return "", 0, 0, classifyGoogle(err)
	}
	text := resp.Text()
	if text == "" {
		return "", 0, 0, ErrEmptyResponse
	}
	var in, out int
	if u := resp.UsageMetadata; u != nil {
		in, out = int(u.PromptTokenCount), int(u.CandidatesTokenCount)
	}
	return text, tokensOr(in, prompt), tokensOr(out, text), nil
}

func classifyGoogle(err error) error {
	if pe := classifyContext("google", err); pe != nil {
		return pe
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" && len(apiErr.Errors) > 0 {
			msg = apiErr.Errors[0].Message
		}
		if blockedBySafety(apiErr) {
			return &ProviderError{Type: ErrorTypeContentPolicy, Provider: "google", StatusCode: apiErr.Code, Message: "blocked by safety filters", Err: err}
		}
		return classifyStatus("google", apiErr.Code, msg, err)
	}
	var genaiErr genai.APIError
	if errors.As(err, &genaiErr) {
		return classifyStatus("google", genaiErr.Code, genaiErr.Message, err)
	}
	return &ProviderError{Type: ErrorTypeNetwork, Provider: "google", Message: "request failed", Err: err}
}

func blockedBySafety(e *googleapi.Error) bool {
	lower := strings.ToLower(e.Message)
	if strings.Contains(lower, "safety") || strings.Contains(lower, "blocked") {
		return true
	}
	for _, item := range e.Errors {
		if item.Reason == "SAFETY" || item.Reason == "BLOCKED" {
			return true
		}
	}
	return false
}
