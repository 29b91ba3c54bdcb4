package llm

import (
	"context"
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIDefaultModel is used when the configuration names no model.
const OpenAIDefaultModel = "gpt-4o-mini"

func init() { RegisterProvider("openai", newOpenAIProvider) }

// openAIProvider talks to the chat completions API of OpenAI or of any
// compatible endpoint selected through ClientConfig.BaseURL.
type openAIProvider struct {
	client *openai.Client
	model  string
}

func newOpenAIProvider(cfg ClientConfig) (CoreLLM, error) {
	if cfg.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	model := cfg.Model
	if model == "" {
		model = OpenAIDefaultModel
	}
	return &openAIProvider{client: openai.NewClientWithConfig(oc), model: model}, nil
}

func (p *openAIProvider) GetModel() string { return p.model }

func (p *openAIProvider) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	o := ParseRequestOptions(opts, p.model)
	req := openai.ChatCompletionRequest{Model: o.Model, MaxTokens: o.MaxTokens}
	if o.System != "" {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: o.System})
	}
	req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})
	if o.Temperature != nil {
		req.Temperature = float32(*o.Temperature)
	}
	if o.TopP != nil {
		req.TopP = float32(*o.TopP)
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", 0, 0, p.classify(err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", 0, 0, ErrEmptyResponse
	}
	text := resp.Choices[0].Message.Content
	return text, tokensOr(resp.Usage.PromptTokens, prompt), tokensOr(resp.Usage.CompletionTokens, text), nil
}

func (p *openAIProvider) classify(err error) error {
	if pe := classifyContext("openai", err); pe != nil {
		return pe
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus("openai", apiErr.HTTPStatusCode, apiErr.Message, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus("openai", reqErr.HTTPStatusCode, "request failed", err)
	}
	return &ProviderError{Type: ErrorTypeNetwork, Provider: "openai", Message: "request failed", Err: err}
}

// tokensOr returns the reported count, or an estimate when the provider
// reported none.
func tokensOr(reported int, text string) int {
	if reported > 0 {
		return reported
	}
	return EstimateTokens(text)
}
