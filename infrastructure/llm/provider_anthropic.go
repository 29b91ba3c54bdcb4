package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicDefaultModel is used when the configuration names no model.
const AnthropicDefaultModel = "claude-3-5-haiku-latest"

func init() { RegisterProvider("anthropic", newAnthropicProvider) }

type anthropicProvider struct {
	client anthropic.Client
	model  string
}

func newAnthropicProvider(cfg ClientConfig) (CoreLLM, error) {
	if cfg.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}
	// Retries belong to RetryMiddleware.
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	model := cfg.Model
	if model == "" {
		model = AnthropicDefaultModel
	}
	return &anthropicProvider{client: anthropic.NewClient(opts...), model: model}, nil
}

func (p *anthropicProvider) GetModel() string { return p.model }

func (p *anthropicProvider) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	o := ParseRequestOptions(opts, p.model)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(o.Model),
		MaxTokens: int64(o.MaxTokens),
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
	}
	if o.Temperature != nil {
		params.Temperature = anthropic.Float(min(*o.Temperature, 1))
	}
	if o.TopP != nil {
		params.TopP = anthropic.Float(*o.TopP)
	}
	if o.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: o.System}}
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", 0, 0, p.classify(err)
	}
	var b strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(tb.Text)
		}
	}
	text := b.String()
	if text == "" {
		return "", 0, 0, ErrEmptyResponse
	}
	return text, tokensOr(int(msg.Usage.InputTokens), prompt), tokensOr(int(msg.Usage.OutputTokens), text), nil
}

func (p *anthropicProvider) classify(err error) error {
	if pe := classifyContext("anthropic", err); pe != nil {
		return pe
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return classifyStatus("anthropic", apiErr.StatusCode, "", err)
	}
	return &ProviderError{Type: ErrorTypeNetwork, Provider: "anthropic", Message: "request failed", Err: err}
}
