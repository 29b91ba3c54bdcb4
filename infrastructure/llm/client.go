// Package llm provides the text generation client behind the procurement
// advisor. Providers (OpenAI and OpenAI-compatible endpoints, Anthropic,
// Google) sit behind the CoreLLM interface and are wrapped by a middleware
// chain for timeouts, rate limiting, retries, circuit breaking, metrics and
// tracing.
//
// Basic usage:
//
//	client, err := llm.NewClient("openai", llm.ClientConfig{
//	    APIKey: os.Getenv("OPENAI_API_KEY"),
//	    Model:  "gpt-4o-mini",
//	    Middleware: []llm.Middleware{
//	        llm.RateLimitMiddleware(2, 4),
//	        llm.CircuitBreakerMiddleware(5, 30*time.Second),
//	    },
//	})
//	text, err := client.Complete(ctx, prompt, map[string]any{"temperature": 0.3})
package llm

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/ahrav/go-procure/internal/ports"
)

var _ ports.LLMClient = (*Client)(nil)

// CoreLLM is the minimal contract a provider implements. DoRequest returns
// the generated text with input and output token counts.
type CoreLLM interface {
	DoRequest(ctx context.Context, prompt string, opts map[string]any) (response string, tokensIn, tokensOut int, err error)
	GetModel() string
}

// Middleware wraps a CoreLLM to add cross-cutting behaviour.
type Middleware func(CoreLLM) CoreLLM

// ClientConfig configures one provider client.
type ClientConfig struct {
	// APIKey authenticates requests to the provider.
	APIKey string

	// Model is the model used when a request does not name one.
	Model string

	// BaseURL overrides the provider endpoint. For the openai provider this
	// also selects OpenAI-compatible services such as Groq.
	BaseURL string

	// Timeout bounds the provider's HTTP client. Zero keeps the SDK default.
	Timeout time.Duration

	// Middleware is applied in order; the first entry is the outermost.
	Middleware []Middleware
}

// Client implements ports.LLMClient on top of a middleware-wrapped provider.
type Client struct {
	core CoreLLM
}

// NewClient builds a client for the registered provider.
func NewClient(provider string, cfg ClientConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}
	factory, ok := lookupProvider(provider)
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (supported: %v)", provider, Providers())
	}
	core, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("create %s provider: %w", provider, err)
	}
	return &Client{core: Chain(core, cfg.Middleware...)}, nil
}

// Chain wraps core so that mws[0] sees a request first.
func Chain(core CoreLLM, mws ...Middleware) CoreLLM {
	for i := len(mws) - 1; i >= 0; i-- {
		core = mws[i](core)
	}
	return core
}

// Complete sends prompt and returns the generated text.
func (c *Client) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	text, _, _, err := c.core.DoRequest(ctx, prompt, options)
	if err != nil {
		return "", ports.NewLLMError(c.core.GetModel(), "complete", err)
	}
	return text, nil
}

// EstimateTokens approximates the token count at four bytes per token.
func (c *Client) EstimateTokens(text string) (int, error) { return EstimateTokens(text), nil }

// GetModel returns the default model.
func (c *Client) GetModel() string { return c.core.GetModel() }

// EstimateTokens approximates the token count of text.
func EstimateTokens(text string) int { return (len(text) + 3) / 4 }

// ProviderFactory creates a provider from configuration.
type ProviderFactory func(ClientConfig) (CoreLLM, error)

var (
	providersMu sync.RWMutex
	providers   = map[string]ProviderFactory{}
)

// RegisterProvider makes a provider available to NewClient.
func RegisterProvider(name string, factory ProviderFactory) {
	providersMu.Lock()
	defer providersMu.Unlock()
	providers[name] = factory
}

// Providers lists the registered provider names in sorted order.
func Providers() []string {
	providersMu.RLock()
	defer providersMu.RUnlock()
	return slices.Sorted(maps.Keys(providers))
}

func lookupProvider(name string) (ProviderFactory, bool) {
	providersMu.RLock()
	defer providersMu.RUnlock()
	f, ok := providers[name]
	return f, ok
}
