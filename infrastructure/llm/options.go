package llm

import "math"

// DefaultMaxTokens is used when a request does not set max_tokens.
const DefaultMaxTokens = 1024

// RequestOptions is the provider-neutral view of the options map passed to
// Complete.
type RequestOptions struct {
	Model       string
	MaxTokens   int
	Temperature *float64
	TopP        *float64
	System      string
}

// ParseRequestOptions reads the recognised keys of opts. Values of the
// wrong type or outside their range are ignored in favour of defaults.
func ParseRequestOptions(opts map[string]any, defaultModel string) RequestOptions {
	o := RequestOptions{Model: defaultModel, MaxTokens: DefaultMaxTokens}
	if m, ok := opts["model"].(string); ok && m != "" {
		o.Model = m
	}
	if n, ok := toInt(opts["max_tokens"]); ok && n > 0 {
		o.MaxTokens = n
	}
	if s, ok := opts["system"].(string); ok {
		o.System = s
	}
	if t, ok := toFloat(opts["temperature"]); ok && t >= 0 && t <= 2 {
		o.Temperature = &t
	}
	if p, ok := toFloat(opts["top_p"]); ok && p >= 0 && p <= 1 {
		o.TopP = &p
	}
	return o
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, !math.IsNaN(x)
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	}
	return 0, false
}

func toInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		if x > math.MaxInt32 {
			return math.MaxInt32, true
		}
		return int(x), true
	case float64:
		if x != math.Trunc(x) {
			return 0, false
		}
		return int(x), true
	}
	return 0, false
}
