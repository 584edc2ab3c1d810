// Package llm provides a small provider-neutral interface over the language
// model SDKs used for score analysis. Providers register themselves by name
// and are wrapped with middleware for cross-cutting concerns such as rate
// limiting.
//
//	core, err := llm.NewProvider("google", llm.ClientConfig{
//	    APIKey: os.Getenv("API_KEY"),
//	    Middleware: []llm.Middleware{llm.RateLimitMiddleware(2, 4)},
//	})
//	text, err := core.DoRequest(ctx, prompt, llm.RequestOptions{JSONSchema: schema})
package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Common errors returned by providers.
var (
	// ErrEmptyAPIKey indicates that an API key was required but not provided.
	ErrEmptyAPIKey = errors.New("API key cannot be empty")
	// ErrEmptyResponse indicates that the provider returned no text.
	ErrEmptyResponse = errors.New("empty response from API")
	// ErrNoResponseChoice indicates that the provider's response contained no choices.
	ErrNoResponseChoice = errors.New("no response choices returned")
	// ErrUnknownProvider indicates that no factory is registered under the name.
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrUnauthorized indicates that the provider rejected the API key.
	ErrUnauthorized = errors.New("API key rejected")
)

// DefaultMaxTokens caps output length when the caller does not.
const DefaultMaxTokens = 1024

// CoreLLM is the minimal interface every provider implements.
type CoreLLM interface {
	// DoRequest sends prompt and returns the model's text output.
	DoRequest(ctx context.Context, prompt string, opts RequestOptions) (string, error)
	// GetModel returns the model used for requests.
	GetModel() string
}

// RequestOptions are the provider-neutral request parameters.
type RequestOptions struct {
	// System carries instructions that frame the whole exchange.
	System string
	// MaxTokens limits generated output. Zero means DefaultMaxTokens.
	MaxTokens int
	// Temperature is left to the provider default when nil.
	Temperature *float64
	// JSONSchema asks for a JSON object of this shape. Providers without
	// native schema support fall back to JSON mode plus instructions.
	JSONSchema *Schema
}

// Schema is a flat JSON object description.
type Schema struct {
	Properties []Property
}

// Property is one string field of a Schema.
type Property struct {
	Name        string
	Description string
	Enum        []string
	Required    bool
}

// RequiredNames returns the names of required properties in declaration order.
func (s *Schema) RequiredNames() []string {
	var out []string
	for _, p := range s.Properties {
		if p.Required {
			out = append(out, p.Name)
		}
	}
	return out
}

// Describe renders the schema as an instruction for providers that cannot
// enforce it.
func (s *Schema) Describe() string {
	desc := "Respond with a single JSON object with these string fields:"
	for _, p := range s.Properties {
		desc += fmt.Sprintf("\n- %q: %s", p.Name, p.Description)
		if len(p.Enum) > 0 {
			desc += fmt.Sprintf(" One of %q.", p.Enum)
		}
	}
	return desc
}

// ClientConfig holds the settings used to build a provider.
type ClientConfig struct {
	APIKey string
	// Model defaults to the provider's default model when empty.
	Model string
	// BaseURL overrides the provider endpoint.
	BaseURL string
	// Timeout bounds individual HTTP requests where the SDK allows it.
	Timeout time.Duration
	// Middleware is applied so that the first entry is outermost.
	Middleware []Middleware
}

// Middleware wraps a CoreLLM to add behaviour without touching providers.
type Middleware func(CoreLLM) CoreLLM

// ProviderFactory builds a provider from configuration.
type ProviderFactory func(ClientConfig) (CoreLLM, error)

var (
	factoriesMu       sync.RWMutex
	providerFactories = map[string]ProviderFactory{}
)

// RegisterProviderFactory makes a provider available to NewProvider.
func RegisterProviderFactory(name string, factory ProviderFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	providerFactories[name] = factory
}

// Providers lists the registered provider names.
func Providers() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(providerFactories))
	for name := range providerFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewProvider builds the named provider and wraps it with cfg.Middleware.
func NewProvider(name string, cfg ClientConfig) (CoreLLM, error) {
	if cfg.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	factoriesMu.RLock()
	factory, ok := providerFactories[name]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}

	core, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider %s: %w", name, err)
	}

	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		core = cfg.Middleware[i](core)
	}
	return core, nil
}

func maxTokens(opts RequestOptions) int {
	if opts.MaxTokens > 0 {
		return opts.MaxTokens
	}
	return DefaultMaxTokens
}

// clamp restricts a float64 value to a specified range.
func clamp(val, lo, hi float64) float64 {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}

// wrapContextError keeps context errors matchable with errors.Is.
func wrapContextError(provider string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s request timeout: %w", provider, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s request canceled: %w", provider, err)
	}
	return nil
}
