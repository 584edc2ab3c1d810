package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicDefaultModel is the Claude model used when none is configured.
const AnthropicDefaultModel = "claude-3-5-haiku-latest"

func init() {
	RegisterProviderFactory("anthropic", newAnthropicProvider)
}

type anthropicProvider struct {
	client anthropic.Client
	model  string
}

func newAnthropicProvider(cfg ClientConfig) (CoreLLM, error) {
	if cfg.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := cfg.Model
	if model == "" {
		model = AnthropicDefaultModel
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &anthropicProvider{
		client: anthropic.NewClient(opts...),
		model:  model,
	}, nil
}

func (p *anthropicProvider) GetModel() string { return p.model }

// DoRequest sends a Messages request and concatenates the text blocks.
func (p *anthropicProvider) DoRequest(ctx context.Context, prompt string, opts RequestOptions) (string, error) {
	message, err := p.client.Messages.New(ctx, p.buildParams(prompt, opts))
	if err != nil {
		return "", p.wrapError(err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		switch content := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(content.Text)
		}
	}

	if text.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return text.String(), nil
}

func (p *anthropicProvider) buildParams(prompt string, opts RequestOptions) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(maxTokens(opts)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	if opts.Temperature != nil {
		// Anthropic accepts 0.0 to 1.0.
		params.Temperature = anthropic.Float(clamp(*opts.Temperature, 0.0, 1.0))
	}

	system := opts.System
	if opts.JSONSchema != nil {
		if system != "" {
			system += "\n\n"
		}
		system += opts.JSONSchema.Describe() + "\nOutput only the JSON object."
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	return params
}

func (p *anthropicProvider) wrapError(err error) error {
	if ctxErr := wrapContextError("anthropic", err); ctxErr != nil {
		return ctxErr
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 401:
			return fmt.Errorf("%w: anthropic authentication failed (%d): %w", ErrUnauthorized, apiErr.StatusCode, err)
		case 429:
			return fmt.Errorf("anthropic rate limit exceeded: %w", err)
		default:
			return fmt.Errorf("anthropic API error (%d): %w", apiErr.StatusCode, err)
		}
	}
	return fmt.Errorf("anthropic request failed: %w", err)
}
