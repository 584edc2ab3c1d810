package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIDefaultModel is the chat model used when none is configured.
const OpenAIDefaultModel = "gpt-4o-mini"

func init() {
	RegisterProviderFactory("openai", newOpenAIProvider)
}

type openAIProvider struct {
	client *openai.Client
	model  string
}

func newOpenAIProvider(cfg ClientConfig) (CoreLLM, error) {
	if cfg.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := cfg.Model
	if model == "" {
		model = OpenAIDefaultModel
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &openAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
	}, nil
}

func (p *openAIProvider) GetModel() string { return p.model }

// DoRequest sends a chat completion and returns the first choice's content.
func (p *openAIProvider) DoRequest(ctx context.Context, prompt string, opts RequestOptions) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.buildChatCompletionRequest(prompt, opts))
	if err != nil {
		return "", p.handleError(err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrNoResponseChoice
	}

	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}

func (p *openAIProvider) buildChatCompletionRequest(prompt string, opts RequestOptions) openai.ChatCompletionRequest {
	system := opts.System
	if opts.JSONSchema != nil {
		// JSON mode requires the word JSON in the messages.
		if system != "" {
			system += "\n\n"
		}
		system += opts.JSONSchema.Describe()
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	req := openai.ChatCompletionRequest{
		Model:     p.model,
		Messages:  messages,
		MaxTokens: maxTokens(opts),
	}
	if opts.Temperature != nil {
		req.Temperature = float32(clamp(*opts.Temperature, 0.0, 2.0))
	}
	if opts.JSONSchema != nil {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return req
}

func (p *openAIProvider) handleError(err error) error {
	if ctxErr := wrapContextError("openai", err); ctxErr != nil {
		return ctxErr
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%w: openai (%d): %w", ErrUnauthorized, apiErr.HTTPStatusCode, err)
		}
		return fmt.Errorf("openai API error (%d): %w", apiErr.HTTPStatusCode, err)
	}
	return fmt.Errorf("openai request failed: %w", err)
}
