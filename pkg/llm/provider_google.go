package llm

import (
	"context"
	"fmt"
	"math"

	"google.golang.org/genai"
)

// GoogleDefaultModel is the Gemini model used when none is configured.
const GoogleDefaultModel = "gemini-2.0-flash"

func init() {
	RegisterProviderFactory("google", newGoogleProvider)
}

// googleProvider talks to the Gemini API. It is the only provider that can
// enforce a response schema natively.
type googleProvider struct {
	client *genai.Client
	model  string
}

func newGoogleProvider(cfg ClientConfig) (CoreLLM, error) {
	if cfg.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := cfg.Model
	if model == "" {
		model = GoogleDefaultModel
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(context.Background(), clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google client: %w", err)
	}

	return &googleProvider{client: client, model: model}, nil
}

func (p *googleProvider) GetModel() string { return p.model }

// DoRequest calls GenerateContent and returns the aggregated response text.
func (p *googleProvider) DoRequest(ctx context.Context, prompt string, opts RequestOptions) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, p.buildGenerationConfig(opts))
	if err != nil {
		if ctxErr := wrapContextError("google", err); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("google request failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (p *googleProvider) buildGenerationConfig(opts RequestOptions) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}

	if opts.System != "" {
		config.SystemInstruction = genai.NewContentFromText(opts.System, genai.RoleUser)
	}

	tokens := maxTokens(opts)
	if tokens > math.MaxInt32 {
		tokens = math.MaxInt32
	}
	config.MaxOutputTokens = int32(tokens)

	if opts.Temperature != nil {
		// Gemini accepts 0.0 to 2.0.
		config.Temperature = genai.Ptr(float32(clamp(*opts.Temperature, 0.0, 2.0)))
	}

	if opts.JSONSchema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = toGenaiSchema(opts.JSONSchema)
	}

	return config
}

func toGenaiSchema(s *Schema) *genai.Schema {
	props := make(map[string]*genai.Schema, len(s.Properties))
	for _, p := range s.Properties {
		props[p.Name] = &genai.Schema{
			Type:        genai.TypeString,
			Description: p.Description,
			Enum:        p.Enum,
		}
	}
	return &genai.Schema{
		Type:       genai.TypeObject,
		Properties: props,
		Required:   s.RequiredNames(),
	}
}
