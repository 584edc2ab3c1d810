package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/godilite/score-stats/internal/service"
	"github.com/godilite/score-stats/pkg/llm"
)

// ErrInvalidAnalysis is returned when the model's answer cannot be used.
var ErrInvalidAnalysis = errors.New("invalid analysis response")

const analysisSystemPrompt = "You are a senior area chair for CVPR (Computer Vision and Pattern Recognition Conference)."

const analysisPromptTemplate = `A paper has received the following review scores (scale 1-6, where 1=Strong Reject, 6=Strong Accept): [%s].
The average score is %s.

Please provide a brief assessment of the acceptance likelihood and a short encouraging or realistic comment.

IMPORTANT: Return the response in JSON format. The content of 'prediction' and 'analysisText' MUST BE IN %s.`

// LLMAnalysisGateway asks a language model for an acceptance assessment.
type LLMAnalysisGateway struct {
	core     llm.CoreLLM
	language language.Tag
	schema   *llm.Schema
}

// NewLLMAnalysisGateway builds a gateway answering in lang.
func NewLLMAnalysisGateway(core llm.CoreLLM, lang language.Tag) *LLMAnalysisGateway {
	name := LanguageName(lang)
	return &LLMAnalysisGateway{
		core:     core,
		language: lang,
		schema: &llm.Schema{Properties: []llm.Property{
			{
				Name:        "prediction",
				Description: fmt.Sprintf("Short phrase prediction in %s like %s.", name, predictionExamples(lang)),
				Required:    true,
			},
			{
				Name:        "sentiment",
				Description: "The overall sentiment of the situation.",
				Enum:        []string{string(service.SentimentPositive), string(service.SentimentNeutral), string(service.SentimentNegative)},
				Required:    true,
			},
			{
				Name:        "analysisText",
				Description: fmt.Sprintf("2-3 sentences analyzing the scores in %s.", name),
				Required:    true,
			},
		}},
	}
}

// predictionExamples shows the model the expected shape of a prediction. Only
// Chinese gets localized examples; other languages see the English labels.
func predictionExamples(lang language.Tag) string {
	if base, _ := lang.Base(); base.String() == "zh" {
		return "'很有希望 (Likely Accept)', '处于边缘 (Borderline)', '希望不大 (Likely Reject)'"
	}
	return "'Likely Accept', 'Borderline', 'Likely Reject'"
}

// LanguageName renders tag by its English display name, e.g. "Simplified Chinese".
func LanguageName(tag language.Tag) string {
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return tag.String()
}

// Prompt returns the user prompt sent for scores.
func (g *LLMAnalysisGateway) Prompt(scores []int, average float64) string {
	parts := make([]string, len(scores))
	for i, s := range scores {
		parts[i] = strconv.Itoa(s)
	}
	return fmt.Sprintf(analysisPromptTemplate,
		strings.Join(parts, ", "),
		strconv.FormatFloat(average, 'f', 2, 64),
		strings.ToUpper(LanguageName(g.language)),
	)
}

func (g *LLMAnalysisGateway) Analyze(ctx context.Context, scores []int, average float64) (service.AnalysisResult, error) {
	text, err := g.core.DoRequest(ctx, g.Prompt(scores, average), llm.RequestOptions{
		System:     analysisSystemPrompt,
		JSONSchema: g.schema,
	})
	if err != nil {
		if errors.Is(err, llm.ErrEmptyAPIKey) || errors.Is(err, llm.ErrUnauthorized) {
			return service.AnalysisResult{}, fmt.Errorf("%w: %v", service.ErrMissingCredentials, err)
		}
		return service.AnalysisResult{}, err
	}
	return ParseAnalysis(text)
}

// ParseAnalysis decodes a model answer. Code fences around the JSON are
// tolerated and the sentiment is normalised to lower case.
func ParseAnalysis(text string) (service.AnalysisResult, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	var res service.AnalysisResult
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &res); err != nil {
		return service.AnalysisResult{}, fmt.Errorf("%w: %v", ErrInvalidAnalysis, err)
	}

	res.Sentiment = service.Sentiment(strings.ToLower(strings.TrimSpace(string(res.Sentiment))))
	if !res.Sentiment.Valid() {
		return service.AnalysisResult{}, fmt.Errorf("%w: unknown sentiment %q", ErrInvalidAnalysis, res.Sentiment)
	}
	if res.Prediction == "" {
		return service.AnalysisResult{}, fmt.Errorf("%w: empty prediction", ErrInvalidAnalysis)
	}
	return res, nil
}
