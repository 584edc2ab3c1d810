package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"
)

const (
	defaultAnalysisTimeout  = 30 * time.Second
	defaultAnalysisCacheTTL = 24 * time.Hour
	analysisCachePrefix     = "analysis:v1"
)

// ErrMissingCredentials means the model API key is absent or was rejected.
var ErrMissingCredentials = errors.New("analysis credentials not configured")

var (
	// MissingKeyAnalysis is shown when the deployment has no model API key.
	MissingKeyAnalysis = AnalysisResult{
		Prediction:   "缺少 API 密钥",
		Sentiment:    SentimentNeutral,
		AnalysisText: "请配置您的 API 密钥以获取实时 AI 录用预测。",
	}
	// UnavailableAnalysis is shown when the model call fails for any reason.
	UnavailableAnalysis = AnalysisResult{
		Prediction:   "分析暂时不可用",
		Sentiment:    SentimentNeutral,
		AnalysisText: "暂时无法生成 AI 预测。通常来说，平均分高于 3.5 的论文有不错的录用机会。",
	}

	englishFallbacks = Fallbacks{
		MissingKey: AnalysisResult{
			Prediction:   "Missing API key",
			Sentiment:    SentimentNeutral,
			AnalysisText: "Configure an API key to get a live AI acceptance prediction.",
		},
		Unavailable: AnalysisResult{
			Prediction:   "Analysis temporarily unavailable",
			Sentiment:    SentimentNeutral,
			AnalysisText: "An AI prediction could not be generated right now. Papers averaging above 3.5 usually have a fair chance of acceptance.",
		},
	}
)

// Fallbacks are the fixed results used when the model gives no usable answer.
type Fallbacks struct {
	MissingKey  AnalysisResult
	Unavailable AnalysisResult
}

// English comes first so languages without their own texts match it.
var fallbackTags = []language.Tag{language.English, language.SimplifiedChinese}

var fallbackMatcher = language.NewMatcher(fallbackTags)

// FallbacksFor returns the fallback texts for the analysis language. Simplified
// Chinese and English have their own texts; any other language gets English.
func FallbacksFor(tag language.Tag) Fallbacks {
	_, i, _ := fallbackMatcher.Match(tag)
	if fallbackTags[i] == language.SimplifiedChinese {
		return Fallbacks{MissingKey: MissingKeyAnalysis, Unavailable: UnavailableAnalysis}
	}
	return englishFallbacks
}

// AnalysisService wraps the analysis gateway with caching, a timeout and
// fixed fallbacks. It never returns an error to callers.
type AnalysisService struct {
	gateway   AnalysisGateway
	cache     Cacher
	sfGroup   singleflight.Group
	cacheTTL  time.Duration
	timeout   time.Duration
	logger    *zap.Logger
	metrics   MetricsRecorder
	fallbacks Fallbacks
}

type AnalysisOption func(*AnalysisService)

func WithAnalysisCache(c Cacher, ttl time.Duration) AnalysisOption {
	return func(a *AnalysisService) {
		a.cache = c
		if ttl > 0 {
			a.cacheTTL = ttl
		}
	}
}

func WithAnalysisTimeout(d time.Duration) AnalysisOption {
	return func(a *AnalysisService) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithAnalysisLanguage picks the fallback texts for tag. The default is
// Simplified Chinese.
func WithAnalysisLanguage(tag language.Tag) AnalysisOption {
	return func(a *AnalysisService) {
		a.fallbacks = FallbacksFor(tag)
	}
}

func WithAnalysisMetrics(m MetricsRecorder) AnalysisOption {
	return func(a *AnalysisService) {
		if m != nil {
			a.metrics = m
		}
	}
}

// NewAnalysisService creates an AnalysisService. A nil gateway is allowed and
// means every request resolves to the missing-key fallback.
func NewAnalysisService(gateway AnalysisGateway, logger *zap.Logger, opts ...AnalysisOption) *AnalysisService {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &AnalysisService{
		gateway:   gateway,
		cache:     nopCache{},
		cacheTTL:  defaultAnalysisCacheTTL,
		timeout:   defaultAnalysisTimeout,
		logger:    logger.Named("analysis"),
		metrics:   nopMetrics{},
		fallbacks: Fallbacks{MissingKey: MissingKeyAnalysis, Unavailable: UnavailableAnalysis},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func analysisCacheKey(scores []int) string {
	parts := make([]string, len(scores))
	for i, s := range scores {
		parts[i] = strconv.Itoa(s)
	}
	return analysisCachePrefix + ":" + strings.Join(parts, ",")
}

// Analyze returns the model's judgment for sub, or a fallback.
func (a *AnalysisService) Analyze(ctx context.Context, sub Submission) AnalysisResult {
	if a.gateway == nil {
		a.logger.Warn("no analysis gateway configured, returning placeholder")
		a.metrics.AnalysisOutcome("missing_credentials")
		return a.fallbacks.MissingKey
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	key := analysisCacheKey(sub.Scores)
	res, err := FindAndCache(ctx, a.cache, &a.sfGroup, key, a.cacheTTL, a.logger, func(fetchCtx context.Context) (AnalysisResult, error) {
		return a.gateway.Analyze(fetchCtx, sub.Scores, sub.Average)
	})
	switch {
	case errors.Is(err, ErrMissingCredentials):
		a.metrics.AnalysisOutcome("missing_credentials")
		return a.fallbacks.MissingKey
	case err != nil:
		a.logger.Error("analysis request failed", zap.Ints("scores", sub.Scores), zap.Error(err))
		a.metrics.AnalysisOutcome("error")
		return a.fallbacks.Unavailable
	}

	a.metrics.AnalysisOutcome("success")
	return res
}

// Start runs Analyze in the background and returns a handle to its result.
func (a *AnalysisService) Start(sub Submission) *AnalysisTask {
	t := &AnalysisTask{done: make(chan struct{})}
	go func() {
		defer close(t.done)
		t.result = a.Analyze(context.Background(), sub)
	}()
	return t
}

// AnalysisTask is a pending analysis for one submission.
type AnalysisTask struct {
	done   chan struct{}
	result AnalysisResult
}

// Result returns the analysis if it has resolved.
func (t *AnalysisTask) Result() (AnalysisResult, bool) {
	select {
	case <-t.done:
		return t.result, true
	default:
		return AnalysisResult{}, false
	}
}

// Wait blocks until the analysis resolves or ctx ends.
func (t *AnalysisTask) Wait(ctx context.Context) (AnalysisResult, error) {
	select {
	case <-t.done:
		return t.result, nil
	case <-ctx.Done():
		return AnalysisResult{}, ctx.Err()
	}
}
