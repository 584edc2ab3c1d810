package service

import (
	"context"
	"time"
)

// PersistenceGateway is the service of record for all submissions.
type PersistenceGateway interface {
	Fetch(ctx context.Context) (Dataset, error)
	// Submit stores sub and returns the updated dataset including it.
	Submit(ctx context.Context, sub Submission) (Dataset, error)
}

// AnalysisGateway produces a model-written judgment for one set of scores.
type AnalysisGateway interface {
	Analyze(ctx context.Context, scores []int, average float64) (AnalysisResult, error)
}

// Cacher defines the interface for cache operations.
type Cacher interface {
	Close() error
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}

// MetricsRecorder receives operational signals from the workflow.
type MetricsRecorder interface {
	DroppedValues(kind string, n int)
	GatewayFailure(op string)
	DegradedSubmission()
	AnalysisOutcome(outcome string)
}

type nopMetrics struct{}

func (nopMetrics) DroppedValues(string, int) {}
func (nopMetrics) GatewayFailure(string) {}
func (nopMetrics) DegradedSubmission() {}
func (nopMetrics) AnalysisOutcome(string) {}
