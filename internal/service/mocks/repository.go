package mocks

import (
	"context"
	"errors"
	"sync"

	"github.com/godilite/score-stats/internal/service"
)

// MockPersistenceGateway is a mock implementation of the PersistenceGateway
// interface for testing the service layer.
type MockPersistenceGateway struct {
	FetchFunc  func(ctx context.Context) (service.Dataset, error)
	SubmitFunc func(ctx context.Context, sub service.Submission) (service.Dataset, error)

	mu          sync.Mutex
	FetchCalls  int
	SubmitCalls int
}

// Fetch implements the PersistenceGateway interface
func (m *MockPersistenceGateway) Fetch(ctx context.Context) (service.Dataset, error) {
	m.mu.Lock()
	m.FetchCalls++
	m.mu.Unlock()
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx)
	}
	return service.Dataset{}, errors.New("FetchFunc not implemented")
}

// Submit implements the PersistenceGateway interface
func (m *MockPersistenceGateway) Submit(ctx context.Context, sub service.Submission) (service.Dataset, error) {
	m.mu.Lock()
	m.SubmitCalls++
	m.mu.Unlock()
	if m.SubmitFunc != nil {
		return m.SubmitFunc(ctx, sub)
	}
	return service.Dataset{}, errors.New("SubmitFunc not implemented")
}

// MockAnalysisGateway is a mock implementation of the AnalysisGateway interface.
type MockAnalysisGateway struct {
	AnalyzeFunc func(ctx context.Context, scores []int, average float64) (service.AnalysisResult, error)

	mu    sync.Mutex
	Calls int
}

// Analyze implements the AnalysisGateway interface
func (m *MockAnalysisGateway) Analyze(ctx context.Context, scores []int, average float64) (service.AnalysisResult, error) {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	if m.AnalyzeFunc != nil {
		return m.AnalyzeFunc(ctx, scores, average)
	}
	return service.AnalysisResult{}, errors.New("AnalyzeFunc not implemented")
}

// CallCount returns the number of Analyze calls so far.
func (m *MockAnalysisGateway) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

// MockMetrics records every signal it receives.
type MockMetrics struct {
	mu       sync.Mutex
	Dropped  map[string]int
	Failures map[string]int
	Degraded int
	Analysis map[string]int
}

func NewMockMetrics() *MockMetrics {
	return &MockMetrics{
		Dropped:  make(map[string]int),
		Failures: make(map[string]int),
		Analysis: make(map[string]int),
	}
}

func (m *MockMetrics) DroppedValues(kind string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Dropped[kind] += n
}

func (m *MockMetrics) GatewayFailure(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Failures[op]++
}

func (m *MockMetrics) DegradedSubmission() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Degraded++
}

func (m *MockMetrics) AnalysisOutcome(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Analysis[outcome]++
}

// FailureCount returns the recorded failures for op.
func (m *MockMetrics) FailureCount(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Failures[op]
}
