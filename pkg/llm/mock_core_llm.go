package llm

import (
	"context"
	"sync"
	"time"
)

// MockCoreLLM is a scripted CoreLLM for tests.
type MockCoreLLM struct {
	mu sync.Mutex

	Response      string
	Err           error
	ResponseDelay time.Duration
	Model         string

	Prompts []string
	Options []RequestOptions
}

// NewMockCoreLLM returns a mock that answers with an empty JSON object.
func NewMockCoreLLM() *MockCoreLLM {
	return &MockCoreLLM{Response: "{}", Model: "mock-model"}
}

func (m *MockCoreLLM) DoRequest(ctx context.Context, prompt string, opts RequestOptions) (string, error) {
	m.mu.Lock()
	m.Prompts = append(m.Prompts, prompt)
	m.Options = append(m.Options, opts)
	resp, err, delay := m.Response, m.Err, m.ResponseDelay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return resp, nil
}

func (m *MockCoreLLM) GetModel() string { return m.Model }

// CallCount returns the number of DoRequest calls.
func (m *MockCoreLLM) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Prompts)
}
