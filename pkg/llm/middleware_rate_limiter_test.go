package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestRateLimitMiddleware_AllowsRequestsWithinLimit(t *testing.T) {
	mock := NewMockCoreLLM()
	wrapped := RateLimitMiddleware(rate.Limit(10), 1)(mock)

	resp, err := wrapped.DoRequest(context.Background(), "test prompt", RequestOptions{})
	require.NoError(t, err)
	assert.Equal(t, "{}", resp)
	assert.Equal(t, 1, mock.CallCount())
	assert.Equal(t, "mock-model", wrapped.GetModel())
}

func TestRateLimitMiddleware_DelaysRequestsExceedingRate(t *testing.T) {
	mock := NewMockCoreLLM()
	wrapped := RateLimitMiddleware(rate.Limit(5), 1)(mock)
	ctx := context.Background()

	_, err := wrapped.DoRequest(ctx, "first", RequestOptions{})
	require.NoError(t, err)

	start := time.Now()
	_, err = wrapped.DoRequest(ctx, "second", RequestOptions{})
	require.NoError(t, err)
	assert.Greater(t, time.Since(start), 150*time.Millisecond)
	assert.Equal(t, 2, mock.CallCount())
}

func TestRateLimitMiddleware_ContextCancellation(t *testing.T) {
	mock := NewMockCoreLLM()
	wrapped := RateLimitMiddleware(rate.Limit(0.1), 1)(mock)

	_, err := wrapped.DoRequest(context.Background(), "first", RequestOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = wrapped.DoRequest(ctx, "second", RequestOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
	assert.Equal(t, 1, mock.CallCount())
}
