package grpc

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/godilite/score-stats/internal/service"
	"github.com/godilite/score-stats/internal/service/mocks"
)

var testSeed = service.Dataset{
	TotalSubmissions: 2,
	AllAverages:      []float64{3, 4},
	AllRawScores:     []int{3, 3, 3, 4, 4, 4},
}

var testAnalysis = service.AnalysisResult{
	Prediction:   "很有希望 (Likely Accept)",
	Sentiment:    service.SentimentPositive,
	AnalysisText: "分数整体偏高。",
}

func appendingGateway() *mocks.MockPersistenceGateway {
	return &mocks.MockPersistenceGateway{
		FetchFunc: func(ctx context.Context) (service.Dataset, error) {
			return testSeed, nil
		},
		SubmitFunc: func(ctx context.Context, sub service.Submission) (service.Dataset, error) {
			return testSeed.WithSubmission(sub), nil
		},
	}
}

func newTestHandlers(t *testing.T, gw service.PersistenceGateway, analysis service.AnalysisGateway) *GRPCHandlers {
	t.Helper()

	logger := zap.NewNop()
	workflow := service.NewWorkflow(gw, service.NewAnalysisService(analysis, logger), testSeed, logger)
	t.Cleanup(workflow.Wait)
	return NewGRPCHandlers(workflow, logger, time.Second)
}

func request(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()

	req, err := structpb.NewStruct(fields)
	require.NoError(t, err)
	return req
}

func fillForm(t *testing.T, h *GRPCHandlers, session string, scores ...any) {
	t.Helper()

	for i, v := range scores {
		_, err := h.SetScore(context.Background(), request(t, map[string]any{"session_id": session, "index": i, "value": v}))
		require.NoError(t, err)
	}
}

func TestNewGRPCHandlers(t *testing.T) {
	t.Run("nil session store panics", func(t *testing.T) {
		assert.Panics(t, func() {
			NewGRPCHandlers(nil, zap.NewNop(), time.Second)
		})
	})

	t.Run("zero timeout uses default", func(t *testing.T) {
		w := service.NewWorkflow(appendingGateway(), nil, testSeed, zap.NewNop())
		h := NewGRPCHandlers(w, nil, 0)
		assert.Equal(t, defaultGRPCTimeout, h.timeout)
		assert.NotNil(t, h.logger)
	})
}

func TestSessionIDRequired(t *testing.T) {
	h := newTestHandlers(t, appendingGateway(), nil)

	_, err := h.Submit(context.Background(), request(t, map[string]any{}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Contains(t, err.Error(), "session_id")
}

func TestUnknownSession(t *testing.T) {
	logger := zap.NewNop()
	workflow := service.NewWorkflow(appendingGateway(), nil, testSeed, logger)
	h := NewGRPCHandlers(workflow, logger, time.Second)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		_, err := h.GetSession(ctx, request(t, map[string]any{"session_id": fmt.Sprintf("id-%d", i)}))
		assert.Equal(t, codes.NotFound, status.Code(err))
	}
	_, err := h.Submit(ctx, request(t, map[string]any{"session_id": "nobody"}))
	assert.Equal(t, codes.NotFound, status.Code(err))
	_, err = h.SubmitAnother(ctx, request(t, map[string]any{"session_id": "nobody"}))
	assert.Equal(t, codes.NotFound, status.Code(err))
	_, err = h.GetAnalysis(ctx, request(t, map[string]any{"session_id": "nobody"}))
	assert.Equal(t, codes.NotFound, status.Code(err))

	assert.Zero(t, workflow.Sessions(), "read-only calls must not create sessions")

	_, err = h.SetReviewerCount(ctx, request(t, map[string]any{"session_id": "someone", "count": 4}))
	require.NoError(t, err)
	resp, err := h.GetSession(ctx, request(t, map[string]any{"session_id": "someone"}))
	require.NoError(t, err)
	assert.Equal(t, 4.0, resp.GetFields()["form"].GetStructValue().GetFields()["reviewer_count"].GetNumberValue())
	assert.Equal(t, 1, workflow.Sessions())
}

func TestSetReviewerCount(t *testing.T) {
	h := newTestHandlers(t, appendingGateway(), nil)
	ctx := context.Background()

	resp, err := h.SetReviewerCount(ctx, request(t, map[string]any{"session_id": "a", "count": 4}))
	require.NoError(t, err)
	assert.Equal(t, 4.0, resp.GetFields()["reviewer_count"].GetNumberValue())
	assert.Len(t, resp.GetFields()["fields"].GetListValue().GetValues(), 4)

	tests := []struct {
		name  string
		count any
	}{
		{name: "unsupported count", count: 5},
		{name: "fractional", count: 3.5},
		{name: "not a number", count: "four"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.SetReviewerCount(ctx, request(t, map[string]any{"session_id": "a", "count": tt.count}))
			assert.Equal(t, codes.InvalidArgument, status.Code(err))
		})
	}
}

func TestSetScore(t *testing.T) {
	h := newTestHandlers(t, appendingGateway(), nil)
	ctx := context.Background()

	t.Run("live field error is part of the form", func(t *testing.T) {
		resp, err := h.SetScore(ctx, request(t, map[string]any{"session_id": "a", "index": 0, "value": "7"}))
		require.NoError(t, err)

		errs := resp.GetFields()["field_errors"].GetListValue().GetValues()
		require.Len(t, errs, 3)
		assert.Equal(t, service.ErrOutOfRange.Error(), errs[0].GetStringValue())
		assert.Empty(t, errs[1].GetStringValue())
	})

	t.Run("numeric values are accepted", func(t *testing.T) {
		resp, err := h.SetScore(ctx, request(t, map[string]any{"session_id": "a", "index": 1, "value": 5}))
		require.NoError(t, err)
		assert.Equal(t, "5", resp.GetFields()["fields"].GetListValue().GetValues()[1].GetStringValue())
	})

	t.Run("index out of range", func(t *testing.T) {
		_, err := h.SetScore(ctx, request(t, map[string]any{"session_id": "a", "index": 3, "value": "2"}))
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	})
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		h := newTestHandlers(t, appendingGateway(), nil)
		fillForm(t, h, "a", "5", "5", "4")

		resp, err := h.Submit(ctx, request(t, map[string]any{"session_id": "a"}))
		require.NoError(t, err)

		fields := resp.GetFields()
		assert.Equal(t, "result", fields["state"].GetStringValue())
		assert.False(t, fields["degraded"].GetBoolValue())
		assert.Equal(t, 4.67, fields["submission"].GetStructValue().GetFields()["average"].GetNumberValue())

		dist := fields["distribution"].GetStructValue().GetFields()
		assert.Equal(t, 3.0, dist["total"].GetNumberValue())
		assert.Equal(t, 7.0, dist["user_bucket"].GetNumberValue())
		buckets := dist["averages"].GetListValue().GetValues()
		require.Len(t, buckets, 9)
		assert.Equal(t, "4.51 - 5.0", buckets[7].GetStructValue().GetFields()["range"].GetStringValue())
		assert.Equal(t, 1.0, buckets[7].GetStructValue().GetFields()["count"].GetNumberValue())
		assert.Len(t, dist["raw_scores"].GetListValue().GetValues(), 6)
	})

	t.Run("degraded on gateway failure", func(t *testing.T) {
		gw := appendingGateway()
		gw.SubmitFunc = func(ctx context.Context, sub service.Submission) (service.Dataset, error) {
			return service.Dataset{}, errors.New("503")
		}
		h := newTestHandlers(t, gw, nil)
		fillForm(t, h, "a", "1", "1", "1")

		resp, err := h.Submit(ctx, request(t, map[string]any{"session_id": "a"}))
		require.NoError(t, err)
		assert.True(t, resp.GetFields()["degraded"].GetBoolValue())
		assert.Equal(t, service.DegradedWarning, resp.GetFields()["warning"].GetStringValue())
	})

	t.Run("incomplete form", func(t *testing.T) {
		h := newTestHandlers(t, appendingGateway(), nil)
		fillForm(t, h, "a", "5", "5")

		_, err := h.Submit(ctx, request(t, map[string]any{"session_id": "a"}))
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
		assert.Contains(t, err.Error(), service.ErrFieldsRequired.Error())
	})

	t.Run("second submit is rejected", func(t *testing.T) {
		h := newTestHandlers(t, appendingGateway(), nil)
		fillForm(t, h, "a", "3", "3", "3")

		_, err := h.Submit(ctx, request(t, map[string]any{"session_id": "a"}))
		require.NoError(t, err)
		_, err = h.Submit(ctx, request(t, map[string]any{"session_id": "a"}))
		assert.Equal(t, codes.FailedPrecondition, status.Code(err))

		_, err = h.SetScore(ctx, request(t, map[string]any{"session_id": "a", "index": 0, "value": "2"}))
		assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	})

	t.Run("sessions are independent", func(t *testing.T) {
		h := newTestHandlers(t, appendingGateway(), nil)
		fillForm(t, h, "a", "3", "3", "3")
		_, err := h.SetReviewerCount(ctx, request(t, map[string]any{"session_id": "b", "count": 3}))
		require.NoError(t, err)

		resp, err := h.GetSession(ctx, request(t, map[string]any{"session_id": "b"}))
		require.NoError(t, err)
		assert.Equal(t, "awaiting_input", resp.GetFields()["state"].GetStringValue())
		fieldsB := resp.GetFields()["form"].GetStructValue().GetFields()["fields"].GetListValue().GetValues()
		assert.Empty(t, fieldsB[0].GetStringValue())
	})
}

func TestSubmitAnother(t *testing.T) {
	h := newTestHandlers(t, appendingGateway(), nil)
	ctx := context.Background()

	fillForm(t, h, "a", "2", "2", "2")
	_, err := h.SubmitAnother(ctx, request(t, map[string]any{"session_id": "a"}))
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	_, err = h.Submit(ctx, request(t, map[string]any{"session_id": "a"}))
	require.NoError(t, err)

	resp, err := h.SubmitAnother(ctx, request(t, map[string]any{"session_id": "a"}))
	require.NoError(t, err)
	assert.Equal(t, "awaiting_input", resp.GetFields()["state"].GetStringValue())
	assert.Equal(t, 3.0, resp.GetFields()["reviewer_count"].GetNumberValue())

	sess, err := h.GetSession(ctx, request(t, map[string]any{"session_id": "a"}))
	require.NoError(t, err)
	_, hasResult := sess.GetFields()["result"]
	assert.False(t, hasResult)
}

func TestGetAnalysis(t *testing.T) {
	ctx := context.Background()

	t.Run("before submit", func(t *testing.T) {
		h := newTestHandlers(t, appendingGateway(), nil)
		fillForm(t, h, "a", "5")
		_, err := h.GetAnalysis(ctx, request(t, map[string]any{"session_id": "a"}))
		assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	})

	t.Run("loading then resolved", func(t *testing.T) {
		release := make(chan struct{})
		analysis := &mocks.MockAnalysisGateway{
			AnalyzeFunc: func(ctx context.Context, scores []int, average float64) (service.AnalysisResult, error) {
				<-release
				return testAnalysis, nil
			},
		}
		h := newTestHandlers(t, appendingGateway(), analysis)
		fillForm(t, h, "a", "5", "5", "4")
		_, err := h.Submit(ctx, request(t, map[string]any{"session_id": "a"}))
		require.NoError(t, err)

		resp, err := h.GetAnalysis(ctx, request(t, map[string]any{"session_id": "a"}))
		require.NoError(t, err)
		assert.True(t, resp.GetFields()["loading"].GetBoolValue())

		close(release)
		resp, err = h.GetAnalysis(ctx, request(t, map[string]any{"session_id": "a", "wait": true}))
		require.NoError(t, err)
		fields := resp.GetFields()
		assert.False(t, fields["loading"].GetBoolValue())
		assert.Equal(t, testAnalysis.Prediction, fields["prediction"].GetStringValue())
		assert.Equal(t, "positive", fields["sentiment"].GetStringValue())
		assert.Equal(t, testAnalysis.AnalysisText, fields["analysis_text"].GetStringValue())
	})

	t.Run("missing credentials fallback", func(t *testing.T) {
		h := newTestHandlers(t, appendingGateway(), nil)
		fillForm(t, h, "a", "5", "5", "4")
		_, err := h.Submit(ctx, request(t, map[string]any{"session_id": "a"}))
		require.NoError(t, err)

		resp, err := h.GetAnalysis(ctx, request(t, map[string]any{"session_id": "a", "wait": true}))
		require.NoError(t, err)
		assert.Equal(t, service.MissingKeyAnalysis.Prediction, resp.GetFields()["prediction"].GetStringValue())
		assert.Equal(t, "neutral", resp.GetFields()["sentiment"].GetStringValue())
	})

	t.Run("wait honours the request deadline", func(t *testing.T) {
		analysis := &mocks.MockAnalysisGateway{
			AnalyzeFunc: func(ctx context.Context, scores []int, average float64) (service.AnalysisResult, error) {
				<-ctx.Done()
				return service.AnalysisResult{}, ctx.Err()
			},
		}
		h := newTestHandlers(t, appendingGateway(), analysis)
		fillForm(t, h, "a", "5", "5", "4")
		_, err := h.Submit(ctx, request(t, map[string]any{"session_id": "a"}))
		require.NoError(t, err)

		shortCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		_, err = h.GetAnalysis(shortCtx, request(t, map[string]any{"session_id": "a", "wait": true}))
		assert.Equal(t, codes.DeadlineExceeded, status.Code(err))
	})
}

func TestHandleError(t *testing.T) {
	h := newTestHandlers(t, appendingGateway(), nil)

	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		ctx  context.Context
		err  error
		want codes.Code
	}{
		{name: "validation", ctx: context.Background(), err: service.ErrNotInteger, want: codes.InvalidArgument},
		{name: "state", ctx: context.Background(), err: service.ErrInvalidState, want: codes.FailedPrecondition},
		{name: "canceled context", ctx: canceled, err: errors.New("x"), want: codes.Canceled},
		{name: "wrapped deadline", ctx: context.Background(), err: context.DeadlineExceeded, want: codes.DeadlineExceeded},
		{name: "unexpected", ctx: context.Background(), err: errors.New("boom"), want: codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, status.Code(h.handleError(tt.ctx, "op", tt.err)))
		})
	}
}
