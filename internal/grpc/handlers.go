package grpc

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/godilite/score-stats/internal/service"
)

const defaultGRPCTimeout = 30 * time.Second

type GRPCHandlers struct {
	sessions SessionStore
	logger   *zap.Logger
	timeout  time.Duration
}

var _ ScoreStatsServer = (*GRPCHandlers)(nil)

// NewGRPCHandlers initializes the gRPC handlers. A non-positive timeout uses
// the default request timeout.
func NewGRPCHandlers(sessions SessionStore, logger *zap.Logger, timeout time.Duration) *GRPCHandlers {
	if sessions == nil {
		panic("nil SessionStore provided to NewGRPCHandlers")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = defaultGRPCTimeout
	}
	return &GRPCHandlers{
		sessions: sessions,
		logger:   logger.Named("grpc-handler"),
		timeout:  timeout,
	}
}

// session returns the caller's session, creating it. Only calls that edit the
// form may create one.
func (s *GRPCHandlers) session(req *structpb.Struct) (*service.Session, error) {
	sess, err := s.sessions.Session(stringField(req, "session_id"))
	if err != nil {
		return nil, sessionError(err)
	}
	return sess, nil
}

func (s *GRPCHandlers) existingSession(req *structpb.Struct) (*service.Session, error) {
	sess, err := s.sessions.Lookup(stringField(req, "session_id"))
	if err != nil {
		return nil, sessionError(err)
	}
	return sess, nil
}

func sessionError(err error) error {
	switch {
	case errors.Is(err, service.ErrEmptySessionID):
		return status.Error(codes.InvalidArgument, "session_id is required")
	case errors.Is(err, service.ErrSessionNotFound):
		return status.Error(codes.NotFound, "session not found or expired")
	default:
		return status.Errorf(codes.Internal, "session lookup failed: %v", err)
	}
}

func (s *GRPCHandlers) handleError(ctx context.Context, op string, err error) error {
	switch ctx.Err() {
	case context.Canceled:
		s.logger.Warn("request canceled", zap.String("op", op))
		return status.Error(codes.Canceled, "request canceled")
	case context.DeadlineExceeded:
		s.logger.Warn("request timeout", zap.String("op", op))
		return status.Error(codes.DeadlineExceeded, "request timed out")
	}

	switch {
	case service.IsValidationError(err):
		s.logger.Debug("invalid input", zap.String("op", op), zap.Error(err))
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, service.ErrInvalidState):
		s.logger.Debug("invalid state", zap.String("op", op), zap.Error(err))
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request timed out")
	default:
		s.logger.Error("unexpected error", zap.String("op", op), zap.Error(err))
		return status.Errorf(codes.Internal, "%s failed: %v", op, err)
	}
}

// GetSession returns the form and, once submitted, the result view.
func (s *GRPCHandlers) GetSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sess, err := s.existingSession(req)
	if err != nil {
		return nil, err
	}

	out := map[string]any{"form": formToMap(sess.Form())}
	if res, ok := sess.Result(); ok {
		out["result"] = resultToMap(res)
	}
	out["state"] = sess.State().String()
	return toStruct(out)
}

func (s *GRPCHandlers) SetReviewerCount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sess, err := s.session(req)
	if err != nil {
		return nil, err
	}
	n, err := intField(req, "count")
	if err != nil {
		return nil, err
	}

	form, err := sess.SetReviewerCount(n)
	if err != nil {
		return nil, s.handleError(ctx, "SetReviewerCount", err)
	}
	return toStruct(formToMap(form))
}

// SetScore stores one raw field. A field-level validation problem is part of
// the returned form rather than an RPC error.
func (s *GRPCHandlers) SetScore(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sess, err := s.session(req)
	if err != nil {
		return nil, err
	}
	i, err := intField(req, "index")
	if err != nil {
		return nil, err
	}

	form, err := sess.SetScore(i, scoreField(req, "value"))
	if err != nil && (errors.Is(err, service.ErrFieldIndex) || errors.Is(err, service.ErrInvalidState)) {
		return nil, s.handleError(ctx, "SetScore", err)
	}
	return toStruct(formToMap(form))
}

func (s *GRPCHandlers) Submit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sess, err := s.existingSession(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	view, err := sess.Submit(ctx)
	if err != nil {
		return nil, s.handleError(ctx, "Submit", err)
	}
	return toStruct(resultToMap(view))
}

func (s *GRPCHandlers) SubmitAnother(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sess, err := s.existingSession(req)
	if err != nil {
		return nil, err
	}

	form, err := sess.SubmitAnother()
	if err != nil {
		return nil, s.handleError(ctx, "SubmitAnother", err)
	}
	return toStruct(formToMap(form))
}

// GetAnalysis reports the analysis for the current result. With wait set it
// blocks until the analysis resolves or the request ends; otherwise a pending
// analysis is reported as loading.
func (s *GRPCHandlers) GetAnalysis(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sess, err := s.existingSession(req)
	if err != nil {
		return nil, err
	}

	task, err := sess.Analysis()
	if err != nil {
		return nil, s.handleError(ctx, "GetAnalysis", err)
	}

	if !boolField(req, "wait") {
		res, ok := task.Result()
		return toStruct(analysisToMap(res, !ok))
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := task.Wait(ctx)
	if err != nil {
		return nil, s.handleError(ctx, "GetAnalysis", err)
	}
	return toStruct(analysisToMap(res, false))
}
