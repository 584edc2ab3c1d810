package grpc

import (
	"context"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/godilite/score-stats/internal/service"
)

// SessionStore hands out per-client submission sessions. Session creates on
// first use; Lookup only finds live ones.
type SessionStore interface {
	Session(id string) (*service.Session, error)
	Lookup(id string) (*service.Session, error)
}

// ScoreStatsServer is the server API for the scorestats.v1.ScoreStats service.
type ScoreStatsServer interface {
	GetSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetReviewerCount(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetScore(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Submit(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SubmitAnother(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetAnalysis(context.Context, *structpb.Struct) (*structpb.Struct, error)
}
