package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "scorestats.v1.ScoreStats"

// Full method names, usable with grpc.ClientConn.Invoke.
const (
	GetSessionMethod       = "/" + ServiceName + "/GetSession"
	SetReviewerCountMethod = "/" + ServiceName + "/SetReviewerCount"
	SetScoreMethod         = "/" + ServiceName + "/SetScore"
	SubmitMethod           = "/" + ServiceName + "/Submit"
	SubmitAnotherMethod    = "/" + ServiceName + "/SubmitAnother"
	GetAnalysisMethod      = "/" + ServiceName + "/GetAnalysis"
)

type unaryMethod func(ScoreStatsServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// ScoreStatsServiceDesc describes the service for grpc.Server.RegisterService.
// Every method takes and returns a google.protobuf.Struct.
var ScoreStatsServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ScoreStatsServer)(nil),
	Methods: []grpc.MethodDesc{
		methodDesc("GetSession", ScoreStatsServer.GetSession),
		methodDesc("SetReviewerCount", ScoreStatsServer.SetReviewerCount),
		methodDesc("SetScore", ScoreStatsServer.SetScore),
		methodDesc("Submit", ScoreStatsServer.Submit),
		methodDesc("SubmitAnother", ScoreStatsServer.SubmitAnother),
		methodDesc("GetAnalysis", ScoreStatsServer.GetAnalysis),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "scorestats/v1/score_stats.proto",
}

func methodDesc(name string, call unaryMethod) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ScoreStatsServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ScoreStatsServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// RegisterScoreStatsServer registers srv on s.
func RegisterScoreStatsServer(s grpc.ServiceRegistrar, srv ScoreStatsServer) {
	s.RegisterService(&ScoreStatsServiceDesc, srv)
}

// ScoreStatsClient is a thin client for the service.
type ScoreStatsClient struct {
	cc grpc.ClientConnInterface
}

func NewScoreStatsClient(cc grpc.ClientConnInterface) *ScoreStatsClient {
	return &ScoreStatsClient{cc: cc}
}

// Call invokes method with fields as the request body.
func (c *ScoreStatsClient) Call(ctx context.Context, method string, fields map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
