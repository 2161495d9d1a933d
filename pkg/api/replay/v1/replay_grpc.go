package replayv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
)

const ServiceName = "cartridge.replay.v1.Replay"

const (
	Replay_AddTransition_FullMethodName     = "/" + ServiceName + "/AddTransition"
	Replay_AddBatch_FullMethodName          = "/" + ServiceName + "/AddBatch"
	Replay_SampleUniform_FullMethodName     = "/" + ServiceName + "/SampleUniform"
	Replay_SamplePrioritized_FullMethodName = "/" + ServiceName + "/SamplePrioritized"
	Replay_UpdatePriorities_FullMethodName  = "/" + ServiceName + "/UpdatePriorities"
	Replay_GetStats_FullMethodName          = "/" + ServiceName + "/GetStats"
)

// ReplayClient is the client API for the Replay service.
type ReplayClient interface {
	AddTransition(ctx context.Context, in *AddTransitionRequest, opts ...grpc.CallOption) (*AddTransitionResponse, error)
	AddBatch(ctx context.Context, in *AddBatchRequest, opts ...grpc.CallOption) (*AddBatchResponse, error)
	SampleUniform(ctx context.Context, in *SampleUniformRequest, opts ...grpc.CallOption) (*SampleResponse, error)
	SamplePrioritized(ctx context.Context, in *SamplePrioritizedRequest, opts ...grpc.CallOption) (*SampleResponse, error)
	UpdatePriorities(ctx context.Context, in *UpdatePrioritiesRequest, opts ...grpc.CallOption) (*UpdatePrioritiesResponse, error)
	GetStats(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*StatsResponse, error)
}

type replayClient struct {
	cc grpc.ClientConnInterface
}

func NewReplayClient(cc grpc.ClientConnInterface) ReplayClient {
	return &replayClient{cc}
}

func (c *replayClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

func (c *replayClient) AddTransition(ctx context.Context, in *AddTransitionRequest, opts ...grpc.CallOption) (*AddTransitionResponse, error) {
	out := new(AddTransitionResponse)
	if err := c.invoke(ctx, Replay_AddTransition_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *replayClient) AddBatch(ctx context.Context, in *AddBatchRequest, opts ...grpc.CallOption) (*AddBatchResponse, error) {
	out := new(AddBatchResponse)
	if err := c.invoke(ctx, Replay_AddBatch_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *replayClient) SampleUniform(ctx context.Context, in *SampleUniformRequest, opts ...grpc.CallOption) (*SampleResponse, error) {
	out := new(SampleResponse)
	if err := c.invoke(ctx, Replay_SampleUniform_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *replayClient) SamplePrioritized(ctx context.Context, in *SamplePrioritizedRequest, opts ...grpc.CallOption) (*SampleResponse, error) {
	out := new(SampleResponse)
	if err := c.invoke(ctx, Replay_SamplePrioritized_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *replayClient) UpdatePriorities(ctx context.Context, in *UpdatePrioritiesRequest, opts ...grpc.CallOption) (*UpdatePrioritiesResponse, error) {
	out := new(UpdatePrioritiesResponse)
	if err := c.invoke(ctx, Replay_UpdatePriorities_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *replayClient) GetStats(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*StatsResponse, error) {
	out := new(StatsResponse)
	if err := c.invoke(ctx, Replay_GetStats_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// ReplayServer is the server API for the Replay service.
type ReplayServer interface {
	AddTransition(context.Context, *AddTransitionRequest) (*AddTransitionResponse, error)
	AddBatch(context.Context, *AddBatchRequest) (*AddBatchResponse, error)
	SampleUniform(context.Context, *SampleUniformRequest) (*SampleResponse, error)
	SamplePrioritized(context.Context, *SamplePrioritizedRequest) (*SampleResponse, error)
	UpdatePriorities(context.Context, *UpdatePrioritiesRequest) (*UpdatePrioritiesResponse, error)
	GetStats(context.Context, *emptypb.Empty) (*StatsResponse, error)
}

// UnimplementedReplayServer can be embedded to have forward compatible implementations.
type UnimplementedReplayServer struct{}

func (UnimplementedReplayServer) AddTransition(context.Context, *AddTransitionRequest) (*AddTransitionResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method AddTransition not implemented")
}
func (UnimplementedReplayServer) AddBatch(context.Context, *AddBatchRequest) (*AddBatchResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method AddBatch not implemented")
}
func (UnimplementedReplayServer) SampleUniform(context.Context, *SampleUniformRequest) (*SampleResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method SampleUniform not implemented")
}
func (UnimplementedReplayServer) SamplePrioritized(context.Context, *SamplePrioritizedRequest) (*SampleResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method SamplePrioritized not implemented")
}
func (UnimplementedReplayServer) UpdatePriorities(context.Context, *UpdatePrioritiesRequest) (*UpdatePrioritiesResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method UpdatePriorities not implemented")
}
func (UnimplementedReplayServer) GetStats(context.Context, *emptypb.Empty) (*StatsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetStats not implemented")
}

func RegisterReplayServer(s grpc.ServiceRegistrar, srv ReplayServer) {
	s.RegisterService(&Replay_ServiceDesc, srv)
}

// unaryHandler adapts a typed server method to grpc's method handler shape.
func unaryHandler[Req any, Resp any](fullMethod string, call func(ReplayServer, context.Context, *Req) (*Resp, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ReplayServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ReplayServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Replay_ServiceDesc is the grpc.ServiceDesc for the Replay service.
var Replay_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ReplayServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "AddTransition",
			Handler:    unaryHandler(Replay_AddTransition_FullMethodName, ReplayServer.AddTransition),
		},
		{
			MethodName: "AddBatch",
			Handler:    unaryHandler(Replay_AddBatch_FullMethodName, ReplayServer.AddBatch),
		},
		{
			MethodName: "SampleUniform",
			Handler:    unaryHandler(Replay_SampleUniform_FullMethodName, ReplayServer.SampleUniform),
		},
		{
			MethodName: "SamplePrioritized",
			Handler:    unaryHandler(Replay_SamplePrioritized_FullMethodName, ReplayServer.SamplePrioritized),
		},
		{
			MethodName: "UpdatePriorities",
			Handler:    unaryHandler(Replay_UpdatePriorities_FullMethodName, ReplayServer.UpdatePriorities),
		},
		{
			MethodName: "GetStats",
			Handler:    unaryHandler(Replay_GetStats_FullMethodName, ReplayServer.GetStats),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "replay/v1/replay.proto",
}
