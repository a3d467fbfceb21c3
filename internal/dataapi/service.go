package dataapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "accolade.v1.BadgeEngine"

const (
	evaluateMethod   = "/" + ServiceName + "/Evaluate"
	listAwardsMethod = "/" + ServiceName + "/ListAwards"
)

// BadgeEngineServer is the server contract of the BadgeEngine service.
// Messages are google.protobuf.Struct documents.
type BadgeEngineServer interface {
	Evaluate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListAwards(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes the BadgeEngine service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BadgeEngineServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Evaluate", Handler: unaryHandler(evaluateMethod, BadgeEngineServer.Evaluate)},
		{MethodName: "ListAwards", Handler: unaryHandler(listAwardsMethod, BadgeEngineServer.ListAwards)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "accolade/v1/badge_engine.proto",
}

type structMethod func(BadgeEngineServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// unaryHandler returns the function type grpc.MethodDesc.Handler expects.
func unaryHandler(fullMethod string, call structMethod) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(BadgeEngineServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(BadgeEngineServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Client is a thin BadgeEngine client for hosts and tests.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) Evaluate(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, evaluateMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListAwards(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, listAwardsMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
