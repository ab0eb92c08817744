package controlplanepb

import (
	context "context"

	grpc "google.golang.org/grpc"
	codes "google.golang.org/grpc/codes"
	status "google.golang.org/grpc/status"
)

const (
	ControlPlane_GetQueueDepths_FullMethodName = "/controlplanepb.ControlPlane/GetQueueDepths"
	ControlPlane_GetPPSStatus_FullMethodName   = "/controlplanepb.ControlPlane/GetPPSStatus"
	ControlPlane_GetCounters_FullMethodName    = "/controlplanepb.ControlPlane/GetCounters"
)

// ControlPlaneClient is the client API for the introspection service.
type ControlPlaneClient interface {
	GetQueueDepths(ctx context.Context, in *GetQueueDepthsRequest, opts ...grpc.CallOption) (*QueueDepths, error)
	GetPPSStatus(ctx context.Context, in *GetPPSStatusRequest, opts ...grpc.CallOption) (*PPSStatus, error)
	GetCounters(ctx context.Context, in *GetCountersRequest, opts ...grpc.CallOption) (*Counters, error)
}

type controlPlaneClient struct {
	cc grpc.ClientConnInterface
}

func NewControlPlaneClient(cc grpc.ClientConnInterface) ControlPlaneClient {
	return &controlPlaneClient{cc}
}

func (c *controlPlaneClient) GetQueueDepths(ctx context.Context, in *GetQueueDepthsRequest, opts ...grpc.CallOption) (*QueueDepths, error) {
	out := new(QueueDepths)
	if err := c.cc.Invoke(ctx, ControlPlane_GetQueueDepths_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *controlPlaneClient) GetPPSStatus(ctx context.Context, in *GetPPSStatusRequest, opts ...grpc.CallOption) (*PPSStatus, error) {
	out := new(PPSStatus)
	if err := c.cc.Invoke(ctx, ControlPlane_GetPPSStatus_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *controlPlaneClient) GetCounters(ctx context.Context, in *GetCountersRequest, opts ...grpc.CallOption) (*Counters, error) {
	out := new(Counters)
	if err := c.cc.Invoke(ctx, ControlPlane_GetCounters_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ControlPlaneServer is the server API for the introspection service. All
// implementations must embed UnimplementedControlPlaneServer for forward
// compatibility.
type ControlPlaneServer interface {
	GetQueueDepths(context.Context, *GetQueueDepthsRequest) (*QueueDepths, error)
	GetPPSStatus(context.Context, *GetPPSStatusRequest) (*PPSStatus, error)
	GetCounters(context.Context, *GetCountersRequest) (*Counters, error)
	mustEmbedUnimplementedControlPlaneServer()
}

// UnimplementedControlPlaneServer must be embedded to have forward
// compatible implementations.
type UnimplementedControlPlaneServer struct{}

func (UnimplementedControlPlaneServer) GetQueueDepths(context.Context, *GetQueueDepthsRequest) (*QueueDepths, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetQueueDepths not implemented")
}
func (UnimplementedControlPlaneServer) GetPPSStatus(context.Context, *GetPPSStatusRequest) (*PPSStatus, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetPPSStatus not implemented")
}
func (UnimplementedControlPlaneServer) GetCounters(context.Context, *GetCountersRequest) (*Counters, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetCounters not implemented")
}
func (UnimplementedControlPlaneServer) mustEmbedUnimplementedControlPlaneServer() {}

func RegisterControlPlaneServer(s grpc.ServiceRegistrar, srv ControlPlaneServer) {
	s.RegisterService(&ControlPlane_ServiceDesc, srv)
}

func _ControlPlane_GetQueueDepths_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetQueueDepthsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlPlaneServer).GetQueueDepths(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ControlPlane_GetQueueDepths_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ControlPlaneServer).GetQueueDepths(ctx, req.(*GetQueueDepthsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ControlPlane_GetPPSStatus_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetPPSStatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlPlaneServer).GetPPSStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ControlPlane_GetPPSStatus_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ControlPlaneServer).GetPPSStatus(ctx, req.(*GetPPSStatusRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _ControlPlane_GetCounters_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetCountersRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlPlaneServer).GetCounters(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ControlPlane_GetCounters_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ControlPlaneServer).GetCounters(ctx, req.(*GetCountersRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ControlPlane_ServiceDesc is the grpc.ServiceDesc for the ControlPlane
// service. It's only intended for direct use with grpc.RegisterService,
// and not to be introspected or modified (even as a copy).
var ControlPlane_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "controlplanepb.ControlPlane",
	HandlerType: (*ControlPlaneServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetQueueDepths", Handler: _ControlPlane_GetQueueDepths_Handler},
		{MethodName: "GetPPSStatus", Handler: _ControlPlane_GetPPSStatus_Handler},
		{MethodName: "GetCounters", Handler: _ControlPlane_GetCounters_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "controlplane.proto",
}
