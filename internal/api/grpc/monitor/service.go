package monitor

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "halo.v1.MonitorService"

// Full method names.
const (
	MonitorService_GetStatus_FullMethodName       = "/" + ServiceName + "/GetStatus"       //nolint:revive,stylecheck // Matches protoc-gen-go-grpc naming.
	MonitorService_ListDevices_FullMethodName     = "/" + ServiceName + "/ListDevices"     //nolint:revive,stylecheck // Matches protoc-gen-go-grpc naming.
	MonitorService_StartScan_FullMethodName       = "/" + ServiceName + "/StartScan"       //nolint:revive,stylecheck // Matches protoc-gen-go-grpc naming.
	MonitorService_StopScan_FullMethodName        = "/" + ServiceName + "/StopScan"        //nolint:revive,stylecheck // Matches protoc-gen-go-grpc naming.
	MonitorService_SelectDevice_FullMethodName    = "/" + ServiceName + "/SelectDevice"    //nolint:revive,stylecheck // Matches protoc-gen-go-grpc naming.
	MonitorService_Disconnect_FullMethodName      = "/" + ServiceName + "/Disconnect"      //nolint:revive,stylecheck // Matches protoc-gen-go-grpc naming.
	MonitorService_ResetLatch_FullMethodName      = "/" + ServiceName + "/ResetLatch"      //nolint:revive,stylecheck // Matches protoc-gen-go-grpc naming.
	MonitorService_UpdateThreshold_FullMethodName = "/" + ServiceName + "/UpdateThreshold" //nolint:revive,stylecheck // Matches protoc-gen-go-grpc naming.
	MonitorService_WatchAlerts_FullMethodName     = "/" + ServiceName + "/WatchAlerts"     //nolint:revive,stylecheck // Matches protoc-gen-go-grpc naming.
)

// MonitorServiceServer is the server API for MonitorService.
type MonitorServiceServer interface {
	GetStatus(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	ListDevices(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	StartScan(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	StopScan(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	SelectDevice(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
	Disconnect(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	ResetLatch(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	UpdateThreshold(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	WatchAlerts(req *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error
}

// RegisterMonitorServiceServer registers srv on s.
func RegisterMonitorServiceServer(s grpc.ServiceRegistrar, srv MonitorServiceServer) {
	s.RegisterService(&MonitorService_ServiceDesc, srv)
}

// MonitorService_ServiceDesc describes MonitorService for grpc.ServiceRegistrar.
//
//nolint:gochecknoglobals,revive,stylecheck // Service descriptors are package-level by convention.
var MonitorService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MonitorServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetStatus",
			Handler:    unaryHandler(MonitorService_GetStatus_FullMethodName, MonitorServiceServer.GetStatus),
		},
		{
			MethodName: "ListDevices",
			Handler:    unaryHandler(MonitorService_ListDevices_FullMethodName, MonitorServiceServer.ListDevices),
		},
		{
			MethodName: "StartScan",
			Handler:    unaryHandler(MonitorService_StartScan_FullMethodName, MonitorServiceServer.StartScan),
		},
		{
			MethodName: "StopScan",
			Handler:    unaryHandler(MonitorService_StopScan_FullMethodName, MonitorServiceServer.StopScan),
		},
		{
			MethodName: "SelectDevice",
			Handler:    unaryHandler(MonitorService_SelectDevice_FullMethodName, MonitorServiceServer.SelectDevice),
		},
		{
			MethodName: "Disconnect",
			Handler:    unaryHandler(MonitorService_Disconnect_FullMethodName, MonitorServiceServer.Disconnect),
		},
		{
			MethodName: "ResetLatch",
			Handler:    unaryHandler(MonitorService_ResetLatch_FullMethodName, MonitorServiceServer.ResetLatch),
		},
		{
			MethodName: "UpdateThreshold",
			Handler:    unaryHandler(MonitorService_UpdateThreshold_FullMethodName, MonitorServiceServer.UpdateThreshold),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchAlerts",
			Handler:       watchAlertsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "halo/v1/monitor.proto",
}

// unaryHandler adapts a typed server method to grpc.MethodHandler.
func unaryHandler[Req any, PReq interface {
	*Req
	proto.Message
}, Resp proto.Message](
	fullMethod string,
	call func(MonitorServiceServer, context.Context, PReq) (Resp, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := PReq(new(Req))
		if err := dec(in); err != nil {
			return nil, err
		}

		server, _ := srv.(MonitorServiceServer)

		if interceptor == nil {
			return call(server, ctx, in)
		}

		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}

		handler := func(ctx context.Context, req any) (any, error) {
			typed, _ := req.(PReq)

			return call(server, ctx, typed)
		}

		return interceptor(ctx, in, info, handler)
	}
}

// watchAlertsHandler serves the WatchAlerts stream.
func watchAlertsHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}

	server, _ := srv.(MonitorServiceServer)

	return server.WatchAlerts(in, &grpc.GenericServerStream[emptypb.Empty, structpb.Struct]{ServerStream: stream})
}

// MonitorServiceClient is the client API for MonitorService.
type MonitorServiceClient interface {
	GetStatus(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	ListDevices(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	StartScan(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	StopScan(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	SelectDevice(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	Disconnect(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	ResetLatch(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	UpdateThreshold(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	WatchAlerts(
		ctx context.Context,
		in *emptypb.Empty,
		opts ...grpc.CallOption,
	) (grpc.ServerStreamingClient[structpb.Struct], error)
}

// monitorServiceClient implements MonitorServiceClient over a connection.
type monitorServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewMonitorServiceClient creates a client bound to cc.
func NewMonitorServiceClient(cc grpc.ClientConnInterface) MonitorServiceClient {
	return &monitorServiceClient{cc: cc}
}

// invoke performs a unary call returning a Struct.
func (c *monitorServiceClient) invoke(
	ctx context.Context,
	method string,
	in proto.Message,
	opts []grpc.CallOption,
) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *monitorServiceClient) GetStatus(
	ctx context.Context,
	in *emptypb.Empty,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	return c.invoke(ctx, MonitorService_GetStatus_FullMethodName, in, opts)
}

func (c *monitorServiceClient) ListDevices(
	ctx context.Context,
	in *emptypb.Empty,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	return c.invoke(ctx, MonitorService_ListDevices_FullMethodName, in, opts)
}

func (c *monitorServiceClient) StartScan(
	ctx context.Context,
	in *emptypb.Empty,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	return c.invoke(ctx, MonitorService_StartScan_FullMethodName, in, opts)
}

func (c *monitorServiceClient) StopScan(
	ctx context.Context,
	in *emptypb.Empty,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	return c.invoke(ctx, MonitorService_StopScan_FullMethodName, in, opts)
}

func (c *monitorServiceClient) SelectDevice(
	ctx context.Context,
	in *wrapperspb.StringValue,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	return c.invoke(ctx, MonitorService_SelectDevice_FullMethodName, in, opts)
}

func (c *monitorServiceClient) Disconnect(
	ctx context.Context,
	in *emptypb.Empty,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	return c.invoke(ctx, MonitorService_Disconnect_FullMethodName, in, opts)
}

func (c *monitorServiceClient) ResetLatch(
	ctx context.Context,
	in *emptypb.Empty,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	return c.invoke(ctx, MonitorService_ResetLatch_FullMethodName, in, opts)
}

func (c *monitorServiceClient) UpdateThreshold(
	ctx context.Context,
	in *structpb.Struct,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	return c.invoke(ctx, MonitorService_UpdateThreshold_FullMethodName, in, opts)
}

func (c *monitorServiceClient) WatchAlerts(
	ctx context.Context,
	in *emptypb.Empty,
	opts ...grpc.CallOption,
) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.cc.NewStream(
		ctx,
		&MonitorService_ServiceDesc.Streams[0],
		MonitorService_WatchAlerts_FullMethodName,
		opts...,
	)
	if err != nil {
		return nil, err
	}

	x := &grpc.GenericClientStream[emptypb.Empty, structpb.Struct]{ClientStream: stream}

	if err = x.SendMsg(in); err != nil {
		return nil, err
	}

	if err = x.CloseSend(); err != nil {
		return nil, err
	}

	return x, nil
}
