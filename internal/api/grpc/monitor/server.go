package monitor

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/halo-guard/internal/domain/device"
	"github.com/oshokin/halo-guard/internal/domain/session"
	"github.com/oshokin/halo-guard/internal/domain/threshold"
	"github.com/oshokin/halo-guard/internal/logger"
	"github.com/oshokin/halo-guard/internal/notify"
)

// ActorMetadataKey carries the "user@host" of the caller for the audit log.
const ActorMetadataKey = "x-halo-actor"

// unknownActor is logged for requests without actor metadata.
const unknownActor = "unknown"

// Service abstracts the monitor operations the transport layer depends on.
type Service interface {
	Snapshot() session.Snapshot
	Thresholds() threshold.Config
	Devices() []device.Handle
	StartScan(ctx context.Context) error
	StopScan(ctx context.Context) error
	SelectDevice(ctx context.Context, id string) (uint64, error)
	Disconnect(ctx context.Context) error
	ResetLatch(ctx context.Context) error
	UpdateThreshold(ctx context.Context, cfg threshold.Config) (threshold.Config, error)
	Subscribe() (<-chan session.TamperEvent, func())
}

var _ MonitorServiceServer = (*Server)(nil)

// Server implements MonitorServiceServer.
type Server struct {
	// service provides the monitor operations.
	service Service
}

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// GetStatus returns the session status.
func (s *Server) GetStatus(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return s.status()
}

// ListDevices returns the devices discovered in the current scan.
func (s *Server) ListDevices(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	result, err := devicesToProto(s.service.Devices())
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	return result, nil
}

// StartScan starts discovery.
func (s *Server) StartScan(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	logger.Info(ctx, "Scan requested")

	if err := s.service.StartScan(ctx); err != nil {
		return nil, toStatus(err)
	}

	return s.status()
}

// StopScan stops discovery.
func (s *Server) StopScan(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	logger.Info(ctx, "Scan stop requested")

	if err := s.service.StopScan(ctx); err != nil {
		return nil, toStatus(err)
	}

	return s.status()
}

// SelectDevice starts connecting to a listed device.
func (s *Server) SelectDevice(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "device id is required")
	}

	logger.InfoKV(ctx, "Connection requested", "device_id", req.GetValue())

	if _, err := s.service.SelectDevice(ctx, req.GetValue()); err != nil {
		return nil, toStatus(err)
	}

	return s.status()
}

// Disconnect returns the session to idle.
func (s *Server) Disconnect(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	logger.Info(ctx, "Disconnect requested")

	if err := s.service.Disconnect(ctx); err != nil {
		return nil, toStatus(err)
	}

	return s.status()
}

// ResetLatch clears a latched alarm.
func (s *Server) ResetLatch(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	logger.Info(ctx, "Alarm reset requested")

	if err := s.service.ResetLatch(ctx); err != nil {
		return nil, toStatus(err)
	}

	return s.status()
}

// UpdateThreshold applies the threshold fields present in req.
func (s *Server) UpdateThreshold(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	cfg, err := thresholdFromProto(s.service.Thresholds(), req)
	if err != nil {
		return nil, toStatus(err)
	}

	logger.InfoKV(ctx, "Threshold update requested", "sensitivity", cfg.Sensitivity)

	applied, err := s.service.UpdateThreshold(ctx, cfg)
	if err != nil {
		return nil, toStatus(err)
	}

	return thresholdToProto(applied), nil
}

// WatchAlerts streams tamper events until the client goes away.
func (s *Server) WatchAlerts(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	ctx := stream.Context()

	events, cancel := s.service.Subscribe()
	defer cancel()

	logger.Info(ctx, "Alert watcher attached")

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Alert watcher detached")

			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}

			payload, err := notify.Payload(event)
			if err != nil {
				return status.Error(codes.Internal, err.Error())
			}

			if err = stream.Send(payload); err != nil {
				return err
			}
		}
	}
}

// status renders the current session status.
func (s *Server) status() (*structpb.Struct, error) {
	result, err := statusToProto(s.service.Snapshot(), s.service.Thresholds())
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	return result, nil
}

// ServerOptions returns the interceptors that attach the caller's actor and
// the method name to the request logger.
func ServerOptions(ctx context.Context) []grpc.ServerOption {
	base := logger.FromContext(ctx)

	return []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(func(
			ctx context.Context,
			req any,
			info *grpc.UnaryServerInfo,
			handler grpc.UnaryHandler,
		) (any, error) {
			return handler(requestContext(ctx, base, info.FullMethod), req)
		}),
		grpc.ChainStreamInterceptor(func(
			srv any,
			stream grpc.ServerStream,
			info *grpc.StreamServerInfo,
			handler grpc.StreamHandler,
		) error {
			return handler(srv, &loggedStream{
				ServerStream: stream,
				ctx:          requestContext(stream.Context(), base, info.FullMethod),
			})
		}),
	}
}

// loggedStream overrides the stream context.
type loggedStream struct {
	grpc.ServerStream

	ctx context.Context //nolint:containedctx // Replaces the embedded stream context.
}

// Context returns the request context with the logger attached.
func (l *loggedStream) Context() context.Context {
	return l.ctx
}

// requestContext attaches a request-scoped logger to ctx.
func requestContext(ctx context.Context, base *zap.SugaredLogger, method string) context.Context {
	return logger.ToContext(ctx, base.With("method", method, "actor", actorFromContext(ctx)))
}

// actorFromContext reads the actor metadata sent by the client.
func actorFromContext(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return unknownActor
	}

	values := md.Get(ActorMetadataKey)
	if len(values) == 0 || values[0] == "" {
		return unknownActor
	}

	return values[0]
}
