//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	api "github.com/oshokin/halo-guard/internal/api/grpc/monitor"
	"github.com/oshokin/halo-guard/internal/config"
	"github.com/oshokin/halo-guard/internal/version"
)

// Client wraps the MonitorService gRPC client with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the monitor.
	conn *grpc.ClientConn
	// api is the MonitorService client.
	api api.MonitorServiceClient

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
	// actor is attached to every call. Empty disables the metadata.
	actor string
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithActor attaches actor to every request.
func WithActor(actor Actor) Option {
	return func(c *Client) {
		c.actor = actor.String()
	}
}

// errAddressRequired is returned when a required address value is missing.
var errAddressRequired = errors.New("address must be provided")

// Dial establishes a gRPC connection to the monitor.
// Note: this uses insecure transport credentials; the monitor listens on
// loopback by default.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	conn, err := grpc.NewClient(
		address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUserAgent(version.UserAgent("halo-ctl")),
	)
	if err != nil {
		return nil, fmt.Errorf("dial monitor: %w", err)
	}

	client := &Client{
		conn:        conn,
		api:         api.NewMonitorServiceClient(conn),
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// GetStatus retrieves the session status.
func (c *Client) GetStatus(ctx context.Context) (*structpb.Struct, error) {
	return c.unary(ctx, "get status", func(ctx context.Context) (*structpb.Struct, error) {
		return c.api.GetStatus(ctx, new(emptypb.Empty))
	})
}

// ListDevices retrieves the devices found by the current scan.
func (c *Client) ListDevices(ctx context.Context) (*structpb.Struct, error) {
	return c.unary(ctx, "list devices", func(ctx context.Context) (*structpb.Struct, error) {
		return c.api.ListDevices(ctx, new(emptypb.Empty))
	})
}

// StartScan starts discovery.
func (c *Client) StartScan(ctx context.Context) (*structpb.Struct, error) {
	return c.unary(ctx, "start scan", func(ctx context.Context) (*structpb.Struct, error) {
		return c.api.StartScan(ctx, new(emptypb.Empty))
	})
}

// StopScan stops discovery.
func (c *Client) StopScan(ctx context.Context) (*structpb.Struct, error) {
	return c.unary(ctx, "stop scan", func(ctx context.Context) (*structpb.Struct, error) {
		return c.api.StopScan(ctx, new(emptypb.Empty))
	})
}

// SelectDevice starts connecting to the device with the given identifier.
func (c *Client) SelectDevice(ctx context.Context, id string) (*structpb.Struct, error) {
	return c.unary(ctx, "select device", func(ctx context.Context) (*structpb.Struct, error) {
		return c.api.SelectDevice(ctx, wrapperspb.String(id))
	})
}

// Disconnect returns the monitor to idle.
func (c *Client) Disconnect(ctx context.Context) (*structpb.Struct, error) {
	return c.unary(ctx, "disconnect", func(ctx context.Context) (*structpb.Struct, error) {
		return c.api.Disconnect(ctx, new(emptypb.Empty))
	})
}

// ResetLatch clears a latched alarm.
func (c *Client) ResetLatch(ctx context.Context) (*structpb.Struct, error) {
	return c.unary(ctx, "reset alarm", func(ctx context.Context) (*structpb.Struct, error) {
		return c.api.ResetLatch(ctx, new(emptypb.Empty))
	})
}

// UpdateThreshold sends the given threshold fields. Absent fields keep their
// current values on the monitor.
func (c *Client) UpdateThreshold(ctx context.Context, fields map[string]float64) (*structpb.Struct, error) {
	request := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(fields))}
	for name, value := range fields {
		request.Fields[name] = structpb.NewNumberValue(value)
	}

	return c.unary(ctx, "update threshold", func(ctx context.Context) (*structpb.Struct, error) {
		return c.api.UpdateThreshold(ctx, request)
	})
}

// WatchAlerts calls onAlert for every tamper event until ctx is done or the
// stream breaks. The call timeout does not apply.
func (c *Client) WatchAlerts(ctx context.Context, onAlert func(*structpb.Struct)) error {
	stream, err := c.api.WatchAlerts(c.withActor(ctx), new(emptypb.Empty))
	if err != nil {
		return fmt.Errorf("watch alerts: %w", api.FromStatus(err))
	}

	for {
		alert, err := stream.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("receive alert: %w", api.FromStatus(err))
		}

		onAlert(alert)
	}
}

// unary runs call with the call timeout and actor metadata applied.
func (c *Client) unary(
	ctx context.Context,
	operation string,
	call func(ctx context.Context) (*structpb.Struct, error),
) (*structpb.Struct, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	response, err := call(c.withActor(callCtx))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", operation, api.FromStatus(err))
	}

	return response, nil
}

// withActor attaches the actor metadata.
func (c *Client) withActor(ctx context.Context) context.Context {
	if c.actor == "" {
		return ctx
	}

	return metadata.AppendToOutgoingContext(ctx, api.ActorMetadataKey, c.actor)
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
