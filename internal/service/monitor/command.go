package monitor

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"

	api "github.com/oshokin/halo-guard/internal/api/grpc/monitor"
	"github.com/oshokin/halo-guard/internal/config"
	"github.com/oshokin/halo-guard/internal/domain/session"
	"github.com/oshokin/halo-guard/internal/domain/threshold"
	"github.com/oshokin/halo-guard/internal/logger"
	"github.com/oshokin/halo-guard/internal/notify"
	repository "github.com/oshokin/halo-guard/internal/repository/threshold"
	"github.com/oshokin/halo-guard/internal/transport"
	"github.com/oshokin/halo-guard/internal/transport/ble"
)

// Options controls the halo-monitor process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress overrides the gRPC listen address from the settings.
	ListenAddress string
	// ThresholdFile overrides the file the sensitivity is persisted to.
	ThresholdFile string
	// LogLevel overrides the log level from the settings.
	LogLevel string
	// Transport replaces the Bluetooth radio. Nil uses the host adapter.
	Transport transport.Transport
}

// errBadLogLevel is returned for an unknown --log-level value.
var errBadLogLevel = errors.New("unknown log level")

// Run starts the monitor and its gRPC API and blocks until ctx is cancelled.
//
//nolint:funlen // Sequential wiring of the daemon.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "halo-monitor")

	// Background workers stop with Run even when startup fails halfway.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Load configuration first to get every other setting.
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	// Command line overrides win over the settings file.
	levelName := settings.LogLevel
	if opts.LogLevel != "" {
		levelName = opts.LogLevel
	}

	level, ok := logger.ParseLogLevel(levelName)
	if !ok {
		return fmt.Errorf("%w: %q", errBadLogLevel, levelName)
	}

	logger.SetLevel(level)

	thresholdFile := settings.ThresholdFile
	if opts.ThresholdFile != "" {
		thresholdFile = opts.ThresholdFile
	}

	listenAddress := settings.ListenAddress
	if opts.ListenAddress != "" {
		listenAddress = opts.ListenAddress
	}

	// Threshold policy seeded from the settings, then from the persisted file.
	store, err := threshold.NewStore(settings.Threshold)
	if err != nil {
		return fmt.Errorf("threshold settings: %w", err)
	}

	repo := repository.NewFileRepository(thresholdFile)

	radio := opts.Transport
	if radio == nil {
		if radio, err = ble.New(settings.Bluetooth); err != nil {
			return fmt.Errorf("bluetooth settings: %w", err)
		}
	}

	sink, closeSinks, err := buildSinks(ctx, settings)
	if err != nil {
		return fmt.Errorf("initialise notifications: %w", err)
	}

	defer closeSinks()

	svc, err := New(ctx, Params{
		Transport:          radio,
		Thresholds:         store,
		Repository:         repo,
		Sink:               sink,
		GracePeriod:        settings.GracePeriod,
		ConnectTimeout:     settings.Bluetooth.ConnectTimeout,
		RescanOnDisconnect: settings.RescanOnDisconnect,
	})
	if err != nil {
		return fmt.Errorf("initialise monitor: %w", err)
	}

	if err = radio.Start(ctx, svc.Enqueue); err != nil {
		return fmt.Errorf("start transport: %w", err)
	}

	// Hand edits of the threshold file apply without a restart.
	err = repo.Watch(ctx, func(sensitivity float64) {
		svc.ApplySensitivity(ctx, sensitivity)
	})
	if err != nil {
		logger.WarnKV(ctx, "Threshold file will not be reloaded", "path", repo.Path(), "error", err)
	}

	loopDone := make(chan struct{})

	go func() {
		defer close(loopDone)

		svc.Run(ctx)
	}()

	// Setup TCP listener for gRPC server.
	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	logger.InfoKV(
		ctx,
		"Halo monitor listening",
		"listen_address", listenAddress,
		"threshold_file", repo.Path(),
		"sensitivity", store.Snapshot().Sensitivity,
	)

	err = Serve(ctx, lis, svc)

	<-loopDone

	return err
}

// Serve exposes svc on lis until ctx is cancelled, then stops gracefully.
func Serve(ctx context.Context, lis net.Listener, svc api.Service) error {
	grpcServer := grpc.NewServer(api.ServerOptions(ctx)...)
	api.RegisterMonitorServiceServer(grpcServer, api.NewServer(svc))

	// Done channel is closed after GracefulStop finishes to ensure we block
	// until the server fully stops before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down gRPC server")
		grpcServer.GracefulStop()
		close(done)
	}()

	if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	logger.Info(ctx, "GRPC server stopped")

	return nil
}

// buildSinks creates the optional alert sinks from the settings. Network sinks
// are wrapped in notify.Async so a slow endpoint never stalls telemetry.
func buildSinks(ctx context.Context, settings *config.Config) (session.Sink, func(), error) {
	var (
		sinks   notify.Fanout
		closers []func()
	)

	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if settings.Notify.Desktop {
		desktop, err := notify.NewDesktop()
		if err != nil {
			// Headless hosts have no session bus; the other sinks still work.
			logger.WarnKV(ctx, "Desktop notifications unavailable", "error", err)
		} else {
			async := notify.NewAsync("desktop", desktop, notify.DefaultQueueSize, settings.Timeout)
			sinks = append(sinks, async)
			closers = append(closers, async.Close, func() { _ = desktop.Close() })
		}
	}

	if cfg := settings.Notify.MQTT; cfg.Broker != "" {
		broker, err := notify.NewMQTT(cfg, settings.Timeout)
		if err != nil {
			closeAll()

			return nil, nil, err
		}

		async := notify.NewAsync("mqtt", broker, notify.DefaultQueueSize, settings.Timeout)
		sinks = append(sinks, async)
		closers = append(closers, async.Close, broker.Close)

		logger.InfoKV(ctx, "MQTT alerts enabled", "broker", cfg.Broker, "topic", cfg.Topic)
	}

	if cfg := settings.Notify.Redis; cfg.Address != "" {
		pingCtx, cancel := context.WithTimeout(ctx, settings.Timeout)
		stream, err := notify.NewRedis(pingCtx, cfg)

		cancel()

		if err != nil {
			closeAll()

			return nil, nil, err
		}

		async := notify.NewAsync("redis", stream, notify.DefaultQueueSize, settings.Timeout)
		sinks = append(sinks, async)
		closers = append(closers, async.Close, func() { _ = stream.Close() })

		logger.InfoKV(ctx, "Redis alerts enabled", "addr", cfg.Address, "stream", cfg.Stream)
	}

	if len(sinks) == 0 {
		return nil, closeAll, nil
	}

	return sinks, closeAll, nil
}
