package control

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/halo-guard/internal/config"
	"github.com/oshokin/halo-guard/internal/logger"
	"github.com/oshokin/halo-guard/internal/service/common"
)

// Options configures how halo-ctl reaches the monitor.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string
	// ServerAddress overrides the monitor address from config when specified.
	ServerAddress string
	// Out receives the command output. Defaults to stdout.
	Out io.Writer
}

// Action is one halo-ctl command.
type Action func(ctx context.Context, client *common.Client, out io.Writer) error

// Run connects to the monitor and performs action.
func Run(ctx context.Context, opts *Options, action Action) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "halo-ctl")

	cfg, err := loadSettings(opts)
	if err != nil {
		return err
	}

	serverAddress := cfg.ListenAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	// Identify current user and hostname for the monitor's audit log.
	actor, err := common.DetectActor()
	if err != nil {
		return err
	}

	client, err := common.Dial(ctx, serverAddress, common.WithCallTimeout(cfg.Timeout), common.WithActor(actor))
	if err != nil {
		return err
	}

	// Close connection on function exit.
	defer func() {
		_ = client.Close()
	}()

	logger.DebugKV(ctx, "Calling monitor", "server_address", serverAddress, "actor", actor.String())

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	return action(ctx, client, out)
}

// loadSettings reads the settings file. A missing file is tolerated when the
// address is given on the command line.
func loadSettings(opts *Options) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err == nil {
		return cfg, nil
	}

	if opts.ServerAddress != "" && errors.Is(err, os.ErrNotExist) {
		return config.Default(), nil
	}

	return nil, fmt.Errorf("load settings: %w", err)
}

// Status prints the session status.
func Status() Action {
	return func(ctx context.Context, client *common.Client, out io.Writer) error {
		return printStatusOf(ctx, out, client.GetStatus)
	}
}

// Devices prints the devices found by the current scan.
func Devices() Action {
	return func(ctx context.Context, client *common.Client, out io.Writer) error {
		response, err := client.ListDevices(ctx)
		if err != nil {
			return err
		}

		return printDevices(out, response)
	}
}

// StartScan starts discovery and prints the status.
func StartScan() Action {
	return func(ctx context.Context, client *common.Client, out io.Writer) error {
		return printStatusOf(ctx, out, client.StartScan)
	}
}

// StopScan stops discovery and prints the status.
func StopScan() Action {
	return func(ctx context.Context, client *common.Client, out io.Writer) error {
		return printStatusOf(ctx, out, client.StopScan)
	}
}

// Connect starts connecting to the device with the given identifier.
func Connect(id string) Action {
	return func(ctx context.Context, client *common.Client, out io.Writer) error {
		return printStatusOf(ctx, out, func(ctx context.Context) (*structpb.Struct, error) {
			return client.SelectDevice(ctx, id)
		})
	}
}

// Disconnect returns the monitor to idle.
func Disconnect() Action {
	return func(ctx context.Context, client *common.Client, out io.Writer) error {
		return printStatusOf(ctx, out, client.Disconnect)
	}
}

// Reset clears a latched alarm.
func Reset() Action {
	return func(ctx context.Context, client *common.Client, out io.Writer) error {
		return printStatusOf(ctx, out, client.ResetLatch)
	}
}

// Threshold sends the given threshold fields and prints the applied values.
func Threshold(fields map[string]float64) Action {
	return func(ctx context.Context, client *common.Client, out io.Writer) error {
		response, err := client.UpdateThreshold(ctx, fields)
		if err != nil {
			return err
		}

		return printThreshold(out, response)
	}
}

// Watch prints tamper alerts until ctx is cancelled.
func Watch() Action {
	return func(ctx context.Context, client *common.Client, out io.Writer) error {
		logger.Info(ctx, "Waiting for alerts, press Ctrl+C to stop")

		var writeErr error

		err := client.WatchAlerts(ctx, func(alert *structpb.Struct) {
			if writeErr == nil {
				writeErr = printAlert(out, alert)
			}
		})
		if err != nil {
			return err
		}

		return writeErr
	}
}

// printStatusOf performs call and prints the returned status.
func printStatusOf(
	ctx context.Context,
	out io.Writer,
	call func(ctx context.Context) (*structpb.Struct, error),
) error {
	response, err := call(ctx)
	if err != nil {
		return err
	}

	return printStatus(out, response)
}
