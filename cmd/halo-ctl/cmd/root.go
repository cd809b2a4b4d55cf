package cmd

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	api "github.com/oshokin/halo-guard/internal/api/grpc/monitor"
	"github.com/oshokin/halo-guard/internal/config"
	"github.com/oshokin/halo-guard/internal/service/control"
	"github.com/oshokin/halo-guard/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// serverAddress overrides the monitor address from config.
	serverAddress string
	// motionStableLow is the --low flag of the threshold command.
	motionStableLow float64
	// motionStableHigh is the --high flag of the threshold command.
	motionStableHigh float64

	// rootCmd represents the base command for controlling the monitor.
	rootCmd = &cobra.Command{
		Use:   "halo-ctl",
		Short: "Control a running halo-monitor.",
		Long: `Sends commands to the halo-monitor control API.

Every request carries the current user and hostname so the monitor can log
who scanned, connected, reset the alarm or changed the thresholds.`,
		SilenceUsage: true,
	}

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show the session state and alarm status.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, control.Status())
		},
	}

	devicesCmd = &cobra.Command{
		Use:   "devices",
		Short: "List the tags found by the current scan.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, control.Devices())
		},
	}

	scanCmd = &cobra.Command{
		Use:       "scan [start|stop]",
		Short:     "Start or stop scanning for tags.",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"start", "stop"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 && args[0] == "stop" {
				return run(cmd, control.StopScan())
			}

			return run(cmd, control.StartScan())
		},
	}

	connectCmd = &cobra.Command{
		Use:   "connect <device-id>",
		Short: "Connect to a tag listed by the devices command.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, control.Connect(args[0]))
		},
	}

	disconnectCmd = &cobra.Command{
		Use:   "disconnect",
		Short: "Stop scanning or drop the link and return to idle.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, control.Disconnect())
		},
	}

	resetCmd = &cobra.Command{
		Use:   "reset",
		Short: "Clear a latched alarm.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, control.Reset())
		},
	}

	thresholdCmd = &cobra.Command{
		Use:   "threshold <sensitivity>",
		Short: "Change the tamper sensitivity and optionally the stable motion band.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sensitivity, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return err
			}

			fields := map[string]float64{api.FieldSensitivity: sensitivity}

			if cmd.Flags().Changed("low") {
				fields[api.FieldMotionStableLow] = motionStableLow
			}

			if cmd.Flags().Changed("high") {
				fields[api.FieldMotionStableHigh] = motionStableHigh
			}

			return run(cmd, control.Threshold(fields))
		},
	}

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Print tamper alerts as they happen until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, control.Watch())
		},
	}
)

// run executes action with interrupt handling.
func run(cmd *cobra.Command, action control.Action) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	options := &control.Options{
		ConfigPath:    configPath,
		ServerAddress: serverAddress,
		Out:           cmd.OutOrStdout(),
	}

	return control.Run(ctx, options, action)
}

// Execute runs the halo-ctl CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().
		StringVarP(&serverAddress, "server", "s", "", "monitor address (overrides configuration)")

	thresholdCmd.Flags().Float64Var(&motionStableLow, "low", 0, "lower bound of the stable motion band")
	thresholdCmd.Flags().Float64Var(&motionStableHigh, "high", 0, "upper bound of the stable motion band")

	rootCmd.AddCommand(
		statusCmd,
		devicesCmd,
		scanCmd,
		connectCmd,
		disconnectCmd,
		resetCmd,
		thresholdCmd,
		watchCmd,
	)
}
