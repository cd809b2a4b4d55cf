package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/halo-guard/internal/config"
	"github.com/oshokin/halo-guard/internal/service/monitor"
	"github.com/oshokin/halo-guard/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// thresholdFile path where the sensitivity is persisted.
	thresholdFile string
	// logLevel overrides the configured log level.
	logLevel string
	// overwrite lets init-config replace an existing file.
	overwrite bool

	// rootCmd represents the base command for running the monitor.
	rootCmd = &cobra.Command{
		Use:   "halo-monitor [listen-address]",
		Short: "Watch a drink-cover tag and raise an alert when the cover is removed.",
		Long: `Runs the halo monitor daemon.

The monitor drives the host Bluetooth adapter: it scans for sensor tags, keeps
a single link to the selected tag and evaluates its telemetry. When the cover
is lifted the alarm latches and alerts are pushed to the configured sinks
(log, desktop, MQTT, Redis) and to every halo-ctl watch session.

The control API listens on listen_addr from the configuration file unless an
address is given as argument (e.g. 127.0.0.1:50061).
The sensitivity adjusted through the API is persisted to the threshold file
and reloaded automatically when the file is edited by hand.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			options := &monitor.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				ThresholdFile: thresholdFile,
				LogLevel:      logLevel,
			}

			return monitor.Run(ctx, options)
		},
	}

	initConfigCmd = &cobra.Command{
		Use:   "init-config",
		Short: "Write a settings file with every default filled in.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return monitor.InitConfig(cmd.Context(), configPath, overwrite)
		},
	}
)

// Execute runs the halo-monitor CLI and exits with non-zero status on error.
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
	rootCmd.Flags().StringVarP(
		&thresholdFile,
		"threshold-file",
		"t",
		"",
		"path to persist the sensitivity (default from configuration)",
	)
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "log level: debug, info, warn, error")

	initConfigCmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace an existing settings file")
	rootCmd.AddCommand(initConfigCmd)
}
