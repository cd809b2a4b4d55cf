package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/halo-guard/internal/domain/telemetry"
	"github.com/oshokin/halo-guard/internal/domain/threshold"
)

// TestValidate checks required fields and format validations.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Missing listen address.
	require.Error(t, Validate(new(Config)))
	require.Error(t, Validate(nil))

	// Bad listen address.
	require.Error(t, Validate(&Config{ListenAddress: "no-port"}))

	// Bad log level.
	require.Error(t, Validate(&Config{ListenAddress: "127.0.0.1:0", LogLevel: "loud"}))

	// Bad threshold.
	require.ErrorIs(t, Validate(&Config{
		ListenAddress: "127.0.0.1:0",
		Threshold:     threshold.Config{Sensitivity: -1},
	}), threshold.ErrInvalidConfig)

	// Bad QoS on an enabled MQTT sink.
	require.Error(t, Validate(&Config{
		ListenAddress: "127.0.0.1:0",
		Notify:        Notify{MQTT: MQTT{Broker: "tcp://127.0.0.1:1883", QoS: 3}},
	}))

	// Bad Redis address.
	require.Error(t, Validate(&Config{
		ListenAddress: "127.0.0.1:0",
		Notify:        Notify{Redis: Redis{Address: "redis"}},
	}))

	// Negative duration.
	require.Error(t, Validate(&Config{ListenAddress: "127.0.0.1:0", GracePeriod: -time.Second}))

	// Bad radio log level.
	require.Error(t, Validate(&Config{ListenAddress: "127.0.0.1:0", Bluetooth: Bluetooth{LogLevel: "chatty"}}))
}

// TestValidate_Defaults ensures a minimal config is completed.
func TestValidate_Defaults(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		ListenAddress: "127.0.0.1:50061",
		Notify: Notify{
			MQTT:  MQTT{Broker: "tcp://127.0.0.1:1883"},
			Redis: Redis{Address: "127.0.0.1:6379"},
		},
	}

	require.NoError(t, Validate(cfg))
	require.Equal(t, DefaultTimeout, cfg.Timeout)
	require.Equal(t, DefaultGracePeriod, cfg.GracePeriod)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, DefaultThresholdFilename, cfg.ThresholdFile)
	require.Equal(t, threshold.Default(), cfg.Threshold)
	require.Equal(t, DefaultServiceUUID, cfg.Bluetooth.ServiceUUID)
	require.Equal(t, DefaultCharacteristicUUID, cfg.Bluetooth.CharacteristicUUID)
	require.Equal(t, DefaultConnectTimeout, cfg.Bluetooth.ConnectTimeout)
	require.Equal(t, DefaultMQTTTopic, cfg.Notify.MQTT.Topic)
	require.Equal(t, DefaultMQTTClientID, cfg.Notify.MQTT.ClientID)
	require.Equal(t, DefaultRedisStream, cfg.Notify.Redis.Stream)

	require.Equal(t, cfg.Threshold, Default().Threshold)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	cfg := &Config{
		ListenAddress:      "127.0.0.1:50061",
		GracePeriod:        3 * time.Second,
		RescanOnDisconnect: true,
		Threshold: threshold.Config{
			Sensitivity:      2.5,
			MotionStableLow:  0.8,
			MotionStableHigh: 1.2,
		},
		Notify: Notify{Desktop: true},
	}

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)

	_, err = os.Stat(path)
	require.NoError(t, err)

	require.Error(t, Save(path, nil))
}

// TestLoad_YAMLKeys reads a hand-written file using the documented keys.
func TestLoad_YAMLKeys(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")
	contents := `
listen_addr: "127.0.0.1:50099"
grace_period: 2s
rescan_on_disconnect: true
threshold:
  sensitivity: 3.5
  motion_stable_low: 0.95
  motion_stable_high: 1.05
bluetooth:
  connect_timeout: 7s
notify:
  redis:
    addr: "127.0.0.1:6379"
    stream: "cover:alerts"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), DefaultFilePermissions))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:50099", cfg.ListenAddress)
	require.Equal(t, 2*time.Second, cfg.GracePeriod)
	require.True(t, cfg.RescanOnDisconnect)
	require.InDelta(t, 3.5, cfg.Threshold.Sensitivity, 1e-9)
	require.Equal(t, 7*time.Second, cfg.Bluetooth.ConnectTimeout)
	require.Equal(t, "cover:alerts", cfg.Notify.Redis.Stream)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

// TestLoad_PartialThreshold keeps factory values for threshold keys left out of
// the file, so tuning only the sensitivity still detects tampering.
func TestLoad_PartialThreshold(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	write := func(name, contents string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(contents), DefaultFilePermissions))

		return path
	}

	cfg, err := Load(write("sensitivity.yaml", "listen_addr: \"127.0.0.1:50061\"\nthreshold:\n  sensitivity: 2.5\n"))
	require.NoError(t, err)
	require.Equal(t, threshold.Config{
		Sensitivity:      2.5,
		MotionStableLow:  threshold.DefaultMotionStableLow,
		MotionStableHigh: threshold.DefaultMotionStableHigh,
	}, cfg.Threshold)

	previous := telemetry.Sample{Reference: 150, Motion: 1.0}
	current := telemetry.Sample{Reference: 160, Motion: 1.0}
	require.True(t, threshold.IsTamperSignal(previous, current, cfg.Threshold))

	cfg, err = Load(write("high.yaml", "listen_addr: \"127.0.0.1:50061\"\nthreshold:\n  motion_stable_high: 1.3\n"))
	require.NoError(t, err)
	require.Equal(t, threshold.Config{
		Sensitivity:      threshold.DefaultSensitivity,
		MotionStableLow:  threshold.DefaultMotionStableLow,
		MotionStableHigh: 1.3,
	}, cfg.Threshold)
}

// TestValidate_PartialThreshold fills the unset parts of a programmatic config.
func TestValidate_PartialThreshold(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		ListenAddress: "127.0.0.1:50061",
		Threshold:     threshold.Config{Sensitivity: 2.5},
	}

	require.NoError(t, Validate(cfg))
	require.Equal(t, threshold.Config{
		Sensitivity:      2.5,
		MotionStableLow:  threshold.DefaultMotionStableLow,
		MotionStableHigh: threshold.DefaultMotionStableHigh,
	}, cfg.Threshold)

	cfg = &Config{
		ListenAddress: "127.0.0.1:50061",
		Threshold:     threshold.Config{MotionStableLow: 0.8, MotionStableHigh: 1.2},
	}

	require.NoError(t, Validate(cfg))
	require.InDelta(t, threshold.DefaultSensitivity, cfg.Threshold.Sensitivity, 1e-9)
	require.InDelta(t, 0.8, cfg.Threshold.MotionStableLow, 1e-9)
}
