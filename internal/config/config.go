package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/halo-guard/internal/domain/threshold"
	"github.com/oshokin/halo-guard/internal/logger"
)

// Config holds the settings shared by halo-monitor and halo-ctl.
type Config struct {
	// ListenAddress is the gRPC address of the monitor control API.
	ListenAddress string `yaml:"listen_addr"`
	// Timeout bounds individual RPC calls and network notifications.
	Timeout time.Duration `yaml:"timeout"`
	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
	// GracePeriod suppresses tamper evaluation right after a link is established.
	GracePeriod time.Duration `yaml:"grace_period"`
	// RescanOnDisconnect restarts discovery after a failed or lost link.
	RescanOnDisconnect bool `yaml:"rescan_on_disconnect"`
	// ThresholdFile is where the user-adjusted sensitivity is persisted.
	ThresholdFile string `yaml:"threshold_file"`
	// Threshold is the policy configuration used until a persisted sensitivity overrides it.
	Threshold threshold.Config `yaml:"threshold"`
	// Bluetooth configures the tag transport.
	Bluetooth Bluetooth `yaml:"bluetooth"`
	// Notify configures where tamper alerts are pushed.
	Notify Notify `yaml:"notify"`
}

// Bluetooth identifies the telemetry characteristic on the tag.
type Bluetooth struct {
	// ServiceUUID is the GATT service exposing telemetry.
	ServiceUUID string `yaml:"service_uuid"`
	// CharacteristicUUID is the notifying telemetry characteristic.
	CharacteristicUUID string `yaml:"characteristic_uuid"`
	// ConnectTimeout bounds a single connection attempt.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	// LogLevel overrides the global log level for radio logs. Empty inherits it.
	LogLevel string `yaml:"log_level"`
}

// Notify selects the alert sinks. Empty sections are disabled.
type Notify struct {
	// Desktop enables freedesktop notifications on the session bus.
	Desktop bool `yaml:"desktop"`
	// MQTT publishes alerts to a broker topic.
	MQTT MQTT `yaml:"mqtt"`
	// Redis appends alerts to a stream.
	Redis Redis `yaml:"redis"`
}

// MQTT configures the broker sink.
type MQTT struct {
	// Broker is the broker URL, e.g. tcp://127.0.0.1:1883. Empty disables the sink.
	Broker string `yaml:"broker"`
	// ClientID identifies this publisher.
	ClientID string `yaml:"client_id"`
	// Topic receives one message per tamper event.
	Topic string `yaml:"topic"`
	// Username is optional.
	Username string `yaml:"username"`
	// Password is optional.
	Password string `yaml:"password"`
	// QoS is the publish quality of service (0, 1 or 2).
	QoS byte `yaml:"qos"`
}

// Redis configures the stream sink.
type Redis struct {
	// Address is host:port. Empty disables the sink.
	Address string `yaml:"addr"`
	// Password is optional.
	Password string `yaml:"password"`
	// DB is the database index.
	DB int `yaml:"db"`
	// Stream is the stream key alerts are appended to.
	Stream string `yaml:"stream"`
	// MaxLen caps the stream length approximately. Zero keeps everything.
	MaxLen int64 `yaml:"max_len"`
}

const (
	// DefaultConfigFilename is the default settings filename.
	DefaultConfigFilename = "halo-guard-settings.yaml"

	// DefaultThresholdFilename is the default file for the persisted sensitivity.
	DefaultThresholdFilename = "halo-guard-threshold.json"

	// DefaultTimeout is the default duration for RPC calls and notifications.
	DefaultTimeout = 5 * time.Second

	// DefaultGracePeriod is the default post-connect grace period.
	DefaultGracePeriod = 5 * time.Second

	// DefaultConnectTimeout bounds a connection attempt.
	DefaultConnectTimeout = 20 * time.Second

	// DefaultServiceUUID is the telemetry service advertised by the tag firmware.
	DefaultServiceUUID = "75340d9a-b70d-11ed-afa1-0242ac120002"

	// DefaultCharacteristicUUID is the telemetry characteristic of the tag firmware.
	DefaultCharacteristicUUID = "84244464-b70d-11ed-afa1-0242ac120002"

	// DefaultMQTTClientID identifies the monitor on the broker.
	DefaultMQTTClientID = "halo-monitor"

	// DefaultMQTTTopic receives tamper events.
	DefaultMQTTTopic = "halo/tamper"

	// DefaultRedisStream receives tamper events.
	DefaultRedisStream = "halo:tamper"

	// DefaultFilePermissions is the permission for files written by the binaries.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errListenAddressRequired is returned when the listen address is missing.
	errListenAddressRequired = errors.New("listen address must be provided")
	// errBadLogLevel is returned for an unknown log level name.
	errBadLogLevel = errors.New("unknown log level")
	// errBadQoS is returned for an MQTT QoS above 2.
	errBadQoS = errors.New("mqtt qos must be 0, 1 or 2")
	// errNegativeDuration is returned for negative durations.
	errNegativeDuration = errors.New("durations must not be negative")
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{
		ListenAddress: "127.0.0.1:50061",
	}

	// Defaults cannot fail validation.
	_ = Validate(cfg)

	return cfg
}

// Load reads configuration from the provided path and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	// Keys missing from the threshold section keep their factory values.
	cfg := Config{Threshold: threshold.Default()}
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save validates cfg and writes it to path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields and fills defaults for the optional ones.
//
//nolint:cyclop // A flat list of field checks reads better than helpers.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.ListenAddress == "" {
		return errListenAddressRequired
	}

	if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		return fmt.Errorf("invalid listen address: %w", err)
	}

	if cfg.Timeout < 0 || cfg.GracePeriod < 0 || cfg.Bluetooth.ConnectTimeout < 0 {
		return errNegativeDuration
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.GracePeriod == 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if _, ok := logger.ParseLogLevel(cfg.LogLevel); !ok {
		return fmt.Errorf("%w: %q", errBadLogLevel, cfg.LogLevel)
	}

	if cfg.ThresholdFile == "" {
		cfg.ThresholdFile = DefaultThresholdFilename
	}

	if cfg.Threshold.Sensitivity == 0 {
		cfg.Threshold.Sensitivity = threshold.DefaultSensitivity
	}

	// A [0, 0] band never contains the at-rest motion of a tag.
	if cfg.Threshold.MotionStableLow == 0 && cfg.Threshold.MotionStableHigh == 0 {
		cfg.Threshold.MotionStableLow = threshold.DefaultMotionStableLow
		cfg.Threshold.MotionStableHigh = threshold.DefaultMotionStableHigh
	}

	if err := cfg.Threshold.Validate(); err != nil {
		return err
	}

	if err := validateBluetooth(&cfg.Bluetooth); err != nil {
		return err
	}

	return validateNotify(&cfg.Notify)
}

// validateBluetooth fills transport defaults.
func validateBluetooth(b *Bluetooth) error {
	if b.LogLevel != "" {
		if _, ok := logger.ParseLogLevel(b.LogLevel); !ok {
			return fmt.Errorf("%w: bluetooth %q", errBadLogLevel, b.LogLevel)
		}
	}

	if b.ServiceUUID == "" {
		b.ServiceUUID = DefaultServiceUUID
	}

	if b.CharacteristicUUID == "" {
		b.CharacteristicUUID = DefaultCharacteristicUUID
	}

	if b.ConnectTimeout == 0 {
		b.ConnectTimeout = DefaultConnectTimeout
	}

	return nil
}

// validateNotify fills sink defaults for the enabled sinks.
func validateNotify(n *Notify) error {
	if n.MQTT.Broker != "" {
		if n.MQTT.QoS > 2 { //nolint:mnd // MQTT defines QoS levels 0..2.
			return errBadQoS
		}

		if n.MQTT.ClientID == "" {
			n.MQTT.ClientID = DefaultMQTTClientID
		}

		if n.MQTT.Topic == "" {
			n.MQTT.Topic = DefaultMQTTTopic
		}
	}

	if n.Redis.Address != "" {
		if _, _, err := net.SplitHostPort(n.Redis.Address); err != nil {
			return fmt.Errorf("invalid redis address: %w", err)
		}

		if n.Redis.Stream == "" {
			n.Redis.Stream = DefaultRedisStream
		}
	}

	return nil
}
