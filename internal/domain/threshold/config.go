package threshold

import (
	"errors"
	"fmt"
	"math"
)

const (
	// DefaultSensitivity is the reference delta above which a resting tag reports tampering.
	DefaultSensitivity = 1.8
	// DefaultMotionStableLow is the lower bound of the at-rest motion band.
	DefaultMotionStableLow = 0.9
	// DefaultMotionStableHigh is the upper bound of the at-rest motion band.
	DefaultMotionStableHigh = 1.1
)

var (
	// ErrInvalidConfig is returned when a Config fails validation.
	ErrInvalidConfig = errors.New("invalid threshold config")

	errNotFinite           = errors.New("values must be finite")
	errSensitivityPositive = errors.New("sensitivity must be greater than zero")
	errMotionBandInverted  = errors.New("motion stable low must not exceed high")
)

// Config is the user-adjustable tamper policy configuration.
type Config struct {
	// Sensitivity is the minimum reference delta (exclusive) treated as tampering.
	Sensitivity float64 `yaml:"sensitivity"`
	// MotionStableLow is the inclusive lower bound of the at-rest motion band.
	MotionStableLow float64 `yaml:"motion_stable_low"`
	// MotionStableHigh is the inclusive upper bound of the at-rest motion band.
	MotionStableHigh float64 `yaml:"motion_stable_high"`
}

// Default returns the factory configuration.
func Default() Config {
	return Config{
		Sensitivity:      DefaultSensitivity,
		MotionStableLow:  DefaultMotionStableLow,
		MotionStableHigh: DefaultMotionStableHigh,
	}
}

// Validate reports whether c can be used for evaluation.
func (c Config) Validate() error {
	for _, v := range []float64{c.Sensitivity, c.MotionStableLow, c.MotionStableHigh} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, errNotFinite)
		}
	}

	if c.Sensitivity <= 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errSensitivityPositive)
	}

	if c.MotionStableLow > c.MotionStableHigh {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errMotionBandInverted)
	}

	return nil
}

// InMotionBand reports whether motion lies inside the inclusive at-rest band.
func (c Config) InMotionBand(motion float64) bool {
	return motion >= c.MotionStableLow && motion <= c.MotionStableHigh
}
