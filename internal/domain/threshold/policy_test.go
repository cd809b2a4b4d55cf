package threshold

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/halo-guard/internal/domain/telemetry"
)

// TestIsTamperSignal_Scenarios covers the reference scenarios for the policy.
func TestIsTamperSignal_Scenarios(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Sensitivity:      1.8,
		MotionStableLow:  0.9,
		MotionStableHigh: 1.1,
	}

	previous := telemetry.Sample{Reference: 150, Motion: 1.0}

	// Delta 2.1 while at rest.
	require.True(t, IsTamperSignal(previous, telemetry.Sample{Reference: 152.1, Motion: 1.0}, cfg))

	// Same delta while moving.
	require.False(t, IsTamperSignal(previous, telemetry.Sample{Reference: 152.1, Motion: 1.5}, cfg))

	// Drops count as well as rises.
	require.True(t, IsTamperSignal(previous, telemetry.Sample{Reference: 147, Motion: 0.95}, cfg))

	// Small delta at rest.
	require.False(t, IsTamperSignal(previous, telemetry.Sample{Reference: 151, Motion: 1.0}, cfg))
}

// TestIsTamperSignal_MotionBand checks that out-of-band motion always wins.
func TestIsTamperSignal_MotionBand(t *testing.T) {
	t.Parallel()

	cfg := Default()
	previous := telemetry.Sample{Reference: 0, Motion: 1.0}

	for _, motion := range []float64{-1, 0, 0.89, 1.11, 2, 100} {
		for _, reference := range []float64{-1e6, -10, 10, 1e6} {
			current := telemetry.Sample{Reference: reference, Motion: motion}
			require.False(t, IsTamperSignal(previous, current, cfg), "motion=%v reference=%v", motion, reference)
		}
	}

	// Band edges are inclusive.
	for _, motion := range []float64{cfg.MotionStableLow, cfg.MotionStableHigh} {
		require.True(t, IsTamperSignal(previous, telemetry.Sample{Reference: 10, Motion: motion}, cfg))
	}
}

// TestIsTamperSignal_StrictInequality asserts a delta equal to sensitivity is normal.
func TestIsTamperSignal_StrictInequality(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Sensitivity:      2,
		MotionStableLow:  0.9,
		MotionStableHigh: 1.1,
	}

	previous := telemetry.Sample{Reference: 100, Motion: 1}

	require.False(t, IsTamperSignal(previous, telemetry.Sample{Reference: 102, Motion: 1}, cfg))
	require.False(t, IsTamperSignal(previous, telemetry.Sample{Reference: 98, Motion: 1}, cfg))
	require.True(t, IsTamperSignal(previous, telemetry.Sample{Reference: 102.5, Motion: 1}, cfg))
}

// TestIsTamperSignalFrom treats a missing previous sample as the first of a session.
func TestIsTamperSignalFrom(t *testing.T) {
	t.Parallel()

	cfg := Default()
	current := telemetry.Sample{Reference: 1000, Motion: 1}

	require.False(t, IsTamperSignalFrom(nil, current, cfg))

	previous := telemetry.Sample{Reference: 0, Motion: 1}
	require.True(t, IsTamperSignalFrom(&previous, current, cfg))
}
