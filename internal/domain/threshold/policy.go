package threshold

import "github.com/oshokin/halo-guard/internal/domain/telemetry"

// IsTamperSignal reports whether current, compared with previous, indicates the
// cover was removed: the tag is at rest and the reference jumped by strictly
// more than the configured sensitivity.
func IsTamperSignal(previous, current telemetry.Sample, cfg Config) bool {
	if !cfg.InMotionBand(current.Motion) {
		return false
	}

	return current.Delta(previous) > cfg.Sensitivity
}

// IsTamperSignalFrom is IsTamperSignal for callers that may not have a previous
// sample yet. The first sample of a session is never a tamper signal.
func IsTamperSignalFrom(previous *telemetry.Sample, current telemetry.Sample, cfg Config) bool {
	if previous == nil {
		return false
	}

	return IsTamperSignal(*previous, current, cfg)
}
