package session

import (
	"context"
	"time"

	"github.com/oshokin/halo-guard/internal/domain/device"
	"github.com/oshokin/halo-guard/internal/domain/telemetry"
	"github.com/oshokin/halo-guard/internal/domain/threshold"
)

// TamperEvent is emitted once per normal-to-tamper edge.
type TamperEvent struct {
	// ID uniquely identifies the event for downstream deduplication.
	ID string
	// Device is the tag that reported the tampering.
	Device device.Handle
	// Previous is the sample the jump was measured from.
	Previous telemetry.Sample
	// Current is the sample that triggered the alarm.
	Current telemetry.Sample
	// Delta is the absolute reference change between the two samples.
	Delta float64
	// Config is the threshold snapshot the decision was made with.
	Config threshold.Config
	// DetectedAt is the machine clock reading when the latch was set.
	DetectedAt time.Time
}

// Sink receives tamper events.
type Sink interface {
	Notify(ctx context.Context, event TamperEvent) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, event TamperEvent) error

// Notify calls f.
func (f SinkFunc) Notify(ctx context.Context, event TamperEvent) error {
	return f(ctx, event)
}

// Thresholds supplies the threshold configuration for each evaluation.
type Thresholds interface {
	Snapshot() threshold.Config
}
