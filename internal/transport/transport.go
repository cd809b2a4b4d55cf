package transport

import (
	"context"
	"errors"

	"github.com/oshokin/halo-guard/internal/domain/device"
)

// ErrNotStarted is returned by operations invoked before Start.
var ErrNotStarted = errors.New("transport not started")

// Emitter receives transport events. Implementations must not block for long.
type Emitter func(Event)

// Transport is a radio capable of scanning and holding a single link.
type Transport interface {
	// Start powers the radio and registers emit. It must be called once
	// before any other method.
	Start(ctx context.Context, emit Emitter) error
	// StartScan begins discovery. Results arrive as ScanEvent values.
	StartScan(ctx context.Context) error
	// StopScan ends discovery. Stopping an idle radio is not an error.
	StopScan() error
	// Connect opens a link to h and subscribes to its telemetry. It blocks
	// until the link is usable, ctx ends, or the attempt fails.
	Connect(ctx context.Context, h device.Handle) error
	// Disconnect drops the link to h if one exists.
	Disconnect(h device.Handle) error
}
