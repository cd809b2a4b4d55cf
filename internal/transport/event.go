package transport

import "github.com/oshokin/halo-guard/internal/domain/device"

// Event is one observation reported by a Transport or by a connection attempt.
type Event interface {
	event()
}

// ScanEvent reports an advertisement seen during discovery.
type ScanEvent struct {
	// Handle identifies the advertiser.
	Handle device.Handle
	// Connectable reports whether the advertisement accepts connections.
	Connectable bool
}

// LinkKind enumerates link lifecycle changes.
type LinkKind int

const (
	// LinkEstablished means a connection attempt succeeded.
	LinkEstablished LinkKind = iota
	// LinkFailed means a connection attempt failed or timed out.
	LinkFailed
	// LinkLost means an established link dropped unexpectedly.
	LinkLost
)

// String returns the lowercase kind name.
func (k LinkKind) String() string {
	switch k {
	case LinkEstablished:
		return "established"
	case LinkFailed:
		return "failed"
	case LinkLost:
		return "lost"
	default:
		return "unknown"
	}
}

// LinkEvent reports a link lifecycle change.
type LinkEvent struct {
	// Kind is the change.
	Kind LinkKind
	// Handle is the peer.
	Handle device.Handle
	// Generation is the attempt the event belongs to. Zero for LinkLost.
	Generation uint64
	// Err is the failure cause for LinkFailed.
	Err error
}

// TelemetryEvent carries one raw notification payload.
type TelemetryEvent struct {
	// Handle is the sender.
	Handle device.Handle
	// Payload is the unparsed frame. The receiver owns it.
	Payload []byte
}

func (ScanEvent) event()      {}
func (LinkEvent) event()      {}
func (TelemetryEvent) event() {}
