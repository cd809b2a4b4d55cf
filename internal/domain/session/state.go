package session

import (
	"time"

	"github.com/oshokin/halo-guard/internal/domain/device"
	"github.com/oshokin/halo-guard/internal/domain/telemetry"
)

// Kind enumerates the session states.
type Kind int

const (
	// KindIdle is the initial state: no scan, no link.
	KindIdle Kind = iota
	// KindScanning means discovery is running.
	KindScanning
	// KindConnecting means a connection attempt to one device is in flight.
	KindConnecting
	// KindConnected means the link is up and telemetry is evaluated.
	KindConnected
	// KindDisconnected means the link was lost unexpectedly.
	KindDisconnected
)

// String returns the lowercase state name.
func (k Kind) String() string {
	switch k {
	case KindIdle:
		return "idle"
	case KindScanning:
		return "scanning"
	case KindConnecting:
		return "connecting"
	case KindConnected:
		return "connected"
	case KindDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Status is the derived alarm status shown to the user.
type Status int

const (
	// StatusNormal means no alarm. Reported in every state except Connected
	// with a pending grace period or a latched alarm.
	StatusNormal Status = iota
	// StatusArmed means connected and still inside the post-connect grace period.
	StatusArmed
	// StatusTamper means the alarm latch is set.
	StatusTamper
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case StatusNormal:
		return "normal"
	case StatusArmed:
		return "armed"
	case StatusTamper:
		return "tamper"
	default:
		return "unknown"
	}
}

// Snapshot is a consistent copy of the machine state.
type Snapshot struct {
	// Kind is the current state.
	Kind Kind
	// Device is the device being connected to or connected. Zero otherwise.
	Device device.Handle
	// Generation identifies the latest connection attempt.
	Generation uint64
	// ArmedAt is when tamper evaluation starts. Zero unless connected.
	ArmedAt time.Time
	// Latched reports whether the alarm latch is set.
	Latched bool
	// Status is the derived alarm status at the time of the snapshot.
	Status Status
	// Current is the most recent sample, if any.
	Current *telemetry.Sample
	// Previous is the sample before Current, if any.
	Previous *telemetry.Sample
}

// Transition describes a state change, reported to the observer.
type Transition struct {
	// From is the state before the change.
	From Kind
	// To is the state after the change.
	To Kind
	// Device is the device involved in the change, if any.
	Device device.Handle
	// Generation is the connection attempt the change belongs to.
	Generation uint64
}
