package device

import (
	"errors"
	"fmt"
	"strings"
)

// PlaceholderName is what some stacks report for a peripheral without a name.
const PlaceholderName = "Unknown"

// ErrUnknown is returned when an identifier is not in the directory.
var ErrUnknown = errors.New("unknown device")

// Handle identifies a discovered peripheral.
type Handle struct {
	// ID is the transport-level identifier (address or UUID).
	ID string
	// Name is the advertised local name.
	Name string
	// RSSI is the signal strength at discovery time, in dBm.
	RSSI int16
}

// IsZero reports whether h is the empty handle.
func (h Handle) IsZero() bool {
	return h.ID == ""
}

// String renders the handle for logs.
func (h Handle) String() string {
	if h.IsZero() {
		return "<none>"
	}

	return fmt.Sprintf("%s (%s)", h.Name, h.ID)
}

// Admissible reports whether a discovery with the given name and
// connectability should be listed.
func Admissible(name string, connectable bool) bool {
	if !connectable {
		return false
	}

	name = strings.TrimSpace(name)

	return name != "" && name != PlaceholderName
}
