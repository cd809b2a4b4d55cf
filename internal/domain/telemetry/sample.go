package telemetry

import "time"

// Sample is one decoded telemetry frame.
type Sample struct {
	// Reference is the contact reading that jumps when the cover is removed.
	Reference float64
	// Motion is the motion indicator, close to 1.0 while the tag is at rest.
	Motion float64
	// CapturedAt is when the frame was received. Zero when decoded without a clock.
	CapturedAt time.Time
}

// Delta returns the absolute reference change from previous to s.
func (s Sample) Delta(previous Sample) float64 {
	d := s.Reference - previous.Reference
	if d < 0 {
		return -d
	}

	return d
}
