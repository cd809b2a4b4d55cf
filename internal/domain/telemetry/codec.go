package telemetry

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

// fieldCount is the number of comma-separated fields in a frame.
const fieldCount = 2

// ErrMalformed is returned when a payload is not a valid two-field frame.
var ErrMalformed = errors.New("malformed telemetry frame")

// frameCutset lists bytes trimmed around a payload. Some firmware appends a
// NUL terminator or a line ending to every notification.
const frameCutset = " \t\r\n\x00"

// Decode parses a raw notification payload into a Sample with a zero CapturedAt.
func Decode(raw []byte) (Sample, error) {
	trimmed := bytes.Trim(raw, frameCutset)
	if len(trimmed) == 0 {
		return Sample{}, fmt.Errorf("%w: empty payload", ErrMalformed)
	}

	fields := bytes.Split(trimmed, []byte{','})
	if len(fields) != fieldCount {
		return Sample{}, fmt.Errorf("%w: expected %d fields, got %d", ErrMalformed, fieldCount, len(fields))
	}

	reference, err := parseField("reference", fields[0])
	if err != nil {
		return Sample{}, err
	}

	motion, err := parseField("motion", fields[1])
	if err != nil {
		return Sample{}, err
	}

	return Sample{
		Reference: reference,
		Motion:    motion,
	}, nil
}

// DecodeAt parses raw and stamps the resulting Sample with at.
func DecodeAt(raw []byte, at time.Time) (Sample, error) {
	sample, err := Decode(raw)
	if err != nil {
		return Sample{}, err
	}

	sample.CapturedAt = at

	return sample, nil
}

// parseField converts a single frame field into a finite float.
func parseField(name string, field []byte) (float64, error) {
	text := string(bytes.TrimSpace(field))
	if text == "" {
		return 0, fmt.Errorf("%w: %s field is missing", ErrMalformed, name)
	}

	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s field %q: %w", ErrMalformed, name, text, err)
	}

	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%w: %s field %q is not finite", ErrMalformed, name, text)
	}

	return value, nil
}
