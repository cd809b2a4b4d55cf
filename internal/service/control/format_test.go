package control

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	api "github.com/oshokin/halo-guard/internal/api/grpc/monitor"
)

// mustStruct builds a Struct or fails the test.
func mustStruct(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()

	s, err := structpb.NewStruct(fields)
	require.NoError(t, err)

	return s
}

// TestPrintStatus renders optional sections only when present.
func TestPrintStatus(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	require.NoError(t, printStatus(&out, mustStruct(t, map[string]any{
		api.FieldState:            "idle",
		api.FieldStatus:           "normal",
		api.FieldSensitivity:      1.8,
		api.FieldMotionStableLow:  0.9,
		api.FieldMotionStableHigh: 1.1,
	})))
	require.Equal(t,
		"state:       idle\n"+
			"status:      normal\n"+
			"sensitivity: 1.80 (stable motion 0.90..1.10)\n",
		out.String())

	out.Reset()

	require.NoError(t, printStatus(&out, mustStruct(t, map[string]any{
		api.FieldState:            "connected",
		api.FieldStatus:           "tamper",
		api.FieldDeviceID:         "aa:bb",
		api.FieldDeviceName:       "Halo",
		api.FieldDeviceRSSI:       -52.0,
		api.FieldArmedAt:          "2026-10-19T20:00:05Z",
		api.FieldCurrentReference: 193.0,
		api.FieldCurrentMotion:    1.02,
		api.FieldSensitivity:      1.8,
		api.FieldMotionStableLow:  0.9,
		api.FieldMotionStableHigh: 1.1,
	})))
	require.Contains(t, out.String(), "device:      Halo (aa:bb) -52 dBm\n")
	require.Contains(t, out.String(), "armed at:    2026-10-19T20:00:05Z\n")
	require.Contains(t, out.String(), "reading:     193.00 (motion 1.02)\n")
}

// TestPrintDevices lists devices or says there are none.
func TestPrintDevices(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	require.NoError(t, printDevices(&out, mustStruct(t, map[string]any{api.FieldDevices: []any{}})))
	require.Equal(t, "no devices found\n", out.String())

	out.Reset()

	require.NoError(t, printDevices(&out, mustStruct(t, map[string]any{
		api.FieldDevices: []any{
			map[string]any{api.FieldID: "aa:bb", api.FieldName: "Halo", api.FieldRSSI: -52.0},
			map[string]any{api.FieldID: "cc:dd", api.FieldName: "Spare", api.FieldRSSI: -80.0},
		},
	})))

	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	require.Contains(t, string(lines[0]), "aa:bb")
	require.Contains(t, string(lines[1]), "Spare")
	require.Contains(t, string(lines[1]), "-80 dBm")
}

// TestPrintAlert renders one line per alert.
func TestPrintAlert(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	require.NoError(t, printAlert(&out, mustStruct(t, map[string]any{
		"detected_at":        "2026-10-19T20:01:00Z",
		"device_name":        "Halo",
		"device_id":          "aa:bb",
		"previous_reference": 190.5,
		"current_reference":  193.0,
		"delta":              2.5,
	})))
	require.Equal(t, "2026-10-19T20:01:00Z TAMPER Halo (aa:bb) reference 190.50 -> 193.00, delta 2.50\n", out.String())

	out.Reset()

	require.NoError(t, printThreshold(&out, mustStruct(t, map[string]any{
		api.FieldSensitivity:      2.0,
		api.FieldMotionStableLow:  0.8,
		api.FieldMotionStableHigh: 1.2,
	})))
	require.Equal(t, "sensitivity: 2.00 (stable motion 0.80..1.20)\n", out.String())
}
