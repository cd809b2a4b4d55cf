package notify

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/halo-guard/internal/domain/session"
)

// Payload converts event into the structured form shared by every wire sink
// and the control API alert stream.
func Payload(event session.TamperEvent) (*structpb.Struct, error) {
	payload, err := structpb.NewStruct(map[string]any{
		"id":                 event.ID,
		"device_id":          event.Device.ID,
		"device_name":        event.Device.Name,
		"rssi":               float64(event.Device.RSSI),
		"previous_reference": event.Previous.Reference,
		"previous_motion":    event.Previous.Motion,
		"current_reference":  event.Current.Reference,
		"current_motion":     event.Current.Motion,
		"delta":              event.Delta,
		"sensitivity":        event.Config.Sensitivity,
		"motion_stable_low":  event.Config.MotionStableLow,
		"motion_stable_high": event.Config.MotionStableHigh,
		"detected_at":        event.DetectedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("build event payload: %w", err)
	}

	return payload, nil
}

// EncodeJSON renders event as compact JSON.
func EncodeJSON(event session.TamperEvent) ([]byte, error) {
	payload, err := Payload(event)
	if err != nil {
		return nil, err
	}

	data, err := protojson.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode event payload: %w", err)
	}

	return data, nil
}

// Summary is the one-line human description of event.
func Summary(event session.TamperEvent) string {
	name := event.Device.Name
	if name == "" {
		name = event.Device.ID
	}

	return fmt.Sprintf("Cover removed on %s (reading jumped by %.2f)", name, event.Delta)
}
