package monitor

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/halo-guard/internal/domain/device"
	"github.com/oshokin/halo-guard/internal/domain/session"
	"github.com/oshokin/halo-guard/internal/domain/threshold"
)

// Field names used in the Struct messages.
const (
	FieldState            = "state"
	FieldStatus           = "status"
	FieldLatched          = "latched"
	FieldGeneration       = "generation"
	FieldArmedAt          = "armed_at"
	FieldDeviceID         = "device_id"
	FieldDeviceName       = "device_name"
	FieldDeviceRSSI       = "device_rssi"
	FieldCurrentReference = "current_reference"
	FieldCurrentMotion    = "current_motion"
	FieldPreviousRef      = "previous_reference"
	FieldPreviousMotion   = "previous_motion"
	FieldSensitivity      = "sensitivity"
	FieldMotionStableLow  = "motion_stable_low"
	FieldMotionStableHigh = "motion_stable_high"
	FieldDevices          = "devices"
	FieldID               = "id"
	FieldName             = "name"
	FieldRSSI             = "rssi"
)

// errNotANumber is returned for threshold fields that are not numbers.
var errNotANumber = fmt.Errorf("%w: value must be a number", threshold.ErrInvalidConfig)

// statusToProto renders the session snapshot and live thresholds.
func statusToProto(snapshot session.Snapshot, cfg threshold.Config) (*structpb.Struct, error) {
	fields := map[string]any{
		FieldState:            snapshot.Kind.String(),
		FieldStatus:           snapshot.Status.String(),
		FieldLatched:          snapshot.Latched,
		FieldGeneration:       float64(snapshot.Generation),
		FieldSensitivity:      cfg.Sensitivity,
		FieldMotionStableLow:  cfg.MotionStableLow,
		FieldMotionStableHigh: cfg.MotionStableHigh,
	}

	if !snapshot.Device.IsZero() {
		fields[FieldDeviceID] = snapshot.Device.ID
		fields[FieldDeviceName] = snapshot.Device.Name
		fields[FieldDeviceRSSI] = float64(snapshot.Device.RSSI)
	}

	if !snapshot.ArmedAt.IsZero() {
		fields[FieldArmedAt] = snapshot.ArmedAt.UTC().Format(time.RFC3339Nano)
	}

	if snapshot.Current != nil {
		fields[FieldCurrentReference] = snapshot.Current.Reference
		fields[FieldCurrentMotion] = snapshot.Current.Motion
	}

	if snapshot.Previous != nil {
		fields[FieldPreviousRef] = snapshot.Previous.Reference
		fields[FieldPreviousMotion] = snapshot.Previous.Motion
	}

	result, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("build status: %w", err)
	}

	return result, nil
}

// devicesToProto renders the directory listing.
func devicesToProto(handles []device.Handle) (*structpb.Struct, error) {
	list := make([]any, 0, len(handles))

	for _, h := range handles {
		list = append(list, map[string]any{
			FieldID:   h.ID,
			FieldName: h.Name,
			FieldRSSI: float64(h.RSSI),
		})
	}

	result, err := structpb.NewStruct(map[string]any{FieldDevices: list})
	if err != nil {
		return nil, fmt.Errorf("build device list: %w", err)
	}

	return result, nil
}

// thresholdToProto renders a threshold configuration.
func thresholdToProto(cfg threshold.Config) *structpb.Struct {
	return &structpb.Struct{
		Fields: map[string]*structpb.Value{
			FieldSensitivity:      structpb.NewNumberValue(cfg.Sensitivity),
			FieldMotionStableLow:  structpb.NewNumberValue(cfg.MotionStableLow),
			FieldMotionStableHigh: structpb.NewNumberValue(cfg.MotionStableHigh),
		},
	}
}

// thresholdFromProto overlays the fields present in req onto base.
func thresholdFromProto(base threshold.Config, req *structpb.Struct) (threshold.Config, error) {
	result := base

	for name, value := range req.GetFields() {
		number, ok := value.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return threshold.Config{}, fmt.Errorf("%s: %w", name, errNotANumber)
		}

		switch name {
		case FieldSensitivity:
			result.Sensitivity = number.NumberValue
		case FieldMotionStableLow:
			result.MotionStableLow = number.NumberValue
		case FieldMotionStableHigh:
			result.MotionStableHigh = number.NumberValue
		default:
			return threshold.Config{}, fmt.Errorf("%w: unknown field %q", threshold.ErrInvalidConfig, name)
		}
	}

	return result, nil
}
