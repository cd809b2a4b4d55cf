package control

import (
	"fmt"
	"io"
	"strings"

	"google.golang.org/protobuf/types/known/structpb"

	api "github.com/oshokin/halo-guard/internal/api/grpc/monitor"
)

// printStatus renders a status message as aligned lines.
func printStatus(out io.Writer, status *structpb.Struct) error {
	fields := status.GetFields()

	var b strings.Builder

	fmt.Fprintf(&b, "state:       %s\n", fields[api.FieldState].GetStringValue())
	fmt.Fprintf(&b, "status:      %s\n", fields[api.FieldStatus].GetStringValue())

	if id := fields[api.FieldDeviceID].GetStringValue(); id != "" {
		fmt.Fprintf(
			&b,
			"device:      %s (%s) %.0f dBm\n",
			fields[api.FieldDeviceName].GetStringValue(),
			id,
			fields[api.FieldDeviceRSSI].GetNumberValue(),
		)
	}

	if armedAt := fields[api.FieldArmedAt].GetStringValue(); armedAt != "" {
		fmt.Fprintf(&b, "armed at:    %s\n", armedAt)
	}

	if _, ok := fields[api.FieldCurrentReference]; ok {
		fmt.Fprintf(
			&b,
			"reading:     %.2f (motion %.2f)\n",
			fields[api.FieldCurrentReference].GetNumberValue(),
			fields[api.FieldCurrentMotion].GetNumberValue(),
		)
	}

	fmt.Fprintf(
		&b,
		"sensitivity: %.2f (stable motion %.2f..%.2f)\n",
		fields[api.FieldSensitivity].GetNumberValue(),
		fields[api.FieldMotionStableLow].GetNumberValue(),
		fields[api.FieldMotionStableHigh].GetNumberValue(),
	)

	_, err := io.WriteString(out, b.String())

	return err
}

// printDevices renders the device list, one device per line.
func printDevices(out io.Writer, devices *structpb.Struct) error {
	list := devices.GetFields()[api.FieldDevices].GetListValue().GetValues()

	var b strings.Builder

	if len(list) == 0 {
		b.WriteString("no devices found\n")
	}

	for _, item := range list {
		fields := item.GetStructValue().GetFields()

		fmt.Fprintf(
			&b,
			"%-20s %-24s %4.0f dBm\n",
			fields[api.FieldID].GetStringValue(),
			fields[api.FieldName].GetStringValue(),
			fields[api.FieldRSSI].GetNumberValue(),
		)
	}

	_, err := io.WriteString(out, b.String())

	return err
}

// printThreshold renders the applied threshold configuration.
func printThreshold(out io.Writer, cfg *structpb.Struct) error {
	fields := cfg.GetFields()

	_, err := fmt.Fprintf(
		out,
		"sensitivity: %.2f (stable motion %.2f..%.2f)\n",
		fields[api.FieldSensitivity].GetNumberValue(),
		fields[api.FieldMotionStableLow].GetNumberValue(),
		fields[api.FieldMotionStableHigh].GetNumberValue(),
	)

	return err
}

// printAlert renders one tamper alert.
func printAlert(out io.Writer, alert *structpb.Struct) error {
	fields := alert.GetFields()

	_, err := fmt.Fprintf(
		out,
		"%s TAMPER %s (%s) reference %.2f -> %.2f, delta %.2f\n",
		fields["detected_at"].GetStringValue(),
		fields["device_name"].GetStringValue(),
		fields["device_id"].GetStringValue(),
		fields["previous_reference"].GetNumberValue(),
		fields["current_reference"].GetNumberValue(),
		fields["delta"].GetNumberValue(),
	)

	return err
}
