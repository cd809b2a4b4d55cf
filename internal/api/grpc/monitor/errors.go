package monitor

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/oshokin/halo-guard/internal/domain/device"
	"github.com/oshokin/halo-guard/internal/domain/session"
	"github.com/oshokin/halo-guard/internal/domain/threshold"
)

// codeMapping pairs domain errors with the status codes they travel as.
//
//nolint:gochecknoglobals // Read-only lookup table.
var codeMapping = []struct {
	err  error
	code codes.Code
}{
	{session.ErrSessionBusy, codes.Aborted},
	{session.ErrNotLatched, codes.FailedPrecondition},
	{device.ErrUnknown, codes.NotFound},
	{threshold.ErrInvalidConfig, codes.InvalidArgument},
	{session.ErrEmptyHandle, codes.InvalidArgument},
}

// toStatus converts a service error into a gRPC status error.
func toStatus(err error) error {
	if err == nil {
		return nil
	}

	for _, m := range codeMapping {
		if errors.Is(err, m.err) {
			return status.Error(m.code, err.Error())
		}
	}

	return status.Error(codes.Internal, err.Error())
}

// FromStatus converts a gRPC status error back into the matching domain
// error so callers can use errors.Is. Unknown codes are returned unchanged.
func FromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok || st.Code() == codes.OK {
		return err
	}

	var target error

	switch st.Code() { //nolint:exhaustive // Only codes produced by toStatus are mapped.
	case codes.Aborted:
		target = session.ErrSessionBusy
	case codes.FailedPrecondition:
		target = session.ErrNotLatched
	case codes.NotFound:
		target = device.ErrUnknown
	case codes.InvalidArgument:
		target = threshold.ErrInvalidConfig
	default:
		return err
	}

	return fmt.Errorf("%w: %s", target, st.Message())
}
