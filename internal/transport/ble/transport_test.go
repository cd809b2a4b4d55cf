package ble

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"tinygo.org/x/bluetooth"

	"github.com/oshokin/halo-guard/internal/config"
	"github.com/oshokin/halo-guard/internal/domain/device"
	"github.com/oshokin/halo-guard/internal/logger"
	"github.com/oshokin/halo-guard/internal/transport"
)

// errNotScanning mimics the adapter refusing to stop a scan it has not started.
var errNotScanning = errors.New("not scanning")

// eventLog collects emitted events.
type eventLog struct {
	mu     sync.Mutex
	events []transport.Event
}

// emit records ev.
func (l *eventLog) emit(ev transport.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, ev)
}

// newTestTransport returns a transport wired to log without touching the radio.
func newTestTransport(t *testing.T, log *eventLog) *Transport {
	t.Helper()

	tr, err := New(config.Bluetooth{
		ServiceUUID:        config.DefaultServiceUUID,
		CharacteristicUUID: config.DefaultCharacteristicUUID,
	})
	require.NoError(t, err)

	if log != nil {
		tr.ctx = context.Background()
		tr.emit = log.emit
	}

	return tr
}

// TestNew_InvalidUUID rejects malformed identifiers.
func TestNew_InvalidUUID(t *testing.T) {
	t.Parallel()

	_, err := New(config.Bluetooth{ServiceUUID: "nope", CharacteristicUUID: config.DefaultCharacteristicUUID})
	require.Error(t, err)

	_, err = New(config.Bluetooth{ServiceUUID: config.DefaultServiceUUID, CharacteristicUUID: "nope"})
	require.Error(t, err)

	tr := newTestTransport(t, nil)

	expected, err := bluetooth.ParseUUID(config.DefaultServiceUUID)
	require.NoError(t, err)
	require.Equal(t, expected, tr.service)
}

// TestNew_LogLevel parses the radio log level override.
func TestNew_LogLevel(t *testing.T) {
	t.Parallel()

	_, err := New(config.Bluetooth{
		ServiceUUID:        config.DefaultServiceUUID,
		CharacteristicUUID: config.DefaultCharacteristicUUID,
		LogLevel:           "chatty",
	})
	require.ErrorIs(t, err, errBadLogLevel)

	tr, err := New(config.Bluetooth{
		ServiceUUID:        config.DefaultServiceUUID,
		CharacteristicUUID: config.DefaultCharacteristicUUID,
		LogLevel:           "debug",
	})
	require.NoError(t, err)
	require.True(t, tr.levelSet)
	require.Equal(t, zapcore.DebugLevel, tr.level)

	ctx := tr.logContext(context.Background())
	require.True(t, logger.FromContext(ctx).Desugar().Core().Enabled(zapcore.DebugLevel))

	require.False(t, newTestTransport(t, nil).levelSet)
}

// TestTransport_NotStarted refuses radio operations before Start.
func TestTransport_NotStarted(t *testing.T) {
	t.Parallel()

	tr := newTestTransport(t, nil)

	require.ErrorIs(t, tr.StartScan(context.Background()), transport.ErrNotStarted)
	require.ErrorIs(t, tr.Connect(context.Background(), device.Handle{ID: "x"}), transport.ErrNotStarted)
	require.NoError(t, tr.StopScan())
	require.NoError(t, tr.Disconnect(device.Handle{ID: "x"}))
}

// TestTransport_ConnectUnknownAddress needs a prior sighting.
func TestTransport_ConnectUnknownAddress(t *testing.T) {
	t.Parallel()

	tr := newTestTransport(t, new(eventLog))

	err := tr.Connect(context.Background(), device.Handle{ID: "AA:BB:CC:DD:EE:FF", Name: "Halo"})
	require.ErrorIs(t, err, device.ErrUnknown)
	require.Empty(t, tr.handles)
}

// TestTransport_OnNotificationCopiesPayload detaches the adapter buffer.
func TestTransport_OnNotificationCopiesPayload(t *testing.T) {
	t.Parallel()

	log := new(eventLog)
	tr := newTestTransport(t, log)
	h := device.Handle{ID: "tag", Name: "Halo"}

	buf := []byte("187,1.02")
	tr.onNotification(h, buf)
	buf[0] = 'X'

	require.Len(t, log.events, 1)

	ev, ok := log.events[0].(transport.TelemetryEvent)
	require.True(t, ok)
	require.Equal(t, h, ev.Handle)
	require.Equal(t, "187,1.02", string(ev.Payload))
}

// TestTransport_LinkDropped reports tracked peers only, once.
func TestTransport_LinkDropped(t *testing.T) {
	t.Parallel()

	log := new(eventLog)
	tr := newTestTransport(t, log)
	h := device.Handle{ID: "tag", Name: "Halo"}

	tr.linkDropped(h.ID)
	require.Empty(t, log.events)

	tr.handles[h.ID] = trackedPeer{handle: h, attempt: 1}
	tr.linkDropped(h.ID)
	tr.linkDropped(h.ID)

	require.Equal(t, []transport.Event{
		transport.LinkEvent{Kind: transport.LinkLost, Handle: h},
	}, log.events)
}

// TestTransport_ForgetKeepsNewerAttempt lets a cancelled attempt clean up only
// its own entry, so a drop after a quick reconnect is still reported.
func TestTransport_ForgetKeepsNewerAttempt(t *testing.T) {
	t.Parallel()

	log := new(eventLog)
	tr := newTestTransport(t, log)
	h := device.Handle{ID: "tag", Name: "Halo"}

	// Attempt 1 was cancelled after attempt 2 registered the same device.
	tr.handles[h.ID] = trackedPeer{handle: h, attempt: 2}
	tr.forget(h.ID, 1)
	require.Contains(t, tr.handles, h.ID)

	tr.linkDropped(h.ID)
	require.Equal(t, []transport.Event{
		transport.LinkEvent{Kind: transport.LinkLost, Handle: h},
	}, log.events)

	tr.handles[h.ID] = trackedPeer{handle: h, attempt: 3}
	tr.forget(h.ID, 3)
	require.NotContains(t, tr.handles, h.ID)
}

// TestTransport_StopScanBeforeAdapterScan ends a scan that had not reached the
// adapter when it was stopped.
func TestTransport_StopScanBeforeAdapterScan(t *testing.T) {
	t.Parallel()

	log := new(eventLog)
	tr := newTestTransport(t, log)

	var stops int

	tr.stopAdapterScan = func() error {
		stops++

		return errNotScanning
	}

	// StartScan has returned but its goroutine has not called the adapter yet.
	tr.scanning = true

	require.NoError(t, tr.StopScan())
	require.Equal(t, 1, stops)
	require.True(t, tr.stopRequested)

	require.False(t, tr.beginScan())
	require.False(t, tr.scanning)
	require.False(t, tr.stopRequested)

	require.NoError(t, tr.StopScan())
	require.Equal(t, 1, stops)
}

// TestTransport_StopScanAtFirstResult stops a scan that the adapter started
// after StopScan was refused, without reporting the result.
func TestTransport_StopScanAtFirstResult(t *testing.T) {
	t.Parallel()

	log := new(eventLog)
	tr := newTestTransport(t, log)

	var stops int

	tr.stopAdapterScan = func() error {
		stops++

		return nil
	}

	tr.scanning = true
	tr.stopRequested = true

	tr.onScanResult(nil, bluetooth.ScanResult{RSSI: -40})

	require.Equal(t, 1, stops)
	require.Empty(t, log.events)
	require.Empty(t, tr.addresses)

	require.False(t, tr.endScan())
	require.False(t, tr.scanning)
}

// TestTransport_StartScanWhileStopping restarts the scan once the stopping
// one returns.
func TestTransport_StartScanWhileStopping(t *testing.T) {
	t.Parallel()

	tr := newTestTransport(t, new(eventLog))

	tr.scanning = true
	tr.stopRequested = true

	require.NoError(t, tr.StartScan(context.Background()))
	require.False(t, tr.stopRequested)
	require.True(t, tr.rescan)

	require.True(t, tr.endScan())
	require.True(t, tr.beginScan())
	require.True(t, tr.scanning)
	require.False(t, tr.rescan)

	require.False(t, tr.endScan())
	require.False(t, tr.scanning)
}
