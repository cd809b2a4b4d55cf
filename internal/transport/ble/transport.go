package ble

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap/zapcore"
	"tinygo.org/x/bluetooth"

	"github.com/oshokin/halo-guard/internal/config"
	"github.com/oshokin/halo-guard/internal/domain/device"
	"github.com/oshokin/halo-guard/internal/logger"
	"github.com/oshokin/halo-guard/internal/transport"
)

var (
	// errServiceNotFound is returned when the peer lacks the telemetry service.
	errServiceNotFound = errors.New("telemetry service not found")
	// errCharacteristicNotFound is returned when the service lacks the telemetry characteristic.
	errCharacteristicNotFound = errors.New("telemetry characteristic not found")
	// errBadLogLevel is returned for an unknown radio log level.
	errBadLogLevel = errors.New("unknown log level")
)

// trackedPeer is a handle registered by one Connect call.
type trackedPeer struct {
	handle  device.Handle
	attempt uint64
}

// Transport drives the default host adapter.
type Transport struct {
	// adapter is the host radio.
	adapter *bluetooth.Adapter
	// service is the GATT service carrying telemetry.
	service bluetooth.UUID
	// characteristic is the notifying telemetry characteristic.
	characteristic bluetooth.UUID
	// level overrides the log level of radio logs when levelSet.
	level    zapcore.Level
	levelSet bool

	// stopAdapterScan ends an adapter scan. Replaced in tests.
	stopAdapterScan func() error

	// mu protects every field below.
	mu sync.Mutex
	// ctx carries the logger for callbacks.
	ctx context.Context //nolint:containedctx // Adapter callbacks have no context of their own.
	// emit receives events. Nil until Start.
	emit transport.Emitter
	// scanning is set while the scan goroutine runs.
	scanning bool
	// stopRequested ends the running scan at its next result if the adapter
	// refused StopScan because the scan had not started yet.
	stopRequested bool
	// rescan restarts the scan once the stopped one returns.
	rescan bool
	// addresses maps handle IDs to addresses seen during scans.
	addresses map[string]bluetooth.Address
	// handles are the peers being connected or connected, keyed by handle ID.
	handles map[string]trackedPeer
	// attempts numbers Connect calls so a cancelled attempt only forgets its own entry.
	attempts uint64
	// links are the established connections.
	links map[string]bluetooth.Device
}

// New prepares a transport for the tag described by cfg. The radio is not
// touched until Start.
func New(cfg config.Bluetooth) (*Transport, error) {
	service, err := bluetooth.ParseUUID(cfg.ServiceUUID)
	if err != nil {
		return nil, fmt.Errorf("parse service uuid %q: %w", cfg.ServiceUUID, err)
	}

	characteristic, err := bluetooth.ParseUUID(cfg.CharacteristicUUID)
	if err != nil {
		return nil, fmt.Errorf("parse characteristic uuid %q: %w", cfg.CharacteristicUUID, err)
	}

	t := &Transport{
		adapter:        bluetooth.DefaultAdapter,
		service:        service,
		characteristic: characteristic,
		addresses:      make(map[string]bluetooth.Address),
		handles:        make(map[string]trackedPeer),
		links:          make(map[string]bluetooth.Device),
	}

	t.stopAdapterScan = t.adapter.StopScan

	if cfg.LogLevel != "" {
		level, ok := logger.ParseLogLevel(cfg.LogLevel)
		if !ok {
			return nil, fmt.Errorf("%w: %q", errBadLogLevel, cfg.LogLevel)
		}

		t.level, t.levelSet = level, true
	}

	return t, nil
}

// logContext names the radio logger and applies the level override.
func (t *Transport) logContext(ctx context.Context) context.Context {
	ctx = logger.WithKV(logger.WithName(ctx, "ble"), "service", t.service.String())
	if !t.levelSet {
		return ctx
	}

	return logger.ToContext(ctx, logger.FromContext(ctx).WithOptions(logger.WithLevel(t.level)))
}

// Start enables the adapter and installs the link-state handler.
func (t *Transport) Start(ctx context.Context, emit transport.Emitter) error {
	ctx = t.logContext(ctx)

	if err := t.adapter.Enable(); err != nil {
		return fmt.Errorf("enable bluetooth adapter: %w", err)
	}

	if address, err := t.adapter.Address(); err == nil {
		logger.InfoKV(ctx, "Bluetooth adapter enabled", "address", address.String())
	} else {
		logger.WarnKV(ctx, "Bluetooth adapter enabled, address unavailable", "error", err)
	}

	t.mu.Lock()
	t.ctx = ctx
	t.emit = emit
	t.mu.Unlock()

	t.adapter.SetConnectHandler(func(dev bluetooth.Device, connected bool) {
		if !connected {
			t.linkDropped(dev.Address.String())
		}
	})

	return nil
}

// StartScan runs adapter discovery on a background goroutine.
func (t *Transport) StartScan(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.emit == nil {
		return transport.ErrNotStarted
	}

	if t.scanning {
		if t.stopRequested {
			t.stopRequested = false
			t.rescan = true
		}

		return nil
	}

	t.scanning = true
	t.stopRequested = false
	t.rescan = false
	ctx := t.ctx

	go t.scan(ctx)

	return nil
}

// scan runs adapter scans until one ends without a pending restart.
func (t *Transport) scan(ctx context.Context) {
	defer logger.Debug(ctx, "Scan finished")

	for t.beginScan() {
		logger.Debug(ctx, "Scan started")

		if err := t.adapter.Scan(t.onScanResult); err != nil {
			logger.ErrorKV(ctx, "Scan failed", "error", err)
		}

		if !t.endScan() {
			return
		}
	}
}

// beginScan reports whether the scan goroutine may call the adapter. A stop
// requested before that point ends the goroutine.
func (t *Transport) beginScan() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopRequested {
		t.scanning = false
		t.stopRequested = false
		t.rescan = false

		return false
	}

	t.rescan = false

	return true
}

// endScan reports whether a StartScan arrived while the scan was stopping.
func (t *Transport) endScan() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rescan {
		return true
	}

	t.scanning = false
	t.stopRequested = false

	return false
}

// StopScan ends discovery. When the scan goroutine has not reached the
// adapter yet, the scan is ended before it starts or at its first result.
func (t *Transport) StopScan() error {
	t.mu.Lock()

	if !t.scanning {
		t.mu.Unlock()

		return nil
	}

	t.stopRequested = true
	ctx := t.ctx
	t.mu.Unlock()

	if err := t.stopAdapterScan(); err != nil {
		logger.DebugKV(ctx, "Adapter scan not running yet, stopping at first result", "error", err)
	}

	return nil
}

// Connect links to h, discovers the telemetry characteristic and enables
// notifications on it. A cancelled attempt that completes later is torn down
// in the background.
func (t *Transport) Connect(ctx context.Context, h device.Handle) error {
	t.mu.Lock()

	if t.emit == nil {
		t.mu.Unlock()

		return transport.ErrNotStarted
	}

	address, ok := t.addresses[h.ID]
	if !ok {
		t.mu.Unlock()

		return fmt.Errorf("%w: %s", device.ErrUnknown, h.ID)
	}

	t.attempts++
	attempt := t.attempts
	t.handles[h.ID] = trackedPeer{handle: h, attempt: attempt}
	t.mu.Unlock()

	type result struct {
		dev bluetooth.Device
		err error
	}

	done := make(chan result, 1)

	go func() {
		dev, err := t.adapter.Connect(address, bluetooth.ConnectionParams{})
		if err != nil {
			done <- result{err: fmt.Errorf("connect %s: %w", h.ID, err)}

			return
		}

		if err = t.subscribe(dev, h); err != nil {
			_ = dev.Disconnect()
			done <- result{err: err}

			return
		}

		done <- result{dev: dev}
	}()

	select {
	case r := <-done:
		t.mu.Lock()
		defer t.mu.Unlock()

		if r.err != nil {
			t.forget(h.ID, attempt)

			return r.err
		}

		t.links[h.ID] = r.dev

		return nil
	case <-ctx.Done():
		t.mu.Lock()
		t.forget(h.ID, attempt)
		t.mu.Unlock()

		go func() {
			if r := <-done; r.err == nil {
				_ = r.dev.Disconnect()
			}
		}()

		return fmt.Errorf("connect %s: %w", h.ID, ctx.Err())
	}
}

// Disconnect drops the link to h. Unknown handles are ignored.
func (t *Transport) Disconnect(h device.Handle) error {
	t.mu.Lock()
	dev, ok := t.links[h.ID]
	delete(t.links, h.ID)
	delete(t.handles, h.ID)
	t.mu.Unlock()

	if !ok {
		return nil
	}

	if err := dev.Disconnect(); err != nil {
		return fmt.Errorf("disconnect %s: %w", h.ID, err)
	}

	return nil
}

// forget drops the tracked entry for id if attempt still owns it. A newer
// Connect to the same device keeps its entry. Callers hold mu.
func (t *Transport) forget(id string, attempt uint64) {
	if peer, ok := t.handles[id]; ok && peer.attempt == attempt {
		delete(t.handles, id)
	}
}

// subscribe enables telemetry notifications on dev.
func (t *Transport) subscribe(dev bluetooth.Device, h device.Handle) error {
	services, err := dev.DiscoverServices([]bluetooth.UUID{t.service})
	if err != nil {
		return fmt.Errorf("discover services: %w", err)
	}

	if len(services) == 0 {
		return errServiceNotFound
	}

	characteristics, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{t.characteristic})
	if err != nil {
		return fmt.Errorf("discover characteristics: %w", err)
	}

	if len(characteristics) == 0 {
		return errCharacteristicNotFound
	}

	err = characteristics[0].EnableNotifications(func(buf []byte) {
		t.onNotification(h, buf)
	})
	if err != nil {
		return fmt.Errorf("enable notifications: %w", err)
	}

	return nil
}

// onScanResult records the advertiser address and reports it.
func (t *Transport) onScanResult(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
	t.mu.Lock()

	if t.stopRequested {
		ctx := t.ctx
		t.mu.Unlock()

		if err := t.stopAdapterScan(); err != nil {
			logger.WarnKV(ctx, "Failed to stop scan", "error", err)
		}

		return
	}

	h := device.Handle{
		ID:   result.Address.String(),
		Name: result.LocalName(),
		RSSI: result.RSSI,
	}

	t.addresses[h.ID] = result.Address
	emit := t.emit
	t.mu.Unlock()

	if emit == nil {
		return
	}

	// The host stack does not expose the advertising PDU type, and central
	// connections are attempted only on peers that advertise a local name.
	emit(transport.ScanEvent{Handle: h, Connectable: true})
}

// onNotification forwards a copy of buf, which the adapter reuses.
func (t *Transport) onNotification(h device.Handle, buf []byte) {
	t.mu.Lock()
	emit := t.emit
	t.mu.Unlock()

	if emit == nil {
		return
	}

	payload := make([]byte, len(buf))
	copy(payload, buf)

	emit(transport.TelemetryEvent{Handle: h, Payload: payload})
}

// linkDropped reports an unexpected drop of a tracked peer.
func (t *Transport) linkDropped(id string) {
	t.mu.Lock()
	peer, ok := t.handles[id]
	h := peer.handle
	delete(t.handles, id)
	delete(t.links, id)
	emit := t.emit
	ctx := t.ctx
	t.mu.Unlock()

	if !ok || emit == nil {
		return
	}

	logger.WarnKV(ctx, "Link dropped by peer", "device", h.String())

	emit(transport.LinkEvent{Kind: transport.LinkLost, Handle: h})
}
