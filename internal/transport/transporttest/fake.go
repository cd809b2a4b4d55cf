// Package transporttest provides an in-memory transport.Transport for tests.
package transporttest

import (
	"context"
	"sync"

	"github.com/oshokin/halo-guard/internal/domain/device"
	"github.com/oshokin/halo-guard/internal/transport"
)

// Fake is a scriptable radio. Tests push advertisements, telemetry and link
// drops into it and inspect the calls the monitor made.
type Fake struct {
	mu sync.Mutex

	emit        transport.Emitter
	scanning    bool
	scans       int
	connectErr  error
	hold        chan struct{}
	connects    []device.Handle
	disconnects []device.Handle
}

// New returns an idle Fake.
func New() *Fake {
	return new(Fake)
}

// Start implements transport.Transport.
func (f *Fake) Start(_ context.Context, emit transport.Emitter) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.emit = emit

	return nil
}

// StartScan implements transport.Transport.
func (f *Fake) StartScan(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.emit == nil {
		return transport.ErrNotStarted
	}

	f.scanning = true
	f.scans++

	return nil
}

// StopScan implements transport.Transport.
func (f *Fake) StopScan() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.scanning = false

	return nil
}

// Connect implements transport.Transport. It fails with the configured error
// and, while connects are held, blocks until released or ctx ends.
func (f *Fake) Connect(ctx context.Context, h device.Handle) error {
	f.mu.Lock()
	f.connects = append(f.connects, h)
	hold := f.hold
	err := f.connectErr
	f.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return err
}

// Disconnect implements transport.Transport.
func (f *Fake) Disconnect(h device.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.disconnects = append(f.disconnects, h)

	return nil
}

// FailConnects makes subsequent Connect calls return err. Nil restores success.
func (f *Fake) FailConnects(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.connectErr = err
}

// HoldConnects blocks subsequent Connect calls until the returned function is
// called.
func (f *Fake) HoldConnects() func() {
	hold := make(chan struct{})

	f.mu.Lock()
	f.hold = hold
	f.mu.Unlock()

	var once sync.Once

	return func() {
		once.Do(func() {
			f.mu.Lock()
			f.hold = nil
			f.mu.Unlock()

			close(hold)
		})
	}
}

// Advertise emits a ScanEvent.
func (f *Fake) Advertise(h device.Handle, connectable bool) {
	f.send(transport.ScanEvent{Handle: h, Connectable: connectable})
}

// Notify emits a TelemetryEvent.
func (f *Fake) Notify(h device.Handle, payload string) {
	f.send(transport.TelemetryEvent{Handle: h, Payload: []byte(payload)})
}

// Drop emits a LinkLost event.
func (f *Fake) Drop(h device.Handle) {
	f.send(transport.LinkEvent{Kind: transport.LinkLost, Handle: h})
}

// Scanning reports whether discovery is on.
func (f *Fake) Scanning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.scanning
}

// Scans returns how many times StartScan was called.
func (f *Fake) Scans() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.scans
}

// Connects returns the handles Connect was called with.
func (f *Fake) Connects() []device.Handle {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]device.Handle(nil), f.connects...)
}

// Disconnects returns the handles Disconnect was called with.
func (f *Fake) Disconnects() []device.Handle {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]device.Handle(nil), f.disconnects...)
}

// send delivers ev to the registered emitter.
func (f *Fake) send(ev transport.Event) {
	f.mu.Lock()
	emit := f.emit
	f.mu.Unlock()

	if emit != nil {
		emit(ev)
	}
}
