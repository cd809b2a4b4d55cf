package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oshokin/halo-guard/internal/domain/device"
	"github.com/oshokin/halo-guard/internal/domain/telemetry"
	"github.com/oshokin/halo-guard/internal/domain/threshold"
	"github.com/oshokin/halo-guard/internal/logger"
)

// DefaultGracePeriod is how long tamper evaluation stays suppressed after a link is established.
const DefaultGracePeriod = 5 * time.Second

var (
	// ErrSessionBusy is returned when a connection attempt is in flight or a device is connected.
	ErrSessionBusy = errors.New("session busy")
	// ErrNotLatched is returned by ResetLatch when no alarm is latched.
	ErrNotLatched = errors.New("alarm is not latched")
	// ErrNoActiveSession is returned for telemetry that does not belong to the connected device.
	ErrNoActiveSession = errors.New("no active session")
	// ErrEmptyHandle is returned when selecting a device without an identifier.
	ErrEmptyHandle = errors.New("device handle is empty")
)

// Option configures a Machine.
type Option func(*Machine)

// WithClock overrides the clock used for grace deadlines and timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

// WithGracePeriod sets the post-connect grace period. Negative values are treated as zero.
func WithGracePeriod(d time.Duration) Option {
	return func(m *Machine) {
		m.gracePeriod = max(d, 0)
	}
}

// WithObserver registers a callback invoked after every state change.
// It runs outside the machine lock.
func WithObserver(fn func(Transition)) Option {
	return func(m *Machine) {
		m.observer = fn
	}
}

// WithIDGenerator overrides how TamperEvent identifiers are produced.
func WithIDGenerator(fn func() string) Option {
	return func(m *Machine) {
		if fn != nil {
			m.newID = fn
		}
	}
}

// Machine is the session state machine. It is safe for concurrent use, but
// telemetry must be applied in arrival order by a single caller.
type Machine struct {
	// thresholds is consulted on every evaluation.
	thresholds Thresholds
	// sink receives tamper events. May be nil.
	sink Sink
	// observer receives transitions. May be nil.
	observer func(Transition)
	// now is the clock.
	now func() time.Time
	// newID generates event identifiers.
	newID func() string
	// gracePeriod is added to the link time to compute armedAt.
	gracePeriod time.Duration

	// mu serializes every transition and sample update.
	mu sync.Mutex
	// kind is the current state.
	kind Kind
	// dev is the device of the Connecting and Connected states.
	dev device.Handle
	// generation increments on every SelectDevice.
	generation uint64
	// armedAt is the end of the grace period in the Connected state.
	armedAt time.Time
	// current and previous form the two-sample buffer.
	current, previous *telemetry.Sample
	// latched is the one-shot alarm latch.
	latched bool
	// pending collects transitions reported after unlocking.
	pending []Transition
}

// NewMachine creates an idle Machine.
func NewMachine(thresholds Thresholds, sink Sink, opts ...Option) *Machine {
	m := &Machine{
		thresholds:  thresholds,
		sink:        sink,
		now:         time.Now,
		newID:       uuid.NewString,
		gracePeriod: DefaultGracePeriod,
		kind:        KindIdle,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// StartScan moves Idle or Disconnected to Scanning. It is a no-op while scanning.
func (m *Machine) StartScan() error {
	m.mu.Lock()
	defer m.unlock()

	switch m.kind {
	case KindScanning:
		return nil
	case KindConnecting, KindConnected:
		return ErrSessionBusy
	case KindIdle, KindDisconnected:
	}

	m.transition(KindScanning)

	return nil
}

// StopScan moves Scanning to Idle and reports whether it did.
func (m *Machine) StopScan() bool {
	m.mu.Lock()
	defer m.unlock()

	if m.kind != KindScanning {
		return false
	}

	m.transition(KindIdle)

	return true
}

// SelectDevice starts a connection attempt to h and returns its generation.
// It fails with ErrSessionBusy while another attempt or link exists.
func (m *Machine) SelectDevice(h device.Handle) (uint64, error) {
	if h.IsZero() {
		return 0, ErrEmptyHandle
	}

	m.mu.Lock()
	defer m.unlock()

	if m.kind == KindConnecting || m.kind == KindConnected {
		return 0, ErrSessionBusy
	}

	m.generation++
	m.dev = h
	m.clearSessionData()
	m.transition(KindConnecting)

	return m.generation, nil
}

// LinkEstablished completes the attempt identified by h and generation.
// Events for cancelled or superseded attempts are ignored and reported as false.
func (m *Machine) LinkEstablished(h device.Handle, generation uint64) bool {
	m.mu.Lock()
	defer m.unlock()

	if !m.isAttempt(h, generation) {
		return false
	}

	m.clearSessionData()
	m.armedAt = m.now().Add(m.gracePeriod)
	m.transition(KindConnected)

	return true
}

// LinkFailed aborts the attempt identified by h and generation.
func (m *Machine) LinkFailed(h device.Handle, generation uint64) bool {
	m.mu.Lock()
	defer m.unlock()

	if !m.isAttempt(h, generation) {
		return false
	}

	m.transition(KindIdle)
	m.dev = device.Handle{}

	return true
}

// LinkLost handles an unexpected link drop for h. A connected session moves to
// Disconnected; a drop during connecting behaves like a failed attempt.
func (m *Machine) LinkLost(h device.Handle) bool {
	m.mu.Lock()
	defer m.unlock()

	if m.dev.IsZero() || m.dev.ID != h.ID {
		return false
	}

	switch m.kind {
	case KindConnected:
		m.clearSessionData()
		m.transition(KindDisconnected)
	case KindConnecting:
		m.transition(KindIdle)
	default:
		return false
	}

	m.dev = device.Handle{}

	return true
}

// Disconnect cancels any scan, attempt or link and returns to Idle at once.
// It returns the state as it was before the call, so the caller can release
// whatever the transport still holds.
func (m *Machine) Disconnect() Snapshot {
	m.mu.Lock()
	defer m.unlock()

	before := m.snapshot(m.now())

	m.clearSessionData()
	m.transition(KindIdle)
	m.dev = device.Handle{}

	return before
}

// ResetLatch clears a latched alarm. Detection re-arms immediately.
func (m *Machine) ResetLatch() error {
	m.mu.Lock()
	defer m.unlock()

	if !m.latched {
		return ErrNotLatched
	}

	m.latched = false

	return nil
}

// Apply feeds one decoded sample from device h into the machine and returns
// the resulting status. Samples from anything but the connected device are
// rejected with ErrNoActiveSession and change nothing.
func (m *Machine) Apply(ctx context.Context, h device.Handle, sample telemetry.Sample) (Status, error) {
	m.mu.Lock()

	now := m.now()

	if m.kind != KindConnected || m.dev.ID != h.ID {
		status := m.status(now)
		m.unlock()

		return status, ErrNoActiveSession
	}

	if sample.CapturedAt.IsZero() {
		sample.CapturedAt = now
	}

	if now.Before(m.armedAt) {
		m.current = &sample
		status := m.status(now)
		m.unlock()

		return status, nil
	}

	m.previous = m.current
	m.current = &sample

	var event *TamperEvent

	if !m.latched {
		cfg := m.thresholds.Snapshot()

		if threshold.IsTamperSignalFrom(m.previous, sample, cfg) {
			m.latched = true
			event = &TamperEvent{
				ID:         m.newID(),
				Device:     m.dev,
				Previous:   *m.previous,
				Current:    sample,
				Delta:      sample.Delta(*m.previous),
				Config:     cfg,
				DetectedAt: now,
			}
		}
	}

	status := m.status(now)
	m.unlock()

	if event != nil {
		m.emit(ctx, *event)
	}

	return status, nil
}

// Ingest decodes a raw payload from h and applies it. A malformed payload is
// rejected with telemetry.ErrMalformed and leaves the sample buffer untouched.
func (m *Machine) Ingest(ctx context.Context, h device.Handle, payload []byte) (Status, error) {
	sample, err := telemetry.DecodeAt(payload, m.now())
	if err != nil {
		return m.Status(), err
	}

	return m.Apply(ctx, h, sample)
}

// Status returns the current alarm status.
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.status(m.now())
}

// Snapshot returns a copy of the full machine state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.snapshot(m.now())
}

// emit hands event to the sink. Sink failures are logged, never propagated:
// the latch is already set and the status is observable regardless.
func (m *Machine) emit(ctx context.Context, event TamperEvent) {
	if m.sink == nil {
		return
	}

	if err := m.sink.Notify(ctx, event); err != nil {
		logger.ErrorKV(ctx, "Tamper notification failed", "event_id", event.ID, "error", err)
	}
}

// isAttempt reports whether h and generation identify the in-flight attempt.
func (m *Machine) isAttempt(h device.Handle, generation uint64) bool {
	return m.kind == KindConnecting && m.generation == generation && m.dev.ID == h.ID
}

// clearSessionData resets the sample buffer, latch and grace deadline.
func (m *Machine) clearSessionData() {
	m.current = nil
	m.previous = nil
	m.latched = false
	m.armedAt = time.Time{}
}

// transition changes the state and queues the change for the observer.
func (m *Machine) transition(to Kind) {
	from := m.kind
	m.kind = to

	if from == to || m.observer == nil {
		return
	}

	m.pending = append(m.pending, Transition{
		From:       from,
		To:         to,
		Device:     m.dev,
		Generation: m.generation,
	})
}

// unlock releases the mutex and then reports queued transitions.
func (m *Machine) unlock() {
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()

	for _, t := range pending {
		m.observer(t)
	}
}

// status derives the user-facing status. Callers hold mu.
func (m *Machine) status(now time.Time) Status {
	if m.kind != KindConnected {
		return StatusNormal
	}

	if m.latched {
		return StatusTamper
	}

	if now.Before(m.armedAt) {
		return StatusArmed
	}

	return StatusNormal
}

// snapshot copies the state. Callers hold mu.
func (m *Machine) snapshot(now time.Time) Snapshot {
	return Snapshot{
		Kind:       m.kind,
		Device:     m.dev,
		Generation: m.generation,
		ArmedAt:    m.armedAt,
		Latched:    m.latched,
		Status:     m.status(now),
		Current:    copySample(m.current),
		Previous:   copySample(m.previous),
	}
}

// copySample returns a detached copy of s.
func copySample(s *telemetry.Sample) *telemetry.Sample {
	if s == nil {
		return nil
	}

	c := *s

	return &c
}
