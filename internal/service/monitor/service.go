package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oshokin/halo-guard/internal/config"
	"github.com/oshokin/halo-guard/internal/domain/device"
	"github.com/oshokin/halo-guard/internal/domain/session"
	"github.com/oshokin/halo-guard/internal/domain/telemetry"
	"github.com/oshokin/halo-guard/internal/domain/threshold"
	"github.com/oshokin/halo-guard/internal/logger"
	"github.com/oshokin/halo-guard/internal/notify"
	repository "github.com/oshokin/halo-guard/internal/repository/threshold"
	"github.com/oshokin/halo-guard/internal/transport"
)

// DefaultEventBuffer is the capacity of the transport event queue.
const DefaultEventBuffer = 64

var (
	// errNoTransport is returned when Params lacks a transport.
	errNoTransport = errors.New("transport is required")
	// errNoThresholds is returned when Params lacks a threshold store.
	errNoThresholds = errors.New("threshold store is required")
)

// Params holds the collaborators of a Monitor.
type Params struct {
	// Transport is the radio. Required.
	Transport transport.Transport
	// Thresholds is the live threshold configuration. Required.
	Thresholds *threshold.Store
	// Repository persists the sensitivity. Optional.
	Repository repository.Repository
	// Sink receives tamper events in addition to the log and the alert hub. Optional.
	Sink session.Sink
	// GracePeriod overrides session.DefaultGracePeriod when positive.
	GracePeriod time.Duration
	// ConnectTimeout bounds each connection attempt. Defaults to config.DefaultConnectTimeout.
	ConnectTimeout time.Duration
	// RescanOnDisconnect restarts discovery after a failed attempt or a lost link.
	RescanOnDisconnect bool
	// Clock overrides time.Now.
	Clock func() time.Time
}

// Monitor coordinates the radio and the session machine.
type Monitor struct {
	// machine is the session state machine.
	machine *session.Machine
	// directory lists the devices seen in the current scan.
	directory *device.Directory
	// thresholds is the live configuration shared with the machine.
	thresholds *threshold.Store
	// transport is the radio.
	transport transport.Transport
	// repo persists the sensitivity. May be nil.
	repo repository.Repository
	// hub fans tamper events out to API subscribers.
	hub *notify.Hub
	// connectTimeout bounds each connection attempt.
	connectTimeout time.Duration
	// rescan restarts discovery after a drop.
	rescan bool

	// events queues transport events for Run.
	events chan transport.Event
	// stopped is closed when Run returns.
	stopped chan struct{}
	// stopOnce guards stopped.
	stopOnce sync.Once

	// mu protects cancelAttempt.
	mu sync.Mutex
	// cancelAttempt aborts the in-flight connection attempt.
	cancelAttempt context.CancelFunc
}

// New creates a Monitor. The persisted sensitivity, if any, replaces the one
// in the threshold store.
func New(ctx context.Context, p Params) (*Monitor, error) {
	if p.Transport == nil {
		return nil, errNoTransport
	}

	if p.Thresholds == nil {
		return nil, errNoThresholds
	}

	if p.Repository != nil {
		sensitivity, err := p.Repository.Load(ctx)

		switch {
		case err == nil:
			if err = p.Thresholds.SetSensitivity(sensitivity); err != nil {
				return nil, fmt.Errorf("apply persisted sensitivity: %w", err)
			}

			logger.InfoKV(ctx, "Persisted sensitivity loaded", "sensitivity", sensitivity)
		case errors.Is(err, repository.ErrNotFound):
			// Keep the configured value.
		default:
			return nil, fmt.Errorf("load sensitivity: %w", err)
		}
	}

	connectTimeout := p.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = config.DefaultConnectTimeout
	}

	m := &Monitor{
		directory:      device.NewDirectory(),
		thresholds:     p.Thresholds,
		transport:      p.Transport,
		repo:           p.Repository,
		hub:            notify.NewHub(notify.DefaultHubBuffer),
		connectTimeout: connectTimeout,
		rescan:         p.RescanOnDisconnect,
		events:         make(chan transport.Event, DefaultEventBuffer),
		stopped:        make(chan struct{}),
	}

	sinks := notify.Fanout{notify.Log{}, m.hub}
	if p.Sink != nil {
		sinks = append(sinks, p.Sink)
	}

	opts := []session.Option{
		session.WithClock(p.Clock),
		session.WithObserver(func(t session.Transition) {
			logger.InfoKV(
				ctx,
				"Session state changed",
				"from", t.From,
				"to", t.To,
				"device", t.Device.String(),
				"generation", t.Generation,
			)
		}),
	}

	if p.GracePeriod > 0 {
		opts = append(opts, session.WithGracePeriod(p.GracePeriod))
	}

	m.machine = session.NewMachine(p.Thresholds, sinks, opts...)

	return m, nil
}

// Enqueue hands a transport event to Run. It blocks while the queue is full
// and drops the event once Run has returned.
func (m *Monitor) Enqueue(ev transport.Event) {
	select {
	case m.events <- ev:
	case <-m.stopped:
	}
}

// Run applies queued events in arrival order until ctx is done. An in-flight
// connection attempt is cancelled on the way out.
func (m *Monitor) Run(ctx context.Context) {
	defer m.stopOnce.Do(func() {
		close(m.stopped)
	})

	for {
		select {
		case <-ctx.Done():
			m.abortAttempt()

			return
		case ev := <-m.events:
			m.handle(ctx, ev)
		}
	}
}

// StartScan clears the directory and starts discovery. It is a no-op while
// already scanning.
func (m *Monitor) StartScan(ctx context.Context) error {
	if m.machine.Snapshot().Kind == session.KindScanning {
		return nil
	}

	if err := m.machine.StartScan(); err != nil {
		return err
	}

	m.directory.Reset()

	if err := m.transport.StartScan(ctx); err != nil {
		m.machine.StopScan()

		return fmt.Errorf("start scan: %w", err)
	}

	logger.Info(ctx, "Scanning for devices")

	return nil
}

// StopScan ends discovery. The directory keeps its entries.
func (m *Monitor) StopScan(ctx context.Context) error {
	if !m.machine.StopScan() {
		return nil
	}

	if err := m.transport.StopScan(); err != nil {
		return fmt.Errorf("stop scan: %w", err)
	}

	logger.Info(ctx, "Scan stopped")

	return nil
}

// Devices returns the devices discovered in the current scan cycle.
func (m *Monitor) Devices() []device.Handle {
	return m.directory.List()
}

// SelectDevice starts a connection attempt to a listed device and returns its
// generation. The outcome arrives later as a LinkEvent.
func (m *Monitor) SelectDevice(ctx context.Context, id string) (uint64, error) {
	h, ok := m.directory.Lookup(id)
	if !ok {
		return 0, fmt.Errorf("%w: %s", device.ErrUnknown, id)
	}

	generation, err := m.machine.SelectDevice(h)
	if err != nil {
		return 0, err
	}

	if err = m.transport.StopScan(); err != nil {
		logger.WarnKV(ctx, "Failed to stop scan before connecting", "error", err)
	}

	attemptCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.connectTimeout)

	m.mu.Lock()
	if m.cancelAttempt != nil {
		m.cancelAttempt()
	}

	m.cancelAttempt = cancel
	m.mu.Unlock()

	logger.InfoKV(ctx, "Connecting", "device", h.String(), "generation", generation, "timeout", m.connectTimeout)

	go func() {
		defer cancel()

		ev := transport.LinkEvent{
			Kind:       transport.LinkEstablished,
			Handle:     h,
			Generation: generation,
		}

		if err := m.transport.Connect(attemptCtx, h); err != nil {
			ev.Kind = transport.LinkFailed
			ev.Err = err
		}

		m.Enqueue(ev)
	}()

	return generation, nil
}

// Disconnect leaves whatever state the session is in and returns to idle. The
// radio is told to stop scanning or to drop the device as needed.
func (m *Monitor) Disconnect(ctx context.Context) error {
	before := m.machine.Disconnect()
	m.abortAttempt()

	var err error

	switch before.Kind {
	case session.KindScanning:
		err = m.transport.StopScan()
	case session.KindConnecting, session.KindConnected:
		err = m.transport.Disconnect(before.Device)
	case session.KindIdle, session.KindDisconnected:
	}

	logger.InfoKV(ctx, "Session closed", "previous_state", before.Kind, "device", before.Device.String())

	if err != nil {
		return fmt.Errorf("release radio: %w", err)
	}

	return nil
}

// ResetLatch clears a latched alarm.
func (m *Monitor) ResetLatch(ctx context.Context) error {
	if err := m.machine.ResetLatch(); err != nil {
		return err
	}

	logger.Info(ctx, "Alarm reset")

	return nil
}

// Snapshot returns the session state.
func (m *Monitor) Snapshot() session.Snapshot {
	return m.machine.Snapshot()
}

// Thresholds returns the live threshold configuration.
func (m *Monitor) Thresholds() threshold.Config {
	return m.thresholds.Snapshot()
}

// UpdateThreshold validates cfg, persists its sensitivity and only then
// publishes it. A failed write leaves the live configuration untouched. The
// new values apply from the next sample on.
func (m *Monitor) UpdateThreshold(ctx context.Context, cfg threshold.Config) (threshold.Config, error) {
	if err := cfg.Validate(); err != nil {
		return threshold.Config{}, err
	}

	if m.repo != nil {
		if err := m.repo.Save(ctx, cfg.Sensitivity); err != nil {
			return threshold.Config{}, fmt.Errorf("persist sensitivity: %w", err)
		}
	}

	if err := m.thresholds.Update(cfg); err != nil {
		return threshold.Config{}, err
	}

	logger.InfoKV(
		ctx,
		"Thresholds updated",
		"sensitivity", cfg.Sensitivity,
		"motion_stable_low", cfg.MotionStableLow,
		"motion_stable_high", cfg.MotionStableHigh,
	)

	return m.thresholds.Snapshot(), nil
}

// ApplySensitivity publishes a sensitivity read back from storage.
func (m *Monitor) ApplySensitivity(ctx context.Context, sensitivity float64) {
	if m.thresholds.Snapshot().Sensitivity == sensitivity {
		return
	}

	if err := m.thresholds.SetSensitivity(sensitivity); err != nil {
		logger.WarnKV(ctx, "Ignoring invalid sensitivity", "sensitivity", sensitivity, "error", err)

		return
	}

	logger.InfoKV(ctx, "Sensitivity reloaded", "sensitivity", sensitivity)
}

// Subscribe registers a tamper event subscriber.
func (m *Monitor) Subscribe() (<-chan session.TamperEvent, func()) {
	return m.hub.Subscribe()
}

// handle dispatches one transport event.
func (m *Monitor) handle(ctx context.Context, ev transport.Event) {
	switch ev := ev.(type) {
	case transport.ScanEvent:
		m.onScan(ctx, ev)
	case transport.LinkEvent:
		m.onLink(ctx, ev)
	case transport.TelemetryEvent:
		m.onTelemetry(ctx, ev)
	default:
		logger.WarnKV(ctx, "Unknown transport event", "type", fmt.Sprintf("%T", ev))
	}
}

// onScan lists admissible advertisers.
func (m *Monitor) onScan(ctx context.Context, ev transport.ScanEvent) {
	if !device.Admissible(ev.Handle.Name, ev.Connectable) {
		return
	}

	if m.directory.OnDiscovered(ev.Handle) {
		logger.InfoKV(
			ctx,
			"Device discovered",
			"device", ev.Handle.String(),
			"rssi", ev.Handle.RSSI,
			"listed", m.directory.Len(),
		)
	}
}

// onLink applies a link lifecycle change.
func (m *Monitor) onLink(ctx context.Context, ev transport.LinkEvent) {
	switch ev.Kind {
	case transport.LinkEstablished:
		if m.machine.LinkEstablished(ev.Handle, ev.Generation) {
			logger.InfoKV(ctx, "Device connected", "device", ev.Handle.String())

			return
		}

		m.dropOrphan(ctx, ev)
	case transport.LinkFailed:
		if !m.machine.LinkFailed(ev.Handle, ev.Generation) {
			logger.DebugKV(ctx, "Ignoring stale connection failure", "device", ev.Handle.String(), "error", ev.Err)

			return
		}

		logger.WarnKV(ctx, "Connection attempt failed", "device", ev.Handle.String(), "error", ev.Err)
		m.rescanAfterDrop(ctx)
	case transport.LinkLost:
		if !m.machine.LinkLost(ev.Handle) {
			return
		}

		logger.WarnKV(ctx, "Device disconnected", "device", ev.Handle.String())
		m.rescanAfterDrop(ctx)
	}
}

// dropOrphan releases a link whose attempt was cancelled or superseded. A
// newer attempt to the same device keeps the radio link.
func (m *Monitor) dropOrphan(ctx context.Context, ev transport.LinkEvent) {
	current := m.machine.Snapshot()

	if current.Device.ID == ev.Handle.ID &&
		(current.Kind == session.KindConnecting || current.Kind == session.KindConnected) {
		return
	}

	logger.InfoKV(ctx, "Releasing link of a cancelled attempt", "device", ev.Handle.String(), "generation", ev.Generation)

	if err := m.transport.Disconnect(ev.Handle); err != nil {
		logger.WarnKV(ctx, "Failed to release orphan link", "device", ev.Handle.String(), "error", err)
	}
}

// rescanAfterDrop restarts discovery when configured to.
func (m *Monitor) rescanAfterDrop(ctx context.Context) {
	if !m.rescan {
		return
	}

	if err := m.StartScan(ctx); err != nil {
		logger.WarnKV(ctx, "Failed to restart scan", "error", err)
	}
}

// onTelemetry feeds a notification payload to the machine. Malformed frames
// and frames from other devices are logged and dropped.
func (m *Monitor) onTelemetry(ctx context.Context, ev transport.TelemetryEvent) {
	status, err := m.machine.Ingest(ctx, ev.Handle, ev.Payload)

	switch {
	case err == nil:
		logger.DebugKV(ctx, "Telemetry applied", "device", ev.Handle.ID, "status", status)
	case errors.Is(err, telemetry.ErrMalformed):
		logger.WarnKV(ctx, "Dropping malformed telemetry", "device", ev.Handle.ID, "payload", string(ev.Payload), "error", err)
	case errors.Is(err, session.ErrNoActiveSession):
		logger.DebugKV(ctx, "Dropping telemetry outside the active session", "device", ev.Handle.ID)
	default:
		logger.ErrorKV(ctx, "Failed to apply telemetry", "device", ev.Handle.ID, "error", err)
	}
}

// abortAttempt cancels the in-flight connection attempt, if any.
func (m *Monitor) abortAttempt() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancelAttempt != nil {
		m.cancelAttempt()
		m.cancelAttempt = nil
	}
}
