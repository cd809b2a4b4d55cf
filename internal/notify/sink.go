package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oshokin/halo-guard/internal/domain/session"
	"github.com/oshokin/halo-guard/internal/logger"
)

// DefaultQueueSize is the Async queue length.
const DefaultQueueSize = 32

// errQueueFull is returned when an Async sink cannot accept more events.
var errQueueFull = errors.New("notification queue is full")

// Fanout delivers each event to every sink and joins their errors.
type Fanout []session.Sink

// Notify implements session.Sink.
func (f Fanout) Notify(ctx context.Context, event session.TamperEvent) error {
	var errs []error

	for _, sink := range f {
		if err := sink.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Log writes every event as a warning.
type Log struct{}

// Notify implements session.Sink.
func (Log) Notify(ctx context.Context, event session.TamperEvent) error {
	logger.WarnKV(
		ctx,
		"Tamper detected",
		"event_id", event.ID,
		"device", event.Device.String(),
		"delta", event.Delta,
		"reference", event.Current.Reference,
		"motion", event.Current.Motion,
		"sensitivity", event.Config.Sensitivity,
	)

	return nil
}

// asyncItem is one queued delivery.
type asyncItem struct {
	ctx   context.Context //nolint:containedctx // Carries the logger of the emitting operation.
	event session.TamperEvent
}

// Async delivers events to the wrapped sink on a background goroutine, one at
// a time and in order, with a per-delivery timeout.
type Async struct {
	// name labels log lines.
	name string
	// next is the wrapped sink.
	next session.Sink
	// timeout bounds each delivery.
	timeout time.Duration
	// queue holds pending deliveries.
	queue chan asyncItem

	// mu guards closed against concurrent Notify and Close.
	mu sync.RWMutex
	// closed is set once Close started.
	closed bool
	// done is closed when the worker exits.
	done chan struct{}
}

// NewAsync wraps next. Non-positive sizes use DefaultQueueSize; a zero timeout
// leaves deliveries unbounded.
func NewAsync(name string, next session.Sink, size int, timeout time.Duration) *Async {
	if size <= 0 {
		size = DefaultQueueSize
	}

	a := &Async{
		name:    name,
		next:    next,
		timeout: timeout,
		queue:   make(chan asyncItem, size),
		done:    make(chan struct{}),
	}

	go a.run()

	return a
}

// Notify queues event without waiting for delivery.
func (a *Async) Notify(ctx context.Context, event session.TamperEvent) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return fmt.Errorf("%s: sink closed", a.name)
	}

	select {
	case a.queue <- asyncItem{ctx: context.WithoutCancel(ctx), event: event}:
		return nil
	default:
		return fmt.Errorf("%s: %w", a.name, errQueueFull)
	}
}

// Close stops accepting events, drains the queue and waits for the worker.
func (a *Async) Close() {
	a.mu.Lock()

	if a.closed {
		a.mu.Unlock()
		<-a.done

		return
	}

	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	<-a.done
}

// run is the delivery worker.
func (a *Async) run() {
	defer close(a.done)

	for item := range a.queue {
		ctx := item.ctx

		var cancel context.CancelFunc = func() {}
		if a.timeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, a.timeout)
		}

		if err := a.next.Notify(ctx, item.event); err != nil {
			logger.ErrorKV(ctx, "Notification delivery failed", "sink", a.name, "event_id", item.event.ID, "error", err)
		} else {
			logger.DebugKV(ctx, "Notification delivered", "sink", a.name, "event_id", item.event.ID)
		}

		cancel()
	}
}
