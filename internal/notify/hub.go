package notify

import (
	"context"
	"sync"

	"github.com/oshokin/halo-guard/internal/domain/session"
	"github.com/oshokin/halo-guard/internal/logger"
)

// DefaultHubBuffer is the per-subscriber queue length.
const DefaultHubBuffer = 16

// Hub broadcasts tamper events to any number of subscribers. Delivery never
// blocks: a subscriber whose buffer is full misses the event.
type Hub struct {
	// buffer is the channel capacity for new subscribers.
	buffer int

	// mu protects subscribers and nextID.
	mu sync.Mutex
	// subscribers maps subscription IDs to their channels.
	subscribers map[uint64]chan session.TamperEvent
	// nextID is the next subscription ID.
	nextID uint64
}

// NewHub creates a Hub. Non-positive buffers use DefaultHubBuffer.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultHubBuffer
	}

	return &Hub{
		buffer:      buffer,
		subscribers: make(map[uint64]chan session.TamperEvent),
	}
}

// Subscribe registers a new subscriber. The returned cancel function removes
// the subscription and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe() (<-chan session.TamperEvent, func()) {
	ch := make(chan session.TamperEvent, h.buffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subscribers[id] = ch
	h.mu.Unlock()

	var once sync.Once

	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subscribers, id)
			h.mu.Unlock()

			close(ch)
		})
	}

	return ch, cancel
}

// Subscribers returns the number of active subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.subscribers)
}

// Notify implements session.Sink.
func (h *Hub) Notify(ctx context.Context, event session.TamperEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			logger.WarnKV(ctx, "Alert subscriber is lagging, event dropped", "subscriber", id, "event_id", event.ID)
		}
	}

	return nil
}
