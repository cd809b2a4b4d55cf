package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-redis/redis/v8"
	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/halo-guard/internal/config"
	"github.com/oshokin/halo-guard/internal/domain/device"
	"github.com/oshokin/halo-guard/internal/domain/session"
	"github.com/oshokin/halo-guard/internal/domain/telemetry"
	"github.com/oshokin/halo-guard/internal/domain/threshold"
)

var errTestDelivery = errors.New("test delivery failure")

// testEvent returns a representative tamper event.
func testEvent(id string) session.TamperEvent {
	return session.TamperEvent{
		ID:         id,
		Device:     device.Handle{ID: "aa:bb", Name: "Halo", RSSI: -48},
		Previous:   telemetry.Sample{Reference: 150, Motion: 1},
		Current:    telemetry.Sample{Reference: 152.1, Motion: 1},
		Delta:      2.1,
		Config:     threshold.Default(),
		DetectedAt: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
	}
}

// recorder is a sink that stores events.
type recorder struct {
	// mu protects events.
	mu sync.Mutex
	// events are the received events.
	events []session.TamperEvent
	// err is returned from Notify.
	err error
	// block, when set, delays Notify until closed.
	block chan struct{}
}

// Notify records event.
func (r *recorder) Notify(ctx context.Context, event session.TamperEvent) error {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)

	return r.err
}

// IDs returns the recorded event IDs.
func (r *recorder) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.events))
	for _, e := range r.events {
		ids = append(ids, e.ID)
	}

	return ids
}

// TestPayload checks the fields shared by the wire sinks.
func TestPayload(t *testing.T) {
	t.Parallel()

	data, err := EncodeJSON(testEvent("e1"))
	require.NoError(t, err)

	var decoded structpb.Struct
	require.NoError(t, protojson.Unmarshal(data, &decoded))

	fields := decoded.AsMap()
	require.Equal(t, "e1", fields["id"])
	require.Equal(t, "aa:bb", fields["device_id"])
	require.Equal(t, "Halo", fields["device_name"])
	require.InDelta(t, 2.1, fields["delta"], 1e-9)
	require.InDelta(t, 1.8, fields["sensitivity"], 1e-9)
	require.Equal(t, "2026-10-19T12:00:00Z", fields["detected_at"])

	require.Contains(t, Summary(testEvent("e1")), "Halo")
	require.Contains(t, Summary(session.TamperEvent{Device: device.Handle{ID: "only-id"}}), "only-id")
}

// TestHub_Broadcast delivers to every subscriber and stops after cancel.
func TestHub_Broadcast(t *testing.T) {
	t.Parallel()

	hub := NewHub(1)
	ctx := context.Background()

	first, cancelFirst := hub.Subscribe()
	second, cancelSecond := hub.Subscribe()
	require.Equal(t, 2, hub.Subscribers())

	require.NoError(t, hub.Notify(ctx, testEvent("e1")))
	require.Equal(t, "e1", (<-first).ID)
	require.Equal(t, "e1", (<-second).ID)

	cancelFirst()
	cancelFirst()
	require.Equal(t, 1, hub.Subscribers())

	_, open := <-first
	require.False(t, open)

	// Full buffer: the second event is dropped instead of blocking.
	require.NoError(t, hub.Notify(ctx, testEvent("e2")))
	require.NoError(t, hub.Notify(ctx, testEvent("e3")))
	require.Equal(t, "e2", (<-second).ID)

	select {
	case e := <-second:
		t.Fatalf("unexpected event %s", e.ID)
	default:
	}

	cancelSecond()
	require.Zero(t, hub.Subscribers())
}

// TestFanout joins errors but still reaches every sink.
func TestFanout(t *testing.T) {
	t.Parallel()

	ok := new(recorder)
	failing := &recorder{err: errTestDelivery}
	last := new(recorder)

	err := Fanout{ok, failing, Log{}, last}.Notify(context.Background(), testEvent("e1"))
	require.ErrorIs(t, err, errTestDelivery)
	require.Equal(t, []string{"e1"}, ok.IDs())
	require.Equal(t, []string{"e1"}, last.IDs())

	require.NoError(t, Fanout{}.Notify(context.Background(), testEvent("e2")))
}

// TestAsync_OrderAndClose delivers queued events in order and drains on Close.
func TestAsync_OrderAndClose(t *testing.T) {
	t.Parallel()

	next := &recorder{block: make(chan struct{})}
	async := NewAsync("test", next, 4, time.Second)

	ctx := context.Background()
	for _, id := range []string{"e1", "e2", "e3"} {
		require.NoError(t, async.Notify(ctx, testEvent(id)))
	}

	close(next.block)
	async.Close()
	async.Close()

	require.Equal(t, []string{"e1", "e2", "e3"}, next.IDs())
	require.Error(t, async.Notify(ctx, testEvent("e4")))
}

// TestAsync_QueueFull rejects events instead of blocking the caller.
func TestAsync_QueueFull(t *testing.T) {
	t.Parallel()

	next := &recorder{block: make(chan struct{})}
	async := NewAsync("test", next, 1, 0)

	ctx := context.Background()

	// The worker takes the first event and blocks; the second fills the queue.
	require.NoError(t, async.Notify(ctx, testEvent("e1")))
	require.Eventually(t, func() bool {
		return async.Notify(ctx, testEvent("e2")) == nil
	}, time.Second, time.Millisecond)

	require.ErrorIs(t, async.Notify(ctx, testEvent("e3")), errQueueFull)

	close(next.block)
	async.Close()

	require.Equal(t, []string{"e1", "e2"}, next.IDs())
}

// fakeBus records the last D-Bus call.
type fakeBus struct {
	// method is the last method called.
	method string
	// args are the last call arguments.
	args []any
	// err is returned in the call result.
	err error
}

// CallWithContext records the call.
func (f *fakeBus) CallWithContext(_ context.Context, method string, _ dbus.Flags, args ...any) *dbus.Call {
	f.method = method
	f.args = args

	return &dbus.Call{Err: f.err}
}

// TestDesktop_Notify sends a critical notification through the bus object.
func TestDesktop_Notify(t *testing.T) {
	t.Parallel()

	bus := new(fakeBus)
	desktop := &Desktop{object: bus}

	require.NoError(t, desktop.Notify(context.Background(), testEvent("e1")))
	require.Equal(t, "org.freedesktop.Notifications.Notify", bus.method)
	require.Len(t, bus.args, 8)
	require.Equal(t, desktopAppName, bus.args[0])
	require.Contains(t, bus.args[3], "Halo")

	hints, ok := bus.args[6].(map[string]dbus.Variant)
	require.True(t, ok)
	require.Equal(t, urgencyCritical, hints["urgency"].Value())

	bus.err = errTestDelivery
	require.ErrorIs(t, desktop.Notify(context.Background(), testEvent("e2")), errTestDelivery)

	require.NoError(t, desktop.Close())
}

// fakeToken is a completed MQTT token.
type fakeToken struct {
	// done is closed when the publish completes.
	done chan struct{}
	// err is the publish result.
	err error
}

// Wait implements mqtt.Token.
func (f *fakeToken) Wait() bool {
	<-f.done

	return true
}

// WaitTimeout implements mqtt.Token.
func (f *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-f.done:
		return true
	case <-time.After(d):
		return false
	}
}

// Done implements mqtt.Token.
func (f *fakeToken) Done() <-chan struct{} {
	return f.done
}

// Error implements mqtt.Token.
func (f *fakeToken) Error() error {
	return f.err
}

// fakePublisher records publishes.
type fakePublisher struct {
	// topic, qos and payload are from the last publish.
	topic   string
	qos     byte
	payload any
	// token is returned from Publish.
	token *fakeToken
	// disconnected is set by Disconnect.
	disconnected bool
}

// Publish records the message.
func (f *fakePublisher) Publish(topic string, qos byte, _ bool, payload any) mqtt.Token {
	f.topic = topic
	f.qos = qos
	f.payload = payload

	return f.token
}

// Disconnect records the call.
func (f *fakePublisher) Disconnect(uint) {
	f.disconnected = true
}

// TestMQTT_Notify publishes JSON to the configured topic.
func TestMQTT_Notify(t *testing.T) {
	t.Parallel()

	done := make(chan struct{})
	close(done)

	pub := &fakePublisher{token: &fakeToken{done: done}}
	sink := newMQTT(pub, "halo/tamper", 1)

	require.NoError(t, sink.Notify(context.Background(), testEvent("e1")))
	require.Equal(t, "halo/tamper", pub.topic)
	require.Equal(t, byte(1), pub.qos)

	payload, ok := pub.payload.([]byte)
	require.True(t, ok)
	require.Contains(t, string(payload), `"e1"`)

	pub.token = &fakeToken{done: done, err: errTestDelivery}
	require.ErrorIs(t, sink.Notify(context.Background(), testEvent("e2")), errTestDelivery)

	// A publish that never completes is bounded by the context.
	pub.token = &fakeToken{done: make(chan struct{})}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	require.ErrorIs(t, sink.Notify(ctx, testEvent("e3")), context.DeadlineExceeded)

	sink.Close()
	require.True(t, pub.disconnected)
}

// TestRedis_Notify appends events to the stream.
func TestRedis_Notify(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	ctx := context.Background()

	sink, err := NewRedis(ctx, config.Redis{
		Address: mr.Addr(),
		Stream:  "halo:tamper",
		MaxLen:  100,
	})
	require.NoError(t, err)

	defer func() {
		_ = sink.Close()
	}()

	require.NoError(t, sink.Notify(ctx, testEvent("e1")))
	require.NoError(t, sink.Notify(ctx, testEvent("e2")))

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	defer func() {
		_ = client.Close()
	}()

	entries, err := client.XRange(ctx, "halo:tamper", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "e1", entries[0].Values["id"])
	require.Equal(t, "aa:bb", entries[0].Values["device_id"])
	require.Contains(t, entries[1].Values["data"], `"e2"`)
}

// TestNewRedis_Unreachable fails fast when the server is down.
func TestNewRedis_Unreachable(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewRedis(ctx, config.Redis{Address: addr, Stream: "s"})
	require.Error(t, err)
}
