package notify

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/oshokin/halo-guard/internal/domain/session"
)

const (
	// notificationsDestination is the well-known bus name of the notification daemon.
	notificationsDestination = "org.freedesktop.Notifications"
	// notificationsPath is the object path of the notification daemon.
	notificationsPath dbus.ObjectPath = "/org/freedesktop/Notifications"
	// notifyMethod is the Notify method of the freedesktop notifications interface.
	notifyMethod = notificationsDestination + ".Notify"

	// desktopAppName is shown by the notification daemon as the sender.
	desktopAppName = "Halo Guard"
	// desktopIcon is a stock icon name available in common themes.
	desktopIcon = "dialog-warning"
	// urgencyCritical keeps the notification on screen until dismissed.
	urgencyCritical byte = 2
)

// busObject is the part of dbus.BusObject the desktop sink uses.
type busObject interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...any) *dbus.Call
}

// Desktop shows a critical freedesktop notification for each event.
type Desktop struct {
	// conn is the private session bus connection. Nil in tests.
	conn *dbus.Conn
	// object is the notification daemon.
	object busObject
}

// NewDesktop connects to the session bus.
func NewDesktop() (*Desktop, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}

	return &Desktop{
		conn:   conn,
		object: conn.Object(notificationsDestination, notificationsPath),
	}, nil
}

// Notify implements session.Sink.
func (d *Desktop) Notify(ctx context.Context, event session.TamperEvent) error {
	hints := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant(urgencyCritical),
	}

	body := fmt.Sprintf(
		"Reference %.2f -> %.2f, motion %.2f. Reset the alarm once the drink is safe.",
		event.Previous.Reference,
		event.Current.Reference,
		event.Current.Motion,
	)

	call := d.object.CallWithContext(
		ctx,
		notifyMethod,
		0,
		desktopAppName,
		uint32(0),
		desktopIcon,
		Summary(event),
		body,
		[]string{},
		hints,
		int32(0),
	)
	if call.Err != nil {
		return fmt.Errorf("desktop notification: %w", call.Err)
	}

	return nil
}

// Close releases the bus connection.
func (d *Desktop) Close() error {
	if d.conn == nil {
		return nil
	}

	return d.conn.Close()
}
