// Package notify delivers tamper events to the outside world.
//
// Every type here implements session.Sink. Hub is the in-process subscription
// point used by the alert stream of the control API. Log, Desktop, MQTT and
// Redis push the event to a log line, a desktop notification, a broker topic
// and a Redis stream respectively. Fanout combines sinks, and Async moves slow
// network sinks off the monitor event loop while keeping delivery order.
package notify
