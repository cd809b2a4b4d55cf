// Package transport defines the boundary between the monitor and the radio.
//
// A Transport discovers peripherals, opens one link at a time and forwards
// notifications. Everything it observes is reported as an Event through the
// emitter passed to Start; the monitor applies those events in order on its own
// goroutine.
package transport
