// Package session implements the peripheral session state machine.
//
// A Machine owns the connection lifecycle (idle, scanning, connecting,
// connected, disconnected), the two most recent telemetry samples and the
// one-shot alarm latch. Every mutation goes through a named transition under a
// single mutex, so contradictory combinations such as a latched alarm without a
// connected device cannot be represented.
//
// Tamper detection is driven by sample arrival. After a link is established the
// machine stays armed-but-silent for a grace period, then evaluates every new
// sample against the previous one with the threshold policy. The first positive
// evaluation latches the alarm and emits a single TamperEvent to the Sink; the
// latch holds until ResetLatch or until the session leaves the connected state.
package session
