// Package monitor runs the halo-monitor daemon.
//
// A Monitor owns the session machine, the device directory, the live threshold
// configuration and the radio. Transport events are queued and applied one at
// a time on the goroutine running Monitor.Run; control operations arrive from
// the gRPC API and go straight to the machine. Run wires everything together
// from the settings file and serves the API until its context is cancelled.
package monitor
