// Package common holds helpers shared by several services.
//
// It provides a gRPC client for the monitor control API with per-call
// timeouts, and detection of the current system actor (user@host) that is
// attached to every request for the monitor's audit log.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
