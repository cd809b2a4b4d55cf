// Package version exposes build metadata for the halo binaries.
//
// Version, Commit and BuildTime are injected with -ldflags at build time.
// The version command prints them and the control client sends the short
// version in its user agent.
package version
