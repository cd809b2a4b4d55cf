// Package control implements the halo-ctl commands.
//
// Every command dials the monitor control API, performs one call (or, for
// watch, streams alerts until interrupted) and prints the result.
package control
