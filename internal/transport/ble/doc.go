// Package ble implements transport.Transport on top of the host Bluetooth LE
// adapter using tinygo.org/x/bluetooth.
//
// Peripherals are identified by their address string. Only addresses seen
// during a scan can be connected, which keeps the package free of per-OS
// address parsing.
package ble
