// Package device keeps the set of sensor tags discovered during a scan.
//
// Handles are immutable. The Directory deduplicates them by identifier and
// preserves first-seen order until the next scan cycle resets it.
package device
