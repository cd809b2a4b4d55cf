// Package threshold holds the tamper decision policy and its live configuration.
//
// IsTamperSignal is a pure function of two consecutive samples and a Config.
// Store publishes Config snapshots atomically so evaluations never observe a
// half-applied update.
package threshold
