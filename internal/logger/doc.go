// Package logger wraps zap for the halo-guard binaries:
//   - a global sugared console logger,
//   - context helpers (ToContext, FromContext, WithName, WithKV),
//   - level parsing and a per-logger level override,
//   - leveled helpers (Infof, WarnKV, ErrorKV, ...).
//
// Services carry the logger in their context so that every component logs with
// the name and fields of the operation it is serving.
package logger
