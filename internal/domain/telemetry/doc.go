// Package telemetry decodes notification payloads streamed by the cover tag.
//
// A frame is a short text payload with two comma-separated numbers: the reference
// reading first and the motion indicator second (for example "187,1.02").
// Decoding is pure and independent of the transport that delivered the bytes.
package telemetry
