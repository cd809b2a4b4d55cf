// Package monitor exposes the halo-monitor control API over gRPC.
//
// The service is described by a hand-maintained grpc.ServiceDesc whose
// messages are protobuf well-known types, so no code generation step is
// needed. Statuses, device lists and tamper alerts travel as structpb.Struct.
package monitor
