// Package config defines the halo-guard settings file and helpers to load,
// validate and save it in YAML format.
//
// Validate fills defaults for every optional field, so a minimal file only
// needs the gRPC listen address.
package config
