// Package threshold persists the user-adjusted tamper sensitivity.
//
// The FileRepository stores a single named value as protobuf JSON
// ({"sensitivity": 1.8}) and can watch the file so that edits made by another
// process are picked up without a restart.
package threshold
