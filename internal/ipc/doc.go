// Package ipc exposes the carousel daemon over a JSON-RPC unix socket and
// ships the matching client the CLI dials.
//
// It owns socket lifecycle, the request/response DTOs for queue, import,
// scan, log, and notification operations, and the conversions between queue
// models and their wire representations. The server wraps the daemon; the
// client applies call timeouts so CLI commands fail fast when the daemon is
// down.
package ipc
