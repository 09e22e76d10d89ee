// Package api defines the transport-neutral DTO types shared by the
// unix-socket RPC server and the HTTP API, plus converters from the
// internal queue and workflow types.
package api
