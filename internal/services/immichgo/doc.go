// Package immichgo wraps the immich-go CLI for uploading Google Photos
// Takeout archives and plain folders to an Immich server.
//
// immich-go writes a structured JSON log per run; the parser in this
// package turns that log into per-file upload outcomes so the caller
// can record what actually reached the server, retry transient
// failures, and decide which files still need extraction.
package immichgo
