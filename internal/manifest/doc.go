// Package manifest persists per-import metadata records: which archives or
// folders were processed, the full file manifest with per-file dispositions,
// immich-go upload outcomes, and a summary rollup.
//
// Records are JSON documents named <source>.<timestamp>.metadata.json under
// the configured metadata directory. Saves go through a temp file + rename so
// concurrent readers (the HTTP API, external viewers) never observe partial
// documents. Tool logs referenced by a record are copied under
// metadata/logs/ so they outlive the working log directory.
package manifest
