// Package daemon coordinates the long-running carousel services: the
// workflow manager, the incoming-directory watcher, the periodic rclone
// sync scheduler, the removable-media monitor, and the read-only HTTP
// API. A lock file enforces single-instance execution.
package daemon
