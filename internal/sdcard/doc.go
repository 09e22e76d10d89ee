// Package sdcard detects removable media via udev netlink events and
// resolves the matching mount so the daemon can queue a folder import.
// A per-label lock file keeps a card from being imported twice when it
// is re-plugged while an earlier import is still running.
package sdcard
