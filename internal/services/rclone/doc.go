// Package rclone wraps the rclone CLI for pulling Takeout exports off
// Google Drive and mirroring the rest of the drive to local storage.
package rclone
