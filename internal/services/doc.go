// Package services holds the plumbing shared by the pipeline stages and the
// external tool clients (rclone, immich-go, Immich).
//
// It provides context helpers that stamp queue item IDs, stage names, and
// correlation IDs for logging, and the structured error markers plus Wrap
// helper that route failures to the right queue status: transient and
// external errors retry as failed, validation and review errors park the
// item for a human.
package services
