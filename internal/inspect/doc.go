// Package inspect implements the first pipeline stage. It validates queued
// sources before any upload work starts: multi-part Takeout exports are
// re-scanned and checked for partial downloads and corrupted archives, folder
// sources are walked, and every source gets a metadata record listing the
// files the later stages will account for.
package inspect
