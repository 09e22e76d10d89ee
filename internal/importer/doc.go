// Package importer implements the pipeline stage that uploads Google
// Photos content to Immich via immich-go. Takeout exports upload their
// archive parts in one run; folder and SD-card sources upload directly
// with an import tag. Per-file outcomes from the immich-go JSON log are
// folded back into the metadata record so extraction knows which files
// the server already holds.
package importer
