// Package extractor implements the final pipeline stage. Archive
// entries the Immich server does not already hold are extracted to the
// extract directory and size-verified against the zip central
// directory; source archives are deleted only after a clean import and
// a fully verified extraction. Optionally, photos the server rejected
// as duplicates are copied aside for manual comparison.
package extractor
