// Package exports tracks which Google Photos albums still need a
// Takeout export and how to group them. Large "Photos from YYYY"
// albums are exported individually, everything else is batched into a
// single export, and the current year's album recurs every two months.
// The schedule lives in a YAML state file so runs are resumable and
// hand-editable.
package exports
