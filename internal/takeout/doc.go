// Package takeout discovers Google Takeout archives in the incoming
// directory and groups multi-part exports into single units of work.
//
// A Takeout export larger than the configured split size arrives as a
// series of numbered zip parts (takeout-20240427T195310Z-001.zip,
// -002.zip, ...). All parts share a prefix and must be imported
// together. The scanner groups parts by prefix, validates each zip's
// central directory, flags in-flight downloads (.partial files), and
// reports whether any part carries Google Photos content.
package takeout
