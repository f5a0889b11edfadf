// Package metadata reads descriptive metadata from audio files.
//
// [Extractor] prefers embedded tags and falls back, field by field, to what the
// directory and file names say. Durations are read from the container
// independently of tag parsing so they survive broken or missing tags.
package metadata
