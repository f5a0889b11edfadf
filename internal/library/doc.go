// Package library keeps the catalog in step with the files on disk.
//
// [Scanner] walks a storage root and imports every supported audio file it
// finds, one transaction per file. [Verifier] goes the other way: it checks
// that every track believed to be downloaded still exists and demotes or
// removes what is gone.
package library
