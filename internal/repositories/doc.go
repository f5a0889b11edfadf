// Package repositories implements SQLite persistence for the catalog, the
// playback queue, play history and download tasks.
//
// Every repository is built over a [shared.Querier], so the same code runs on a
// [sql.DB] or inside a [sql.Tx]. Callers that need several statements to apply
// atomically (the catalog store, the queue engine) construct repositories on
// their transaction.
//
// Lookup conventions:
//   - Get returns a wrapped not-found sentinel from shared (for example
//     [shared.ErrTrackNotFound]) when the row does not exist.
//   - Find* methods return (nil, nil) for "no row"; they back identity
//     resolution, where no match is an expected outcome.
//
// Key Implementations:
//   - [ArtistRepository] : artists with case-folded name keys and orphan cleanup
//   - [AlbumRepository] : albums joined with their artist name
//   - [TrackRepository] : tracks with path, external id and position lookups
//   - [QueueRepository] : queue rows and position arithmetic
//   - [HistoryRepository] : append-only play log
//   - [DownloadTaskRepository] : download task lifecycle
package repositories
