// Package models defines the catalog entities and the normalized result types
// shared by the scanner, queue engine, search merge and download orchestrator.
//
// The package contains three categories of types:
//
// 1. Catalog entities, owned by the catalog store and persisted in SQLite
//   - [Artist] : identified by external id or case-insensitive name
//   - [Album] : identified by external id or (title, artist)
//   - [Track] : identified by external id, file path or (album, number, title)
//
// 2. Playback and task state
//   - [QueueItem] : one position in the playback queue, referencing a track by id
//   - [PlayHistory] : append-only play log
//   - [DownloadTask] : a download request and its lifecycle [DownloadStatus]
//
// 3. Transfer types
//   - [Metadata] : what the metadata extractor recovered for a single file
//   - [AlbumResult], [TrackResult], [ArtistResult] : search results from either
//     the local catalog or the remote provider, tagged with a [Source]
//
// References between entities are one-directional ids; nothing holds a back-pointer.
package models
