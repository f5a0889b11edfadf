// Package catalog owns the artist/album/track graph.
//
// # Identity
//
// [Resolver] decides whether a candidate refers to an existing entity. Lookups
// run in a fixed order and the first hit wins:
//
//  1. external id, when one is given
//  2. Artist: case-insensitive name. Album: exact title under the same artist.
//     Track: exact file path, then (album, track number, title)
//
// A name or title hit whose row is already bound to a different external id is
// not a hit. The two stay separate rows; they are never merged by name once an
// external id exists. The resolver only reads.
//
// # Mutation
//
// [Store] wraps the database and hands out [Tx] values through [Store.WithTx].
// A Tx runs resolution and creation on one SQLite write transaction, so two
// concurrent resolutions of the same new entity cannot both insert. Finding an
// entity by name while holding an external id backfills the id onto the row.
//
// [Tx.AddTrack] implements the track upsert order used by the scanner:
// external id, then exact path, then album position, then insert.
package catalog
