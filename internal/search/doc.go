// Package search combines the local catalog with the remote provider.
//
// Both sides produce the normalized result types of the models package.
// [MergeAlbums], [MergeTracks] and [MergeArtists] put local results first and
// drop remote results that describe something the catalog already has, matched
// by external id or by a normalized title and artist key.
package search
