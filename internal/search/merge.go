package search

import (
	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
)

// seen records the identity keys of results already kept.
type seen struct {
	ids  map[string]bool
	keys map[string]bool
}

func newSeen() *seen {
	return &seen{ids: make(map[string]bool), keys: make(map[string]bool)}
}

func (s *seen) has(externalID, key string) bool {
	return (externalID != "" && s.ids[externalID]) || (key != "" && s.keys[key])
}

func (s *seen) add(externalID, key string) {
	if externalID != "" {
		s.ids[externalID] = true
	}
	if key != "" {
		s.keys[key] = true
	}
}

func albumKey(a models.AlbumResult) string {
	return shared.NormalizeKey(a.Title, a.Artist)
}

func trackKey(t models.TrackResult) string {
	return shared.NormalizeKey(t.Title, t.Artist, t.Album)
}

func artistKey(a models.ArtistResult) string {
	return shared.NormalizeKey(a.Name)
}

// MergeAlbums returns local followed by the remote albums not already present.
// A limit of 0 or less keeps everything.
func MergeAlbums(local, remote []models.AlbumResult, limit int) []models.AlbumResult {
	s := newSeen()
	merged := make([]models.AlbumResult, 0, len(local)+len(remote))
	for _, a := range local {
		s.add(a.ExternalID, albumKey(a))
		merged = append(merged, a)
	}
	for _, a := range remote {
		key := albumKey(a)
		if s.has(a.ExternalID, key) {
			continue
		}
		s.add(a.ExternalID, key)
		merged = append(merged, a)
	}
	return truncate(merged, limit)
}

// MergeTracks returns local followed by the remote tracks not already present.
// Tracks are keyed by title, artist and album.
func MergeTracks(local, remote []models.TrackResult, limit int) []models.TrackResult {
	s := newSeen()
	merged := make([]models.TrackResult, 0, len(local)+len(remote))
	for _, t := range local {
		s.add(t.ExternalID, trackKey(t))
		merged = append(merged, t)
	}
	for _, t := range remote {
		key := trackKey(t)
		if s.has(t.ExternalID, key) {
			continue
		}
		s.add(t.ExternalID, key)
		merged = append(merged, t)
	}
	return truncate(merged, limit)
}

// MergeArtists returns local followed by the remote artists not already present.
//
// A local artist missing an image or bio borrows them from the remote artist
// it matched.
func MergeArtists(local, remote []models.ArtistResult, limit int) []models.ArtistResult {
	merged := make([]models.ArtistResult, len(local), len(local)+len(remote))
	copy(merged, local)

	byID := make(map[string]int)
	byKey := make(map[string]int)
	index := func(i int) {
		if id := merged[i].ExternalID; id != "" {
			byID[id] = i
		}
		if key := artistKey(merged[i]); key != "" {
			byKey[key] = i
		}
	}
	for i := range merged {
		index(i)
	}

	for _, a := range remote {
		i, ok := byID[a.ExternalID]
		if !ok {
			i, ok = byKey[artistKey(a)]
		}
		if !ok {
			merged = append(merged, a)
			index(len(merged) - 1)
			continue
		}

		if merged[i].Source != models.SourceLocal {
			continue
		}
		if merged[i].ImageURL == "" {
			merged[i].ImageURL = a.ImageURL
		}
		if merged[i].Bio == "" {
			merged[i].Bio = a.Bio
		}
	}
	return truncate(merged, limit)
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
