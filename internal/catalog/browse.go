package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
)

// AlbumQuery filters [Store.ListAlbums].
type AlbumQuery struct {
	DownloadedOnly bool
	ArtistID       string
	Recent         bool
	Limit          int
	Offset         int
}

// ListAlbums returns albums ordered by artist and release, or newest first when Recent is set
func (s *Store) ListAlbums(ctx context.Context, q AlbumQuery) ([]*models.Album, error) {
	criteria := map[string]any{"limit": q.Limit, "offset": q.Offset}
	if q.DownloadedOnly {
		criteria["downloaded"] = true
	}
	if q.ArtistID != "" {
		criteria["artist_id"] = q.ArtistID
	}
	if q.Recent {
		criteria["order"] = "recent"
	}
	return s.albums.List(ctx, criteria)
}

// GetAlbum returns an album and its tracks in disc/track order
func (s *Store) GetAlbum(ctx context.Context, id string) (*models.Album, []*models.Track, error) {
	album, err := s.albums.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	tracks, err := s.tracks.ListByAlbum(ctx, id, false)
	if err != nil {
		return nil, nil, err
	}
	return album, tracks, nil
}

// ListArtists returns artists that own at least one album
func (s *Store) ListArtists(ctx context.Context, limit, offset int) ([]*models.Artist, error) {
	return s.artists.List(ctx, map[string]any{"with_albums": true, "limit": limit, "offset": offset})
}

// GetArtist returns an artist and its albums
func (s *Store) GetArtist(ctx context.Context, id string) (*models.Artist, []*models.Album, error) {
	artist, err := s.artists.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	albums, err := s.albums.List(ctx, map[string]any{"artist_id": id})
	if err != nil {
		return nil, nil, err
	}
	return artist, albums, nil
}

// GetTrack returns a single track
func (s *Store) GetTrack(ctx context.Context, id string) (*models.Track, error) {
	return s.tracks.Get(ctx, id)
}

// AlbumTracks returns the downloaded tracks of an album in disc/track order
func (s *Store) AlbumTracks(ctx context.Context, albumID string) ([]*models.Track, error) {
	if _, err := s.albums.Get(ctx, albumID); err != nil {
		return nil, err
	}
	return s.tracks.ListByAlbum(ctx, albumID, true)
}

// RecentlyPlayed returns tracks by last play, newest first
func (s *Store) RecentlyPlayed(ctx context.Context, limit int) ([]*models.Track, error) {
	return s.tracks.List(ctx, map[string]any{"order": "last_played", "limit": limit})
}

// History returns the play log, newest first
func (s *Store) History(ctx context.Context, limit int) ([]*models.PlayHistory, error) {
	return s.history.Recent(ctx, limit)
}

// RecordPlay appends a history entry and bumps the track's play counters
func (s *Store) RecordPlay(ctx context.Context, trackID string, duration int) error {
	return s.WithTx(ctx, func(tx *Tx) error {
		if _, err := tx.Tracks.Get(ctx, trackID); err != nil {
			return err
		}
		at := time.Now().UTC()
		if err := tx.History.Append(ctx, &models.PlayHistory{TrackID: trackID, PlayedAt: at, Duration: duration}); err != nil {
			return err
		}
		return tx.Tracks.RecordPlay(ctx, trackID, at)
	})
}

// FindAlbum looks an album up by external id, falling back to a normalized
// title and artist comparison. A fallback hit without an external id gets
// externalID backfilled. Returns nil when nothing matches.
func (s *Store) FindAlbum(ctx context.Context, externalID, title, artist string) (*models.Album, error) {
	var found *models.Album
	err := s.WithTx(ctx, func(tx *Tx) error {
		album, err := tx.Albums.FindByExternalID(ctx, externalID)
		if err != nil || album != nil {
			found = album
			return err
		}

		if title == "" {
			return nil
		}
		candidates, err := tx.Albums.ListByTitleKey(ctx, shared.NormalizeTitle(title))
		if err != nil {
			return err
		}

		artistKey := shared.NormalizeTitle(artist)
		for _, c := range candidates {
			if artistKey != "" && shared.NormalizeTitle(c.ArtistName) != artistKey {
				continue
			}
			if externalID != "" && c.ExternalID != "" && c.ExternalID != externalID {
				continue
			}
			if backfill(&c.ExternalID, externalID) {
				if err := tx.Albums.Update(ctx, c); err != nil {
					return err
				}
				s.logger.Info("backfilled album external id", "album", c.ID, "external_id", externalID)
			}
			found = c
			return nil
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find album: %w", err)
	}
	return found, nil
}

// SearchLimits caps the local search result lists.
type SearchLimits struct {
	Albums  int
	Tracks  int
	Artists int
}

// Search runs a substring query over the catalog and returns results in their normalized form
func (s *Store) Search(ctx context.Context, query string, limits SearchLimits) (*models.SearchResults, error) {
	query = strings.TrimSpace(query)
	results := &models.SearchResults{
		Albums:  []models.AlbumResult{},
		Tracks:  []models.TrackResult{},
		Artists: []models.ArtistResult{},
	}
	if query == "" {
		return results, nil
	}

	albums, err := s.albums.Search(ctx, query, limits.Albums)
	if err != nil {
		return nil, err
	}
	for _, a := range albums {
		results.Albums = append(results.Albums, models.AlbumResultFrom(a))
	}

	tracks, err := s.tracks.Search(ctx, query, limits.Tracks)
	if err != nil {
		return nil, err
	}
	for _, t := range tracks {
		results.Tracks = append(results.Tracks, models.TrackResultFrom(t))
	}

	artists, err := s.artists.Search(ctx, query, limits.Artists)
	if err != nil {
		return nil, err
	}
	for _, a := range artists {
		results.Artists = append(results.Artists, models.ArtistResultFrom(a))
	}

	return results, nil
}

// UpdateArtistProfile persists image and bio onto an existing artist when it lacks them
func (s *Store) UpdateArtistProfile(ctx context.Context, artistID, imageURL, bio string) error {
	return s.WithTx(ctx, func(tx *Tx) error {
		artist, err := tx.Artists.Get(ctx, artistID)
		if err != nil {
			return err
		}
		changed := backfill(&artist.ImageURL, imageURL)
		changed = backfill(&artist.Bio, bio) || changed
		if !changed {
			return nil
		}
		return tx.Artists.Update(ctx, artist)
	})
}

// Stats summarizes the catalog size.
type Stats struct {
	Artists int `json:"artists"`
	Albums  int `json:"albums"`
	Tracks  int `json:"tracks"`
}

// Stats counts catalog rows
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var (
		stats Stats
		err   error
	)
	if stats.Artists, err = s.artists.Count(ctx); err != nil {
		return nil, err
	}
	if stats.Albums, err = s.albums.Count(ctx); err != nil {
		return nil, err
	}
	if stats.Tracks, err = s.tracks.Count(ctx); err != nil {
		return nil, err
	}
	return &stats, nil
}
