package catalog

import (
	"context"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/repositories"
)

// LikeStatus is returned by the like and unlike calls. Changed is false when
// the item already was in the requested state.
type LikeStatus struct {
	ID      string `json:"id"`
	Liked   bool   `json:"liked"`
	Changed bool   `json:"changed"`
}

// LikedIDs lists every liked track and album id.
type LikedIDs struct {
	Tracks []string `json:"track_ids"`
	Albums []string `json:"album_ids"`
}

// LikeTrack likes an existing track
func (s *Store) LikeTrack(ctx context.Context, id string) (*LikeStatus, error) {
	return s.setLike(ctx, repositories.LikeTrack, id, true)
}

// UnlikeTrack removes a track like. Unknown ids are not an error.
func (s *Store) UnlikeTrack(ctx context.Context, id string) (*LikeStatus, error) {
	return s.setLike(ctx, repositories.LikeTrack, id, false)
}

// LikeAlbum likes an existing album
func (s *Store) LikeAlbum(ctx context.Context, id string) (*LikeStatus, error) {
	return s.setLike(ctx, repositories.LikeAlbum, id, true)
}

// UnlikeAlbum removes an album like. Unknown ids are not an error.
func (s *Store) UnlikeAlbum(ctx context.Context, id string) (*LikeStatus, error) {
	return s.setLike(ctx, repositories.LikeAlbum, id, false)
}

func (s *Store) setLike(ctx context.Context, target repositories.LikeTarget, id string, like bool) (*LikeStatus, error) {
	status := &LikeStatus{ID: id, Liked: like}
	err := s.WithTx(ctx, func(tx *Tx) error {
		var err error
		if !like {
			status.Changed, err = tx.Likes.Remove(ctx, target, id)
			return err
		}

		switch target {
		case repositories.LikeTrack:
			_, err = tx.Tracks.Get(ctx, id)
		case repositories.LikeAlbum:
			_, err = tx.Albums.Get(ctx, id)
		}
		if err != nil {
			return err
		}
		status.Changed, err = tx.Likes.Add(ctx, target, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if status.Changed {
		s.logger.Debug("like changed", "target", target, "id", id, "liked", like)
	}
	return status, nil
}

// TrackLiked reports whether a track is liked
func (s *Store) TrackLiked(ctx context.Context, id string) (bool, error) {
	return s.likes.Has(ctx, repositories.LikeTrack, id)
}

// AlbumLiked reports whether an album is liked
func (s *Store) AlbumLiked(ctx context.Context, id string) (bool, error) {
	return s.likes.Has(ctx, repositories.LikeAlbum, id)
}

// LikedTracks returns liked tracks, most recently liked first
func (s *Store) LikedTracks(ctx context.Context) ([]*models.Track, error) {
	tracks, err := s.likes.Tracks(ctx)
	if tracks == nil && err == nil {
		tracks = []*models.Track{}
	}
	return tracks, err
}

// LikedAlbums returns liked albums, most recently liked first
func (s *Store) LikedAlbums(ctx context.Context) ([]*models.Album, error) {
	albums, err := s.likes.Albums(ctx)
	if albums == nil && err == nil {
		albums = []*models.Album{}
	}
	return albums, err
}

// LikedIDs returns the ids of every liked track and album
func (s *Store) LikedIDs(ctx context.Context) (*LikedIDs, error) {
	tracks, err := s.likes.IDs(ctx, repositories.LikeTrack)
	if err != nil {
		return nil, err
	}
	albums, err := s.likes.IDs(ctx, repositories.LikeAlbum)
	if err != nil {
		return nil, err
	}
	return &LikedIDs{Tracks: tracks, Albums: albums}, nil
}
