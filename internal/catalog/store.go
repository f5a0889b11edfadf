package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/repositories"
	"github.com/desertthunder/crate/internal/shared"
)

// Store is the catalog entry point. Reads go straight to the database; writes
// go through [Store.WithTx].
type Store struct {
	db      *sql.DB
	logger  *log.Logger
	artists *repositories.ArtistRepository
	albums  *repositories.AlbumRepository
	tracks  *repositories.TrackRepository
	history *repositories.HistoryRepository
	likes   *repositories.LikeRepository
}

// NewStore creates a Store on db. A nil logger discards output.
func NewStore(db *sql.DB, logger *log.Logger) *Store {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Store{
		db:      db,
		logger:  shared.WithLogger(logger, "component", "catalog"),
		artists: repositories.NewArtistRepository(db),
		albums:  repositories.NewAlbumRepository(db),
		tracks:  repositories.NewTrackRepository(db),
		history: repositories.NewHistoryRepository(db),
		likes:   repositories.NewLikeRepository(db),
	}
}

// DB exposes the underlying handle for components that manage their own transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Tx is a catalog write transaction. Repositories and the resolver it exposes
// all run on the same [sql.Tx].
type Tx struct {
	*Resolver
	tx      *sql.Tx
	logger  *log.Logger
	Artists *repositories.ArtistRepository
	Albums  *repositories.AlbumRepository
	Tracks  *repositories.TrackRepository
	Queue   *repositories.QueueRepository
	History *repositories.HistoryRepository
	Likes   *repositories.LikeRepository
}

// WithTx runs fn in a transaction, committing when fn returns nil and rolling
// back otherwise. fn must not use the Store's own read methods.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	tx := &Tx{
		Resolver: NewResolver(sqlTx),
		tx:       sqlTx,
		logger:   s.logger,
		Artists:  repositories.NewArtistRepository(sqlTx),
		Albums:   repositories.NewAlbumRepository(sqlTx),
		Tracks:   repositories.NewTrackRepository(sqlTx),
		Queue:    repositories.NewQueueRepository(sqlTx),
		History:  repositories.NewHistoryRepository(sqlTx),
		Likes:    repositories.NewLikeRepository(sqlTx),
	}

	if err := fn(tx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			s.logger.Error("rollback failed", "error", rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		sqlTx.Rollback()
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ArtistInput describes an artist to find or create.
type ArtistInput struct {
	Name       string
	ExternalID string
	ImageURL   string
	Bio        string
}

// GetOrCreateArtist resolves the artist and creates it when nothing matches.
// Empty external id, image and bio fields of an existing row are backfilled.
func (t *Tx) GetOrCreateArtist(ctx context.Context, in ArtistInput) (*models.Artist, bool, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, false, fmt.Errorf("%w: artist name is required", shared.ErrInvalidInput)
	}

	artist, match, err := t.ResolveArtist(ctx, in.ExternalID, name)
	if err != nil {
		return nil, false, fmt.Errorf("failed to resolve artist: %w", err)
	}

	if artist == nil {
		artist = &models.Artist{Name: name, ExternalID: in.ExternalID, ImageURL: in.ImageURL, Bio: in.Bio}
		if err := t.Artists.Create(ctx, artist); err != nil {
			return nil, false, err
		}
		t.logger.Debug("created artist", "id", artist.ID, "name", name)
		return artist, true, nil
	}

	changed := backfill(&artist.ExternalID, in.ExternalID)
	changed = backfill(&artist.ImageURL, in.ImageURL) || changed
	changed = backfill(&artist.Bio, in.Bio) || changed
	if changed {
		if err := t.Artists.Update(ctx, artist); err != nil {
			return nil, false, err
		}
		t.logger.Debug("backfilled artist", "id", artist.ID, "match", match)
	}
	return artist, false, nil
}

// AlbumInput describes an album to find or create.
type AlbumInput struct {
	Title       string
	ArtistID    string
	ExternalID  string
	ExternalURL string
	CoverURL    string
	ReleaseDate string
	Genre       string
	TrackCount  int
}

// GetOrCreateAlbum resolves the album and creates it when nothing matches.
// Empty external id/url, cover, release date and genre are backfilled.
func (t *Tx) GetOrCreateAlbum(ctx context.Context, in AlbumInput) (*models.Album, bool, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" || in.ArtistID == "" {
		return nil, false, fmt.Errorf("%w: album title and artist are required", shared.ErrInvalidInput)
	}

	album, match, err := t.ResolveAlbum(ctx, in.ExternalID, title, in.ArtistID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to resolve album: %w", err)
	}

	if album == nil {
		album = &models.Album{
			Title:       title,
			ArtistID:    in.ArtistID,
			ExternalID:  in.ExternalID,
			ExternalURL: in.ExternalURL,
			CoverURL:    in.CoverURL,
			ReleaseDate: in.ReleaseDate,
			Genre:       in.Genre,
			TrackCount:  in.TrackCount,
		}
		if err := t.Albums.Create(ctx, album); err != nil {
			return nil, false, err
		}
		t.logger.Debug("created album", "id", album.ID, "title", title)
		return album, true, nil
	}

	changed := backfill(&album.ExternalID, in.ExternalID)
	changed = backfill(&album.ExternalURL, in.ExternalURL) || changed
	changed = backfill(&album.CoverURL, in.CoverURL) || changed
	changed = backfill(&album.ReleaseDate, in.ReleaseDate) || changed
	changed = backfill(&album.Genre, in.Genre) || changed
	if album.TrackCount == 0 && in.TrackCount > 0 {
		album.TrackCount = in.TrackCount
		changed = true
	}
	if changed {
		if err := t.Albums.Update(ctx, album); err != nil {
			return nil, false, err
		}
		t.logger.Debug("backfilled album", "id", album.ID, "match", match)
	}
	return album, false, nil
}

// TrackInput describes a track found on disk or returned by the provider.
type TrackInput struct {
	Title       string
	ArtistID    string
	AlbumID     string
	ExternalID  string
	TrackNumber int
	DiscNumber  int
	Duration    int
	FilePath    string
}

// AddTrack upserts a track. The rules are checked in order:
//
//  1. a track with the same external id gets the new file path
//  2. a track at the same file path gets the new title, numbers and duration
//  3. a track in the same album with the same number and title gets the new file path
//  4. otherwise a new track is inserted
//
// A track with a file path is marked downloaded. The bool result reports an insert.
func (t *Tx) AddTrack(ctx context.Context, in TrackInput) (*models.Track, bool, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" || in.AlbumID == "" || in.ArtistID == "" {
		return nil, false, fmt.Errorf("%w: track title, album and artist are required", shared.ErrInvalidInput)
	}
	disc := in.DiscNumber
	if disc <= 0 {
		disc = 1
	}

	track, match, err := t.ResolveTrack(ctx, TrackCandidate{
		ExternalID:  in.ExternalID,
		FilePath:    in.FilePath,
		AlbumID:     in.AlbumID,
		TrackNumber: in.TrackNumber,
		Title:       title,
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to resolve track: %w", err)
	}

	if track == nil {
		track = &models.Track{
			Title:       title,
			ArtistID:    in.ArtistID,
			AlbumID:     in.AlbumID,
			ExternalID:  in.ExternalID,
			TrackNumber: in.TrackNumber,
			DiscNumber:  disc,
			Duration:    in.Duration,
			FilePath:    in.FilePath,
			Downloaded:  in.FilePath != "",
		}
		if err := t.Tracks.Create(ctx, track); err != nil {
			return nil, false, err
		}
		return track, true, nil
	}

	switch match {
	case MatchPath:
		track.Title = title
		track.TrackNumber = in.TrackNumber
		track.DiscNumber = disc
		if in.Duration > 0 {
			track.Duration = in.Duration
		}
	default:
		if in.FilePath != "" {
			track.FilePath = in.FilePath
		}
		if track.Duration == 0 {
			track.Duration = in.Duration
		}
	}
	if in.FilePath != "" {
		track.Downloaded = true
	}
	backfill(&track.ExternalID, in.ExternalID)

	if err := t.Tracks.Update(ctx, track); err != nil {
		return nil, false, err
	}
	return track, false, nil
}

// backfill sets *dst to src when dst is empty and src is not
func backfill(dst *string, src string) bool {
	if *dst != "" || src == "" {
		return false
	}
	*dst = src
	return true
}
