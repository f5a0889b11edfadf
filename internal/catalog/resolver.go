package catalog

import (
	"context"
	"strings"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/repositories"
	"github.com/desertthunder/crate/internal/shared"
)

// MatchKind tells which identity rule matched.
type MatchKind int

const (
	MatchNone MatchKind = iota
	MatchExternalID
	MatchName
	MatchPath
	MatchPosition
)

func (m MatchKind) String() string {
	switch m {
	case MatchExternalID:
		return "external_id"
	case MatchName:
		return "name"
	case MatchPath:
		return "path"
	case MatchPosition:
		return "position"
	default:
		return "none"
	}
}

// TrackCandidate is what is known about a track before it is resolved.
type TrackCandidate struct {
	ExternalID  string
	FilePath    string
	AlbumID     string
	TrackNumber int
	Title       string
}

// Resolver looks up existing catalog entities without mutating anything.
type Resolver struct {
	artists *repositories.ArtistRepository
	albums  *repositories.AlbumRepository
	tracks  *repositories.TrackRepository
}

// NewResolver creates a Resolver reading through q
func NewResolver(q shared.Querier) *Resolver {
	return &Resolver{
		artists: repositories.NewArtistRepository(q),
		albums:  repositories.NewAlbumRepository(q),
		tracks:  repositories.NewTrackRepository(q),
	}
}

// ResolveArtist finds an artist by external id, then by case-insensitive name
func (r *Resolver) ResolveArtist(ctx context.Context, externalID, name string) (*models.Artist, MatchKind, error) {
	if externalID != "" {
		artist, err := r.artists.FindByExternalID(ctx, externalID)
		if err != nil || artist != nil {
			return artist, MatchExternalID, err
		}
	}

	if strings.TrimSpace(name) == "" {
		return nil, MatchNone, nil
	}

	artist, err := r.artists.FindByName(ctx, name, externalID)
	if err != nil || artist == nil {
		return nil, MatchNone, err
	}
	return artist, MatchName, nil
}

// ResolveAlbum finds an album by external id, then by exact title under artistID
func (r *Resolver) ResolveAlbum(ctx context.Context, externalID, title, artistID string) (*models.Album, MatchKind, error) {
	if externalID != "" {
		album, err := r.albums.FindByExternalID(ctx, externalID)
		if err != nil || album != nil {
			return album, MatchExternalID, err
		}
	}

	if title == "" || artistID == "" {
		return nil, MatchNone, nil
	}

	album, err := r.albums.FindByTitle(ctx, title, artistID, externalID)
	if err != nil || album == nil {
		return nil, MatchNone, err
	}
	return album, MatchName, nil
}

// ResolveTrack finds a track by external id, exact path, then album position.
//
// Path and position hits already bound to a different external id are ignored.
func (r *Resolver) ResolveTrack(ctx context.Context, c TrackCandidate) (*models.Track, MatchKind, error) {
	if c.ExternalID != "" {
		track, err := r.tracks.FindByExternalID(ctx, c.ExternalID)
		if err != nil || track != nil {
			return track, MatchExternalID, err
		}
	}

	if c.FilePath != "" {
		track, err := r.tracks.FindByFilePath(ctx, c.FilePath)
		if err != nil {
			return nil, MatchNone, err
		}
		if compatible(track, c.ExternalID) {
			return track, MatchPath, nil
		}
	}

	if c.AlbumID != "" && c.Title != "" {
		track, err := r.tracks.FindByPosition(ctx, c.AlbumID, c.TrackNumber, c.Title)
		if err != nil {
			return nil, MatchNone, err
		}
		if compatible(track, c.ExternalID) {
			return track, MatchPosition, nil
		}
	}

	return nil, MatchNone, nil
}

func compatible(track *models.Track, externalID string) bool {
	if track == nil {
		return false
	}
	return externalID == "" || track.ExternalID == "" || track.ExternalID == externalID
}
