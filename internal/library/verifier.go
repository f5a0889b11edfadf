package library

import (
	"context"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crate/internal/catalog"
	"github.com/desertthunder/crate/internal/shared"
)

// VerifyResult counts what a verification pass found.
type VerifyResult struct {
	Verified       int `json:"verified"`
	MissingTracks  int `json:"missing_tracks"`
	MissingAlbums  int `json:"missing_albums"`
	RemovedArtists int `json:"removed_artists"`
}

// Availability tells whether a track can be played from disk.
type Availability struct {
	TrackID       string `json:"track_id"`
	Available     bool   `json:"available"`
	NeedsDownload bool   `json:"needs_download"`
	Reason        string `json:"reason,omitempty"`
	SourceURL     string `json:"source_url,omitempty"`
}

// Verifier reconciles downloaded flags with the filesystem.
type Verifier struct {
	store  *catalog.Store
	logger *log.Logger
}

// NewVerifier creates a Verifier. A nil logger discards output.
func NewVerifier(store *catalog.Store, logger *log.Logger) *Verifier {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Verifier{store: store, logger: shared.WithLogger(logger, "component", "verifier")}
}

// Verify checks every downloaded track in one transaction.
//
// A track whose file is gone is demoted. An album left without a downloaded
// track is deleted together with its tracks, and then every artist owning no
// album and no track is removed. Queue positions are renumbered afterwards since
// deleted tracks take their queue items with them. Running it twice in a row
// reports nothing the second time.
func (v *Verifier) Verify(ctx context.Context) (*VerifyResult, error) {
	result := &VerifyResult{}

	err := v.store.WithTx(ctx, func(tx *catalog.Tx) error {
		*result = VerifyResult{}

		tracks, err := tx.Tracks.List(ctx, map[string]any{"downloaded": true})
		if err != nil {
			return err
		}

		var marked []string
		seen := make(map[string]bool)
		for _, track := range tracks {
			if fileExists(track.FilePath) {
				result.Verified++
				continue
			}

			v.logger.Warn("track file missing", "track", track.ID, "path", track.FilePath)
			if err := tx.Tracks.Demote(ctx, track.ID); err != nil {
				return err
			}
			result.MissingTracks++
			if !seen[track.AlbumID] {
				seen[track.AlbumID] = true
				marked = append(marked, track.AlbumID)
			}
		}

		for _, albumID := range marked {
			remaining, err := tx.Tracks.CountDownloaded(ctx, albumID)
			if err != nil {
				return err
			}
			if remaining > 0 {
				if err := tx.Albums.RefreshTotals(ctx, albumID); err != nil {
					return err
				}
				continue
			}
			if err := tx.Albums.Delete(ctx, albumID); err != nil {
				return err
			}
			v.logger.Info("removed album with no local files", "album", albumID)
			result.MissingAlbums++
		}

		if result.RemovedArtists, err = tx.Artists.DeleteOrphans(ctx); err != nil {
			return err
		}

		if result.MissingAlbums > 0 {
			if _, err := tx.Queue.Renumber(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	v.logger.Info("verification complete",
		"verified", result.Verified,
		"missing_tracks", result.MissingTracks,
		"missing_albums", result.MissingAlbums,
		"removed_artists", result.RemovedArtists)
	return result, nil
}

// CheckTrack reports whether a track is playable from disk. A downloaded track
// whose file has disappeared is demoted on the spot; when that leaves its album
// without a downloaded track the album is demoted too.
func (v *Verifier) CheckTrack(ctx context.Context, trackID string) (*Availability, error) {
	availability := &Availability{TrackID: trackID}

	err := v.store.WithTx(ctx, func(tx *catalog.Tx) error {
		track, err := tx.Tracks.Get(ctx, trackID)
		if err != nil {
			return err
		}
		album, err := tx.Albums.Get(ctx, track.AlbumID)
		if err != nil {
			return err
		}

		switch {
		case !track.Downloaded:
			availability.NeedsDownload = true
			availability.Reason = "track not downloaded"
			availability.SourceURL = album.ExternalURL
			return nil
		case fileExists(track.FilePath):
			availability.Available = true
			return nil
		}

		v.logger.Warn("track file missing", "track", track.ID, "path", track.FilePath)
		if err := tx.Tracks.Demote(ctx, track.ID); err != nil {
			return err
		}
		remaining, err := tx.Tracks.CountDownloaded(ctx, album.ID)
		if err != nil {
			return err
		}
		if remaining == 0 && album.Downloaded {
			album.Downloaded = false
			if err := tx.Albums.Update(ctx, album); err != nil {
				return err
			}
		}

		availability.NeedsDownload = true
		availability.Reason = "local file missing"
		availability.SourceURL = album.ExternalURL
		return nil
	})
	if err != nil {
		return nil, err
	}
	return availability, nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
