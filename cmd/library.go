package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/crate/internal/catalog"
	"github.com/desertthunder/crate/internal/formatter"
	"github.com/desertthunder/crate/internal/library"
	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/services"
	"github.com/desertthunder/crate/internal/shared"
	"github.com/urfave/cli/v3"
)

// LibraryScan imports one directory, or every storage root when no path is given.
func (r *Runner) LibraryScan(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("path")
	albumID := cmd.String("album-id")
	albumURL := cmd.String("album-url")

	if err := r.open(); err != nil {
		return err
	}

	var (
		result *library.ScanResult
		err    error
	)
	if path == "" {
		if albumID != "" || albumURL != "" {
			return fmt.Errorf("%w: --album-id and --album-url need a path", shared.ErrMissingArgument)
		}
		roots := r.config.StorageRoots()
		r.logger.Info("scanning storage roots", "roots", roots)
		result, err = r.scanner.ScanAll(ctx, roots)
	} else {
		if albumID == "" && albumURL != "" {
			albumID = services.AlbumIDFromURL(albumURL)
		}
		r.logger.Info("scanning directory", "path", path, "album_id", albumID)
		result, err = r.scanner.Scan(ctx, shared.ExpandPath(path), library.ScanOptions{
			ExternalAlbumID:  albumID,
			ExternalAlbumURL: albumURL,
		})
	}
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, cmd.Bool("pretty"))
	}

	r.writePlainHeader("Scan Complete")
	r.writePlain("Albums added:   %d\n", result.AlbumsAdded)
	r.writePlain("Tracks added:   %d\n", result.TracksAdded)
	r.writePlain("Tracks updated: %d\n", result.TracksUpdated)
	if result.Errors > 0 {
		r.writePlain("%s\n", formatter.Styles.Warn(fmt.Sprintf("Errors: %d (run with --verbose for details)", result.Errors)))
	}
	return nil
}

// LibraryVerify demotes tracks whose files disappeared and prunes what is left empty.
func (r *Runner) LibraryVerify(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	result, err := r.verifier.Verify(ctx)
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, cmd.Bool("pretty"))
	}

	r.writePlainHeader("Verification Complete")
	r.writePlain("Tracks checked:  %d\n", result.Verified)
	r.writePlain("Missing tracks:  %d\n", result.MissingTracks)
	r.writePlain("Removed albums:  %d\n", result.MissingAlbums)
	r.writePlain("Removed artists: %d\n", result.RemovedArtists)
	return nil
}

// LibraryAlbums lists albums, newest first.
func (r *Runner) LibraryAlbums(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	albums, err := r.store.ListAlbums(ctx, catalog.AlbumQuery{
		DownloadedOnly: cmd.Bool("downloaded"),
		Limit:          cmd.Int("limit"),
		Offset:         cmd.Int("offset"),
	})
	if err != nil {
		return err
	}
	return r.render(cmd, albums, formatter.AlbumsTable(albums))
}

// LibraryAlbum shows one album with its tracks. With --remote the id is a
// provider album id and the local download state is reported alongside.
func (r *Runner) LibraryAlbum(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: album id", shared.ErrMissingArgument)
	}
	if err := r.open(); err != nil {
		return err
	}

	if cmd.Bool("remote") {
		detail, err := r.search.RemoteAlbum(ctx, id)
		if err != nil {
			return err
		}
		return r.render(cmd, detail, formatter.SearchTables(&models.SearchResults{
			Albums: []models.AlbumResult{detail.Album},
			Tracks: detail.Tracks,
		}))
	}

	album, tracks, err := r.store.GetAlbum(ctx, id)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{"album": album, "tracks": tracks}, cmd.Bool("pretty"))
	}

	r.writePlain("%s\n", formatter.Styles.Title(album.Title))
	r.writePlain("%s", album.ArtistName)
	if album.ReleaseDate != "" {
		r.writePlain(" · %s", album.ReleaseDate)
	}
	if album.Genre != "" {
		r.writePlain(" · %s", album.Genre)
	}
	r.writePlain("\n%d tracks, %s\n", album.TrackCount, formatter.FormatDuration(album.Duration))
	if !album.Downloaded {
		r.writePlain("%s\n", formatter.Styles.Warn("Not downloaded"))
	}
	r.writePlain("%s\n", formatter.TracksTable(tracks))
	return nil
}

// LibraryArtists lists artists by name.
func (r *Runner) LibraryArtists(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	artists, err := r.store.ListArtists(ctx, cmd.Int("limit"), cmd.Int("offset"))
	if err != nil {
		return err
	}
	return r.render(cmd, artists, formatter.ArtistsTable(artists))
}

// LibraryArtist shows an artist with their albums.
func (r *Runner) LibraryArtist(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: artist id", shared.ErrMissingArgument)
	}
	if err := r.open(); err != nil {
		return err
	}

	artist, albums, err := r.store.GetArtist(ctx, id)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{"artist": artist, "albums": albums}, cmd.Bool("pretty"))
	}

	r.writePlain("%s\n", formatter.Styles.Title(artist.Name))
	if artist.Bio != "" {
		r.writePlain("%s\n", formatter.Styles.Help(artist.Bio))
	}
	r.writePlain("%s\n", formatter.AlbumsTable(albums))
	return nil
}

// LibraryRecent shows recently added albums and recently played tracks.
func (r *Runner) LibraryRecent(ctx context.Context, cmd *cli.Command) error {
	limit := cmd.Int("limit")
	if err := r.open(); err != nil {
		return err
	}

	albums, err := r.store.ListAlbums(ctx, catalog.AlbumQuery{Recent: true, Limit: limit})
	if err != nil {
		return err
	}
	played, err := r.store.RecentlyPlayed(ctx, limit)
	if err != nil {
		return err
	}

	var feed *models.Feed
	if cmd.Bool("featured") {
		if feed, err = r.search.Feed(ctx, limit); err != nil {
			return err
		}
	}

	if cmd.Bool("json") {
		data := map[string]any{"albums": albums, "played": played}
		if feed != nil {
			data["featured"] = feed
		}
		return r.writeJSON(data, cmd.Bool("pretty"))
	}

	if feed != nil {
		r.writePlain("%s", formatter.FeedTables(feed))
	}
	r.writePlain("%s\n%s\n", formatter.Styles.Title("Recently Added"), formatter.AlbumsTable(albums))
	r.writePlain("%s\n%s\n", formatter.Styles.Title("Recently Played"), formatter.TracksTable(played))
	return nil
}

// LibraryCheck reports whether a track can be played from disk.
func (r *Runner) LibraryCheck(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("track-id")
	if id == "" {
		return fmt.Errorf("%w: track id", shared.ErrMissingArgument)
	}
	if err := r.open(); err != nil {
		return err
	}

	availability, err := r.verifier.CheckTrack(ctx, id)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(availability, cmd.Bool("pretty"))
	}

	if availability.Available {
		r.writePlain("%s Track %s is available\n", formatter.Styles.OK("✓"), id)
		return nil
	}
	r.writePlain("%s Track %s is not available: %s\n", formatter.Styles.Err("✗"), id, availability.Reason)
	if availability.SourceURL != "" {
		r.writePlain("Download it with: crate download get %s\n", availability.SourceURL)
	}
	return nil
}

// LibraryStats counts catalog rows.
func (r *Runner) LibraryStats(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	stats, err := r.store.Stats(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(stats, cmd.Bool("pretty"))
	}
	r.writePlain("Artists: %d\nAlbums:  %d\nTracks:  %d\n", stats.Artists, stats.Albums, stats.Tracks)
	return nil
}

// History shows play history, newest first.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	entries, err := r.store.History(ctx, cmd.Int("limit"))
	if err != nil {
		return err
	}
	return r.render(cmd, entries, formatter.HistoryTable(entries))
}

// HistoryRecord logs a play that happened outside the queue.
func (r *Runner) HistoryRecord(ctx context.Context, cmd *cli.Command) error {
	trackID := cmd.StringArg("track-id")
	if trackID == "" {
		return fmt.Errorf("%w: track id", shared.ErrMissingArgument)
	}
	duration := cmd.Int("duration")
	if duration < 0 {
		return fmt.Errorf("%w: duration must not be negative", shared.ErrInvalidArgument)
	}
	if err := r.open(); err != nil {
		return err
	}

	if err := r.store.RecordPlay(ctx, trackID, duration); err != nil {
		return err
	}
	return r.writePlain("%s Recorded play of %s\n", formatter.Styles.OK("✓"), trackID)
}
