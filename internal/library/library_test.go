package library

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/desertthunder/crate/internal/catalog"
	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
	tu "github.com/desertthunder/crate/internal/testing"
	"github.com/gofrs/flock"
)

// writeAlbum lays out a tagged album under root and returns the file paths
func writeAlbum(t *testing.T, root, artist, album string, titles ...string) []string {
	t.Helper()
	dir := filepath.Join(root, artist+" - "+album)
	paths := make([]string, 0, len(titles))
	for i, title := range titles {
		path := filepath.Join(dir, title+".mp3")
		tu.WriteTaggedMP3(t, path, tu.Tags{
			Title: title, Artist: artist, Album: album, Track: i + 1, LengthMS: 1000 * 60 * (i + 1),
		})
		paths = append(paths, path)
	}
	return paths
}

func newStore(t *testing.T) *catalog.Store {
	t.Helper()
	return catalog.NewStore(tu.NewTestDB(t), nil)
}

func mustScan(t *testing.T, s *Scanner, root string, opts ScanOptions) *ScanResult {
	t.Helper()
	result, err := s.Scan(context.Background(), root, opts)
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	return result
}

func TestScanner(t *testing.T) {
	ctx := context.Background()

	t.Run("Imports Albums And Tracks", func(t *testing.T) {
		store := newStore(t)
		root := t.TempDir()
		writeAlbum(t, root, "Pink Floyd", "Animals", "Dogs", "Pigs", "Sheep")
		writeAlbum(t, root, "Low", "Trust", "Canada")

		result := mustScan(t, NewScanner(store, ScannerOpts{}), root, ScanOptions{})
		if result.AlbumsAdded != 2 || result.TracksAdded != 4 || result.Errors != 0 {
			t.Errorf("unexpected result: %+v", result)
		}
		if len(result.AlbumIDs) != 2 {
			t.Errorf("expected 2 touched albums, got %d", len(result.AlbumIDs))
		}

		albums, _ := store.ListAlbums(ctx, catalog.AlbumQuery{DownloadedOnly: true})
		if len(albums) != 2 {
			t.Fatalf("expected 2 downloaded albums, got %d", len(albums))
		}
		for _, a := range albums {
			if a.Title == "Animals" && (a.TrackCount != 3 || a.Duration != 360) {
				t.Errorf("expected totals to be refreshed, got %+v", a)
			}
		}
	})

	t.Run("Rescan Is Idempotent", func(t *testing.T) {
		store := newStore(t)
		root := t.TempDir()
		writeAlbum(t, root, "Pink Floyd", "Animals", "Dogs", "Pigs")
		s := NewScanner(store, ScannerOpts{Workers: 2})

		mustScan(t, s, root, ScanOptions{})
		before, _ := store.Stats(ctx)

		again := mustScan(t, s, root, ScanOptions{})
		if again.AlbumsAdded != 0 || again.TracksAdded != 0 || again.TracksUpdated != 2 {
			t.Errorf("unexpected rescan result: %+v", again)
		}

		after, _ := store.Stats(ctx)
		if *before != *after {
			t.Errorf("row counts changed: %+v -> %+v", before, after)
		}
	})

	t.Run("Tag Change Updates Same Path", func(t *testing.T) {
		store := newStore(t)
		root := t.TempDir()
		paths := writeAlbum(t, root, "Pink Floyd", "Animals", "Dogs")
		s := NewScanner(store, ScannerOpts{})
		first := mustScan(t, s, root, ScanOptions{})

		tu.WriteTaggedMP3(t, paths[0], tu.Tags{Title: "Dogs (Remix)", Artist: "Pink Floyd", Album: "Animals", Track: 2})
		second := mustScan(t, s, root, ScanOptions{})
		if second.TracksAdded != 0 || second.TracksUpdated != 1 {
			t.Fatalf("unexpected result: %+v", second)
		}

		tracks, _ := store.AlbumTracks(ctx, first.AlbumIDs[0])
		if len(tracks) != 1 || tracks[0].Title != "Dogs (Remix)" || tracks[0].TrackNumber != 2 {
			t.Errorf("expected updated track, got %+v", tracks)
		}
	})

	t.Run("External Album ID Backfill", func(t *testing.T) {
		store := newStore(t)
		root := t.TempDir()
		writeAlbum(t, root, "The Beatles", "Abbey Road", "Come Together")
		s := NewScanner(store, ScannerOpts{})
		result := mustScan(t, s, root, ScanOptions{})

		mustScan(t, s, root, ScanOptions{ExternalAlbumID: "0060253764852", ExternalAlbumURL: "https://example.com/album/0060253764852"})

		album, _, err := store.GetAlbum(ctx, result.AlbumIDs[0])
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if album.ExternalID != "0060253764852" || album.ExternalURL == "" {
			t.Errorf("expected external id backfill, got %+v", album)
		}
	})

	t.Run("External Album ID Needs One Album", func(t *testing.T) {
		store := newStore(t)
		root := t.TempDir()
		writeAlbum(t, root, "Low", "Trust", "Canada", "Candy Girl")
		writeAlbum(t, root, "The Beatles", "Abbey Road", "Something")
		s := NewScanner(store, ScannerOpts{})

		for range 2 {
			result := mustScan(t, s, root, ScanOptions{ExternalAlbumID: "0060254767291"})
			if result.Errors != 0 {
				t.Fatalf("unexpected errors: %+v", result)
			}
		}

		albums, _ := store.ListAlbums(ctx, catalog.AlbumQuery{})
		if len(albums) != 2 {
			t.Fatalf("expected albums kept apart, got %d", len(albums))
		}
		for _, a := range albums {
			if a.ExternalID != "" {
				t.Errorf("expected no external id on %q, got %q", a.Title, a.ExternalID)
			}
			_, tracks, _ := store.GetAlbum(ctx, a.ID)
			if a.Title == "Trust" && len(tracks) != 2 || a.Title == "Abbey Road" && len(tracks) != 1 {
				t.Errorf("unexpected tracks for %q: %d", a.Title, len(tracks))
			}
		}
	})

	t.Run("External Album ID Stays With Its Album", func(t *testing.T) {
		store := newStore(t)
		first, second := t.TempDir(), t.TempDir()
		writeAlbum(t, first, "The Beatles", "Abbey Road", "Something")
		writeAlbum(t, second, "Low", "Trust", "Canada")
		s := NewScanner(store, ScannerOpts{})

		owner := mustScan(t, s, first, ScanOptions{ExternalAlbumID: "42"})
		other := mustScan(t, s, second, ScanOptions{ExternalAlbumID: "42"})

		album, _, _ := store.GetAlbum(ctx, owner.AlbumIDs[0])
		if album.ExternalID != "42" {
			t.Errorf("expected first album to keep the id, got %q", album.ExternalID)
		}
		album, _, _ = store.GetAlbum(ctx, other.AlbumIDs[0])
		if album.Title != "Trust" || album.ExternalID != "" {
			t.Errorf("expected a separate album without the id, got %+v", album)
		}
	})

	t.Run("Failed File Rolls Back", func(t *testing.T) {
		store := newStore(t)
		root := t.TempDir()
		writeAlbum(t, root, "Low", "Trust", "Canada", "Candy Girl")
		writeAlbum(t, root, "Nobody", "Nothing", "Broken")

		_, err := store.DB().ExecContext(ctx, `
			CREATE TRIGGER reject_broken BEFORE INSERT ON tracks
			WHEN NEW.title = 'Broken'
			BEGIN SELECT RAISE(ABORT, 'rejected'); END`)
		if err != nil {
			t.Fatalf("failed to create trigger: %v", err)
		}

		result := mustScan(t, NewScanner(store, ScannerOpts{}), root, ScanOptions{})
		if result.Errors != 1 || result.TracksAdded != 2 || result.AlbumsAdded != 1 {
			t.Errorf("unexpected result: %+v", result)
		}
		if len(result.AlbumIDs) != 1 {
			t.Errorf("expected only the imported album reported, got %v", result.AlbumIDs)
		}

		stats, _ := store.Stats(ctx)
		if stats.Artists != 1 || stats.Albums != 1 || stats.Tracks != 2 {
			t.Errorf("expected no rows left by the failed file, got %+v", stats)
		}
	})

	t.Run("Cover Art And Multi Disc", func(t *testing.T) {
		store := newStore(t)
		root := t.TempDir()
		albumDir := filepath.Join(root, "The Beatles - White Album (1968)")
		if err := os.MkdirAll(albumDir, 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(albumDir, "Folder.JPG"), []byte("jpg"), 0644); err != nil {
			t.Fatal(err)
		}
		tu.WriteUntaggedFile(t, filepath.Join(albumDir, "CD 1", "01. Back in the U.S.S.R..mp3"))
		tu.WriteUntaggedFile(t, filepath.Join(albumDir, "CD 2", "01. Birthday.mp3"))

		result := mustScan(t, NewScanner(store, ScannerOpts{}), root, ScanOptions{})
		if result.AlbumsAdded != 1 || result.TracksAdded != 2 {
			t.Fatalf("expected one album with two tracks, got %+v", result)
		}

		album, tracks, _ := store.GetAlbum(ctx, result.AlbumIDs[0])
		if album.CoverLocal != filepath.Join(albumDir, "Folder.JPG") {
			t.Errorf("expected parent cover, got %q", album.CoverLocal)
		}
		if len(tracks) != 2 || tracks[0].DiscNumber != 1 || tracks[1].DiscNumber != 2 {
			t.Errorf("expected one track per disc, got %+v", tracks)
		}
	})

	t.Run("Unreadable Root", func(t *testing.T) {
		s := NewScanner(newStore(t), ScannerOpts{})
		if _, err := s.Scan(ctx, filepath.Join(t.TempDir(), "missing"), ScanOptions{}); err == nil {
			t.Error("expected error for missing root")
		}
	})

	t.Run("Lock Held", func(t *testing.T) {
		lockPath := filepath.Join(t.TempDir(), "data", "scan.lock")
		s := NewScanner(newStore(t), ScannerOpts{LockPath: lockPath})

		unlock, err := s.lock(ctx, false)
		if err != nil {
			t.Fatalf("failed to take lock: %v", err)
		}
		if _, err := s.Scan(ctx, t.TempDir(), ScanOptions{}); !errors.Is(err, shared.ErrScanLocked) {
			t.Errorf("expected ErrScanLocked, got %v", err)
		}
		unlock()

		if _, err := s.Scan(ctx, t.TempDir(), ScanOptions{}); err != nil {
			t.Errorf("expected scan after unlock to succeed, got %v", err)
		}
	})

	t.Run("Wait For Lock", func(t *testing.T) {
		store := newStore(t)
		root := t.TempDir()
		writeAlbum(t, root, "Low", "Trust", "Canada")
		lockPath := filepath.Join(t.TempDir(), "scan.lock")
		s := NewScanner(store, ScannerOpts{LockPath: lockPath})

		held := flock.New(lockPath)
		if ok, err := held.TryLock(); !ok || err != nil {
			t.Fatalf("failed to hold lock: %v", err)
		}

		done := make(chan error, 1)
		go func() {
			_, err := s.Scan(ctx, root, ScanOptions{Wait: true})
			done <- err
		}()

		select {
		case err := <-done:
			t.Fatalf("expected scan to wait for the lock, returned %v", err)
		case <-time.After(300 * time.Millisecond):
		}
		if err := held.Unlock(); err != nil {
			t.Fatalf("failed to release lock: %v", err)
		}

		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("expected scan to succeed, got %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("scan never acquired the lock")
		}
		if stats, _ := store.Stats(ctx); stats.Tracks != 1 {
			t.Errorf("expected track imported, got %+v", stats)
		}

		t.Run("Gives Up With Context", func(t *testing.T) {
			if ok, err := held.TryLock(); !ok || err != nil {
				t.Fatalf("failed to hold lock: %v", err)
			}
			defer held.Unlock()

			waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
			defer cancel()
			if _, err := s.Scan(waitCtx, root, ScanOptions{Wait: true}); !errors.Is(err, context.DeadlineExceeded) {
				t.Errorf("expected deadline error, got %v", err)
			}
		})
	})

	t.Run("Scan All Skips Missing Roots", func(t *testing.T) {
		store := newStore(t)
		a, b := t.TempDir(), t.TempDir()
		writeAlbum(t, a, "Low", "Trust", "Canada")
		writeAlbum(t, b, "Low", "Secret Name", "Starfire")

		result, err := NewScanner(store, ScannerOpts{}).ScanAll(ctx, []string{a, filepath.Join(a, "nope"), b})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.AlbumsAdded != 2 || result.TracksAdded != 2 {
			t.Errorf("unexpected totals: %+v", result)
		}
	})
}

func TestVerifier(t *testing.T) {
	ctx := context.Background()

	t.Run("Round Trip", func(t *testing.T) {
		store := newStore(t)
		root := t.TempDir()
		paths := writeAlbum(t, root, "Portishead", "Dummy", "Roads")
		writeAlbum(t, root, "Low", "Trust", "Canada")
		mustScan(t, NewScanner(store, ScannerOpts{}), root, ScanOptions{})

		tu.MustRemove(t, paths[0])
		v := NewVerifier(store, nil)

		first, err := v.Verify(ctx)
		if err != nil {
			t.Fatalf("verify failed: %v", err)
		}
		want := VerifyResult{Verified: 1, MissingTracks: 1, MissingAlbums: 1, RemovedArtists: 1}
		if *first != want {
			t.Errorf("expected %+v, got %+v", want, *first)
		}

		albums, _ := store.ListAlbums(ctx, catalog.AlbumQuery{})
		if len(albums) != 1 || albums[0].Title != "Trust" {
			t.Errorf("expected only Trust to remain, got %v", albums)
		}

		second, _ := v.Verify(ctx)
		if second.MissingTracks != 0 || second.MissingAlbums != 0 || second.RemovedArtists != 0 {
			t.Errorf("second pass should be clean, got %+v", second)
		}
	})

	t.Run("Partial Album Keeps Album", func(t *testing.T) {
		store := newStore(t)
		root := t.TempDir()
		paths := writeAlbum(t, root, "Pink Floyd", "Animals", "Dogs", "Pigs")
		mustScan(t, NewScanner(store, ScannerOpts{}), root, ScanOptions{})

		tu.MustRemove(t, paths[1])
		result, _ := NewVerifier(store, nil).Verify(ctx)
		if result.MissingTracks != 1 || result.MissingAlbums != 0 {
			t.Errorf("unexpected result: %+v", result)
		}
	})

	t.Run("Deleted Tracks Leave The Queue Contiguous", func(t *testing.T) {
		store := newStore(t)
		root := t.TempDir()
		gone := writeAlbum(t, root, "Portishead", "Dummy", "Roads")
		writeAlbum(t, root, "Low", "Trust", "Canada", "Tonight")
		mustScan(t, NewScanner(store, ScannerOpts{}), root, ScanOptions{})

		var trackIDs []string
		for _, p := range append(gone, filepath.Join(root, "Low - Trust", "Canada.mp3"), filepath.Join(root, "Low - Trust", "Tonight.mp3")) {
			err := store.WithTx(ctx, func(tx *catalog.Tx) error {
				track, err := tx.Tracks.FindByFilePath(ctx, p)
				if err != nil {
					return err
				}
				trackIDs = append(trackIDs, track.ID)
				n, _ := tx.Queue.Len(ctx)
				return tx.Queue.Insert(ctx, &models.QueueItem{TrackID: track.ID, Position: n + 1})
			})
			if err != nil {
				t.Fatalf("failed to queue track: %v", err)
			}
		}

		tu.MustRemove(t, gone[0])
		if _, err := NewVerifier(store, nil).Verify(ctx); err != nil {
			t.Fatalf("verify failed: %v", err)
		}

		var items []*models.QueueItem
		store.WithTx(ctx, func(tx *catalog.Tx) error {
			items, _ = tx.Queue.List(ctx)
			return nil
		})
		if len(items) != 2 || items[0].Position != 1 || items[1].Position != 2 {
			t.Errorf("expected renumbered queue, got %v", items)
		}
	})

	t.Run("Check Track", func(t *testing.T) {
		store := newStore(t)
		root := t.TempDir()
		paths := writeAlbum(t, root, "Pink Floyd", "Animals", "Dogs")
		result := mustScan(t, NewScanner(store, ScannerOpts{}), root, ScanOptions{ExternalAlbumURL: "https://example.com/album/1"})
		tracks, _ := store.AlbumTracks(ctx, result.AlbumIDs[0])
		v := NewVerifier(store, nil)

		ok, err := v.CheckTrack(ctx, tracks[0].ID)
		if err != nil || !ok.Available {
			t.Fatalf("expected available track, got %+v (%v)", ok, err)
		}

		tu.MustRemove(t, paths[0])
		missing, _ := v.CheckTrack(ctx, tracks[0].ID)
		if missing.Available || !missing.NeedsDownload || missing.SourceURL != "https://example.com/album/1" {
			t.Errorf("unexpected availability: %+v", missing)
		}

		track, _ := store.GetTrack(ctx, tracks[0].ID)
		if track.Downloaded || track.FilePath != "" {
			t.Errorf("expected demoted track, got %+v", track)
		}

		if _, err := v.CheckTrack(ctx, "missing"); !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound, got %v", err)
		}
	})
}
