package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
	tu "github.com/desertthunder/crate/internal/testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(tu.NewTestDB(t), nil)
}

// seed creates an artist and album in one transaction
func seed(t *testing.T, s *Store, artistName, albumTitle, albumExtID string) (*models.Artist, *models.Album) {
	t.Helper()
	ctx := context.Background()

	var (
		artist *models.Artist
		album  *models.Album
	)
	err := s.WithTx(ctx, func(tx *Tx) error {
		var err error
		if artist, _, err = tx.GetOrCreateArtist(ctx, ArtistInput{Name: artistName}); err != nil {
			return err
		}
		album, _, err = tx.GetOrCreateAlbum(ctx, AlbumInput{Title: albumTitle, ArtistID: artist.ID, ExternalID: albumExtID})
		return err
	})
	if err != nil {
		t.Fatalf("failed to seed catalog: %v", err)
	}
	return artist, album
}

func TestResolver(t *testing.T) {
	ctx := context.Background()

	t.Run("Artist By External ID Before Name", func(t *testing.T) {
		s := newTestStore(t)
		var first, second *models.Artist
		s.WithTx(ctx, func(tx *Tx) error {
			first, _, _ = tx.GetOrCreateArtist(ctx, ArtistInput{Name: "Radiohead", ExternalID: "ar-1"})
			second, _, _ = tx.GetOrCreateArtist(ctx, ArtistInput{Name: "radiohead"})
			return nil
		})

		r := NewResolver(s.DB())
		got, match, err := r.ResolveArtist(ctx, "ar-1", "Somebody Else")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got == nil || got.ID != first.ID || match != MatchExternalID {
			t.Errorf("expected external id match on %s, got %v (%s)", first.ID, got, match)
		}
		if second.ID != first.ID {
			t.Error("case-insensitive name should resolve to the same artist")
		}
	})

	t.Run("No Match", func(t *testing.T) {
		s := newTestStore(t)
		got, match, err := NewResolver(s.DB()).ResolveArtist(ctx, "", "Nobody")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != nil || match != MatchNone {
			t.Errorf("expected no match, got %v (%s)", got, match)
		}
	})

	t.Run("Conflicting External IDs Stay Separate", func(t *testing.T) {
		s := newTestStore(t)
		var a, b *models.Artist
		err := s.WithTx(ctx, func(tx *Tx) error {
			var err error
			if a, _, err = tx.GetOrCreateArtist(ctx, ArtistInput{Name: "Low", ExternalID: "ar-1"}); err != nil {
				return err
			}
			b, _, err = tx.GetOrCreateArtist(ctx, ArtistInput{Name: "Low", ExternalID: "ar-2"})
			return err
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if a.ID == b.ID {
			t.Error("artists with different external ids must not merge")
		}
	})

	t.Run("Album Title Is Exact Within Artist", func(t *testing.T) {
		s := newTestStore(t)
		artist, album := seed(t, s, "Pink Floyd", "The Wall", "")

		r := NewResolver(s.DB())
		got, match, _ := r.ResolveAlbum(ctx, "", "The Wall", artist.ID)
		if got == nil || got.ID != album.ID || match != MatchName {
			t.Errorf("expected title match, got %v (%s)", got, match)
		}

		got, _, _ = r.ResolveAlbum(ctx, "", "The Wall", "other-artist")
		if got != nil {
			t.Error("album of another artist should not match")
		}
	})

	t.Run("Track Order", func(t *testing.T) {
		s := newTestStore(t)
		artist, album := seed(t, s, "Pink Floyd", "The Wall", "")

		var track *models.Track
		s.WithTx(ctx, func(tx *Tx) error {
			track, _, _ = tx.AddTrack(ctx, TrackInput{
				Title: "In The Flesh?", ArtistID: artist.ID, AlbumID: album.ID,
				TrackNumber: 1, FilePath: "/music/wall/01.flac",
			})
			return nil
		})

		r := NewResolver(s.DB())
		tests := []struct {
			name  string
			c     TrackCandidate
			match MatchKind
		}{
			{"path", TrackCandidate{FilePath: "/music/wall/01.flac"}, MatchPath},
			{"position", TrackCandidate{AlbumID: album.ID, TrackNumber: 1, Title: "In The Flesh?"}, MatchPosition},
			{"wrong title", TrackCandidate{AlbumID: album.ID, TrackNumber: 1, Title: "Other"}, MatchNone},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, match, err := r.ResolveTrack(ctx, tt.c)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if match != tt.match {
					t.Errorf("expected %s, got %s", tt.match, match)
				}
				if tt.match != MatchNone && got.ID != track.ID {
					t.Errorf("expected track %s, got %s", track.ID, got.ID)
				}
			})
		}
	})
}

func TestAddTrack(t *testing.T) {
	ctx := context.Background()

	add := func(t *testing.T, s *Store, in TrackInput) (*models.Track, bool) {
		t.Helper()
		var (
			track   *models.Track
			created bool
		)
		err := s.WithTx(ctx, func(tx *Tx) error {
			var err error
			track, created, err = tx.AddTrack(ctx, in)
			return err
		})
		if err != nil {
			t.Fatalf("failed to add track: %v", err)
		}
		return track, created
	}

	t.Run("Insert Then Path Update", func(t *testing.T) {
		s := newTestStore(t)
		artist, album := seed(t, s, "Pink Floyd", "The Wall", "")

		first, created := add(t, s, TrackInput{
			Title: "In The Flesh", ArtistID: artist.ID, AlbumID: album.ID,
			TrackNumber: 1, FilePath: "/m/01.mp3", Duration: 200,
		})
		if !created || !first.Downloaded || first.DiscNumber != 1 {
			t.Fatalf("expected new downloaded track on disc 1, got %+v", first)
		}

		second, created := add(t, s, TrackInput{
			Title: "In The Flesh?", ArtistID: artist.ID, AlbumID: album.ID,
			TrackNumber: 1, DiscNumber: 2, FilePath: "/m/01.mp3",
		})
		if created || second.ID != first.ID {
			t.Fatal("same path should update the existing track")
		}

		got, _ := s.GetTrack(ctx, first.ID)
		if got.Title != "In The Flesh?" || got.DiscNumber != 2 || got.Duration != 200 {
			t.Errorf("unexpected track after update: %+v", got)
		}
	})

	t.Run("External ID Match Moves Path", func(t *testing.T) {
		s := newTestStore(t)
		artist, album := seed(t, s, "Pink Floyd", "The Wall", "")

		first, _ := add(t, s, TrackInput{Title: "Mother", ArtistID: artist.ID, AlbumID: album.ID, ExternalID: "tr-9"})
		if first.Downloaded {
			t.Fatal("track without a path should not be downloaded")
		}

		second, created := add(t, s, TrackInput{
			Title: "Mother (Remaster)", ArtistID: artist.ID, AlbumID: album.ID,
			ExternalID: "tr-9", FilePath: "/m/mother.flac",
		})
		if created || second.ID != first.ID {
			t.Fatal("external id should match the existing track")
		}
		if !second.Downloaded || second.FilePath != "/m/mother.flac" {
			t.Errorf("expected path to be attached, got %+v", second)
		}
	})

	t.Run("Position Match Attaches Path", func(t *testing.T) {
		s := newTestStore(t)
		artist, album := seed(t, s, "Pink Floyd", "The Wall", "")

		first, _ := add(t, s, TrackInput{Title: "Hey You", ArtistID: artist.ID, AlbumID: album.ID, TrackNumber: 1, ExternalID: "tr-1"})
		second, created := add(t, s, TrackInput{Title: "Hey You", ArtistID: artist.ID, AlbumID: album.ID, TrackNumber: 1, FilePath: "/m/hey.flac"})
		if created || second.ID != first.ID {
			t.Fatal("album position should match the existing track")
		}
		if second.ExternalID != "tr-1" {
			t.Error("external id should be kept")
		}
	})

	t.Run("Validation", func(t *testing.T) {
		s := newTestStore(t)
		err := s.WithTx(ctx, func(tx *Tx) error {
			_, _, err := tx.AddTrack(ctx, TrackInput{Title: " "})
			return err
		})
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Rollback On Error", func(t *testing.T) {
		s := newTestStore(t)
		sentinel := errors.New("boom")
		err := s.WithTx(ctx, func(tx *Tx) error {
			if _, _, err := tx.GetOrCreateArtist(ctx, ArtistInput{Name: "Ghost"}); err != nil {
				return err
			}
			return sentinel
		})
		if !errors.Is(err, sentinel) {
			t.Fatalf("expected sentinel error, got %v", err)
		}
		stats, _ := s.Stats(ctx)
		if stats.Artists != 0 {
			t.Errorf("expected rollback to discard the artist, got %d artists", stats.Artists)
		}
	})
}

func TestBackfill(t *testing.T) {
	ctx := context.Background()

	t.Run("Album External ID", func(t *testing.T) {
		s := newTestStore(t)
		artist, album := seed(t, s, "The Beatles", "Abbey Road", "")

		err := s.WithTx(ctx, func(tx *Tx) error {
			_, created, err := tx.GetOrCreateAlbum(ctx, AlbumInput{
				Title: "Abbey Road", ArtistID: artist.ID, ExternalID: "al-1", Genre: "Rock",
			})
			if created {
				t.Error("should not create a second album")
			}
			return err
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got, _, _ := s.GetAlbum(ctx, album.ID)
		if got.ExternalID != "al-1" || got.Genre != "Rock" {
			t.Errorf("expected backfilled fields, got %+v", got)
		}
	})

	t.Run("Existing Values Win", func(t *testing.T) {
		s := newTestStore(t)
		var artist *models.Artist
		s.WithTx(ctx, func(tx *Tx) error {
			artist, _, _ = tx.GetOrCreateArtist(ctx, ArtistInput{Name: "Björk", ImageURL: "a.jpg"})
			tx.GetOrCreateArtist(ctx, ArtistInput{Name: "björk", ImageURL: "b.jpg", Bio: "Icelandic"})
			return nil
		})

		got, _, _ := s.GetArtist(ctx, artist.ID)
		if got.ImageURL != "a.jpg" || got.Bio != "Icelandic" {
			t.Errorf("expected image kept and bio filled, got %+v", got)
		}
	})
}

func TestBrowse(t *testing.T) {
	ctx := context.Background()

	t.Run("Find Album", func(t *testing.T) {
		s := newTestStore(t)
		_, album := seed(t, s, "The Beatles", "Abbey Road", "")

		got, err := s.FindAlbum(ctx, "q-123", "ABBEY ROAD", "the beatles")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got == nil || got.ID != album.ID {
			t.Fatalf("expected normalized match, got %v", got)
		}

		byID, _ := s.FindAlbum(ctx, "q-123", "", "")
		if byID == nil || byID.ID != album.ID {
			t.Error("external id should have been backfilled")
		}

		missing, _ := s.FindAlbum(ctx, "", "Let It Be", "The Beatles")
		if missing != nil {
			t.Errorf("expected nil, got %v", missing)
		}
	})

	t.Run("Record Play", func(t *testing.T) {
		s := newTestStore(t)
		artist, album := seed(t, s, "Pink Floyd", "Animals", "")
		var track *models.Track
		s.WithTx(ctx, func(tx *Tx) error {
			track, _, _ = tx.AddTrack(ctx, TrackInput{Title: "Dogs", ArtistID: artist.ID, AlbumID: album.ID, TrackNumber: 2, FilePath: "/m/dogs.flac"})
			return nil
		})

		if err := s.RecordPlay(ctx, track.ID, 120); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got, _ := s.GetTrack(ctx, track.ID)
		if got.PlayCount != 1 || got.LastPlayed == nil {
			t.Errorf("expected play count and last played to be set, got %+v", got)
		}

		history, _ := s.History(ctx, 10)
		if len(history) != 1 || history[0].TrackID != track.ID {
			t.Errorf("expected one history entry, got %v", history)
		}

		recent, _ := s.RecentlyPlayed(ctx, 5)
		if len(recent) != 1 {
			t.Errorf("expected one recently played track, got %d", len(recent))
		}

		if err := s.RecordPlay(ctx, "missing", 0); !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound, got %v", err)
		}
	})

	t.Run("Search", func(t *testing.T) {
		s := newTestStore(t)
		seed(t, s, "Pink Floyd", "Wish You Were Here", "")
		seed(t, s, "Portishead", "Dummy", "")

		results, err := s.Search(ctx, "floyd", SearchLimits{Albums: 10, Tracks: 10, Artists: 10})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(results.Albums) != 1 || results.Albums[0].Source != models.SourceLocal {
			t.Errorf("expected one local album, got %v", results.Albums)
		}
		if len(results.Artists) != 1 || results.Artists[0].Name != "Pink Floyd" {
			t.Errorf("expected Pink Floyd, got %v", results.Artists)
		}

		empty, _ := s.Search(ctx, "  ", SearchLimits{Albums: 10})
		if len(empty.Albums) != 0 {
			t.Error("blank query should return nothing")
		}
	})

	t.Run("Update Artist Profile", func(t *testing.T) {
		s := newTestStore(t)
		artist, _ := seed(t, s, "Nina Simone", "Pastel Blues", "")

		if err := s.UpdateArtistProfile(ctx, artist.ID, "nina.jpg", "Singer"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got, albums, _ := s.GetArtist(ctx, artist.ID)
		if got.ImageURL != "nina.jpg" || got.Bio != "Singer" || len(albums) != 1 {
			t.Errorf("unexpected artist: %+v albums=%d", got, len(albums))
		}
	})
}
