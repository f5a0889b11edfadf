package search

import (
	"testing"

	"github.com/desertthunder/crate/internal/models"
)

func local(id, title, artist string) models.AlbumResult {
	return models.AlbumResult{ExternalID: id, Title: title, Artist: artist, Source: models.SourceLocal}
}

func remote(id, title, artist string) models.AlbumResult {
	return models.AlbumResult{ExternalID: id, Title: title, Artist: artist, Source: models.SourceRemote}
}

func TestMergeAlbums(t *testing.T) {
	tests := []struct {
		name   string
		local  []models.AlbumResult
		remote []models.AlbumResult
		limit  int
		want   []string
	}{
		{
			name:   "Dedup By External ID",
			local:  []models.AlbumResult{local("123", "Abbey Road", "The Beatles")},
			remote: []models.AlbumResult{remote("123", "Abbey Road (Remastered)", "Beatles")},
			want:   []string{"Abbey Road"},
		},
		{
			name:   "Dedup By Normalized Name",
			local:  []models.AlbumResult{local("", "Abbey Road", "The Beatles")},
			remote: []models.AlbumResult{remote("999", "ABBEY ROAD", "the beatles")},
			want:   []string{"Abbey Road"},
		},
		{
			name:   "Accents And Punctuation",
			local:  []models.AlbumResult{local("", "Café Tacvba", "Café Tacvba")},
			remote: []models.AlbumResult{remote("1", "Cafe  Tacvba!", "CAFE TACVBA")},
			want:   []string{"Café Tacvba"},
		},
		{
			name:  "Remote Duplicates Collapse",
			local: nil,
			remote: []models.AlbumResult{
				remote("1", "Help!", "The Beatles"),
				remote("2", "help", "the beatles"),
				remote("1", "Help! (Deluxe)", "The Beatles"),
			},
			want: []string{"Help!"},
		},
		{
			name:   "Local First Then Limit",
			local:  []models.AlbumResult{local("", "Revolver", "The Beatles")},
			remote: []models.AlbumResult{remote("1", "Help!", "The Beatles"), remote("2", "Let It Be", "The Beatles")},
			limit:  2,
			want:   []string{"Revolver", "Help!"},
		},
		{
			name:   "Different Artist Kept",
			local:  []models.AlbumResult{local("", "Greatest Hits", "Queen")},
			remote: []models.AlbumResult{remote("5", "Greatest Hits", "ABBA")},
			want:   []string{"Greatest Hits", "Greatest Hits"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeAlbums(tt.local, tt.remote, tt.limit)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d albums, got %d: %+v", len(tt.want), len(got), got)
			}
			for i, title := range tt.want {
				if got[i].Title != title {
					t.Errorf("position %d: expected %q, got %q", i, title, got[i].Title)
				}
			}
			if len(tt.local) > 0 && got[0].Source != models.SourceLocal {
				t.Error("expected local result first")
			}
		})
	}
}

func TestMergeTracks(t *testing.T) {
	localTracks := []models.TrackResult{
		{Title: "Come Together", Artist: "The Beatles", Album: "Abbey Road", Source: models.SourceLocal},
	}
	remoteTracks := []models.TrackResult{
		{ExternalID: "1", Title: "COME TOGETHER", Artist: "The Beatles", Album: "Abbey Road", Source: models.SourceRemote},
		{ExternalID: "2", Title: "Come Together", Artist: "The Beatles", Album: "1", Source: models.SourceRemote},
		{ExternalID: "2", Title: "Come Together", Artist: "The Beatles", Album: "1 (Remastered)", Source: models.SourceRemote},
	}

	got := MergeTracks(localTracks, remoteTracks, 0)
	if len(got) != 2 {
		t.Fatalf("expected 2 tracks, got %d: %+v", len(got), got)
	}
	if got[1].Album != "1" {
		t.Errorf("expected compilation track kept, got %+v", got[1])
	}
}

func TestMergeArtists(t *testing.T) {
	t.Run("Backfills Local Profile", func(t *testing.T) {
		localArtists := []models.ArtistResult{
			{ID: "a1", Name: "The Beatles", Source: models.SourceLocal},
			{ID: "a2", Name: "Queen", ImageURL: "local.jpg", Source: models.SourceLocal},
		}
		remoteArtists := []models.ArtistResult{
			{ExternalID: "26390", Name: "the beatles", ImageURL: "remote.jpg", Bio: "Liverpool", Source: models.SourceRemote},
			{ExternalID: "7", Name: "QUEEN", ImageURL: "other.jpg", Source: models.SourceRemote},
			{ExternalID: "8", Name: "Wings", Source: models.SourceRemote},
		}

		got := MergeArtists(localArtists, remoteArtists, 0)
		if len(got) != 3 {
			t.Fatalf("expected 3 artists, got %d", len(got))
		}
		if got[0].ImageURL != "remote.jpg" || got[0].Bio != "Liverpool" {
			t.Errorf("expected backfilled profile, got %+v", got[0])
		}
		if got[1].ImageURL != "local.jpg" {
			t.Errorf("expected local image kept, got %s", got[1].ImageURL)
		}
		if got[2].Name != "Wings" {
			t.Errorf("expected new remote artist appended, got %+v", got[2])
		}
		if localArtists[0].ImageURL != "" {
			t.Error("expected input slice untouched")
		}
	})

	t.Run("Remote Duplicates Dropped", func(t *testing.T) {
		remoteArtists := []models.ArtistResult{
			{ExternalID: "1", Name: "Björk", Source: models.SourceRemote},
			{ExternalID: "1", Name: "Bjork (Live)", ImageURL: "x.jpg", Source: models.SourceRemote},
			{ExternalID: "2", Name: "bjork", Source: models.SourceRemote},
		}

		got := MergeArtists(nil, remoteArtists, 0)
		if len(got) != 1 {
			t.Fatalf("expected 1 artist, got %d: %+v", len(got), got)
		}
		if got[0].ImageURL != "" {
			t.Error("expected remote artist not backfilled")
		}
	})

	t.Run("Limit", func(t *testing.T) {
		remoteArtists := []models.ArtistResult{{Name: "A"}, {Name: "B"}, {Name: "C"}}
		if got := MergeArtists(nil, remoteArtists, 2); len(got) != 2 {
			t.Errorf("expected 2 artists, got %d", len(got))
		}
	})
}
