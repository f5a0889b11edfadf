package formatter

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/crate/internal/models"
	tu "github.com/desertthunder/crate/internal/testing"
)

func queueItems() []*models.QueueItem {
	return []*models.QueueItem{
		{
			ID: "q1", TrackID: "t1", Position: 1, IsPlaying: true,
			Track: &models.Track{
				ID: "t1", Title: "Come Together", ArtistName: "The Beatles", AlbumTitle: "Abbey Road",
				Duration: 259, FilePath: "/music/Abbey Road/01. The Beatles - Come Together.mp3",
			},
		},
		{
			ID: "q2", TrackID: "t2", Position: 2,
			Track: &models.Track{
				ID: "t2", Title: "Something, Else", ArtistName: "The Beatles", AlbumTitle: "Abbey Road",
				FilePath: "/music/Abbey Road/02. The Beatles - Something.mp3",
			},
		},
		{
			ID: "q3", TrackID: "t3", Position: 3,
			Track: &models.Track{ID: "t3", Title: "Missing", ArtistName: "Nobody"},
		},
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "0:00"},
		{-5, "0:00"},
		{9, "0:09"},
		{259, "4:19"},
		{3600, "1:00:00"},
		{3725, "1:02:05"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatDuration(tt.seconds); got != tt.want {
				t.Errorf("FormatDuration(%d) = %q, want %q", tt.seconds, got, tt.want)
			}
		})
	}
}

func TestTables(t *testing.T) {
	t.Run("RenderTable", func(t *testing.T) {
		if RenderTable(nil, nil, nil) != "" {
			t.Error("expected empty output without headers")
		}

		out := RenderTable([]string{"A", "B"}, [][]string{{"1"}, {"2", "3"}}, []Align{AlignRight})
		for _, want := range []string{"A", "B", "1", "2", "3", "╭"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in table, got:\n%s", want, out)
			}
		}
	})

	t.Run("QueueTable", func(t *testing.T) {
		out := QueueTable(queueItems())
		for _, want := range []string{"▶", "Come Together", "4:19", "q3"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in queue table, got:\n%s", want, out)
			}
		}
	})

	t.Run("AlbumsTable", func(t *testing.T) {
		out := AlbumsTable([]*models.Album{{ID: "a1", Title: "Abbey Road", ArtistName: "The Beatles", TrackCount: 17, Duration: 2832, Downloaded: true}})
		for _, want := range []string{"Abbey Road", "47:12", "✓"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in albums table, got:\n%s", want, out)
			}
		}
	})

	t.Run("TasksTable And History", func(t *testing.T) {
		tasks := TasksTable([]*models.DownloadTask{{ID: "d1", SourceURL: "https://open.qobuz.com/album/1", Status: models.StatusFailed, Error: "boom", CreatedAt: time.Now()}})
		if !strings.Contains(tasks, "failed") || !strings.Contains(tasks, "boom") {
			t.Errorf("unexpected tasks table:\n%s", tasks)
		}

		history := HistoryTable([]*models.PlayHistory{{ID: "h1", PlayedAt: time.Now(), Duration: 61}})
		if !strings.Contains(history, "(removed)") || !strings.Contains(history, "1:01") {
			t.Errorf("unexpected history table:\n%s", history)
		}
	})

	t.Run("SearchTables", func(t *testing.T) {
		out := SearchTables(&models.SearchResults{
			Albums:  []models.AlbumResult{{ExternalID: "123", Title: "Abbey Road", Source: models.SourceRemote}},
			Artists: []models.ArtistResult{{ID: "a1", Name: "The Beatles", Source: models.SourceLocal}},
		})
		for _, want := range []string{"Albums", "Artists", "remote", "123", "a1"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in search output, got:\n%s", want, out)
			}
		}
		if strings.Contains(out, "Tracks") {
			t.Error("expected empty kinds to be omitted")
		}
	})

	t.Run("FeedTables", func(t *testing.T) {
		out := FeedTables(&models.Feed{
			NewReleases: []models.AlbumResult{{ExternalID: "900", Title: "Hey What", Artist: "Low", Source: models.SourceRemote}},
			EditorPicks: []models.AlbumResult{{ID: "al1", Title: "Trust", Artist: "Low", Downloaded: true, Source: models.SourceRemote}},
		})
		for _, want := range []string{"New Releases", "Editor Picks", "Hey What", "900", "al1"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in feed output, got:\n%s", want, out)
			}
		}
		if strings.Contains(out, "Press Awards") {
			t.Error("expected empty lists to be omitted")
		}
	})
}

func TestExporters(t *testing.T) {
	t.Run("ExportToM3U", func(t *testing.T) {
		out := string(ExportToM3U(queueItems()))
		lines := strings.Split(strings.TrimSpace(out), "\n")

		if lines[0] != "#EXTM3U" {
			t.Errorf("expected header, got %q", lines[0])
		}
		if len(lines) != 5 {
			t.Fatalf("expected header plus 2 entries, got %d lines:\n%s", len(lines), out)
		}
		if lines[1] != "#EXTINF:259,The Beatles - Come Together" {
			t.Errorf("unexpected EXTINF line %q", lines[1])
		}
		if !strings.HasPrefix(lines[3], "#EXTINF:-1,") {
			t.Errorf("expected unknown duration as -1, got %q", lines[3])
		}
		if strings.Contains(out, "Missing") {
			t.Error("expected tracks without files skipped")
		}
	})

	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(queueItems())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}
		out := string(data)

		if !strings.HasPrefix(out, "Position,Title,Artist,Album,Duration,Path,Playing\n") {
			t.Errorf("CSV missing headers, got: %s", out)
		}
		if !strings.Contains(out, `"Something, Else"`) {
			t.Error("expected comma in title to be quoted")
		}
		if !strings.Contains(out, "1,Come Together,The Beatles,Abbey Road,259,") || !strings.Contains(out, ",true\n") {
			t.Errorf("unexpected first record: %s", out)
		}
	})

	t.Run("WriteQueueExport", func(t *testing.T) {
		dir := t.TempDir()

		path, err := WriteQueueExport(queueItems(), "", filepath.Join(dir, "nested", "queue.m3u"))
		if err != nil {
			t.Fatalf("WriteQueueExport failed: %v", err)
		}
		tu.AssertFileExists(t, path)
		if !strings.HasPrefix(tu.MustReadFile(t, path), "#EXTM3U") {
			t.Error("expected M3U content from extension")
		}

		path, err = WriteQueueExport(queueItems(), "csv", filepath.Join(dir, "queue.txt"))
		if err != nil {
			t.Fatalf("WriteQueueExport failed: %v", err)
		}
		if !strings.HasPrefix(tu.MustReadFile(t, path), "Position,") {
			t.Error("expected CSV content from explicit format")
		}

		if _, err := WriteQueueExport(queueItems(), "", filepath.Join(dir, "queue.xspf")); err == nil {
			t.Error("expected error for unsupported format")
		}
		if _, err := WriteQueueExport(queueItems(), "csv", ""); err == nil {
			t.Error("expected error for empty path")
		}
	})
}
