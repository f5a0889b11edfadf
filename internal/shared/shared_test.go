package shared

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
)

func TestNormalizeKey(t *testing.T) {
	tc := []struct {
		name   string
		title  string
		artist string
		want   string
	}{
		{
			name:   "basic normalization",
			title:  "Song Title",
			artist: "Artist Name",
			want:   "song title|artist name",
		},
		{
			name:   "extra whitespace",
			title:  "  Song   Title  ",
			artist: "  Artist   Name  ",
			want:   "song title|artist name",
		},
		{
			name:   "mixed case",
			title:  "SoNg TiTlE",
			artist: "ArTiSt NaMe",
			want:   "song title|artist name",
		},
		{
			name:   "punctuation stripped",
			title:  "Don't Stop Me Now!",
			artist: "Queen.",
			want:   "dont stop me now|queen",
		},
		{
			name:   "accents folded",
			title:  "Café del Mar",
			artist: "Beyoncé",
			want:   "cafe del mar|beyonce",
		},
		{
			name:   "empty parts",
			title:  "",
			artist: "",
			want:   "",
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeKey(tt.title, tt.artist)
			if got != tt.want {
				t.Errorf("NormalizeKey() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizeTitle(t *testing.T) {
	if got, want := NormalizeTitle("ABBEY ROAD"), NormalizeTitle("Abbey Road"); got != want {
		t.Errorf("expected case-insensitive match, got %q and %q", got, want)
	}
	if got := NormalizeTitle("  The   Wall (Remastered) "); got != "the wall remastered" {
		t.Errorf("unexpected normalization %q", got)
	}
}

func TestFoldName(t *testing.T) {
	tc := []struct {
		a, b  string
		equal bool
	}{
		{"Pink Floyd", "pink floyd", true},
		{"Pink  Floyd ", "PINK FLOYD", true},
		{"AC/DC", "ACDC", false},
		{"Sigur Rós", "sigur rós", true},
	}

	for _, tt := range tc {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			if got := FoldName(tt.a) == FoldName(tt.b); got != tt.equal {
				t.Errorf("FoldName(%q) == FoldName(%q) is %v, want %v", tt.a, tt.b, got, tt.equal)
			}
		})
	}
}

func TestLogging(t *testing.T) {
	t.Run("ParseLogLevel", func(t *testing.T) {
		tc := map[string]log.Level{
			"":        log.InfoLevel,
			"debug":   log.DebugLevel,
			"warn":    log.WarnLevel,
			"error":   log.ErrorLevel,
			"unknown": log.InfoLevel,
		}
		for in, want := range tc {
			if got := ParseLogLevel(in); got != want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
			}
		}
	})

	t.Run("DiscardLogger", func(t *testing.T) {
		l := DiscardLogger()
		l.Info("dropped")
		if l == nil {
			t.Fatal("expected logger")
		}
	})
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	if got := ExpandPath("~/Music"); got != filepath.Join(home, "Music") {
		t.Errorf("expected %s, got %s", filepath.Join(home, "Music"), got)
	}
	if got := ExpandPath("/srv/music"); got != "/srv/music" {
		t.Errorf("absolute path should be unchanged, got %s", got)
	}
}

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	if a == "" || a == b {
		t.Errorf("expected unique ids, got %q and %q", a, b)
	}
}
