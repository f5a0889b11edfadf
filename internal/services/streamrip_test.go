package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/desertthunder/crate/internal/shared"
)

func newTestDownloader(t *testing.T, run runFunc) (*StreamripDownloader, string) {
	t.Helper()
	dir := t.TempDir()
	d := NewStreamripDownloader(StreamripOpts{
		ConfigPath:    filepath.Join(dir, "streamrip", "config.toml"),
		AppID:         "app-1",
		UserAuthToken: "token-1",
		Quality:       3,
	})
	d.run = run
	return d, dir
}

func TestStreamripDownloader(t *testing.T) {
	t.Run("WriteConfig Keeps Existing Keys", func(t *testing.T) {
		d, _ := newTestDownloader(t, nil)
		if err := os.MkdirAll(filepath.Dir(d.configPath), 0755); err != nil {
			t.Fatal(err)
		}
		existing := "[downloads]\nconcurrency = true\n\n[database]\ndownloads_enabled = false\n"
		if err := os.WriteFile(d.configPath, []byte(existing), 0644); err != nil {
			t.Fatal(err)
		}

		if err := d.WriteConfig("/music/in"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var got map[string]map[string]any
		if _, err := toml.DecodeFile(d.configPath, &got); err != nil {
			t.Fatalf("failed to read config back: %v", err)
		}
		if got["downloads"]["folder"] != "/music/in" || got["downloads"]["concurrency"] != true {
			t.Errorf("unexpected downloads section: %v", got["downloads"])
		}
		if got["database"]["downloads_enabled"] != false {
			t.Errorf("expected unrelated section kept, got %v", got["database"])
		}
		if got["filepaths"]["folder_format"] != FolderFormat || got["filepaths"]["track_format"] != TrackFormat {
			t.Errorf("unexpected filepaths section: %v", got["filepaths"])
		}
		if got["qobuz"]["password_or_token"] != "token-1" || got["qobuz"]["app_id"] != "app-1" {
			t.Errorf("unexpected qobuz section: %v", got["qobuz"])
		}
	})

	t.Run("Download Reports New Album Dir", func(t *testing.T) {
		var gotArgs []string
		d, dir := newTestDownloader(t, nil)
		dest := filepath.Join(dir, "music")
		if err := os.MkdirAll(filepath.Join(dest, "Old - Album (2000)"), 0755); err != nil {
			t.Fatal(err)
		}

		d.run = func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
			gotArgs = append([]string{name}, args...)
			return []byte("ok"), nil, os.MkdirAll(filepath.Join(dest, "The Beatles - Abbey Road (1969)"), 0755)
		}

		result, err := d.Download(context.Background(), "https://www.qobuz.com/us-en/album/abbey-road/1", dest)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if want := filepath.Join(dest, "The Beatles - Abbey Road (1969)"); result.OutputDir != want {
			t.Errorf("expected output %s, got %s", want, result.OutputDir)
		}

		joined := strings.Join(gotArgs, " ")
		if !strings.HasPrefix(joined, "rip --config-path ") || !strings.HasSuffix(joined, "-ndb url https://www.qobuz.com/us-en/album/abbey-road/1") {
			t.Errorf("unexpected command: %s", joined)
		}
	})

	t.Run("Download Falls Back To Dest", func(t *testing.T) {
		d, dir := newTestDownloader(t, func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
			return nil, nil, nil
		})

		dest := filepath.Join(dir, "music")
		result, err := d.Download(context.Background(), "https://open.qobuz.com/album/1", dest)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.OutputDir != dest {
			t.Errorf("expected dest dir, got %s", result.OutputDir)
		}
	})

	t.Run("Download Failure", func(t *testing.T) {
		d, dir := newTestDownloader(t, func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
			return nil, []byte("invalid url"), errors.New("exit status 1")
		})

		_, err := d.Download(context.Background(), "https://example.com/nothing", dir)
		if !errors.Is(err, shared.ErrDownloadFailed) {
			t.Fatalf("expected ErrDownloadFailed, got %v", err)
		}
		if !strings.Contains(err.Error(), "invalid url") {
			t.Errorf("expected stderr in error, got %v", err)
		}
	})

	t.Run("Missing URL", func(t *testing.T) {
		d, dir := newTestDownloader(t, nil)
		if _, err := d.Download(context.Background(), " ", dir); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}
