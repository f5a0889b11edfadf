package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./crate.db" {
			t.Errorf("expected database path ./crate.db, got %s", config.Database.Path)
		}

		if config.Provider.BaseURL != "https://www.qobuz.com/api.json/0.2" {
			t.Errorf("unexpected provider base URL %s", config.Provider.BaseURL)
		}

		if config.Search.AlbumLimit != 20 || config.Search.TrackLimit != 20 || config.Search.ArtistLimit != 10 {
			t.Errorf("unexpected search limits %+v", config.Search)
		}

		if config.Downloads.RetentionDays != 7 {
			t.Errorf("expected retention of 7 days, got %d", config.Downloads.RetentionDays)
		}

		if err := config.Validate(); err != nil {
			t.Errorf("default config should validate: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "nested", "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[database]
path = "/custom/path.db"

[library]
roots = ["/srv/music", "/mnt/archive"]
primary = "/srv/music"

[provider]
app_id = "123456"
user_auth_token = "token"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}

		if config.Provider.AppID != "123456" {
			t.Errorf("expected app_id 123456, got %s", config.Provider.AppID)
		}

		if config.Search.TrackLimit != 20 {
			t.Errorf("missing keys should keep defaults, got track limit %d", config.Search.TrackLimit)
		}

		roots := config.StorageRoots()
		if len(roots) != 2 || roots[0] != "/srv/music" || roots[1] != "/mnt/archive" {
			t.Errorf("unexpected storage roots %v", roots)
		}
	})

	t.Run("Validate", func(t *testing.T) {
		config := DefaultConfig()
		config.Database.Path = ""
		if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}

		config = DefaultConfig()
		config.Downloads.Workers = -1
		if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig for negative workers, got %v", err)
		}
	})

	t.Run("LoadConfig Missing File", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
			t.Error("expected error for missing file")
		}
	})
}
