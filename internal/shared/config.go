package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Database  DatabaseConfig  `toml:"database"`
	Log       LogConfig       `toml:"log"`
	Library   LibraryConfig   `toml:"library"`
	Downloads DownloadsConfig `toml:"downloads"`
	Provider  ProviderConfig  `toml:"provider"`
	Search    SearchConfig    `toml:"search"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LogConfig controls the default logger level.
type LogConfig struct {
	Level string `toml:"level"`
}

// LibraryConfig describes the storage roots that make up the catalog.
type LibraryConfig struct {
	Roots       []string `toml:"roots"`
	Primary     string   `toml:"primary"`
	DataDir     string   `toml:"data_dir"`
	ScanWorkers int      `toml:"scan_workers"`
}

// DownloadsConfig configures the download executor and worker pool.
type DownloadsConfig struct {
	Executor      string  `toml:"executor"`
	ConfigPath    string  `toml:"config_path"`
	Workers       int     `toml:"workers"`
	RateLimit     float64 `toml:"rate_limit"`
	RetentionDays int     `toml:"retention_days"`
}

// ProviderConfig contains the remote catalog (Qobuz) settings.
type ProviderConfig struct {
	BaseURL           string  `toml:"base_url"`
	AppID             string  `toml:"app_id"`
	UserAuthToken     string  `toml:"user_auth_token"`
	Timeout           int     `toml:"timeout"`
	Retries           int     `toml:"retries"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// SearchConfig holds merged result limits.
type SearchConfig struct {
	AlbumLimit  int  `toml:"album_limit"`
	TrackLimit  int  `toml:"track_limit"`
	ArtistLimit int  `toml:"artist_limit"`
	Remote      bool `toml:"remote"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values of [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if _, err := toml.Decode(string(data), config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path is required", ErrInvalidConfig)
	}
	if c.Library.ScanWorkers < 0 {
		return fmt.Errorf("%w: library.scan_workers must not be negative", ErrInvalidConfig)
	}
	if c.Downloads.Workers < 0 {
		return fmt.Errorf("%w: downloads.workers must not be negative", ErrInvalidConfig)
	}
	if c.Downloads.RateLimit < 0 || c.Provider.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: rate limits must not be negative", ErrInvalidConfig)
	}
	if c.Search.AlbumLimit < 0 || c.Search.TrackLimit < 0 || c.Search.ArtistLimit < 0 {
		return fmt.Errorf("%w: search limits must not be negative", ErrInvalidConfig)
	}
	return nil
}

// StorageRoots returns the expanded, de-duplicated scan roots. The primary
// download directory is always included.
func (c *Config) StorageRoots() []string {
	seen := make(map[string]bool)
	roots := []string{}
	for _, root := range append([]string{c.Library.Primary}, c.Library.Roots...) {
		if root == "" {
			continue
		}
		root = ExpandPath(root)
		if seen[root] {
			continue
		}
		seen[root] = true
		roots = append(roots, root)
	}
	return roots
}

// ExpandPath replaces a leading "~" with the user's home directory.
func ExpandPath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
