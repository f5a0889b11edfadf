// streamrip subprocess implementation of [Downloader]
package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/crate/internal/shared"
)

const (
	// FolderFormat names album directories so the path fallback in the metadata
	// extractor can recover artist, album and year.
	FolderFormat = "{albumartist} - {title} ({year})"
	// TrackFormat names track files "<N>. <Artist> - <Title>".
	TrackFormat = "{tracknumber}. {artist} - {title}"

	outputExcerpt = 500
)

// StreamripOpts configures a [StreamripDownloader].
type StreamripOpts struct {
	// Binary is the rip executable; defaults to "rip" on PATH.
	Binary string
	// ConfigPath is streamrip's config.toml; defaults to ~/.config/streamrip/config.toml.
	ConfigPath    string
	AppID         string
	UserAuthToken string
	Quality       int
	Logger        *log.Logger
}

type runFunc func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

// StreamripDownloader shells out to streamrip. Each download rewrites the
// download folder in streamrip's config, runs `rip -ndb url <url>` and
// reports the album directory the run produced.
type StreamripDownloader struct {
	binary     string
	configPath string
	appID      string
	token      string
	quality    int
	logger     *log.Logger
	run        runFunc
}

// NewStreamripDownloader creates a new streamrip executor
func NewStreamripDownloader(opts StreamripOpts) *StreamripDownloader {
	binary := opts.Binary
	if binary == "" {
		binary = "rip"
	}

	configPath := shared.ExpandPath(opts.ConfigPath)
	if configPath == "" {
		configPath = shared.ExpandPath("~/.config/streamrip/config.toml")
	}

	logger := opts.Logger
	if logger == nil {
		logger = shared.DiscardLogger()
	}

	return &StreamripDownloader{
		binary:     binary,
		configPath: configPath,
		appID:      opts.AppID,
		token:      opts.UserAuthToken,
		quality:    opts.Quality,
		logger:     shared.WithLogger(logger, "component", "streamrip"),
		run:        execCommand,
	}
}

// Name returns the executor name
func (s *StreamripDownloader) Name() string {
	return "streamrip"
}

// Download runs streamrip for sourceURL with destDir as its download folder.
func (s *StreamripDownloader) Download(ctx context.Context, sourceURL, destDir string) (*DownloadResult, error) {
	if strings.TrimSpace(sourceURL) == "" {
		return nil, fmt.Errorf("%w: source url", shared.ErrMissingArgument)
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}

	if err := s.WriteConfig(destDir); err != nil {
		return nil, err
	}

	before, err := listDirs(destDir)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	s.logger.Info("Starting download", "url", sourceURL, "dest", destDir)

	stdout, stderr, err := s.run(ctx, s.binary, "--config-path", s.configPath, "-ndb", "url", sourceURL)
	s.logger.Debug("rip output", "stdout", excerpt(stdout), "stderr", excerpt(stderr))
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrDownloadFailed, ctx.Err())
		}
		msg := strings.TrimSpace(excerpt(stderr))
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("%w: %s", shared.ErrDownloadFailed, msg)
	}

	outputDir, err := newestDir(destDir, before, started)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Download finished", "url", sourceURL, "output", outputDir, "took", time.Since(started).Round(time.Millisecond))
	return &DownloadResult{OutputDir: outputDir}, nil
}

// WriteConfig merges the download folder, path formats and Qobuz credentials
// into streamrip's config, keeping every other key already present.
func (s *StreamripDownloader) WriteConfig(folder string) error {
	config := map[string]any{}
	if _, err := os.Stat(s.configPath); err == nil {
		if _, err := toml.DecodeFile(s.configPath, &config); err != nil {
			return fmt.Errorf("failed to parse streamrip config: %w", err)
		}
	}

	downloads := section(config, "downloads")
	downloads["folder"] = folder

	filepaths := section(config, "filepaths")
	filepaths["folder_format"] = FolderFormat
	filepaths["track_format"] = TrackFormat

	qobuz := section(config, "qobuz")
	if s.appID != "" {
		qobuz["app_id"] = s.appID
	}
	if s.token != "" {
		qobuz["use_auth_token"] = true
		qobuz["password_or_token"] = s.token
	}
	if s.quality > 0 {
		qobuz["quality"] = s.quality
	}

	if err := os.MkdirAll(filepath.Dir(s.configPath), 0755); err != nil {
		return fmt.Errorf("failed to create streamrip config directory: %w", err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode streamrip config: %w", err)
	}
	if err := os.WriteFile(s.configPath, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write streamrip config: %w", err)
	}
	return nil
}

func section(config map[string]any, name string) map[string]any {
	if m, ok := config[name].(map[string]any); ok {
		return m
	}
	m := map[string]any{}
	config[name] = m
	return m
}

func execCommand(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

func listDirs(dir string) (map[string]bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read download directory: %w", err)
	}
	dirs := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			dirs[e.Name()] = true
		}
	}
	return dirs, nil
}

// newestDir picks the album directory a run produced: a directory that did not
// exist before, else one modified since start (a re-download into an existing
// folder), else dest itself.
func newestDir(dest string, before map[string]bool, start time.Time) (string, error) {
	entries, err := os.ReadDir(dest)
	if err != nil {
		return "", fmt.Errorf("failed to read download directory: %w", err)
	}

	var (
		created, touched         string
		createdTime, touchedTime time.Time
	)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return "", err
		}
		mod := info.ModTime()
		if !before[e.Name()] {
			if created == "" || mod.After(createdTime) {
				created, createdTime = e.Name(), mod
			}
			continue
		}
		if mod.After(start) && (touched == "" || mod.After(touchedTime)) {
			touched, touchedTime = e.Name(), mod
		}
	}

	switch {
	case created != "":
		return filepath.Join(dest, created), nil
	case touched != "":
		return filepath.Join(dest, touched), nil
	default:
		return dest, nil
	}
}

func excerpt(b []byte) string {
	if len(b) > outputExcerpt {
		b = b[:outputExcerpt]
	}
	return string(b)
}
