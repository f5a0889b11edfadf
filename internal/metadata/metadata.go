package metadata

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
	"github.com/dhowden/tag"
)

const (
	UnknownArtist = "Unknown Artist"
	UnknownAlbum  = "Unknown Album"
)

// SupportedExtensions lists the audio file extensions the scanner imports.
var SupportedExtensions = []string{".mp3", ".flac", ".m4a", ".ogg", ".wav"}

// Supported reports whether path has a supported audio extension
func Supported(path string) bool {
	return slices.Contains(SupportedExtensions, strings.ToLower(filepath.Ext(path)))
}

// Extractor reads [models.Metadata] from audio files.
type Extractor struct {
	logger *log.Logger
}

// NewExtractor creates an Extractor. A nil logger discards output.
func NewExtractor(logger *log.Logger) *Extractor {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Extractor{logger: shared.WithLogger(logger, "component", "metadata")}
}

// Extract returns the best available metadata for the file at path.
//
// The only error is a file that cannot be opened; unreadable tags fall back to
// the path and never fail the call.
func (e *Extractor) Extract(ctx context.Context, path string) (*models.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	meta := &models.Metadata{}
	if m, err := tag.ReadFrom(f); err != nil {
		e.logger.Debug("no readable tags", "path", path, "error", err)
	} else {
		fromTags(meta, m)
	}

	fillFromPath(meta, ParsePath(path))

	meta.Duration = Duration(path)
	return meta, nil
}

func fromTags(meta *models.Metadata, m tag.Metadata) {
	meta.Title = strings.TrimSpace(m.Title())
	meta.Artist = strings.TrimSpace(m.Artist())
	meta.AlbumArtist = strings.TrimSpace(m.AlbumArtist())
	meta.Album = strings.TrimSpace(m.Album())
	meta.Genre = strings.TrimSpace(m.Genre())
	if year := m.Year(); year > 0 {
		meta.Year = strconv.Itoa(year)
	}
	meta.TrackNumber, _ = m.Track()
	meta.DiscNumber, _ = m.Disc()
	meta.FromTags = meta.Title != "" || meta.Artist != "" || meta.Album != ""
}

// fillFromPath sets every field the tags left empty, then applies defaults
func fillFromPath(meta *models.Metadata, p PathInfo) {
	if meta.Title == "" {
		meta.Title = p.Title
	}
	if meta.Artist == "" {
		meta.Artist = p.Artist
	}
	if meta.Album == "" {
		meta.Album = p.Album
	}
	if meta.Year == "" {
		meta.Year = p.Year
	}
	if meta.TrackNumber <= 0 {
		meta.TrackNumber = p.TrackNumber
	}
	if meta.DiscNumber <= 0 {
		meta.DiscNumber = p.DiscNumber
	}

	if meta.Artist == "" && meta.AlbumArtist == "" {
		meta.Artist = UnknownArtist
	}
	if meta.Album == "" {
		meta.Album = UnknownAlbum
	}
	if meta.DiscNumber <= 0 {
		meta.DiscNumber = 1
	}
}
