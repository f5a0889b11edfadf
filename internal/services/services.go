package services

import (
	"context"

	"github.com/desertthunder/crate/internal/models"
)

// Provider is a remote catalog that can be searched and browsed.
type Provider interface {
	// Search returns albums, tracks and artists matching query, at most limit of each.
	Search(ctx context.Context, query string, limit int) (*models.SearchResults, error)

	// GetAlbum returns an album with its track listing.
	GetAlbum(ctx context.Context, id string) (*models.AlbumDetail, error)

	// Featured returns one curated album list, such as [models.FeaturedNewReleases].
	Featured(ctx context.Context, kind string, limit int) ([]models.AlbumResult, error)

	// Name returns the name of the provider (e.g., "qobuz")
	Name() string
}

// DownloadResult describes what a download produced.
type DownloadResult struct {
	// OutputDir is the directory holding the downloaded files.
	OutputDir string
}

// Downloader fetches a release from a source URL into a directory.
type Downloader interface {
	// Download fetches sourceURL below destDir. The returned directory is the
	// one that should be scanned.
	Download(ctx context.Context, sourceURL, destDir string) (*DownloadResult, error)

	// Name returns the name of the executor (e.g., "rip")
	Name() string
}
