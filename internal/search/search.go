package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crate/internal/catalog"
	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/services"
	"github.com/desertthunder/crate/internal/shared"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

const (
	DefaultAlbumLimit  = 20
	DefaultTrackLimit  = 20
	DefaultArtistLimit = 10
)

// Options controls a single search.
type Options struct {
	AlbumLimit  int
	TrackLimit  int
	ArtistLimit int
	// LocalOnly skips the remote provider.
	LocalOnly bool
}

func (o Options) withDefaults(d Options) Options {
	if o.AlbumLimit <= 0 {
		o.AlbumLimit = d.AlbumLimit
	}
	if o.TrackLimit <= 0 {
		o.TrackLimit = d.TrackLimit
	}
	if o.ArtistLimit <= 0 {
		o.ArtistLimit = d.ArtistLimit
	}
	return o
}

// Service searches the catalog and, when configured, a remote provider.
type Service struct {
	store    *catalog.Store
	provider services.Provider
	logger   *log.Logger
	defaults Options
}

// NewService creates a search service. provider may be nil, in which case
// every search is local. Zero limits in defaults fall back to 20/20/10.
func NewService(store *catalog.Store, provider services.Provider, defaults Options, logger *log.Logger) *Service {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Service{
		store:    store,
		provider: provider,
		logger:   shared.WithLogger(logger, "component", "search"),
		defaults: defaults.withDefaults(Options{
			AlbumLimit:  DefaultAlbumLimit,
			TrackLimit:  DefaultTrackLimit,
			ArtistLimit: DefaultArtistLimit,
		}),
	}
}

// Search returns merged local and remote results for query.
//
// Remote failures never fail the search: they are logged and the remote side
// is treated as empty.
func (s *Service) Search(ctx context.Context, query string, opts Options) (*models.SearchResults, error) {
	query = strings.TrimSpace(query)
	opts = opts.withDefaults(s.defaults)

	local, err := s.store.Search(ctx, query, catalog.SearchLimits{
		Albums:  opts.AlbumLimit * 2,
		Tracks:  opts.TrackLimit * 2,
		Artists: opts.ArtistLimit * 2,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search catalog: %w", err)
	}
	rankLocal(local, query)

	remote := s.remote(ctx, query, opts)

	results := &models.SearchResults{
		Albums:  MergeAlbums(local.Albums, remote.Albums, opts.AlbumLimit),
		Tracks:  MergeTracks(local.Tracks, remote.Tracks, opts.TrackLimit),
		Artists: MergeArtists(local.Artists, remote.Artists, opts.ArtistLimit),
	}

	if err := s.HydrateArtists(ctx, results.Artists); err != nil {
		s.logger.Warn("failed to store artist profiles", "error", err)
	}

	s.logger.Debug("search", "query", query,
		"albums", len(results.Albums), "tracks", len(results.Tracks), "artists", len(results.Artists))
	return results, nil
}

func (s *Service) remote(ctx context.Context, query string, opts Options) *models.SearchResults {
	empty := &models.SearchResults{}
	if s.provider == nil || opts.LocalOnly || query == "" {
		return empty
	}

	limit := max(opts.AlbumLimit, opts.TrackLimit, opts.ArtistLimit)
	results, err := s.provider.Search(ctx, query, limit)
	if err != nil {
		s.logger.Warn("remote search failed", "provider", s.provider.Name(), "query", query, "error", err)
		return empty
	}
	return results
}

// HydrateArtists writes image and bio values borrowed from remote results onto
// the local artists in artists. Existing values are never overwritten.
func (s *Service) HydrateArtists(ctx context.Context, artists []models.ArtistResult) error {
	for _, a := range artists {
		if a.Source != models.SourceLocal || a.ID == "" {
			continue
		}
		if a.ImageURL == "" && a.Bio == "" {
			continue
		}
		if err := s.store.UpdateArtistProfile(ctx, a.ID, a.ImageURL, a.Bio); err != nil {
			return fmt.Errorf("failed to update artist %s: %w", a.ID, err)
		}
	}
	return nil
}

// RemoteAlbum fetches an album from the provider and flags it downloaded
// when the catalog already holds it.
func (s *Service) RemoteAlbum(ctx context.Context, id string) (*models.AlbumDetail, error) {
	if s.provider == nil {
		return nil, fmt.Errorf("%w: no remote provider configured", shared.ErrServiceUnavailable)
	}

	detail, err := s.provider.GetAlbum(ctx, id)
	if err != nil {
		return nil, err
	}

	album, err := s.store.FindAlbum(ctx, detail.Album.ExternalID, detail.Album.Title, detail.Album.Artist)
	if err != nil {
		return nil, err
	}
	if album != nil && album.Downloaded {
		detail.Album.ID = album.ID
		detail.Album.Downloaded = true
	}
	return detail, nil
}

// rankLocal orders catalog rows by how closely their names match query.
// Rows with equal scores keep the catalog order.
func rankLocal(results *models.SearchResults, query string) {
	q := strings.ToLower(query)
	if q == "" {
		return
	}

	rank(results.Albums, func(a models.AlbumResult) float64 {
		return score(q, a.Title) + contains(q, a.Artist, 7)
	})
	rank(results.Tracks, func(t models.TrackResult) float64 {
		return score(q, t.Title) + contains(q, t.Artist, 7) + contains(q, t.Album, 5)
	})
	rank(results.Artists, func(a models.ArtistResult) float64 {
		return score(q, a.Name)
	})
}

func rank[T any](items []T, scoreFn func(T) float64) {
	scores := make([]float64, len(items))
	for i, item := range items {
		scores[i] = scoreFn(item)
	}
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return scores[idx[i]] > scores[idx[j]]
	})

	sorted := make([]T, len(items))
	for i, k := range idx {
		sorted[i] = items[k]
	}
	copy(items, sorted)
}

func score(query, name string) float64 {
	name = strings.ToLower(name)
	s := contains(query, name, 10)

	distance := fuzzy.LevenshteinDistance(query, name)
	if distance <= len(query)/2 {
		s += float64(len(query) - distance)
	}
	return s
}

func contains(query, name string, weight float64) float64 {
	if name != "" && strings.Contains(strings.ToLower(name), query) {
		return weight
	}
	return 0
}
