package search

import (
	"context"
	"fmt"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
	"golang.org/x/sync/errgroup"
)

// DefaultFeedLimit caps each curated list.
const DefaultFeedLimit = 20

// Feed fetches the provider's curated lists concurrently. A list that fails
// is logged and left empty, like a failed remote search.
func (s *Service) Feed(ctx context.Context, limit int) (*models.Feed, error) {
	if s.provider == nil {
		return nil, fmt.Errorf("%w: no remote provider configured", shared.ErrServiceUnavailable)
	}
	if limit <= 0 {
		limit = DefaultFeedLimit
	}

	feed := &models.Feed{}
	lists := []struct {
		kind string
		dst  *[]models.AlbumResult
	}{
		{models.FeaturedNewReleases, &feed.NewReleases},
		{models.FeaturedPressAwards, &feed.PressAwards},
		{models.FeaturedEditorPicks, &feed.EditorPicks},
	}

	var g errgroup.Group
	for _, l := range lists {
		g.Go(func() error {
			albums, err := s.provider.Featured(ctx, l.kind, limit)
			if err != nil {
				s.logger.Warn("featured list failed", "provider", s.provider.Name(), "kind", l.kind, "error", err)
				albums = nil
			}
			if albums == nil {
				albums = []models.AlbumResult{}
			}
			*l.dst = albums
			return nil
		})
	}
	g.Wait()

	for _, l := range lists {
		if err := s.markLocal(ctx, *l.dst); err != nil {
			return nil, err
		}
	}
	return feed, nil
}

// markLocal points remote albums the catalog already holds at their local row.
func (s *Service) markLocal(ctx context.Context, albums []models.AlbumResult) error {
	for i := range albums {
		if albums[i].ExternalID == "" {
			continue
		}
		album, err := s.store.FindAlbum(ctx, albums[i].ExternalID, "", "")
		if err != nil {
			return err
		}
		if album != nil {
			albums[i].ID = album.ID
			albums[i].Downloaded = album.Downloaded
		}
	}
	return nil
}
