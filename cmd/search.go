package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/crate/internal/formatter"
	"github.com/desertthunder/crate/internal/search"
	"github.com/desertthunder/crate/internal/shared"
	"github.com/urfave/cli/v3"
)

// Search merges catalog and provider results for a query.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	query := strings.TrimSpace(cmd.StringArg("query"))
	if query == "" {
		return fmt.Errorf("%w: search query", shared.ErrMissingArgument)
	}
	if err := r.open(); err != nil {
		return err
	}

	local := cmd.Bool("local") || !r.config.Search.Remote
	if !local && r.provider == nil {
		r.logger.Debug("no provider configured, searching the catalog only")
	}

	results, err := r.search.Search(ctx, query, search.Options{
		AlbumLimit:  cmd.Int("albums"),
		TrackLimit:  cmd.Int("tracks"),
		ArtistLimit: cmd.Int("artists"),
		LocalOnly:   local,
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(results, cmd.Bool("pretty"))
	}

	if len(results.Albums)+len(results.Tracks)+len(results.Artists) == 0 {
		r.writePlain("No results for %q\n", query)
		return nil
	}
	r.writePlain("%s", formatter.SearchTables(results))
	return nil
}
