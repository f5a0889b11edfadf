package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/crate/internal/catalog"
	"github.com/desertthunder/crate/internal/formatter"
	"github.com/desertthunder/crate/internal/shared"
	"github.com/urfave/cli/v3"
)

// LikesList shows liked tracks and albums. --tracks or --albums narrows it to one kind.
func (r *Runner) LikesList(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	onlyTracks, onlyAlbums := cmd.Bool("tracks"), cmd.Bool("albums")
	data := map[string]any{}
	var out string

	if !onlyAlbums {
		tracks, err := r.store.LikedTracks(ctx)
		if err != nil {
			return err
		}
		data["tracks"] = tracks
		out += formatter.Styles.Title("Liked Tracks") + "\n" + formatter.TracksTable(tracks) + "\n"
	}
	if !onlyTracks {
		albums, err := r.store.LikedAlbums(ctx)
		if err != nil {
			return err
		}
		data["albums"] = albums
		out += formatter.Styles.Title("Liked Albums") + "\n" + formatter.AlbumsTable(albums) + "\n"
	}

	if cmd.Bool("json") {
		return r.writeJSON(data, cmd.Bool("pretty"))
	}
	return r.writePlain("%s", out)
}

// LikesAdd likes a track, or an album with --album.
func (r *Runner) LikesAdd(ctx context.Context, cmd *cli.Command) error {
	return r.changeLike(ctx, cmd, true)
}

// LikesRemove removes a like. Removing a missing like is not an error.
func (r *Runner) LikesRemove(ctx context.Context, cmd *cli.Command) error {
	return r.changeLike(ctx, cmd, false)
}

func (r *Runner) changeLike(ctx context.Context, cmd *cli.Command, like bool) error {
	id, kind, err := likeTarget(cmd)
	if err != nil {
		return err
	}
	if err := r.open(); err != nil {
		return err
	}

	var status *catalog.LikeStatus
	switch {
	case kind == "album" && like:
		status, err = r.store.LikeAlbum(ctx, id)
	case kind == "album":
		status, err = r.store.UnlikeAlbum(ctx, id)
	case like:
		status, err = r.store.LikeTrack(ctx, id)
	default:
		status, err = r.store.UnlikeTrack(ctx, id)
	}
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, cmd.Bool("pretty"))
	}

	switch {
	case like && status.Changed:
		return r.writePlain("%s Liked %s %s\n", formatter.Styles.OK("✓"), kind, id)
	case like:
		return r.writePlain("%s %s %s is already liked\n", formatter.Styles.Warn("•"), kind, id)
	case status.Changed:
		return r.writePlain("%s Unliked %s %s\n", formatter.Styles.OK("✓"), kind, id)
	default:
		return r.writePlain("%s %s %s is not liked\n", formatter.Styles.Warn("•"), kind, id)
	}
}

// LikesStatus reports whether a track or album is liked.
func (r *Runner) LikesStatus(ctx context.Context, cmd *cli.Command) error {
	id, kind, err := likeTarget(cmd)
	if err != nil {
		return err
	}
	if err := r.open(); err != nil {
		return err
	}

	var liked bool
	if kind == "album" {
		liked, err = r.store.AlbumLiked(ctx, id)
	} else {
		liked, err = r.store.TrackLiked(ctx, id)
	}
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(&catalog.LikeStatus{ID: id, Liked: liked}, cmd.Bool("pretty"))
	}
	if liked {
		return r.writePlain("%s %s %s is liked\n", formatter.Styles.OK("✓"), kind, id)
	}
	return r.writePlain("%s %s %s is not liked\n", formatter.Styles.Warn("•"), kind, id)
}

// LikesIDs prints every liked id.
func (r *Runner) LikesIDs(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	ids, err := r.store.LikedIDs(ctx)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(ids, cmd.Bool("pretty"))
	}
	for _, id := range ids.Tracks {
		r.writePlain("track %s\n", id)
	}
	for _, id := range ids.Albums {
		r.writePlain("album %s\n", id)
	}
	return nil
}

func likeTarget(cmd *cli.Command) (id, kind string, err error) {
	id = cmd.StringArg("id")
	kind = "track"
	if cmd.Bool("album") {
		kind = "album"
	}
	if id == "" {
		return "", "", fmt.Errorf("%w: %s id", shared.ErrMissingArgument, kind)
	}
	return id, kind, nil
}
