package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/desertthunder/crate/internal/formatter"
	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/queue"
	"github.com/desertthunder/crate/internal/shared"
	"github.com/urfave/cli/v3"
)

// QueueList shows the queue in position order.
func (r *Runner) QueueList(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	items, err := r.queue.List(ctx)
	if err != nil {
		return err
	}
	if !cmd.Bool("json") && len(items) == 0 {
		return r.writePlain("Queue is empty\n")
	}
	return r.render(cmd, items, formatter.QueueTable(items))
}

// QueueAdd adds one track, optionally playing it now or right after the current item.
func (r *Runner) QueueAdd(ctx context.Context, cmd *cli.Command) error {
	trackID := cmd.StringArg("track-id")
	if trackID == "" {
		return fmt.Errorf("%w: track id", shared.ErrMissingArgument)
	}
	if err := r.open(); err != nil {
		return err
	}

	item, err := r.queue.Add(ctx, trackID, queue.AddOptions{
		PlayNow:  cmd.Bool("now"),
		PlayNext: cmd.Bool("next"),
	})
	if err != nil {
		return err
	}
	return r.printItem(cmd, "Queued", item)
}

// QueuePlayAlbum replaces the queue with an album's downloaded tracks.
func (r *Runner) QueuePlayAlbum(ctx context.Context, cmd *cli.Command) error {
	albumID := cmd.StringArg("album-id")
	if albumID == "" {
		return fmt.Errorf("%w: album id", shared.ErrMissingArgument)
	}
	if err := r.open(); err != nil {
		return err
	}

	item, err := r.queue.PlayAlbumByID(ctx, albumID, cmd.Int("start"))
	if err != nil {
		return err
	}
	return r.printItem(cmd, "Playing", item)
}

// QueueRemove deletes a queue item and closes the gap.
func (r *Runner) QueueRemove(ctx context.Context, cmd *cli.Command) error {
	itemID := cmd.StringArg("item-id")
	if itemID == "" {
		return fmt.Errorf("%w: queue item id", shared.ErrMissingArgument)
	}
	if err := r.open(); err != nil {
		return err
	}

	if err := r.queue.Remove(ctx, itemID); err != nil {
		return err
	}
	return r.writePlain("%s Removed %s\n", formatter.Styles.OK("✓"), itemID)
}

// QueueMove moves a queue item to a new position.
func (r *Runner) QueueMove(ctx context.Context, cmd *cli.Command) error {
	itemID := cmd.StringArg("item-id")
	if itemID == "" {
		return fmt.Errorf("%w: queue item id", shared.ErrMissingArgument)
	}
	position, err := strconv.Atoi(cmd.StringArg("position"))
	if err != nil {
		return fmt.Errorf("%w: position must be a number", shared.ErrInvalidArgument)
	}
	if err := r.open(); err != nil {
		return err
	}

	if err := r.queue.Reorder(ctx, itemID, position); err != nil {
		return err
	}
	return r.writePlain("%s Moved %s to position %d\n", formatter.Styles.OK("✓"), itemID, position)
}

// QueueNext advances playback and records a play for the item left behind.
func (r *Runner) QueueNext(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	item, err := r.queue.Next(ctx)
	if err != nil {
		return err
	}
	if item == nil && !cmd.Bool("json") {
		return r.writePlain("End of queue\n")
	}
	return r.printItem(cmd, "Playing", item)
}

// QueuePrevious moves playback back one item.
func (r *Runner) QueuePrevious(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	item, err := r.queue.Previous(ctx)
	if err != nil {
		return err
	}
	if item == nil && !cmd.Bool("json") {
		return r.writePlain("Start of queue\n")
	}
	return r.printItem(cmd, "Playing", item)
}

// QueueClear empties the queue.
func (r *Runner) QueueClear(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	if err := r.queue.Clear(ctx); err != nil {
		return err
	}
	return r.writePlain("%s Queue cleared\n", formatter.Styles.OK("✓"))
}

// QueueNow shows the playing item.
func (r *Runner) QueueNow(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	item, err := r.queue.NowPlaying(ctx)
	if err != nil {
		return err
	}
	if item == nil && !cmd.Bool("json") {
		return r.writePlain("Nothing is playing\n")
	}
	return r.printItem(cmd, "Playing", item)
}

// QueueExport writes the queue as M3U or CSV.
func (r *Runner) QueueExport(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	items, err := r.queue.List(ctx)
	if err != nil {
		return err
	}

	path, err := formatter.WriteQueueExport(items, cmd.String("format"), cmd.String("output"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	r.logger.Info("queue exported", "path", path, "items", len(items))
	return r.writePlain("%s Exported %d items to %s\n", formatter.Styles.OK("✓"), len(items), path)
}

func (r *Runner) printItem(cmd *cli.Command, verb string, item *models.QueueItem) error {
	if cmd.Bool("json") {
		return r.writeJSON(item, cmd.Bool("pretty"))
	}

	if item.Track == nil {
		return r.writePlain("%s %s (position %d)\n", formatter.Styles.OK(verb), item.TrackID, item.Position)
	}
	return r.writePlain("%s %s - %s [%s] (position %d)\n",
		formatter.Styles.OK(verb), item.Track.ArtistName, item.Track.Title,
		formatter.FormatDuration(item.Track.Duration), item.Position)
}
