package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crate/internal/catalog"
	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
)

// AddOptions controls where added tracks land.
type AddOptions struct {
	// PlayNow marks the first added item as playing.
	PlayNow bool
	// PlayNext inserts right after the playing item instead of appending.
	PlayNext bool
}

// Engine owns every mutation of the queue.
type Engine struct {
	store  *catalog.Store
	logger *log.Logger
	mu     sync.Mutex
}

// NewEngine creates an Engine. A nil logger discards output.
func NewEngine(store *catalog.Store, logger *log.Logger) *Engine {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Engine{store: store, logger: shared.WithLogger(logger, "component", "queue")}
}

// run executes fn under the engine mutex in one transaction
func (e *Engine) run(ctx context.Context, fn func(tx *catalog.Tx) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.WithTx(ctx, fn)
}

// Add queues one track. See [Engine.AddAll].
func (e *Engine) Add(ctx context.Context, trackID string, opts AddOptions) (*models.QueueItem, error) {
	items, err := e.AddAll(ctx, []string{trackID}, opts)
	if err != nil {
		return nil, err
	}
	return items[0], nil
}

// AddAll queues tracks in order. By default they are appended; with PlayNext
// they go right after the playing item (at the front when nothing plays) and
// later items shift back. PlayNow clears the playing flag elsewhere and marks
// the first added item.
func (e *Engine) AddAll(ctx context.Context, trackIDs []string, opts AddOptions) ([]*models.QueueItem, error) {
	if len(trackIDs) == 0 {
		return nil, fmt.Errorf("%w: no tracks to queue", shared.ErrMissingArgument)
	}

	var items []*models.QueueItem
	err := e.run(ctx, func(tx *catalog.Tx) error {
		items = nil
		for _, id := range trackIDs {
			if _, err := tx.Tracks.Get(ctx, id); err != nil {
				return err
			}
		}

		position, err := e.insertPosition(ctx, tx, opts.PlayNext)
		if err != nil {
			return err
		}
		if opts.PlayNext {
			if err := tx.Queue.Shift(ctx, position, 0, len(trackIDs)); err != nil {
				return err
			}
		}

		for i, id := range trackIDs {
			item := &models.QueueItem{TrackID: id, Position: position + i}
			if err := tx.Queue.Insert(ctx, item); err != nil {
				return err
			}
			items = append(items, item)
		}

		if opts.PlayNow {
			if err := markPlaying(ctx, tx, items[0].ID); err != nil {
				return err
			}
		}

		for i, item := range items {
			if items[i], err = tx.Queue.Get(ctx, item.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add to queue: %w", err)
	}

	e.logger.Debug("queued tracks", "count", len(items), "play_now", opts.PlayNow, "play_next", opts.PlayNext)
	return items, nil
}

func (e *Engine) insertPosition(ctx context.Context, tx *catalog.Tx, playNext bool) (int, error) {
	if playNext {
		playing, err := tx.Queue.Playing(ctx)
		if err != nil {
			return 0, err
		}
		if playing == nil {
			return 1, nil
		}
		return playing.Position + 1, nil
	}

	n, err := tx.Queue.Len(ctx)
	if err != nil {
		return 0, err
	}
	return n + 1, nil
}

// PlayAlbum replaces the queue with trackIDs and starts playing the item at
// startIndex (1-based).
func (e *Engine) PlayAlbum(ctx context.Context, trackIDs []string, startIndex int) (*models.QueueItem, error) {
	var playing *models.QueueItem
	err := e.run(ctx, func(tx *catalog.Tx) error {
		var err error
		playing, err = replaceQueue(ctx, tx, trackIDs, startIndex)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to play album: %w", err)
	}
	return playing, nil
}

// PlayAlbumByID replaces the queue with the album's downloaded tracks in disc
// and track order.
func (e *Engine) PlayAlbumByID(ctx context.Context, albumID string, startIndex int) (*models.QueueItem, error) {
	var playing *models.QueueItem
	err := e.run(ctx, func(tx *catalog.Tx) error {
		if _, err := tx.Albums.Get(ctx, albumID); err != nil {
			return err
		}
		tracks, err := tx.Tracks.ListByAlbum(ctx, albumID, true)
		if err != nil {
			return err
		}

		ids := make([]string, 0, len(tracks))
		for _, t := range tracks {
			ids = append(ids, t.ID)
		}
		playing, err = replaceQueue(ctx, tx, ids, startIndex)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to play album: %w", err)
	}

	e.logger.Info("playing album", "album", albumID, "track", playing.TrackID)
	return playing, nil
}

func replaceQueue(ctx context.Context, tx *catalog.Tx, trackIDs []string, startIndex int) (*models.QueueItem, error) {
	if len(trackIDs) == 0 {
		return nil, fmt.Errorf("%w: no tracks to play", shared.ErrInvalidArgument)
	}
	if startIndex < 1 || startIndex > len(trackIDs) {
		return nil, fmt.Errorf("%w: start index %d outside 1..%d", shared.ErrInvalidArgument, startIndex, len(trackIDs))
	}

	if err := tx.Queue.DeleteAll(ctx); err != nil {
		return nil, err
	}

	var start string
	for i, id := range trackIDs {
		if _, err := tx.Tracks.Get(ctx, id); err != nil {
			return nil, err
		}
		item := &models.QueueItem{TrackID: id, Position: i + 1, IsPlaying: i+1 == startIndex}
		if err := tx.Queue.Insert(ctx, item); err != nil {
			return nil, err
		}
		if item.IsPlaying {
			start = item.ID
		}
	}
	return tx.Queue.Get(ctx, start)
}

// Remove deletes an item and closes the gap it leaves.
func (e *Engine) Remove(ctx context.Context, itemID string) error {
	err := e.run(ctx, func(tx *catalog.Tx) error {
		item, err := tx.Queue.Get(ctx, itemID)
		if err != nil {
			return err
		}
		if err := tx.Queue.Delete(ctx, itemID); err != nil {
			return err
		}
		return tx.Queue.Shift(ctx, item.Position+1, 0, -1)
	})
	if err != nil {
		return fmt.Errorf("failed to remove queue item: %w", err)
	}
	return nil
}

// Reorder moves an item to newPosition. Items in between move one step
// towards the vacated slot.
func (e *Engine) Reorder(ctx context.Context, itemID string, newPosition int) error {
	err := e.run(ctx, func(tx *catalog.Tx) error {
		item, err := tx.Queue.Get(ctx, itemID)
		if err != nil {
			return err
		}
		n, err := tx.Queue.Len(ctx)
		if err != nil {
			return err
		}
		if newPosition < 1 || newPosition > n {
			return fmt.Errorf("%w: position %d outside 1..%d", shared.ErrInvalidArgument, newPosition, n)
		}

		old := item.Position
		switch {
		case newPosition == old:
			return nil
		case newPosition < old:
			err = tx.Queue.Shift(ctx, newPosition, old-1, 1)
		default:
			err = tx.Queue.Shift(ctx, old+1, newPosition, -1)
		}
		if err != nil {
			return err
		}
		return tx.Queue.SetPosition(ctx, itemID, newPosition)
	})
	if err != nil {
		return fmt.Errorf("failed to reorder queue: %w", err)
	}
	return nil
}

// Next finishes the playing item and starts the one after it.
//
// The finished track gets a history entry and its play count bumped. When
// nothing is playing the first item starts. Returns nil at the end of the queue.
func (e *Engine) Next(ctx context.Context) (*models.QueueItem, error) {
	var next *models.QueueItem
	err := e.run(ctx, func(tx *catalog.Tx) error {
		playing, err := tx.Queue.Playing(ctx)
		if err != nil {
			return err
		}

		from := 0
		if playing != nil {
			from = playing.Position
			if err := tx.Queue.ClearPlaying(ctx); err != nil {
				return err
			}
			if err := recordPlay(ctx, tx, playing); err != nil {
				return err
			}
		}

		if next, err = tx.Queue.After(ctx, from); err != nil || next == nil {
			return err
		}
		if err := markPlaying(ctx, tx, next.ID); err != nil {
			return err
		}
		next.IsPlaying = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to advance queue: %w", err)
	}
	return next, nil
}

// Previous starts the item before the playing one. At the start of the queue
// nothing changes and nil is returned. When nothing is playing the last item starts.
func (e *Engine) Previous(ctx context.Context) (*models.QueueItem, error) {
	var prev *models.QueueItem
	err := e.run(ctx, func(tx *catalog.Tx) error {
		playing, err := tx.Queue.Playing(ctx)
		if err != nil {
			return err
		}

		if playing == nil {
			last, err := tx.Queue.MaxPosition(ctx)
			if err != nil {
				return err
			}
			prev, err = tx.Queue.At(ctx, last)
		} else {
			prev, err = tx.Queue.Before(ctx, playing.Position)
		}
		if err != nil || prev == nil {
			return err
		}

		if err := markPlaying(ctx, tx, prev.ID); err != nil {
			return err
		}
		prev.IsPlaying = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to rewind queue: %w", err)
	}
	return prev, nil
}

// Clear empties the queue
func (e *Engine) Clear(ctx context.Context) error {
	return e.run(ctx, func(tx *catalog.Tx) error {
		return tx.Queue.DeleteAll(ctx)
	})
}

// List returns the queue in position order
func (e *Engine) List(ctx context.Context) ([]*models.QueueItem, error) {
	var items []*models.QueueItem
	err := e.run(ctx, func(tx *catalog.Tx) error {
		var err error
		items, err = tx.Queue.List(ctx)
		return err
	})
	return items, err
}

// NowPlaying returns the playing item, or nil
func (e *Engine) NowPlaying(ctx context.Context) (*models.QueueItem, error) {
	var item *models.QueueItem
	err := e.run(ctx, func(tx *catalog.Tx) error {
		var err error
		item, err = tx.Queue.Playing(ctx)
		return err
	})
	return item, err
}

func markPlaying(ctx context.Context, tx *catalog.Tx, itemID string) error {
	if err := tx.Queue.ClearPlaying(ctx); err != nil {
		return err
	}
	return tx.Queue.SetPlaying(ctx, itemID)
}

func recordPlay(ctx context.Context, tx *catalog.Tx, item *models.QueueItem) error {
	at := time.Now().UTC()
	duration := 0
	if item.Track != nil {
		duration = item.Track.Duration
	}
	if err := tx.History.Append(ctx, &models.PlayHistory{TrackID: item.TrackID, PlayedAt: at, Duration: duration}); err != nil {
		return err
	}
	return tx.Tracks.RecordPlay(ctx, item.TrackID, at)
}
