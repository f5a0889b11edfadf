package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
)

const queueColumns = `
	q.id, q.track_id, q.position, q.is_playing, q.added_at,
	t.title, t.artist_id, ar.name, t.album_id, al.title, t.track_number, t.disc_number,
	t.duration, t.file_path, t.downloaded
	FROM queue_items q
	JOIN tracks t ON t.id = q.track_id
	JOIN artists ar ON ar.id = t.artist_id
	JOIN albums al ON al.id = t.album_id`

// QueueRepository persists [models.QueueItem] rows.
//
// It performs single-statement position arithmetic only. Keeping positions a
// contiguous 1..N permutation is the queue engine's job, which runs every
// structural change in one transaction.
type QueueRepository struct {
	q shared.Querier
}

// NewQueueRepository creates a new QueueRepository on the given database or transaction
func NewQueueRepository(q shared.Querier) *QueueRepository {
	return &QueueRepository{q: q}
}

// Insert adds an item at item.Position without touching other rows
func (r *QueueRepository) Insert(ctx context.Context, item *models.QueueItem) error {
	if item.TrackID == "" {
		return fmt.Errorf("%w: queue item requires a track", shared.ErrInvalidInput)
	}
	if item.Position < 1 {
		return fmt.Errorf("%w: queue position must be positive", shared.ErrInvalidInput)
	}

	item.ID = shared.GenerateID()
	item.AddedAt = now()

	query := `INSERT INTO queue_items (id, track_id, position, is_playing, added_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := r.q.ExecContext(ctx, query, item.ID, item.TrackID, item.Position, item.IsPlaying, item.AddedAt); err != nil {
		return fmt.Errorf("failed to insert queue item: %w", err)
	}
	return nil
}

// Get retrieves a queue item by ID
func (r *QueueRepository) Get(ctx context.Context, id string) (*models.QueueItem, error) {
	item, err := r.scanOne(r.q.QueryRowContext(ctx, `SELECT`+queueColumns+` WHERE q.id = ?`, id))
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrQueueItemNotFound, id)
	}
	return item, nil
}

// Playing returns the item marked as playing, or nil
func (r *QueueRepository) Playing(ctx context.Context) (*models.QueueItem, error) {
	return r.scanOne(r.q.QueryRowContext(ctx, `SELECT`+queueColumns+` WHERE q.is_playing = 1`))
}

// At returns the item at position, or nil
func (r *QueueRepository) At(ctx context.Context, position int) (*models.QueueItem, error) {
	return r.scanOne(r.q.QueryRowContext(ctx, `SELECT`+queueColumns+` WHERE q.position = ?`, position))
}

// After returns the item with the smallest position greater than position, or nil
func (r *QueueRepository) After(ctx context.Context, position int) (*models.QueueItem, error) {
	query := `SELECT` + queueColumns + ` WHERE q.position > ? ORDER BY q.position ASC LIMIT 1`
	return r.scanOne(r.q.QueryRowContext(ctx, query, position))
}

// Before returns the item with the largest position smaller than position, or nil
func (r *QueueRepository) Before(ctx context.Context, position int) (*models.QueueItem, error) {
	query := `SELECT` + queueColumns + ` WHERE q.position < ? ORDER BY q.position DESC LIMIT 1`
	return r.scanOne(r.q.QueryRowContext(ctx, query, position))
}

// Len returns the number of queued items
func (r *QueueRepository) Len(ctx context.Context) (int, error) {
	return count(ctx, r.q, "SELECT COUNT(*) FROM queue_items")
}

// MaxPosition returns the highest position, 0 for an empty queue
func (r *QueueRepository) MaxPosition(ctx context.Context) (int, error) {
	return count(ctx, r.q, "SELECT COALESCE(MAX(position), 0) FROM queue_items")
}

// Shift adds delta to the position of every item with from <= position <= to.
// A to of 0 means no upper bound.
func (r *QueueRepository) Shift(ctx context.Context, from, to, delta int) error {
	query := `UPDATE queue_items SET position = position + ? WHERE position >= ?`
	args := []any{delta, from}
	if to > 0 {
		query += " AND position <= ?"
		args = append(args, to)
	}
	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to shift queue positions: %w", err)
	}
	return nil
}

// SetPosition assigns a position to one item
func (r *QueueRepository) SetPosition(ctx context.Context, id string, position int) error {
	result, err := r.q.ExecContext(ctx, `UPDATE queue_items SET position = ? WHERE id = ?`, position, id)
	if err != nil {
		return fmt.Errorf("failed to set queue position: %w", err)
	}
	return expectOne(result, shared.ErrQueueItemNotFound, id)
}

// ClearPlaying unsets the playing flag everywhere
func (r *QueueRepository) ClearPlaying(ctx context.Context) error {
	if _, err := r.q.ExecContext(ctx, `UPDATE queue_items SET is_playing = 0 WHERE is_playing = 1`); err != nil {
		return fmt.Errorf("failed to clear playing flag: %w", err)
	}
	return nil
}

// SetPlaying marks one item as playing. Callers clear the previous one first.
func (r *QueueRepository) SetPlaying(ctx context.Context, id string) error {
	result, err := r.q.ExecContext(ctx, `UPDATE queue_items SET is_playing = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to set playing flag: %w", err)
	}
	return expectOne(result, shared.ErrQueueItemNotFound, id)
}

// Delete removes a queue item by ID
func (r *QueueRepository) Delete(ctx context.Context, id string) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM queue_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete queue item: %w", err)
	}
	return expectOne(result, shared.ErrQueueItemNotFound, id)
}

// DeleteAll empties the queue
func (r *QueueRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM queue_items`); err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}
	return nil
}

// Renumber rewrites positions to 1..N keeping the current order. Used after
// rows disappear outside the queue engine, e.g. through track deletion.
func (r *QueueRepository) Renumber(ctx context.Context) (int, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT id, position FROM queue_items ORDER BY position ASC, added_at ASC`)
	if err != nil {
		return 0, fmt.Errorf("failed to read queue order: %w", err)
	}

	type slot struct {
		id       string
		position int
	}
	var slots []slot
	for rows.Next() {
		var s slot
		if err := rows.Scan(&s.id, &s.position); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan queue order: %w", err)
		}
		slots = append(slots, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("row iteration error: %w", err)
	}

	changed := 0
	for i, s := range slots {
		if s.position == i+1 {
			continue
		}
		if err := r.SetPosition(ctx, s.id, i+1); err != nil {
			return changed, err
		}
		changed++
	}
	return changed, nil
}

// List returns the queue in position order with track details
func (r *QueueRepository) List(ctx context.Context) ([]*models.QueueItem, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT`+queueColumns+` ORDER BY q.position ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query queue: %w", err)
	}
	defer rows.Close()

	var items []*models.QueueItem
	for rows.Next() {
		item, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return items, nil
}

// scanOne scans a single [sql.Row], returning nil when there is no row
func (r *QueueRepository) scanOne(row *sql.Row) (*models.QueueItem, error) {
	item, err := r.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return item, err
}

func (r *QueueRepository) scan(row rowScanner) (*models.QueueItem, error) {
	var (
		item     models.QueueItem
		track    models.Track
		filePath sql.NullString
	)

	err := row.Scan(
		&item.ID, &item.TrackID, &item.Position, &item.IsPlaying, &item.AddedAt,
		&track.Title, &track.ArtistID, &track.ArtistName, &track.AlbumID, &track.AlbumTitle,
		&track.TrackNumber, &track.DiscNumber, &track.Duration, &filePath, &track.Downloaded,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan queue item: %w", err)
	}

	track.ID = item.TrackID
	track.FilePath = filePath.String
	item.Track = &track
	return &item, nil
}
