package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
)

// HistoryRepository appends to and reads the play log.
type HistoryRepository struct {
	q shared.Querier
}

// NewHistoryRepository creates a new HistoryRepository on the given database or transaction
func NewHistoryRepository(q shared.Querier) *HistoryRepository {
	return &HistoryRepository{q: q}
}

// Append records a play. PlayedAt defaults to now.
func (r *HistoryRepository) Append(ctx context.Context, entry *models.PlayHistory) error {
	if entry.TrackID == "" {
		return fmt.Errorf("%w: history entry requires a track", shared.ErrInvalidInput)
	}

	entry.ID = shared.GenerateID()
	if entry.PlayedAt.IsZero() {
		entry.PlayedAt = now()
	}

	duration := sql.NullInt64{Int64: int64(entry.Duration), Valid: entry.Duration > 0}
	query := `INSERT INTO play_history (id, track_id, played_at, duration) VALUES (?, ?, ?, ?)`
	if _, err := r.q.ExecContext(ctx, query, entry.ID, entry.TrackID, entry.PlayedAt, duration); err != nil {
		return fmt.Errorf("failed to append play history: %w", err)
	}
	return nil
}

// Recent returns the latest entries, newest first, with the track joined when it still exists
func (r *HistoryRepository) Recent(ctx context.Context, limit int) ([]*models.PlayHistory, error) {
	query := `
		SELECT h.id, h.track_id, h.played_at, h.duration, t.title, ar.name, al.title, t.album_id
		FROM play_history h
		LEFT JOIN tracks t ON t.id = h.track_id
		LEFT JOIN artists ar ON ar.id = t.artist_id
		LEFT JOIN albums al ON al.id = t.album_id
		ORDER BY h.played_at DESC
		LIMIT ?
	`
	rows, err := r.q.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query play history: %w", err)
	}
	defer rows.Close()

	var entries []*models.PlayHistory
	for rows.Next() {
		var (
			entry                         models.PlayHistory
			trackID, title, artist, album sql.NullString
			albumID                       sql.NullString
			duration                      sql.NullInt64
		)
		if err := rows.Scan(&entry.ID, &trackID, &entry.PlayedAt, &duration, &title, &artist, &album, &albumID); err != nil {
			return nil, fmt.Errorf("failed to scan play history: %w", err)
		}

		entry.TrackID = trackID.String
		entry.Duration = int(duration.Int64)
		if title.Valid {
			entry.Track = &models.Track{
				ID:         trackID.String,
				Title:      title.String,
				ArtistName: artist.String,
				AlbumTitle: album.String,
				AlbumID:    albumID.String,
			}
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}

// Count returns the number of history entries
func (r *HistoryRepository) Count(ctx context.Context) (int, error) {
	return count(ctx, r.q, "SELECT COUNT(*) FROM play_history")
}
