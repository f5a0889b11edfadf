package repositories

import (
	"context"
	"fmt"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
)

// LikeTarget selects the liked_tracks or liked_albums table.
type LikeTarget string

const (
	LikeTrack LikeTarget = "track"
	LikeAlbum LikeTarget = "album"
)

func (t LikeTarget) table() (table, column string, err error) {
	switch t {
	case LikeTrack:
		return "liked_tracks", "track_id", nil
	case LikeAlbum:
		return "liked_albums", "album_id", nil
	default:
		return "", "", fmt.Errorf("%w: unknown like target %q", shared.ErrInvalidInput, t)
	}
}

// LikeRepository records which tracks and albums are liked. Rows disappear
// with the track or album they point at.
type LikeRepository struct {
	q shared.Querier
}

// NewLikeRepository creates a new LikeRepository on the given database or transaction
func NewLikeRepository(q shared.Querier) *LikeRepository {
	return &LikeRepository{q: q}
}

// Add likes id. It reports false when id was already liked.
func (r *LikeRepository) Add(ctx context.Context, target LikeTarget, id string) (bool, error) {
	table, column, err := target.table()
	if err != nil {
		return false, err
	}

	query := fmt.Sprintf(`INSERT OR IGNORE INTO %s (%s, liked_at) VALUES (?, ?)`, table, column)
	result, err := r.q.ExecContext(ctx, query, id, now())
	if err != nil {
		return false, fmt.Errorf("failed to like %s: %w", target, err)
	}
	return affected(result)
}

// Remove unlikes id. It reports false when id was not liked.
func (r *LikeRepository) Remove(ctx context.Context, target LikeTarget, id string) (bool, error) {
	table, column, err := target.table()
	if err != nil {
		return false, err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`, table, column)
	result, err := r.q.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to unlike %s: %w", target, err)
	}
	return affected(result)
}

// Has reports whether id is liked
func (r *LikeRepository) Has(ctx context.Context, target LikeTarget, id string) (bool, error) {
	table, column, err := target.table()
	if err != nil {
		return false, err
	}
	n, err := count(ctx, r.q, fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = ?`, table, column), id)
	return n > 0, err
}

// IDs returns every liked id, most recently liked first
func (r *LikeRepository) IDs(ctx context.Context, target LikeTarget) ([]string, error) {
	table, column, err := target.table()
	if err != nil {
		return nil, err
	}

	rows, err := r.q.QueryContext(ctx, fmt.Sprintf(`SELECT %s FROM %s ORDER BY liked_at DESC`, column, table))
	if err != nil {
		return nil, fmt.Errorf("failed to query liked %ss: %w", target, err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan liked %s: %w", target, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return ids, nil
}

// Tracks returns the liked tracks, most recently liked first
func (r *LikeRepository) Tracks(ctx context.Context) ([]*models.Track, error) {
	tracks := NewTrackRepository(r.q)
	return tracks.query(ctx, `SELECT`+trackColumns+`
		JOIN liked_tracks lt ON lt.track_id = t.id
		ORDER BY lt.liked_at DESC`)
}

// Albums returns the liked albums, most recently liked first
func (r *LikeRepository) Albums(ctx context.Context) ([]*models.Album, error) {
	albums := NewAlbumRepository(r.q)
	return albums.query(ctx, `SELECT`+albumColumns+`
		JOIN liked_albums la ON la.album_id = al.id
		ORDER BY la.liked_at DESC`)
}
