package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
)

const trackColumns = `
	t.id, t.title, t.artist_id, ar.name, t.album_id, al.title, t.external_id, t.track_number,
	t.disc_number, t.duration, t.file_path, t.downloaded, t.play_count, t.last_played,
	t.created_at, t.updated_at
	FROM tracks t
	JOIN artists ar ON ar.id = t.artist_id
	JOIN albums al ON al.id = t.album_id`

// TrackRepository persists [models.Track] rows.
//
// A track has three identities: its external id, its file path and its
// (album, track number, title) position. Each has a Find method.
type TrackRepository struct {
	q shared.Querier
}

// NewTrackRepository creates a new TrackRepository on the given database or transaction
func NewTrackRepository(q shared.Querier) *TrackRepository {
	return &TrackRepository{q: q}
}

// Create inserts a new [models.Track] with a generated ID
func (r *TrackRepository) Create(ctx context.Context, track *models.Track) error {
	if track.DiscNumber <= 0 {
		track.DiscNumber = 1
	}
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	track.ID = shared.GenerateID()
	track.CreatedAt = now()
	track.UpdatedAt = track.CreatedAt

	query := `
		INSERT INTO tracks (
			id, title, artist_id, album_id, external_id, track_number, disc_number, duration,
			file_path, downloaded, play_count, last_played, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.q.ExecContext(ctx, query,
		track.ID,
		track.Title,
		track.ArtistID,
		track.AlbumID,
		nullString(track.ExternalID),
		track.TrackNumber,
		track.DiscNumber,
		track.Duration,
		nullString(track.FilePath),
		track.Downloaded,
		track.PlayCount,
		nullTime(track.LastPlayed),
		track.CreatedAt,
		track.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert track: %w", err)
	}
	return nil
}

// Get retrieves a track by ID
func (r *TrackRepository) Get(ctx context.Context, id string) (*models.Track, error) {
	track, err := r.scanOne(r.q.QueryRowContext(ctx, `SELECT`+trackColumns+` WHERE t.id = ?`, id))
	if err != nil {
		return nil, err
	}
	if track == nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, id)
	}
	return track, nil
}

// FindByExternalID returns the track carrying the provider id, or nil
func (r *TrackRepository) FindByExternalID(ctx context.Context, externalID string) (*models.Track, error) {
	if externalID == "" {
		return nil, nil
	}
	return r.scanOne(r.q.QueryRowContext(ctx, `SELECT`+trackColumns+` WHERE t.external_id = ?`, externalID))
}

// FindByFilePath returns the track stored at path, or nil
func (r *TrackRepository) FindByFilePath(ctx context.Context, path string) (*models.Track, error) {
	if path == "" {
		return nil, nil
	}
	return r.scanOne(r.q.QueryRowContext(ctx, `SELECT`+trackColumns+` WHERE t.file_path = ?`, path))
}

// FindByPosition returns the track of albumID with the given number and exact title, or nil
func (r *TrackRepository) FindByPosition(ctx context.Context, albumID string, trackNumber int, title string) (*models.Track, error) {
	query := `SELECT` + trackColumns + `
		WHERE t.album_id = ? AND t.track_number = ? AND t.title = ?
		ORDER BY t.created_at ASC
		LIMIT 1
	`
	return r.scanOne(r.q.QueryRowContext(ctx, query, albumID, trackNumber, title))
}

// Update modifies an existing track
func (r *TrackRepository) Update(ctx context.Context, track *models.Track) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	track.UpdatedAt = now()

	query := `
		UPDATE tracks
		SET title = ?, artist_id = ?, album_id = ?, external_id = ?, track_number = ?, disc_number = ?,
		    duration = ?, file_path = ?, downloaded = ?, play_count = ?, last_played = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.q.ExecContext(ctx, query,
		track.Title,
		track.ArtistID,
		track.AlbumID,
		nullString(track.ExternalID),
		track.TrackNumber,
		track.DiscNumber,
		track.Duration,
		nullString(track.FilePath),
		track.Downloaded,
		track.PlayCount,
		nullTime(track.LastPlayed),
		track.UpdatedAt,
		track.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update track: %w", err)
	}
	return expectOne(result, shared.ErrTrackNotFound, track.ID)
}

// Demote marks a track as no longer on disk and clears its path
func (r *TrackRepository) Demote(ctx context.Context, id string) error {
	query := `UPDATE tracks SET downloaded = 0, file_path = NULL, updated_at = ? WHERE id = ?`
	result, err := r.q.ExecContext(ctx, query, now(), id)
	if err != nil {
		return fmt.Errorf("failed to demote track: %w", err)
	}
	return expectOne(result, shared.ErrTrackNotFound, id)
}

// RecordPlay increments the play count and stamps last_played
func (r *TrackRepository) RecordPlay(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE tracks SET play_count = play_count + 1, last_played = ?, updated_at = ? WHERE id = ?`
	result, err := r.q.ExecContext(ctx, query, at, now(), id)
	if err != nil {
		return fmt.Errorf("failed to record play: %w", err)
	}
	return expectOne(result, shared.ErrTrackNotFound, id)
}

// Delete removes a track by ID
func (r *TrackRepository) Delete(ctx context.Context, id string) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM tracks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete track: %w", err)
	}
	return expectOne(result, shared.ErrTrackNotFound, id)
}

// List retrieves tracks matching the given criteria.
//
// Supported criteria: "album_id" (string), "downloaded" (bool),
// "order" ("album" or "last_played"), "limit" (int), "offset" (int).
// The default order is disc then track number.
func (r *TrackRepository) List(ctx context.Context, criteria map[string]any) ([]*models.Track, error) {
	query := `SELECT` + trackColumns + ` WHERE 1 = 1`
	args := []any{}

	if albumID, ok := criteria["album_id"].(string); ok && albumID != "" {
		query += " AND t.album_id = ?"
		args = append(args, albumID)
	}

	if downloaded, ok := criteria["downloaded"].(bool); ok {
		query += " AND t.downloaded = ?"
		args = append(args, downloaded)
	}

	switch criteria["order"] {
	case "last_played":
		query += " AND t.last_played IS NOT NULL ORDER BY t.last_played DESC"
	default:
		query += " ORDER BY t.disc_number ASC, t.track_number ASC, t.title ASC"
	}

	query, args = paginate(query, args, criteria)
	return r.query(ctx, query, args...)
}

// ListByAlbum returns an album's tracks in disc/track order
func (r *TrackRepository) ListByAlbum(ctx context.Context, albumID string, downloadedOnly bool) ([]*models.Track, error) {
	criteria := map[string]any{"album_id": albumID}
	if downloadedOnly {
		criteria["downloaded"] = true
	}
	return r.List(ctx, criteria)
}

// CountDownloaded returns how many of an album's tracks are downloaded
func (r *TrackRepository) CountDownloaded(ctx context.Context, albumID string) (int, error) {
	return count(ctx, r.q, "SELECT COUNT(*) FROM tracks WHERE album_id = ? AND downloaded = 1", albumID)
}

// Search finds tracks whose title, artist or album contains query
func (r *TrackRepository) Search(ctx context.Context, query string, limit int) ([]*models.Track, error) {
	sqlQuery := `SELECT` + trackColumns + `
		WHERE t.title LIKE ? OR ar.name LIKE ? OR al.title LIKE ?
		ORDER BY t.downloaded DESC, t.title ASC
		LIMIT ?
	`
	pattern := likePattern(query)
	return r.query(ctx, sqlQuery, pattern, pattern, pattern, limit)
}

// Count returns the number of tracks
func (r *TrackRepository) Count(ctx context.Context) (int, error) {
	return count(ctx, r.q, "SELECT COUNT(*) FROM tracks")
}

func (r *TrackRepository) query(ctx context.Context, query string, args ...any) ([]*models.Track, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*models.Track
	for rows.Next() {
		track, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return tracks, nil
}

// scanOne scans a single [sql.Row], returning nil when there is no row
func (r *TrackRepository) scanOne(row *sql.Row) (*models.Track, error) {
	track, err := r.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return track, err
}

func (r *TrackRepository) scan(row rowScanner) (*models.Track, error) {
	var (
		track      models.Track
		externalID sql.NullString
		filePath   sql.NullString
		lastPlayed sql.NullTime
	)

	err := row.Scan(
		&track.ID, &track.Title, &track.ArtistID, &track.ArtistName, &track.AlbumID, &track.AlbumTitle,
		&externalID, &track.TrackNumber, &track.DiscNumber, &track.Duration, &filePath, &track.Downloaded,
		&track.PlayCount, &lastPlayed, &track.CreatedAt, &track.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}

	track.ExternalID = externalID.String
	track.FilePath = filePath.String
	track.LastPlayed = timePtr(lastPlayed)
	return &track, nil
}
