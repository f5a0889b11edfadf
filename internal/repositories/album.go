package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
)

const albumColumns = `
	al.id, al.title, al.artist_id, ar.name, al.external_id, al.external_url, al.cover_url,
	al.cover_local, al.release_date, al.genre, al.track_count, al.duration, al.downloaded,
	al.download_path, al.created_at, al.updated_at
	FROM albums al
	JOIN artists ar ON ar.id = al.artist_id`

// AlbumRepository persists [models.Album] rows.
type AlbumRepository struct {
	q shared.Querier
}

// NewAlbumRepository creates a new AlbumRepository on the given database or transaction
func NewAlbumRepository(q shared.Querier) *AlbumRepository {
	return &AlbumRepository{q: q}
}

// Create inserts a new [models.Album] with a generated ID
func (r *AlbumRepository) Create(ctx context.Context, album *models.Album) error {
	if err := album.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	album.ID = shared.GenerateID()
	album.CreatedAt = now()
	album.UpdatedAt = album.CreatedAt

	query := `
		INSERT INTO albums (
			id, title, title_key, artist_id, external_id, external_url, cover_url, cover_local,
			release_date, genre, track_count, duration, downloaded, download_path, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.q.ExecContext(ctx, query,
		album.ID,
		album.Title,
		shared.NormalizeTitle(album.Title),
		album.ArtistID,
		nullString(album.ExternalID),
		nullString(album.ExternalURL),
		nullString(album.CoverURL),
		nullString(album.CoverLocal),
		nullString(album.ReleaseDate),
		nullString(album.Genre),
		album.TrackCount,
		album.Duration,
		album.Downloaded,
		nullString(album.DownloadPath),
		album.CreatedAt,
		album.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert album: %w", err)
	}
	return nil
}

// Get retrieves an album by ID
func (r *AlbumRepository) Get(ctx context.Context, id string) (*models.Album, error) {
	album, err := r.scanOne(r.q.QueryRowContext(ctx, `SELECT`+albumColumns+` WHERE al.id = ?`, id))
	if err != nil {
		return nil, err
	}
	if album == nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrAlbumNotFound, id)
	}
	return album, nil
}

// FindByExternalID returns the album carrying the provider id, or nil
func (r *AlbumRepository) FindByExternalID(ctx context.Context, externalID string) (*models.Album, error) {
	if externalID == "" {
		return nil, nil
	}
	return r.scanOne(r.q.QueryRowContext(ctx, `SELECT`+albumColumns+` WHERE al.external_id = ?`, externalID))
}

// FindByTitle returns the album of artistID whose title matches exactly (case-sensitive).
//
// When externalID is set, albums already bound to another external id are skipped.
func (r *AlbumRepository) FindByTitle(ctx context.Context, title, artistID, externalID string) (*models.Album, error) {
	query := `SELECT` + albumColumns + `
		WHERE al.artist_id = ? AND al.title = ?
		  AND (? = '' OR al.external_id IS NULL OR al.external_id = ?)
		ORDER BY al.created_at ASC
		LIMIT 1
	`
	return r.scanOne(r.q.QueryRowContext(ctx, query, artistID, title, externalID, externalID))
}

// ListByTitleKey returns albums whose normalized title equals key
func (r *AlbumRepository) ListByTitleKey(ctx context.Context, key string) ([]*models.Album, error) {
	return r.query(ctx, `SELECT`+albumColumns+` WHERE al.title_key = ? ORDER BY al.created_at ASC`, key)
}

// Update modifies an existing album
func (r *AlbumRepository) Update(ctx context.Context, album *models.Album) error {
	if err := album.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	album.UpdatedAt = now()

	query := `
		UPDATE albums
		SET title = ?, title_key = ?, artist_id = ?, external_id = ?, external_url = ?, cover_url = ?,
		    cover_local = ?, release_date = ?, genre = ?, track_count = ?, duration = ?,
		    downloaded = ?, download_path = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.q.ExecContext(ctx, query,
		album.Title,
		shared.NormalizeTitle(album.Title),
		album.ArtistID,
		nullString(album.ExternalID),
		nullString(album.ExternalURL),
		nullString(album.CoverURL),
		nullString(album.CoverLocal),
		nullString(album.ReleaseDate),
		nullString(album.Genre),
		album.TrackCount,
		album.Duration,
		album.Downloaded,
		nullString(album.DownloadPath),
		album.UpdatedAt,
		album.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update album: %w", err)
	}
	return expectOne(result, shared.ErrAlbumNotFound, album.ID)
}

// Delete removes an album; its tracks go with it through the foreign key cascade
func (r *AlbumRepository) Delete(ctx context.Context, id string) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM albums WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete album: %w", err)
	}
	return expectOne(result, shared.ErrAlbumNotFound, id)
}

// RefreshTotals recomputes duration from the album's downloaded tracks and
// fills track_count when the provider did not supply one.
func (r *AlbumRepository) RefreshTotals(ctx context.Context, id string) error {
	query := `
		UPDATE albums
		SET track_count = CASE
		        WHEN track_count > 0 THEN track_count
		        ELSE (SELECT COUNT(*) FROM tracks WHERE album_id = albums.id AND downloaded = 1)
		    END,
		    duration = (SELECT COALESCE(SUM(duration), 0) FROM tracks WHERE album_id = albums.id AND downloaded = 1)
		WHERE id = ?
	`
	result, err := r.q.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to refresh album totals: %w", err)
	}
	return expectOne(result, shared.ErrAlbumNotFound, id)
}

// List retrieves albums matching the given criteria.
//
// Supported criteria: "downloaded" (bool), "artist_id" (string),
// "order" ("title" or "recent"), "limit" (int), "offset" (int).
func (r *AlbumRepository) List(ctx context.Context, criteria map[string]any) ([]*models.Album, error) {
	query := `SELECT` + albumColumns + ` WHERE 1 = 1`
	args := []any{}

	if downloaded, ok := criteria["downloaded"].(bool); ok {
		query += " AND al.downloaded = ?"
		args = append(args, downloaded)
	}

	if artistID, ok := criteria["artist_id"].(string); ok && artistID != "" {
		query += " AND al.artist_id = ?"
		args = append(args, artistID)
	}

	switch criteria["order"] {
	case "recent":
		query += " ORDER BY al.created_at DESC"
	default:
		query += " ORDER BY ar.name_key ASC, al.release_date ASC, al.title ASC"
	}

	query, args = paginate(query, args, criteria)
	return r.query(ctx, query, args...)
}

// Search finds albums whose title or artist name contains query
func (r *AlbumRepository) Search(ctx context.Context, query string, limit int) ([]*models.Album, error) {
	sqlQuery := `SELECT` + albumColumns + `
		WHERE al.title LIKE ? OR ar.name LIKE ?
		ORDER BY al.downloaded DESC, al.title ASC
		LIMIT ?
	`
	pattern := likePattern(query)
	return r.query(ctx, sqlQuery, pattern, pattern, limit)
}

// Count returns the number of albums
func (r *AlbumRepository) Count(ctx context.Context) (int, error) {
	return count(ctx, r.q, "SELECT COUNT(*) FROM albums")
}

func (r *AlbumRepository) query(ctx context.Context, query string, args ...any) ([]*models.Album, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query albums: %w", err)
	}
	defer rows.Close()

	var albums []*models.Album
	for rows.Next() {
		album, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		albums = append(albums, album)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return albums, nil
}

// scanOne scans a single [sql.Row], returning nil when there is no row
func (r *AlbumRepository) scanOne(row *sql.Row) (*models.Album, error) {
	album, err := r.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return album, err
}

func (r *AlbumRepository) scan(row rowScanner) (*models.Album, error) {
	var (
		album        models.Album
		externalID   sql.NullString
		externalURL  sql.NullString
		coverURL     sql.NullString
		coverLocal   sql.NullString
		releaseDate  sql.NullString
		genre        sql.NullString
		downloadPath sql.NullString
	)

	err := row.Scan(
		&album.ID, &album.Title, &album.ArtistID, &album.ArtistName, &externalID, &externalURL, &coverURL,
		&coverLocal, &releaseDate, &genre, &album.TrackCount, &album.Duration, &album.Downloaded,
		&downloadPath, &album.CreatedAt, &album.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan album: %w", err)
	}

	album.ExternalID = externalID.String
	album.ExternalURL = externalURL.String
	album.CoverURL = coverURL.String
	album.CoverLocal = coverLocal.String
	album.ReleaseDate = releaseDate.String
	album.Genre = genre.String
	album.DownloadPath = downloadPath.String
	return &album, nil
}
