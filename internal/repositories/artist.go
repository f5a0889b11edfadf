package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
)

const artistColumns = `
	ar.id, ar.name, ar.external_id, ar.image_url, ar.bio, ar.created_at, ar.updated_at,
	(SELECT COUNT(*) FROM albums al WHERE al.artist_id = ar.id)`

// ArtistRepository persists [models.Artist] rows.
type ArtistRepository struct {
	q shared.Querier
}

// NewArtistRepository creates a new ArtistRepository on the given database or transaction
func NewArtistRepository(q shared.Querier) *ArtistRepository {
	return &ArtistRepository{q: q}
}

// Create inserts a new [models.Artist] with a generated ID
func (r *ArtistRepository) Create(ctx context.Context, artist *models.Artist) error {
	if err := artist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	artist.ID = shared.GenerateID()
	artist.CreatedAt = now()
	artist.UpdatedAt = artist.CreatedAt

	query := `
		INSERT INTO artists (id, name, name_key, external_id, image_url, bio, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.q.ExecContext(ctx, query,
		artist.ID,
		artist.Name,
		shared.FoldName(artist.Name),
		nullString(artist.ExternalID),
		nullString(artist.ImageURL),
		nullString(artist.Bio),
		artist.CreatedAt,
		artist.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert artist: %w", err)
	}
	return nil
}

// Get retrieves an artist by ID
func (r *ArtistRepository) Get(ctx context.Context, id string) (*models.Artist, error) {
	query := `SELECT` + artistColumns + ` FROM artists ar WHERE ar.id = ?`

	artist, err := r.scanOne(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if artist == nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrArtistNotFound, id)
	}
	return artist, nil
}

// FindByExternalID returns the artist carrying the provider id, or nil
func (r *ArtistRepository) FindByExternalID(ctx context.Context, externalID string) (*models.Artist, error) {
	if externalID == "" {
		return nil, nil
	}
	query := `SELECT` + artistColumns + ` FROM artists ar WHERE ar.external_id = ?`
	return r.scanOne(r.q.QueryRowContext(ctx, query, externalID))
}

// FindByName returns the oldest artist whose name matches case-insensitively.
//
// When externalID is set, rows already bound to a different external id are
// skipped: they are distinct artists that happen to share a name.
func (r *ArtistRepository) FindByName(ctx context.Context, name, externalID string) (*models.Artist, error) {
	query := `SELECT` + artistColumns + `
		FROM artists ar
		WHERE ar.name_key = ?
		  AND (? = '' OR ar.external_id IS NULL OR ar.external_id = ?)
		ORDER BY ar.created_at ASC
		LIMIT 1
	`
	return r.scanOne(r.q.QueryRowContext(ctx, query, shared.FoldName(name), externalID, externalID))
}

// Update modifies an existing artist
func (r *ArtistRepository) Update(ctx context.Context, artist *models.Artist) error {
	if err := artist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	artist.UpdatedAt = now()

	query := `
		UPDATE artists
		SET name = ?, name_key = ?, external_id = ?, image_url = ?, bio = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.q.ExecContext(ctx, query,
		artist.Name,
		shared.FoldName(artist.Name),
		nullString(artist.ExternalID),
		nullString(artist.ImageURL),
		nullString(artist.Bio),
		artist.UpdatedAt,
		artist.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update artist: %w", err)
	}
	return expectOne(result, shared.ErrArtistNotFound, artist.ID)
}

// Delete removes an artist by ID. Fails while albums or tracks still reference it.
func (r *ArtistRepository) Delete(ctx context.Context, id string) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM artists WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete artist: %w", err)
	}
	return expectOne(result, shared.ErrArtistNotFound, id)
}

// DeleteOrphans removes every artist with no album and no track and returns how many went.
func (r *ArtistRepository) DeleteOrphans(ctx context.Context) (int, error) {
	query := `
		DELETE FROM artists
		WHERE NOT EXISTS (SELECT 1 FROM albums WHERE albums.artist_id = artists.id)
		  AND NOT EXISTS (SELECT 1 FROM tracks WHERE tracks.artist_id = artists.id)
	`
	result, err := r.q.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to delete orphan artists: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return int(n), nil
}

// List retrieves artists ordered by name.
//
// Supported criteria: "limit" (int), "offset" (int), "with_albums" (bool).
func (r *ArtistRepository) List(ctx context.Context, criteria map[string]any) ([]*models.Artist, error) {
	query := `SELECT` + artistColumns + ` FROM artists ar WHERE 1 = 1`
	args := []any{}

	if withAlbums, ok := criteria["with_albums"].(bool); ok && withAlbums {
		query += " AND EXISTS (SELECT 1 FROM albums al WHERE al.artist_id = ar.id)"
	}

	query += " ORDER BY ar.name_key ASC"
	query, args = paginate(query, args, criteria)

	return r.query(ctx, query, args...)
}

// Search finds artists whose name contains query
func (r *ArtistRepository) Search(ctx context.Context, query string, limit int) ([]*models.Artist, error) {
	sqlQuery := `SELECT` + artistColumns + `
		FROM artists ar
		WHERE ar.name LIKE ?
		ORDER BY ar.name_key ASC
		LIMIT ?
	`
	return r.query(ctx, sqlQuery, likePattern(query), limit)
}

// Count returns the number of artists
func (r *ArtistRepository) Count(ctx context.Context) (int, error) {
	return count(ctx, r.q, "SELECT COUNT(*) FROM artists")
}

func (r *ArtistRepository) query(ctx context.Context, query string, args ...any) ([]*models.Artist, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query artists: %w", err)
	}
	defer rows.Close()

	var artists []*models.Artist
	for rows.Next() {
		artist, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		artists = append(artists, artist)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return artists, nil
}

// scanOne scans a single [sql.Row], returning nil when there is no row
func (r *ArtistRepository) scanOne(row *sql.Row) (*models.Artist, error) {
	artist, err := r.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return artist, err
}

func (r *ArtistRepository) scan(row rowScanner) (*models.Artist, error) {
	var (
		artist     models.Artist
		externalID sql.NullString
		imageURL   sql.NullString
		bio        sql.NullString
	)

	err := row.Scan(&artist.ID, &artist.Name, &externalID, &imageURL, &bio, &artist.CreatedAt, &artist.UpdatedAt, &artist.AlbumCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan artist: %w", err)
	}

	artist.ExternalID = externalID.String
	artist.ImageURL = imageURL.String
	artist.Bio = bio.String
	return &artist, nil
}
