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

const downloadColumns = `
	id, source_url, title, artist, status, progress, error_message, output_dir, album_id,
	play_now, play_next, add_to_queue, created_at, started_at, completed_at
	FROM download_tasks`

// DownloadTaskRepository persists [models.DownloadTask] rows.
type DownloadTaskRepository struct {
	q shared.Querier
}

// NewDownloadTaskRepository creates a new DownloadTaskRepository on the given database or transaction
func NewDownloadTaskRepository(q shared.Querier) *DownloadTaskRepository {
	return &DownloadTaskRepository{q: q}
}

// Create inserts a new [models.DownloadTask] with a generated ID and pending status
func (r *DownloadTaskRepository) Create(ctx context.Context, task *models.DownloadTask) error {
	if task.Status == "" {
		task.Status = models.StatusPending
	}
	if err := task.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	task.ID = shared.GenerateID()
	task.CreatedAt = now()

	query := `
		INSERT INTO download_tasks (
			id, source_url, title, artist, status, progress, error_message, output_dir, album_id,
			play_now, play_next, add_to_queue, created_at, started_at, completed_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.q.ExecContext(ctx, query,
		task.ID,
		task.SourceURL,
		nullString(task.Title),
		nullString(task.Artist),
		string(task.Status),
		task.Progress,
		nullString(task.Error),
		nullString(task.OutputDir),
		nullString(task.AlbumID),
		task.PlayNow,
		task.PlayNext,
		task.AddToQueue,
		task.CreatedAt,
		nullTime(task.StartedAt),
		nullTime(task.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert download task: %w", err)
	}
	return nil
}

// Get retrieves a task by ID
func (r *DownloadTaskRepository) Get(ctx context.Context, id string) (*models.DownloadTask, error) {
	task, err := r.scanOne(r.q.QueryRowContext(ctx, `SELECT`+downloadColumns+` WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrTaskNotFound, id)
	}
	return task, nil
}

// FindActiveByURL returns the pending or downloading task for url, or nil
func (r *DownloadTaskRepository) FindActiveByURL(ctx context.Context, url string) (*models.DownloadTask, error) {
	query := `SELECT` + downloadColumns + `
		WHERE source_url = ? AND status IN (?, ?)
		ORDER BY created_at ASC
		LIMIT 1
	`
	return r.scanOne(r.q.QueryRowContext(ctx, query, url, string(models.StatusPending), string(models.StatusDownloading)))
}

// Update writes every mutable column of task
func (r *DownloadTaskRepository) Update(ctx context.Context, task *models.DownloadTask) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		UPDATE download_tasks
		SET status = ?, progress = ?, error_message = ?, output_dir = ?, album_id = ?,
		    started_at = ?, completed_at = ?
		WHERE id = ?
	`
	result, err := r.q.ExecContext(ctx, query,
		string(task.Status),
		task.Progress,
		nullString(task.Error),
		nullString(task.OutputDir),
		nullString(task.AlbumID),
		nullTime(task.StartedAt),
		nullTime(task.CompletedAt),
		task.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update download task: %w", err)
	}
	return expectOne(result, shared.ErrTaskNotFound, task.ID)
}

// List retrieves tasks newest first.
//
// Supported criteria: "status" ([models.DownloadStatus]), "limit" (int), "offset" (int).
func (r *DownloadTaskRepository) List(ctx context.Context, criteria map[string]any) ([]*models.DownloadTask, error) {
	query := `SELECT` + downloadColumns + ` WHERE 1 = 1`
	args := []any{}

	if status, ok := criteria["status"].(models.DownloadStatus); ok && status != "" {
		query += " AND status = ?"
		args = append(args, string(status))
	}

	query += " ORDER BY created_at DESC"
	query, args = paginate(query, args, criteria)

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query download tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.DownloadTask
	for rows.Next() {
		task, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return tasks, nil
}

// DeleteFinishedBefore removes completed, failed and cancelled tasks created before cutoff
func (r *DownloadTaskRepository) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	query := `DELETE FROM download_tasks WHERE status IN (?, ?, ?) AND created_at < ?`
	result, err := r.q.ExecContext(ctx, query,
		string(models.StatusCompleted),
		string(models.StatusFailed),
		string(models.StatusCancelled),
		cutoff.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old download tasks: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return int(n), nil
}

// scanOne scans a single [sql.Row], returning nil when there is no row
func (r *DownloadTaskRepository) scanOne(row *sql.Row) (*models.DownloadTask, error) {
	task, err := r.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return task, err
}

func (r *DownloadTaskRepository) scan(row rowScanner) (*models.DownloadTask, error) {
	var (
		task                     models.DownloadTask
		status                   string
		title, artist            sql.NullString
		errMsg, outputDir, album sql.NullString
		startedAt, completedAt   sql.NullTime
	)

	err := row.Scan(
		&task.ID, &task.SourceURL, &title, &artist, &status, &task.Progress, &errMsg, &outputDir, &album,
		&task.PlayNow, &task.PlayNext, &task.AddToQueue, &task.CreatedAt, &startedAt, &completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan download task: %w", err)
	}

	task.Status = models.DownloadStatus(status)
	task.Title = title.String
	task.Artist = artist.String
	task.Error = errMsg.String
	task.OutputDir = outputDir.String
	task.AlbumID = album.String
	task.StartedAt = timePtr(startedAt)
	task.CompletedAt = timePtr(completedAt)
	return &task, nil
}
