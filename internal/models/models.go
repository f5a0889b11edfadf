package models

import (
	"fmt"
	"strings"
	"time"
)

// Artist is a performer known to the catalog.
type Artist struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	ExternalID string    `json:"external_id,omitempty"`
	ImageURL   string    `json:"image_url,omitempty"`
	Bio        string    `json:"bio,omitempty"`
	AlbumCount int       `json:"album_count,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Validate checks the required fields.
func (a *Artist) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("artist name is required")
	}
	return nil
}

// Album groups tracks of a release. Downloaded reports that at least one track
// is believed to exist on disk; the verifier keeps that true.
type Album struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	ArtistID     string    `json:"artist_id"`
	ArtistName   string    `json:"artist_name,omitempty"`
	ExternalID   string    `json:"external_id,omitempty"`
	ExternalURL  string    `json:"external_url,omitempty"`
	CoverURL     string    `json:"cover_url,omitempty"`
	CoverLocal   string    `json:"cover_local,omitempty"`
	ReleaseDate  string    `json:"release_date,omitempty"`
	Genre        string    `json:"genre,omitempty"`
	TrackCount   int       `json:"track_count"`
	Duration     int       `json:"duration"`
	Downloaded   bool      `json:"downloaded"`
	DownloadPath string    `json:"download_path,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Validate checks the required fields.
func (a *Album) Validate() error {
	if strings.TrimSpace(a.Title) == "" {
		return fmt.Errorf("album title is required")
	}
	if a.ArtistID == "" {
		return fmt.Errorf("album artist is required")
	}
	return nil
}

// Track is a single recording. A downloaded track always has a FilePath; the
// reverse does not hold, a stale path may remain on a demoted track.
type Track struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	ArtistID    string     `json:"artist_id"`
	ArtistName  string     `json:"artist_name,omitempty"`
	AlbumID     string     `json:"album_id"`
	AlbumTitle  string     `json:"album_title,omitempty"`
	ExternalID  string     `json:"external_id,omitempty"`
	TrackNumber int        `json:"track_number"`
	DiscNumber  int        `json:"disc_number"`
	Duration    int        `json:"duration"`
	FilePath    string     `json:"file_path,omitempty"`
	Downloaded  bool       `json:"downloaded"`
	PlayCount   int        `json:"play_count"`
	LastPlayed  *time.Time `json:"last_played,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Validate checks the required fields and the downloaded/path invariant.
func (t *Track) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("track title is required")
	}
	if t.AlbumID == "" || t.ArtistID == "" {
		return fmt.Errorf("track album and artist are required")
	}
	if t.Downloaded && t.FilePath == "" {
		return fmt.Errorf("downloaded track requires a file path")
	}
	return nil
}

// QueueItem is one position in the playback queue.
//
// Track details are joined in when the queue is listed; they are not stored.
type QueueItem struct {
	ID        string    `json:"id"`
	TrackID   string    `json:"track_id"`
	Position  int       `json:"position"`
	IsPlaying bool      `json:"is_playing"`
	AddedAt   time.Time `json:"added_at"`
	Track     *Track    `json:"track,omitempty"`
}

// PlayHistory records a single play. TrackID is empty once the track was removed.
type PlayHistory struct {
	ID       string    `json:"id"`
	TrackID  string    `json:"track_id,omitempty"`
	PlayedAt time.Time `json:"played_at"`
	Duration int       `json:"duration,omitempty"`
	Track    *Track    `json:"track,omitempty"`
}

// DownloadStatus is the lifecycle state of a [DownloadTask].
type DownloadStatus string

const (
	StatusPending     DownloadStatus = "pending"
	StatusDownloading DownloadStatus = "downloading"
	StatusCompleted   DownloadStatus = "completed"
	StatusFailed      DownloadStatus = "failed"
	StatusCancelled   DownloadStatus = "cancelled"
)

// Terminal reports whether no further transition happens without a retry.
func (s DownloadStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Active reports whether a task with this status blocks a duplicate request for its URL.
func (s DownloadStatus) Active() bool {
	return s == StatusPending || s == StatusDownloading
}

// DownloadTask tracks one download request from submission to catalog import.
type DownloadTask struct {
	ID          string         `json:"id"`
	SourceURL   string         `json:"source_url"`
	Title       string         `json:"title,omitempty"`
	Artist      string         `json:"artist,omitempty"`
	Status      DownloadStatus `json:"status"`
	Progress    int            `json:"progress"`
	Error       string         `json:"error,omitempty"`
	OutputDir   string         `json:"output_dir,omitempty"`
	AlbumID     string         `json:"album_id,omitempty"`
	PlayNow     bool           `json:"play_now"`
	PlayNext    bool           `json:"play_next"`
	AddToQueue  bool           `json:"add_to_queue"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// Validate checks the required fields.
func (d *DownloadTask) Validate() error {
	if strings.TrimSpace(d.SourceURL) == "" {
		return fmt.Errorf("download source url is required")
	}
	switch d.Status {
	case StatusPending, StatusDownloading, StatusCompleted, StatusFailed, StatusCancelled:
		return nil
	default:
		return fmt.Errorf("unknown download status %q", d.Status)
	}
}

// Metadata is the best-effort description of an audio file.
//
// Zero values mean "unknown": TrackNumber 0, Duration 0, empty strings.
type Metadata struct {
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	AlbumArtist string `json:"album_artist,omitempty"`
	Album       string `json:"album"`
	Genre       string `json:"genre,omitempty"`
	Year        string `json:"year,omitempty"`
	TrackNumber int    `json:"track_number"`
	DiscNumber  int    `json:"disc_number"`
	Duration    int    `json:"duration"`
	FromTags    bool   `json:"from_tags"`
}

// ReleaseArtist is the artist an album is filed under.
func (m *Metadata) ReleaseArtist() string {
	if m.AlbumArtist != "" {
		return m.AlbumArtist
	}
	return m.Artist
}
