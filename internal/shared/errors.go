package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Catalog errors
	ErrArtistNotFound    = fmt.Errorf("artist not found")
	ErrAlbumNotFound     = fmt.Errorf("album not found")
	ErrTrackNotFound     = fmt.Errorf("track not found")
	ErrQueueItemNotFound = fmt.Errorf("queue item not found")
	ErrTaskNotFound      = fmt.Errorf("download task not found")
	ErrScanLocked        = fmt.Errorf("another scan is running")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrDownloadFailed     = fmt.Errorf("download failed")
	ErrTimeout            = fmt.Errorf("operation timed out")

	// Input validation errors
	ErrInvalidInput      = fmt.Errorf("invalid input")
	ErrMissingArgument   = fmt.Errorf("missing required argument")
	ErrInvalidArgument   = fmt.Errorf("invalid argument")
	ErrInvalidTransition = fmt.Errorf("invalid status transition")
)
