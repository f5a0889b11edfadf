package tasks

import (
	"fmt"

	"github.com/desertthunder/crate/internal/library"
	"github.com/desertthunder/crate/internal/models"
)

// ProgressUpdate represents a progress event during a download task.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Task phase
	Step    int    // Current step number within the task
	Total   int    // Total steps for the task
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data (task, scan result)
}

// Task phase enumeration
type Phase int

const (
	Queued Phase = iota
	Downloading
	Scanning
	Queueing
	Completed
	Failed
	Cancelled
)

// totalSteps is the number of phases a successful task reports.
const totalSteps = 5

func (p Phase) String() string {
	switch p {
	case Queued:
		return "queued"
	case Downloading:
		return "downloading"
	case Scanning:
		return "scanning"
	case Queueing:
		return "queueing"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return ""
	}
}

func label(task *models.DownloadTask) string {
	switch {
	case task.Artist != "" && task.Title != "":
		return fmt.Sprintf("%s - %s", task.Artist, task.Title)
	case task.Title != "":
		return task.Title
	default:
		return task.SourceURL
	}
}

func queuedUpdate(task *models.DownloadTask) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Queued,
		Step:    1,
		Total:   totalSteps,
		Message: fmt.Sprintf("Queued %s", label(task)),
		Data:    task,
	}
}

func downloadingUpdate(task *models.DownloadTask) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Downloading,
		Step:    2,
		Total:   totalSteps,
		Message: fmt.Sprintf("Downloading %s...", label(task)),
		Data:    task,
	}
}

func scanningUpdate(task *models.DownloadTask, dir string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Scanning,
		Step:    3,
		Total:   totalSteps,
		Message: fmt.Sprintf("Scanning %s...", dir),
		Data:    task,
	}
}

func queueingUpdate(task *models.DownloadTask, result *library.ScanResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Queueing,
		Step:    4,
		Total:   totalSteps,
		Message: fmt.Sprintf("Imported %d tracks (%d updated)", result.TracksAdded, result.TracksUpdated),
		Data:    result,
	}
}

func completedUpdate(task *models.DownloadTask) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Completed,
		Step:    totalSteps,
		Total:   totalSteps,
		Message: fmt.Sprintf("✓ %s", label(task)),
		Data:    task,
	}
}

func failedUpdate(task *models.DownloadTask, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Failed,
		Step:    totalSteps,
		Total:   totalSteps,
		Message: fmt.Sprintf("✗ %s: %v", label(task), err),
		Data:    task,
	}
}

func cancelledUpdate(task *models.DownloadTask) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Cancelled,
		Step:    totalSteps,
		Total:   totalSteps,
		Message: fmt.Sprintf("Cancelled %s", label(task)),
		Data:    task,
	}
}
