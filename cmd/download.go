package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/desertthunder/crate/internal/formatter"
	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
	"github.com/desertthunder/crate/internal/tasks"
	"github.com/urfave/cli/v3"
)

// DownloadGet submits an album URL and waits for it to be downloaded,
// imported and queued.
func (r *Runner) DownloadGet(ctx context.Context, cmd *cli.Command) error {
	url := strings.TrimSpace(cmd.StringArg("url"))
	if url == "" {
		return fmt.Errorf("%w: album URL", shared.ErrMissingArgument)
	}

	stop, err := r.startDownloads(ctx, cmd)
	if err != nil {
		return err
	}

	task, err := r.tasks.Submit(ctx, tasks.Request{
		URL:        url,
		Title:      cmd.String("title"),
		Artist:     cmd.String("artist"),
		PlayNow:    cmd.Bool("play"),
		PlayNext:   cmd.Bool("next"),
		AddToQueue: cmd.Bool("queue"),
	})
	if err != nil {
		stop()
		return err
	}
	r.logger.Info("download submitted", "task", task.ID, "url", url)

	return r.awaitTask(ctx, cmd, task.ID, stop)
}

// DownloadRetry moves a failed task back to pending and waits for it.
func (r *Runner) DownloadRetry(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: task id", shared.ErrMissingArgument)
	}

	stop, err := r.startDownloads(ctx, cmd)
	if err != nil {
		return err
	}

	if _, err := r.tasks.Retry(ctx, id); err != nil {
		stop()
		return err
	}
	return r.awaitTask(ctx, cmd, id, stop)
}

// DownloadResume runs every task left pending by an earlier process.
func (r *Runner) DownloadResume(ctx context.Context, cmd *cli.Command) error {
	stop, err := r.startDownloads(ctx, cmd)
	if err != nil {
		return err
	}

	pending, err := r.tasks.List(ctx, models.StatusPending, 0)
	if err != nil {
		stop()
		return err
	}
	if _, err := r.tasks.Resume(ctx); err != nil {
		stop()
		return err
	}

	var failed int
	for _, task := range pending {
		done, err := r.tasks.Wait(ctx, task.ID)
		if err != nil {
			stop()
			return err
		}
		if done.Status == models.StatusFailed {
			failed++
		}
	}
	stop()

	r.writePlainln("Resumed %d tasks, %d failed", len(pending), failed)
	return nil
}

// DownloadList lists tasks, newest first.
func (r *Runner) DownloadList(ctx context.Context, cmd *cli.Command) error {
	if err := r.openTasks(ctx, nil); err != nil {
		return err
	}

	status := models.DownloadStatus(cmd.String("status"))
	if status != "" && !validStatus(status) {
		return fmt.Errorf("%w: unknown status %q", shared.ErrInvalidArgument, status)
	}

	list, err := r.tasks.List(ctx, status, cmd.Int("limit"))
	if err != nil {
		return err
	}
	return r.render(cmd, list, formatter.TasksTable(list))
}

// DownloadCancel cancels a task that has not started.
func (r *Runner) DownloadCancel(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: task id", shared.ErrMissingArgument)
	}
	if err := r.openTasks(ctx, nil); err != nil {
		return err
	}

	if _, err := r.tasks.Cancel(ctx, id); err != nil {
		return err
	}
	return r.writePlain("%s Cancelled %s\n", formatter.Styles.OK("✓"), id)
}

// DownloadCleanup deletes finished tasks older than the retention period.
func (r *Runner) DownloadCleanup(ctx context.Context, cmd *cli.Command) error {
	days := cmd.Int("days")
	if days == 0 {
		days = r.config.Downloads.RetentionDays
	}
	if err := r.openTasks(ctx, nil); err != nil {
		return err
	}

	removed, err := r.tasks.CleanupOld(ctx, days)
	if err != nil {
		return err
	}
	return r.writePlain("%s Removed %d tasks older than %d days\n", formatter.Styles.OK("✓"), removed, days)
}

// startDownloads opens the orchestrator with running workers. Progress is
// printed unless --json is set. The returned stop function shuts the workers
// down and flushes the printer; it is safe to call more than once.
func (r *Runner) startDownloads(ctx context.Context, cmd *cli.Command) (func(), error) {
	progress := make(chan tasks.ProgressUpdate, 16)
	quiet := cmd.Bool("json")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range progress {
			if quiet {
				continue
			}
			r.printProgress(update)
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			if r.tasks != nil {
				r.tasks.Close()
			}
			close(progress)
			wg.Wait()
		})
	}

	if err := r.openTasks(ctx, progress); err != nil {
		stop()
		return nil, err
	}
	return stop, nil
}

func (r *Runner) printProgress(update tasks.ProgressUpdate) {
	switch update.Phase {
	case tasks.Failed:
		r.writePlain("%s %s\n", formatter.Styles.Err("✗"), update.Message)
	case tasks.Cancelled:
		r.writePlain("%s %s\n", formatter.Styles.Warn("•"), update.Message)
	case tasks.Completed:
		r.writePlain("%s %s\n", formatter.Styles.OK("✓"), update.Message)
	default:
		r.writePlain("[%d/%d] %s\n", update.Step, update.Total, update.Message)
	}
}

func (r *Runner) awaitTask(ctx context.Context, cmd *cli.Command, id string, stop func()) error {
	task, err := r.tasks.Wait(ctx, id)
	stop()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(task, cmd.Bool("pretty"))
	}

	switch task.Status {
	case models.StatusCompleted:
		r.writePlainHeader("Download Complete")
		r.writePlain("Task:   %s\n", task.ID)
		r.writePlain("Folder: %s\n", task.OutputDir)
		if task.AlbumID != "" {
			r.writePlain("Album:  %s\n", task.AlbumID)
		}
		return nil
	case models.StatusFailed:
		return fmt.Errorf("%w: %s", shared.ErrDownloadFailed, task.Error)
	default:
		r.writePlain("Task %s is %s\n", task.ID, task.Status)
		return nil
	}
}

func validStatus(s models.DownloadStatus) bool {
	switch s {
	case models.StatusPending, models.StatusDownloading, models.StatusCompleted, models.StatusFailed, models.StatusCancelled:
		return true
	}
	return false
}
