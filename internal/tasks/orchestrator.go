package tasks

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crate/internal/catalog"
	"github.com/desertthunder/crate/internal/library"
	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/queue"
	"github.com/desertthunder/crate/internal/repositories"
	"github.com/desertthunder/crate/internal/services"
	"github.com/desertthunder/crate/internal/shared"
	"golang.org/x/time/rate"
)

const (
	defaultWorkers   = 2
	defaultRateLimit = 1.0
	defaultBacklog   = 64
	pollInterval     = 500 * time.Millisecond
)

// Request asks for one release to be downloaded and imported.
type Request struct {
	URL        string
	Title      string
	Artist     string
	PlayNow    bool
	PlayNext   bool
	AddToQueue bool
}

// OrchestratorOpts configures an [Orchestrator].
type OrchestratorOpts struct {
	DestDir   string                // Download folder handed to the executor
	Workers   int                   // Concurrent downloads (default: 2)
	RateLimit float64               // Task starts per second (default: 1)
	Backlog   int                   // Buffered jobs before Submit blocks (default: 64)
	Progress  chan<- ProgressUpdate // Optional, never blocks
	Logger    *log.Logger
}

// Orchestrator runs download tasks on a worker pool.
type Orchestrator struct {
	store      *catalog.Store
	tasks      *repositories.DownloadTaskRepository
	scanner    *library.Scanner
	queue      *queue.Engine
	downloader services.Downloader
	destDir    string
	workers    int
	limiter    *rate.Limiter
	progress   chan<- ProgressUpdate
	logger     *log.Logger

	jobs chan string
	quit chan struct{}
	wg   sync.WaitGroup

	mu      sync.Mutex // guards task status changes, done and the started/closed flags
	done    map[string]chan struct{}
	started bool
	closed  bool

	completion sync.Mutex
}

// NewOrchestrator creates an Orchestrator. Workers do not run until [Orchestrator.Start].
func NewOrchestrator(
	store *catalog.Store,
	scanner *library.Scanner,
	engine *queue.Engine,
	downloader services.Downloader,
	opts OrchestratorOpts,
) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultRateLimit
	}
	if opts.Backlog <= 0 {
		opts.Backlog = defaultBacklog
	}

	return &Orchestrator{
		store:      store,
		tasks:      repositories.NewDownloadTaskRepository(store.DB()),
		scanner:    scanner,
		queue:      engine,
		downloader: downloader,
		destDir:    opts.DestDir,
		workers:    opts.Workers,
		limiter:    rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
		progress:   opts.Progress,
		logger:     shared.WithLogger(logger, "component", "downloads"),
		jobs:       make(chan string, opts.Backlog),
		quit:       make(chan struct{}),
		done:       make(map[string]chan struct{}),
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (o *Orchestrator) sendProgress(update ProgressUpdate) {
	if o.progress == nil {
		return
	}
	select {
	case o.progress <- update:
	default:
	}
}

// Start launches the workers. Tasks run with ctx, so cancelling it stops
// in-flight downloads.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.started || o.closed {
		return
	}
	o.started = true

	for i := 0; i < o.workers; i++ {
		o.wg.Add(1)
		go o.worker(ctx)
	}
	o.logger.Debug("workers started", "count", o.workers)
}

// Close stops the workers after their current task. Jobs still buffered stay
// pending in the database and can be picked up again with [Orchestrator.Resume].
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	close(o.quit)
	o.mu.Unlock()

	o.wg.Wait()
}

// Submit creates a pending task for req and enqueues it. While a task for the
// same URL is pending or downloading, that task is returned instead.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (*models.DownloadTask, error) {
	url := strings.TrimSpace(req.URL)
	if url == "" {
		return nil, fmt.Errorf("%w: download url", shared.ErrMissingArgument)
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: orchestrator closed", shared.ErrServiceUnavailable)
	}

	existing, err := o.tasks.FindActiveByURL(ctx, url)
	if err != nil {
		o.mu.Unlock()
		return nil, err
	}
	if existing != nil {
		o.mu.Unlock()
		o.logger.Info("download already in progress", "task", existing.ID, "url", url)
		return existing, nil
	}

	task := &models.DownloadTask{
		SourceURL:  url,
		Title:      req.Title,
		Artist:     req.Artist,
		PlayNow:    req.PlayNow,
		PlayNext:   req.PlayNext,
		AddToQueue: req.AddToQueue,
	}
	if err := o.tasks.Create(ctx, task); err != nil {
		o.mu.Unlock()
		return nil, fmt.Errorf("failed to create download task: %w", err)
	}
	o.done[task.ID] = make(chan struct{})
	o.mu.Unlock()

	o.logger.Info("download queued", "task", task.ID, "url", url)
	o.sendProgress(queuedUpdate(task))

	if err := o.enqueue(ctx, task.ID); err != nil {
		return task, err
	}
	return task, nil
}

func (o *Orchestrator) enqueue(ctx context.Context, id string) error {
	select {
	case o.jobs <- id:
		return nil
	case <-o.quit:
		return fmt.Errorf("%w: orchestrator closed", shared.ErrServiceUnavailable)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Resume enqueues every pending task found in the database that this
// orchestrator is not already tracking.
func (o *Orchestrator) Resume(ctx context.Context) (int, error) {
	pending, err := o.tasks.List(ctx, map[string]any{"status": models.StatusPending})
	if err != nil {
		return 0, err
	}

	resumed := 0
	for i := len(pending) - 1; i >= 0; i-- {
		task := pending[i]
		o.mu.Lock()
		_, tracked := o.done[task.ID]
		if !tracked {
			o.done[task.ID] = make(chan struct{})
		}
		o.mu.Unlock()
		if tracked {
			continue
		}
		if err := o.enqueue(ctx, task.ID); err != nil {
			return resumed, err
		}
		resumed++
	}
	return resumed, nil
}

func (o *Orchestrator) worker(ctx context.Context) {
	defer o.wg.Done()

	for {
		select {
		case <-o.quit:
			return
		case <-ctx.Done():
			return
		case id := <-o.jobs:
			if err := o.limiter.Wait(ctx); err != nil {
				return
			}
			o.execute(ctx, id)
		}
	}
}

// execute runs one task. Errors end up on the task row, never returned.
func (o *Orchestrator) execute(ctx context.Context, id string) {
	defer o.finish(id)

	task, err := o.claim(ctx, id)
	if err != nil {
		o.logger.Error("failed to start download", "task", id, "error", err)
		return
	}
	if task == nil {
		return
	}
	o.sendProgress(downloadingUpdate(task))

	result, err := o.downloader.Download(ctx, task.SourceURL, o.destDir)
	if err != nil {
		o.fail(ctx, task, err)
		return
	}

	o.completion.Lock()
	defer o.completion.Unlock()

	if err := o.complete(ctx, task, result); err != nil {
		o.fail(ctx, task, err)
	}
}

// claim moves a pending task to downloading. A task that is no longer
// pending (cancelled meanwhile) yields nil.
func (o *Orchestrator) claim(ctx context.Context, id string) (*models.DownloadTask, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	task, err := o.tasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Status != models.StatusPending {
		o.logger.Debug("skipping task", "task", id, "status", task.Status)
		return nil, nil
	}

	started := time.Now().UTC()
	task.StartedAt = &started
	task.Progress = 10
	if err := o.transition(ctx, task, models.StatusDownloading); err != nil {
		return nil, err
	}
	return task, nil
}

// complete imports the download and applies the queue change. Called with
// the completion lock held.
func (o *Orchestrator) complete(ctx context.Context, task *models.DownloadTask, download *services.DownloadResult) error {
	task.OutputDir = download.OutputDir
	task.Progress = 60
	if err := o.tasks.Update(ctx, task); err != nil {
		return err
	}
	o.sendProgress(scanningUpdate(task, download.OutputDir))

	// A download that created no album folder reports the whole download
	// folder. Scanning it still picks the files up, but the release identity
	// cannot be pinned to any one album there.
	opts := library.ScanOptions{Wait: true}
	wholeRoot := o.isDestRoot(download.OutputDir)
	if wholeRoot {
		o.logger.Warn("download produced no album folder, rescanning download folder",
			"task", task.ID, "dir", download.OutputDir)
	} else {
		opts.ExternalAlbumID = services.AlbumIDFromURL(task.SourceURL)
		opts.ExternalAlbumURL = task.SourceURL
	}

	scan, err := o.scanner.Scan(ctx, download.OutputDir, opts)
	if err != nil {
		return fmt.Errorf("failed to scan download: %w", err)
	}
	switch {
	case !wholeRoot && len(scan.AlbumIDs) > 0:
		task.AlbumID = scan.AlbumIDs[0]
	case wholeRoot:
		task.AlbumID = o.knownAlbum(ctx, task)
	}
	task.Progress = 90
	o.sendProgress(queueingUpdate(task, scan))

	if err := o.applyQueue(ctx, task); err != nil {
		o.logger.Warn("download imported but queue update failed", "task", task.ID, "error", err)
	}

	completed := time.Now().UTC()
	task.CompletedAt = &completed
	task.Progress = 100
	if err := o.transition(ctx, task, models.StatusCompleted); err != nil {
		return err
	}

	o.logger.Info("download completed", "task", task.ID, "album", task.AlbumID,
		"tracks", scan.TracksAdded, "errors", scan.Errors)
	o.sendProgress(completedUpdate(task))
	return nil
}

// isDestRoot reports whether dir is the download folder itself
func (o *Orchestrator) isDestRoot(dir string) bool {
	if o.destDir == "" {
		return false
	}
	return filepath.Clean(dir) == filepath.Clean(o.destDir)
}

// knownAlbum looks up the album a task refers to by its external id. Returns
// "" when the catalog holds no album with that id.
func (o *Orchestrator) knownAlbum(ctx context.Context, task *models.DownloadTask) string {
	externalID := services.AlbumIDFromURL(task.SourceURL)
	if externalID == "" {
		return ""
	}
	album, err := o.store.FindAlbum(ctx, externalID, "", "")
	if err != nil {
		o.logger.Warn("failed to look up downloaded album", "task", task.ID, "error", err)
		return ""
	}
	if album == nil {
		return ""
	}
	return album.ID
}

func (o *Orchestrator) applyQueue(ctx context.Context, task *models.DownloadTask) error {
	if task.AlbumID == "" || o.queue == nil {
		return nil
	}

	switch {
	case task.PlayNow:
		_, err := o.queue.PlayAlbumByID(ctx, task.AlbumID, 1)
		return err
	case task.PlayNext, task.AddToQueue:
		tracks, err := o.store.AlbumTracks(ctx, task.AlbumID)
		if err != nil {
			return err
		}
		if len(tracks) == 0 {
			return nil
		}
		ids := make([]string, 0, len(tracks))
		for _, t := range tracks {
			ids = append(ids, t.ID)
		}
		_, err = o.queue.AddAll(ctx, ids, queue.AddOptions{PlayNext: task.PlayNext})
		return err
	default:
		return nil
	}
}

func (o *Orchestrator) fail(ctx context.Context, task *models.DownloadTask, cause error) {
	completed := time.Now().UTC()
	task.Error = cause.Error()
	task.CompletedAt = &completed

	o.mu.Lock()
	err := o.transition(context.WithoutCancel(ctx), task, models.StatusFailed)
	o.mu.Unlock()
	if err != nil {
		o.logger.Error("failed to record download failure", "task", task.ID, "error", err)
	}

	o.logger.Error("download failed", "task", task.ID, "url", task.SourceURL, "error", cause)
	o.sendProgress(failedUpdate(task, cause))
}

// finish releases everyone waiting on id.
func (o *Orchestrator) finish(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if ch, ok := o.done[id]; ok {
		close(ch)
		delete(o.done, id)
	}
}

// transition validates and persists a status change.
func (o *Orchestrator) transition(ctx context.Context, task *models.DownloadTask, to models.DownloadStatus) error {
	if !CanTransition(task.Status, to) {
		return fmt.Errorf("%w: %s → %s", shared.ErrInvalidTransition, task.Status, to)
	}
	task.Status = to
	return o.tasks.Update(ctx, task)
}

// CanTransition reports whether a task may move from one status to another.
func CanTransition(from, to models.DownloadStatus) bool {
	switch from {
	case models.StatusPending:
		return to == models.StatusDownloading || to == models.StatusCancelled
	case models.StatusDownloading:
		return to == models.StatusCompleted || to == models.StatusFailed
	case models.StatusFailed:
		return to == models.StatusPending
	default:
		return false
	}
}

// Wait blocks until the task reaches a terminal state or ctx is done.
// Tasks owned by another process are polled.
func (o *Orchestrator) Wait(ctx context.Context, id string) (*models.DownloadTask, error) {
	o.mu.Lock()
	ch := o.done[id]
	o.mu.Unlock()

	if ch != nil {
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		task, err := o.tasks.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if task.Status.Terminal() {
			return task, nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return task, ctx.Err()
		}
	}
}

// Cancel marks a pending task cancelled. Downloads already running cannot be cancelled.
func (o *Orchestrator) Cancel(ctx context.Context, id string) (*models.DownloadTask, error) {
	o.mu.Lock()
	task, err := o.tasks.Get(ctx, id)
	if err != nil {
		o.mu.Unlock()
		return nil, err
	}

	completed := time.Now().UTC()
	task.CompletedAt = &completed
	if err := o.transition(ctx, task, models.StatusCancelled); err != nil {
		o.mu.Unlock()
		return nil, fmt.Errorf("cannot cancel %s task: %w", task.Status, err)
	}
	o.mu.Unlock()

	o.finish(id)
	o.logger.Info("download cancelled", "task", id)
	o.sendProgress(cancelledUpdate(task))
	return task, nil
}

// Retry puts a failed task back to pending and enqueues it.
func (o *Orchestrator) Retry(ctx context.Context, id string) (*models.DownloadTask, error) {
	o.mu.Lock()
	task, err := o.tasks.Get(ctx, id)
	if err != nil {
		o.mu.Unlock()
		return nil, err
	}

	active, err := o.tasks.FindActiveByURL(ctx, task.SourceURL)
	if err != nil {
		o.mu.Unlock()
		return nil, err
	}
	if active != nil {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: task %s is already downloading %s", shared.ErrInvalidTransition, active.ID, task.SourceURL)
	}

	task.Error = ""
	task.Progress = 0
	task.StartedAt = nil
	task.CompletedAt = nil
	if err := o.transition(ctx, task, models.StatusPending); err != nil {
		o.mu.Unlock()
		return nil, fmt.Errorf("cannot retry %s task: %w", task.Status, err)
	}
	o.done[task.ID] = make(chan struct{})
	o.mu.Unlock()

	o.logger.Info("download retried", "task", id)
	o.sendProgress(queuedUpdate(task))
	if err := o.enqueue(ctx, task.ID); err != nil {
		return task, err
	}
	return task, nil
}

// Get returns a task by id.
func (o *Orchestrator) Get(ctx context.Context, id string) (*models.DownloadTask, error) {
	return o.tasks.Get(ctx, id)
}

// List returns tasks newest first, optionally filtered by status. A limit of
// 0 returns every task.
func (o *Orchestrator) List(ctx context.Context, status models.DownloadStatus, limit int) ([]*models.DownloadTask, error) {
	criteria := map[string]any{}
	if status != "" {
		criteria["status"] = status
	}
	if limit > 0 {
		criteria["limit"] = limit
	}
	tasks, err := o.tasks.List(ctx, criteria)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []*models.DownloadTask{}
	}
	return tasks, nil
}

// CleanupOld deletes terminal tasks created more than days ago.
func (o *Orchestrator) CleanupOld(ctx context.Context, days int) (int, error) {
	if days <= 0 {
		return 0, fmt.Errorf("%w: days must be positive", shared.ErrInvalidArgument)
	}

	cutoff := time.Now().AddDate(0, 0, -days)
	n, err := o.tasks.DeleteFinishedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		o.logger.Info("removed old downloads", "count", n, "older_than_days", days)
	}
	return n, nil
}
