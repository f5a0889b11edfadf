package library

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crate/internal/catalog"
	"github.com/desertthunder/crate/internal/metadata"
	"github.com/desertthunder/crate/internal/models"
	"github.com/desertthunder/crate/internal/shared"
	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"
)

// coverNames are checked case-insensitively, in order.
var coverNames = []string{"cover.jpg", "cover.jpeg", "cover.png", "folder.jpg", "folder.png", "front.jpg", "front.png"}

// lockRetryDelay is how often a waiting scan polls the lock file.
const lockRetryDelay = 250 * time.Millisecond

// ScanOptions carries what a download already knows about the album it produced.
type ScanOptions struct {
	// ExternalAlbumID and ExternalAlbumURL are recorded on the scanned album
	// only when the scan touches exactly one album.
	ExternalAlbumID  string
	ExternalAlbumURL string
	// Wait blocks until a running scan finishes instead of failing with
	// [shared.ErrScanLocked].
	Wait bool
}

// ScanResult counts what a scan changed.
type ScanResult struct {
	AlbumsAdded   int      `json:"albums_added"`
	TracksAdded   int      `json:"tracks_added"`
	TracksUpdated int      `json:"tracks_updated"`
	Errors        int      `json:"errors"`
	AlbumIDs      []string `json:"album_ids,omitempty"`
}

// Add accumulates other into r
func (r *ScanResult) Add(other *ScanResult) {
	r.AlbumsAdded += other.AlbumsAdded
	r.TracksAdded += other.TracksAdded
	r.TracksUpdated += other.TracksUpdated
	r.Errors += other.Errors
	r.AlbumIDs = append(r.AlbumIDs, other.AlbumIDs...)
}

// ScannerOpts configures a [Scanner].
type ScannerOpts struct {
	Workers   int
	LockPath  string
	Extractor *metadata.Extractor
	Logger    *log.Logger
}

// Scanner imports audio files into the catalog. Scans never overlap: a
// one-slot semaphore serializes them within the process and an optional lock
// file across processes.
type Scanner struct {
	store     *catalog.Store
	extractor *metadata.Extractor
	logger    *log.Logger
	workers   int
	lockPath  string
	sem       chan struct{}
}

// NewScanner creates a Scanner writing to store
func NewScanner(store *catalog.Store, opts ScannerOpts) *Scanner {
	logger := opts.Logger
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	extractor := opts.Extractor
	if extractor == nil {
		extractor = metadata.NewExtractor(logger)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	return &Scanner{
		store:     store,
		extractor: extractor,
		logger:    shared.WithLogger(logger, "component", "scanner"),
		workers:   workers,
		lockPath:  opts.LockPath,
		sem:       make(chan struct{}, 1),
	}
}

// audioFile is a file found by the walk with the cover art of its directory.
type audioFile struct {
	path  string
	dir   string
	cover string
	meta  *models.Metadata
	err   error
}

// Scan imports every supported file under root.
//
// Only an unreadable root or a held scan lock fail the call; per-file problems
// are counted in [ScanResult.Errors]. With opts.Wait a held lock is waited for
// until ctx is done.
func (s *Scanner) Scan(ctx context.Context, root string, opts ScanOptions) (*ScanResult, error) {
	unlock, err := s.lock(ctx, opts.Wait)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return s.scan(ctx, root, opts)
}

// ScanAll scans every root in order and sums the results. Roots that do not
// exist yet are skipped.
func (s *Scanner) ScanAll(ctx context.Context, roots []string) (*ScanResult, error) {
	unlock, err := s.lock(ctx, false)
	if err != nil {
		return nil, err
	}
	defer unlock()

	total := &ScanResult{}
	for _, root := range roots {
		if _, err := os.Stat(root); os.IsNotExist(err) {
			s.logger.Warn("storage root does not exist", "root", root)
			continue
		}
		result, err := s.scan(ctx, root, ScanOptions{})
		if err != nil {
			return total, err
		}
		total.Add(result)
	}
	return total, nil
}

func (s *Scanner) lock(ctx context.Context, wait bool) (func(), error) {
	if wait {
		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to acquire scan lock: %w", ctx.Err())
		}
	} else {
		select {
		case s.sem <- struct{}{}:
		default:
			return nil, fmt.Errorf("%w: a scan is already running", shared.ErrScanLocked)
		}
	}
	release := func() { <-s.sem }

	if s.lockPath == "" {
		return release, nil
	}

	if err := os.MkdirAll(filepath.Dir(s.lockPath), 0755); err != nil {
		release()
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	fl := flock.New(s.lockPath)
	var (
		ok  bool
		err error
	)
	if wait {
		s.logger.Debug("waiting for scan lock", "path", s.lockPath)
		ok, err = fl.TryLockContext(ctx, lockRetryDelay)
	} else {
		ok, err = fl.TryLock()
	}
	if err != nil {
		release()
		return nil, fmt.Errorf("failed to acquire scan lock: %w", err)
	}
	if !ok {
		release()
		return nil, fmt.Errorf("%w: held by another process (%s)", shared.ErrScanLocked, s.lockPath)
	}

	return func() {
		if err := fl.Unlock(); err != nil {
			s.logger.Warn("failed to release scan lock", "error", err)
		}
		release()
	}, nil
}

func (s *Scanner) scan(ctx context.Context, root string, opts ScanOptions) (*ScanResult, error) {
	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read scan root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", shared.ErrInvalidArgument, root)
	}

	result := &ScanResult{AlbumIDs: []string{}}
	files, walkErrors, err := s.walk(root)
	if err != nil {
		return nil, err
	}
	result.Errors += walkErrors

	s.logger.Info("scanning", "root", root, "files", len(files))
	if err := s.extract(ctx, files); err != nil {
		return nil, err
	}

	touched := make(map[string]bool)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if f.err != nil {
			s.logger.Error("failed to read file", "path", f.path, "error", f.err)
			result.Errors++
			continue
		}
		if err := s.importFile(ctx, f, opts, result, touched); err != nil {
			s.logger.Error("failed to import file", "path", f.path, "error", err)
			result.Errors++
		}
	}

	if opts.ExternalAlbumID != "" {
		if err := s.tagAlbum(ctx, opts, result.AlbumIDs); err != nil {
			s.logger.Error("failed to record external album id", "external_id", opts.ExternalAlbumID, "error", err)
			result.Errors++
		}
	}

	for _, id := range result.AlbumIDs {
		if err := s.store.WithTx(ctx, func(tx *catalog.Tx) error {
			return tx.Albums.RefreshTotals(ctx, id)
		}); err != nil {
			s.logger.Error("failed to refresh album totals", "album", id, "error", err)
			result.Errors++
		}
	}

	s.logger.Info("scan complete",
		"root", root,
		"albums_added", result.AlbumsAdded,
		"tracks_added", result.TracksAdded,
		"tracks_updated", result.TracksUpdated,
		"errors", result.Errors)
	return result, nil
}

// walk lists the supported audio files under root with the cover art of each directory
func (s *Scanner) walk(root string) ([]*audioFile, int, error) {
	var (
		files  []*audioFile
		errs   int
		covers = make(map[string]string)
	)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			s.logger.Warn("skipping unreadable path", "path", path, "error", err)
			errs++
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !metadata.Supported(path) {
			return nil
		}

		dir := filepath.Dir(path)
		cover, ok := covers[dir]
		if !ok {
			cover = findCover(root, dir)
			covers[dir] = cover
		}
		files = append(files, &audioFile{path: path, dir: dir, cover: cover})
		return nil
	})
	if err != nil {
		return nil, errs, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return files, errs, nil
}

// extract reads metadata for every file in parallel. Per-file failures are
// stored on the file; only cancellation fails the group.
func (s *Scanner) extract(ctx context.Context, files []*audioFile) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, f := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f.meta, f.err = s.extractor.Extract(ctx, f.path)
			return nil
		})
	}
	return g.Wait()
}

// importFile applies one file to the catalog in its own transaction. Counters
// are only updated once the transaction commits.
func (s *Scanner) importFile(ctx context.Context, f *audioFile, opts ScanOptions, result *ScanResult, touched map[string]bool) error {
	meta := f.meta
	var (
		albumID      string
		albumAdded   bool
		trackCreated bool
	)

	err := s.store.WithTx(ctx, func(tx *catalog.Tx) error {
		albumArtist, _, err := tx.GetOrCreateArtist(ctx, catalog.ArtistInput{Name: meta.ReleaseArtist()})
		if err != nil {
			return err
		}

		trackArtist := albumArtist
		if meta.Artist != "" && shared.FoldName(meta.Artist) != shared.FoldName(albumArtist.Name) {
			if trackArtist, _, err = tx.GetOrCreateArtist(ctx, catalog.ArtistInput{Name: meta.Artist}); err != nil {
				return err
			}
		}

		album, _, err := tx.GetOrCreateAlbum(ctx, catalog.AlbumInput{
			Title:       meta.Album,
			ArtistID:    albumArtist.ID,
			ReleaseDate: meta.Year,
			Genre:       meta.Genre,
		})
		if err != nil {
			return err
		}

		changed := false
		if !album.Downloaded {
			album.Downloaded = true
			album.DownloadPath = f.dir
			albumAdded = true
			changed = true
		}
		if f.cover != "" && album.CoverLocal == "" {
			album.CoverLocal = f.cover
			changed = true
		}
		if changed {
			if err := tx.Albums.Update(ctx, album); err != nil {
				return err
			}
		}

		_, trackCreated, err = tx.AddTrack(ctx, catalog.TrackInput{
			Title:       meta.Title,
			ArtistID:    trackArtist.ID,
			AlbumID:     album.ID,
			TrackNumber: meta.TrackNumber,
			DiscNumber:  meta.DiscNumber,
			Duration:    meta.Duration,
			FilePath:    f.path,
		})
		albumID = album.ID
		return err
	})
	if err != nil {
		return err
	}

	if albumAdded {
		result.AlbumsAdded++
	}
	if trackCreated {
		result.TracksAdded++
	} else {
		result.TracksUpdated++
	}
	if !touched[albumID] {
		touched[albumID] = true
		result.AlbumIDs = append(result.AlbumIDs, albumID)
	}
	return nil
}

// tagAlbum records the provider identity of a download on the one album the
// scan touched. Ids already bound to another album are left alone.
func (s *Scanner) tagAlbum(ctx context.Context, opts ScanOptions, albumIDs []string) error {
	if len(albumIDs) != 1 {
		s.logger.Warn("external album id not applied",
			"external_id", opts.ExternalAlbumID, "albums", len(albumIDs))
		return nil
	}
	id := albumIDs[0]

	return s.store.WithTx(ctx, func(tx *catalog.Tx) error {
		owner, err := tx.Albums.FindByExternalID(ctx, opts.ExternalAlbumID)
		if err != nil {
			return err
		}
		if owner != nil && owner.ID != id {
			s.logger.Warn("external album id belongs to another album",
				"external_id", opts.ExternalAlbumID, "album", id, "owner", owner.ID)
			return nil
		}

		album, err := tx.Albums.Get(ctx, id)
		if err != nil {
			return err
		}
		changed := false
		if album.ExternalID == "" {
			album.ExternalID = opts.ExternalAlbumID
			changed = true
		}
		if album.ExternalURL == "" && opts.ExternalAlbumURL != "" && album.ExternalID == opts.ExternalAlbumID {
			album.ExternalURL = opts.ExternalAlbumURL
			changed = true
		}
		if !changed {
			return nil
		}
		return tx.Albums.Update(ctx, album)
	})
}

// findCover returns the cover image of dir, else of its parent when the parent
// is still inside root.
func findCover(root, dir string) string {
	if cover := coverIn(dir); cover != "" {
		return cover
	}
	if dir == root {
		return ""
	}
	parent := filepath.Dir(dir)
	if rel, err := filepath.Rel(root, parent); err != nil || strings.HasPrefix(rel, "..") {
		return ""
	}
	return coverIn(parent)
}

func coverIn(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}

	byName := make(map[string]string, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			byName[strings.ToLower(e.Name())] = e.Name()
		}
	}
	for _, name := range coverNames {
		if actual, ok := byName[name]; ok {
			return filepath.Join(dir, actual)
		}
	}
	return ""
}
