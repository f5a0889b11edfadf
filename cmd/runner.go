package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crate/internal/catalog"
	"github.com/desertthunder/crate/internal/library"
	"github.com/desertthunder/crate/internal/queue"
	"github.com/desertthunder/crate/internal/search"
	"github.com/desertthunder/crate/internal/services"
	"github.com/desertthunder/crate/internal/shared"
	"github.com/desertthunder/crate/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The catalog and the components built on it are opened lazily by the first
// command that needs them, so `setup` and `--help` never touch the database.
type Runner struct {
	config     *shared.Config
	configPath string
	provider   services.Provider
	downloader services.Downloader
	logger     *log.Logger
	output     io.Writer

	db       *sql.DB
	store    *catalog.Store
	scanner  *library.Scanner
	verifier *library.Verifier
	queue    *queue.Engine
	search   *search.Service
	tasks    *tasks.Orchestrator
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Provider   services.Provider
	Downloader services.Downloader
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		provider:   opts.Provider,
		downloader: opts.Downloader,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, libraryCommand, searchCommand, queueCommand, downloadCommand, historyCommand, likesCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// configure runs before every command. It reloads the config file named by
// --config when it exists and applies the log level.
func (r *Runner) configure(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if path := cmd.String("config"); path != "" && path != r.configPath {
		if _, err := os.Stat(path); err == nil {
			config, err := shared.LoadConfig(path)
			if err != nil {
				return ctx, err
			}
			r.config = config
		}
		r.configPath = path
	}

	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	} else {
		shared.SetLogLevel(r.logger, shared.ParseLogLevel(r.config.Log.Level))
	}
	return ctx, nil
}

// open connects to the catalog database, applies pending migrations and wires
// every component on top of it. Calling it again is a no-op.
func (r *Runner) open() error {
	if r.store != nil {
		return nil
	}

	path := shared.ExpandPath(r.config.Database.Path)
	if dir := filepath.Dir(path); dir != "." && path != ":memory:" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := shared.NewDatabase(path)
	if err != nil {
		return err
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if r.provider == nil && r.config.Search.Remote && r.config.Provider.AppID != "" {
		r.provider = services.NewQobuzService(services.QobuzOpts{
			BaseURL:           r.config.Provider.BaseURL,
			AppID:             r.config.Provider.AppID,
			UserAuthToken:     r.config.Provider.UserAuthToken,
			Timeout:           time.Duration(r.config.Provider.Timeout) * time.Second,
			Retries:           r.config.Provider.Retries,
			RequestsPerSecond: r.config.Provider.RequestsPerSecond,
			Logger:            r.logger,
		})
	}

	r.db = db
	r.store = catalog.NewStore(db, r.logger)
	r.scanner = library.NewScanner(r.store, library.ScannerOpts{
		Workers:  r.config.Library.ScanWorkers,
		LockPath: filepath.Join(r.dataDir(), "scan.lock"),
		Logger:   r.logger,
	})
	r.verifier = library.NewVerifier(r.store, r.logger)
	r.queue = queue.NewEngine(r.store, r.logger)
	r.search = search.NewService(r.store, r.provider, search.Options{
		AlbumLimit:  r.config.Search.AlbumLimit,
		TrackLimit:  r.config.Search.TrackLimit,
		ArtistLimit: r.config.Search.ArtistLimit,
	}, r.logger)

	r.logger.Debug("catalog opened", "path", path)
	return nil
}

// openTasks builds the download orchestrator. Workers are only started when
// progress is non-nil, listing and cancelling tasks never runs downloads.
func (r *Runner) openTasks(ctx context.Context, progress chan<- tasks.ProgressUpdate) error {
	if err := r.open(); err != nil {
		return err
	}
	if r.tasks != nil {
		return nil
	}

	if r.downloader == nil {
		configPath := r.config.Downloads.ConfigPath
		if configPath == "" {
			configPath = filepath.Join(r.dataDir(), "streamrip.toml")
		}
		r.downloader = services.NewStreamripDownloader(services.StreamripOpts{
			Binary:        r.config.Downloads.Executor,
			ConfigPath:    configPath,
			AppID:         r.config.Provider.AppID,
			UserAuthToken: r.config.Provider.UserAuthToken,
			Logger:        r.logger,
		})
	}

	r.tasks = tasks.NewOrchestrator(r.store, r.scanner, r.queue, r.downloader, tasks.OrchestratorOpts{
		DestDir:   shared.ExpandPath(r.config.Library.Primary),
		Workers:   r.config.Downloads.Workers,
		RateLimit: r.config.Downloads.RateLimit,
		Progress:  progress,
		Logger:    r.logger,
	})
	if progress != nil {
		r.tasks.Start(ctx)
	}
	return nil
}

// Close stops download workers and closes the database.
func (r *Runner) Close() error {
	if r.tasks != nil {
		r.tasks.Close()
		r.tasks = nil
	}
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db, r.store = nil, nil
	return err
}

func (r *Runner) dataDir() string {
	dir := shared.ExpandPath(r.config.Library.DataDir)
	if dir == "" {
		dir = ".crate"
	}
	return dir
}

// render writes data as JSON when --json is set and the plain table otherwise.
func (r *Runner) render(cmd *cli.Command, data any, table string) error {
	if cmd.Bool("json") {
		return r.writeJSON(data, cmd.Bool("pretty"))
	}
	return r.writePlain("%s\n", table)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
