package main

import (
	"context"
	"errors"
	"os"

	"github.com/desertthunder/crate/internal/shared"
	"github.com/urfave/cli/v3"
)

const defaultConfigPath = "config.toml"

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat(defaultConfigPath); err == nil {
		if loadedConfig, err := shared.LoadConfig(defaultConfigPath); err == nil {
			config = loadedConfig
		} else {
			logger.Warn("failed to load config, using defaults", "error", err)
		}
	}
	shared.SetLogLevel(logger, shared.ParseLogLevel(config.Log.Level))

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: defaultConfigPath,
		Logger:     logger,
	})

	app := newApp(runner)

	if err := app.Run(context.Background(), os.Args); err != nil {
		runner.Close()
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			os.Exit(0)
		}
		logger.Fatalf("application error: %v", err)
	}
}

// newApp builds the command tree around runner. The global flags are read by
// every subcommand.
func newApp(runner *Runner) *cli.Command {
	return &cli.Command{
		Name:    "crate",
		Usage:   "Keep a local music catalog in sync with downloads and play it from a queue",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   defaultConfigPath,
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
		},
		Before:   runner.configure,
		After:    func(context.Context, *cli.Command) error { return runner.Close() },
		Commands: runner.register(),
	}
}
