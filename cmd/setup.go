package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/crate/internal/formatter"
	"github.com/desertthunder/crate/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file when missing, the storage directories, and
// the database with every migration applied. A freshly written config holds
// the defaults already in use, so the in-memory config is kept.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	if _, err := os.Stat(configPath); err == nil {
		config, err := shared.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		r.config = config
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		r.logger.Info("config file created", "path", configPath)
	}
	r.configPath = configPath

	dirs := append(r.config.StorageRoots(), r.dataDir())
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		r.logger.Debug("directory ready", "path", dir)
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)
	if err := r.open(); err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}

	applied, err := shared.AppliedVersions(r.db)
	if err != nil {
		return err
	}

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	r.writePlain("%s Config: %s\n", formatter.Styles.OK("✓"), configPath)
	r.writePlain("%s Database: %s (%d migrations)\n", formatter.Styles.OK("✓"), r.config.Database.Path, len(applied))
	for _, root := range r.config.StorageRoots() {
		r.writePlain("%s Storage root: %s\n", formatter.Styles.OK("✓"), root)
	}
	if r.config.Provider.AppID == "" {
		r.writePlainln("%s", formatter.Styles.Help("Set provider.app_id and provider.user_auth_token to enable remote search and downloads."))
	}
	return nil
}
