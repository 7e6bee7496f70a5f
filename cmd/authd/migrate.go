package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/MrEthical07/authcore/internal/config"
	"github.com/MrEthical07/authcore/internal/logger"
	"github.com/MrEthical07/authcore/store/postgres"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:   "migrate",
		Usage:  "apply database migrations and exit",
		Action: runMigrate,
	}
}

func runMigrate(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return errors.New("migrate: database.url is not set")
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, cancel := context.WithTimeout(c.Context, cfg.Server.ShutdownTimeout)
	defer cancel()

	db, err := postgres.Open(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	log.Info("migrations applied")
	return nil
}

// storageUsesPostgres reports whether cfg needs a database connection.
func storageUsesPostgres(cfg config.Config) bool {
	return cfg.Storage.Users == config.StoragePostgres || cfg.Storage.Refresh == config.StoragePostgres
}
