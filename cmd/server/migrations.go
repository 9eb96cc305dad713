package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/patentgate/internal/config"
	"github.com/phrazzld/patentgate/internal/platform/postgres"
)

// handleMigrations runs a goose command against the catalog database.
func handleMigrations(ctx context.Context, cfg *config.Config, command string) error {
	if cfg.Database.URL == "" {
		return fmt.Errorf("database url is not configured; the catalog runs without migrations")
	}

	db, err := postgres.Open(ctx, cfg.Database.URL, slog.Default())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			slog.Error("Error closing database connection", "error", cerr)
		}
	}()

	slog.Info("Executing migrations", "command", command)
	return postgres.Migrate(db, command, slog.Default())
}
