package repository

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

const migrationsDir = "data/sql/migrations"

// Migrate applies the embedded postgres or sqlite migrations, picked by
// dialect, for the profiles, identities and identity_recovery_tokens tables
// and returns the bun handle of the persistence client.
func Migrate(ctx context.Context, cfg persistence.Config, sqldb *sql.DB, dialect schema.Dialect, logger accounts.Logger) (*bun.DB, error) {
	client, err := persistence.New(cfg, sqldb, dialect)
	if err != nil {
		return nil, fmt.Errorf("persistence client: %w", err)
	}

	if logger != nil {
		client.SetLogger(logger)
	}

	migrationsFS, err := fs.Sub(accounts.GetMigrationsFS(), migrationsDir)
	if err != nil {
		return nil, err
	}

	client.RegisterDialectMigrations(
		migrationsFS,
		persistence.WithDialectSourceLabel(migrationsDir),
		persistence.WithValidationTargets("postgres", "sqlite"),
	)
	if err := client.ValidateDialects(ctx); err != nil {
		return nil, fmt.Errorf("validate migrations: %w", err)
	}

	if err := client.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return client.DB(), nil
}
