// Package database owns the catalog schema and applies it with goose.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationsDir = "migrations"

// Migrator applies the embedded migrations to a database/sql handle.
type Migrator struct {
	db *sql.DB
}

// NewMigrator returns a Migrator for db.
func NewMigrator(db *sql.DB) *Migrator {
	goose.SetBaseFS(migrations)
	return &Migrator{db: db}
}

// FromPool opens a database/sql handle backed by the pgx pool. The caller
// closes the returned *sql.DB; the pool stays open.
func FromPool(pool *pgxpool.Pool) (*Migrator, *sql.DB) {
	db := stdlib.OpenDBFromPool(pool)
	return NewMigrator(db), db
}

// Up applies every pending migration.
func (m *Migrator) Up(ctx context.Context) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, m.db, migrationsDir); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, m.db)
	if err == nil {
		slog.Info("schema migrated", "version", version)
	}
	return nil
}

// Down rolls back the most recent migration.
func (m *Migrator) Down(ctx context.Context) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.DownContext(ctx, m.db, migrationsDir); err != nil {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

// Version returns the applied schema version.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	if err := goose.SetDialect("postgres"); err != nil {
		return 0, fmt.Errorf("goose dialect: %w", err)
	}
	return goose.GetDBVersionContext(ctx, m.db)
}
