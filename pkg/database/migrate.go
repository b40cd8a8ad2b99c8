package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	"github.com/noah-isme/lesson-scheduler-api/migrations"
)

// Migrator applies the embedded SQL migrations with goose.
type Migrator struct {
	db *sqlx.DB
}

// NewMigrator prepares goose for the postgres dialect and the embedded migration set.
func NewMigrator(db *sqlx.DB) (*Migrator, error) {
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	goose.SetBaseFS(migrations.FS)
	return &Migrator{db: db}, nil
}

// Up applies all pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	if err := goose.UpContext(ctx, m.db.DB, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Down rolls back the most recent migration.
func (m *Migrator) Down(ctx context.Context) error {
	if err := goose.DownContext(ctx, m.db.DB, "."); err != nil {
		return fmt.Errorf("rollback migration: %w", err)
	}
	return nil
}

// Version reports the current schema version.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	version, err := goose.GetDBVersionContext(ctx, m.db.DB)
	if err != nil {
		return 0, fmt.Errorf("get migration version: %w", err)
	}
	return version, nil
}
