package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "embed"
)

//go:embed schema.sql
var schemaV1 string

// migrations are applied in order. The schema version is tracked with
// PRAGMA user_version, so every step runs exactly once per database file.
// Never edit an applied step, append a new one instead.
//
//nolint:gochecknoglobals // the migration list is inherently package state.
var migrations = []string{
	schemaV1,
}

// migrate brings the database schema up to the latest version.
func (db *Database) migrate(ctx context.Context) error {
	start := time.Now()

	version, err := db.schemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > len(migrations) {
		return fmt.Errorf("database schema version %d is newer than this binary supports (%d)",
			version, len(migrations))
	}

	for i := version; i < len(migrations); i++ {
		if err = db.applyMigration(ctx, i); err != nil {
			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
		db.logger.LogAttrs(ctx, slog.LevelInfo, "applied migration", slog.Int("version", i+1))
	}

	db.logger.LogAttrs(ctx, slog.LevelInfo, "migrated database",
		slog.Int("version", len(migrations)),
		slog.Duration("duration", time.Since(start)))

	return nil
}

func (db *Database) schemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := db.ReadWrite.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("query user_version: %w", err)
	}
	return version, nil
}

// applyMigration runs a single migration step and bumps user_version inside
// the same transaction.
func (db *Database) applyMigration(ctx context.Context, index int) (err error) {
	tx, err := db.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("rollback transaction: %w", rollbackErr))
		}
	}()

	if _, err = tx.ExecContext(ctx, migrations[index]); err != nil {
		return fmt.Errorf("exec migration: %w", err)
	}

	// PRAGMA does not support placeholders.
	if _, err = tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", index+1)); err != nil {
		return fmt.Errorf("bump user_version: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
