package migrations

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"smart-money-tracker/internal/storage/postgres"
)

const createVersions = `CREATE TABLE IF NOT EXISTS schema_migrations (
    name        TEXT        PRIMARY KEY,
    applied_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// RunPostgres applies the embedded Postgres migrations that are not yet
// recorded in schema_migrations, each in its own transaction. It returns
// the names it applied.
func RunPostgres(ctx context.Context, pool *postgres.Pool, logger zerolog.Logger) ([]string, error) {
	migs, err := Read(PostgresFS, "postgres")
	if err != nil {
		return nil, err
	}
	if _, err := pool.Exec(ctx, createVersions); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	var applied []string
	for _, m := range migs {
		done, err := apply(ctx, pool, m)
		if err != nil {
			return applied, err
		}
		if done {
			applied = append(applied, m.Name)
			logger.Info().Str("migration", m.Name).Msg("applied postgres migration")
		}
	}
	return applied, nil
}

func apply(ctx context.Context, pool *postgres.Pool, m Migration) (bool, error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin %s: %w", m.Name, err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name = $1)`, m.Name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check %s: %w", m.Name, err)
	}
	if exists {
		return false, nil
	}

	batch := &pgx.Batch{}
	for _, s := range m.Statements {
		batch.Queue(s)
	}
	batch.Queue(`INSERT INTO schema_migrations (name) VALUES ($1)`, m.Name)
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return false, fmt.Errorf("apply migration %s: %w", m.Name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit %s: %w", m.Name, err)
	}
	return true, nil
}
