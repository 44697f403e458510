// Package database stores scraped items in Postgres.
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DB struct {
	pool *pgxpool.Pool
}

// New connects to the database at dsn and verifies the connection.
func New(ctx context.Context, dsn string) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

func (db *DB) Close() {
	db.pool.Close()
}

func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// WithTx runs fn inside a transaction, rolling back on error.
func (db *DB) WithTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// Migrate creates the items schema if it does not exist yet.
func (db *DB) Migrate(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS items (
			id             BIGSERIAL PRIMARY KEY,
			source         TEXT        NOT NULL,
			title          TEXT        NOT NULL,
			url            TEXT        NOT NULL,
			image          TEXT,
			price          NUMERIC,
			discount_price NUMERIC,
			rating         NUMERIC,
			rating_count   INTEGER,
			description    TEXT,
			sold           INTEGER,
			reviews        JSONB       NOT NULL DEFAULT '[]',
			scraped_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (source, url)
		)`)
	if err != nil {
		return fmt.Errorf("create items table: %w", err)
	}
	return nil
}
