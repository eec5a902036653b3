// Package storage opens the local SQLite database, applies its schema, and
// bundles the per-collection repositories that make up the durable store.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"listvault/internal/client/repositories/metadata"
	"listvault/internal/client/repositories/queue"
	"listvault/internal/client/repositories/records"
	"listvault/internal/client/storage/migrations"
	"listvault/internal/dbx"
)

// Store bundles the durable collections: session metadata, the decrypted
// record cache, and the mutation queue. Failures in one collection never
// touch the others; cross-collection changes go through WithTx.
type Store struct {
	DB       *sql.DB
	Metadata metadata.Repository
	Records  records.Repository
	Queue    queue.Repository
}

// RunMigrations applies the embedded goose migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, ".")
}

// Open opens (creating if needed) the database at dsn, migrates it, and
// returns the repository bundle.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// modernc.org/sqlite serializes access through a single connection.
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{
		DB:       db,
		Metadata: metadata.NewSQLiteRepository(db),
		Records:  records.NewSQLiteRepository(db),
		Queue:    queue.NewSQLiteRepository(db),
	}, nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}

// WithTx runs fn with transaction-scoped repositories. Either every change
// fn makes lands, or none do.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx *Store) error) error {
	return dbx.WithTx(ctx, s.DB, nil, func(ctx context.Context, tx dbx.DBTX) error {
		scoped := &Store{
			DB:       s.DB,
			Metadata: metadata.NewSQLiteRepository(tx),
			Records:  records.NewSQLiteRepository(tx),
			Queue:    queue.NewSQLiteRepository(tx),
		}
		return fn(ctx, scoped)
	})
}

// WipeAll clears every collection in one transaction. Used by logout.
func (s *Store) WipeAll(ctx context.Context) error {
	return s.WithTx(ctx, func(ctx context.Context, tx *Store) error {
		if err := tx.Metadata.Clear(ctx); err != nil {
			return err
		}
		if err := tx.Records.ReplaceAll(ctx, nil); err != nil {
			return err
		}
		return tx.Queue.Clear(ctx)
	})
}
