// Package records persists the decrypted record cache, one row per record
// key. The cache is authoritative for what the UI shows between
// reconciliations; the remote store only ever holds encrypted blobs.
package records

import (
	"context"

	"listvault/internal/client/models"
)

// Repository describes the record cache collection.
type Repository interface {
	// Upsert inserts or replaces the cache row for rec.Key.
	Upsert(ctx context.Context, rec models.Record) error

	// Get returns the record with the given key, or common.ErrNotFound.
	Get(ctx context.Context, key string) (*models.Record, error)

	// GetAll returns all cached records ordered by creation time.
	GetAll(ctx context.Context) ([]models.Record, error)

	// Delete removes the row for key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// ReplaceAll wipes the cache and installs the given records. Used when a
	// reconciliation adopts the remote truth wholesale; the caller runs it
	// inside a transaction.
	ReplaceAll(ctx context.Context, recs []models.Record) error
}
