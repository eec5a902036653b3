// Package queue persists the durable mutation queue: the ordered log of
// local writes the remote service has not yet confirmed.
package queue

import (
	"context"

	"listvault/internal/client/models"
)

// Repository describes the mutation-queue collection. Ordering is FIFO by
// the store-assigned Seq. The compaction rules that keep the queue at most
// one entry per record key live in the sync engine; this layer only offers
// the primitives.
type Repository interface {
	// Append adds m to the tail of the queue and fills in m.Seq.
	Append(ctx context.Context, m *models.PendingMutation) error

	// Replace overwrites the queued entry at m.Seq in place (same position).
	Replace(ctx context.Context, m models.PendingMutation) error

	// GetByKey returns the queued mutation targeting key, or nil.
	GetByKey(ctx context.Context, key string) (*models.PendingMutation, error)

	// GetAll returns the whole queue in FIFO order.
	GetAll(ctx context.Context) ([]models.PendingMutation, error)

	// RemoveBySeq removes a single entry.
	RemoveBySeq(ctx context.Context, seq int64) error

	// RemoveByKey removes any entry targeting key.
	RemoveByKey(ctx context.Context, key string) error

	// RekeyEntries retargets queued mutations from oldKey to newKey.
	RekeyEntries(ctx context.Context, oldKey, newKey string) error

	// Count returns the number of queued mutations.
	Count(ctx context.Context) (int, error)

	// Clear empties the queue.
	Clear(ctx context.Context) error
}
