package models

import (
	"time"

	"github.com/google/uuid"
)

// MutationAction names the remote operation a pending mutation stands for.
type MutationAction string

const (
	ActionCreate MutationAction = "create"
	ActionUpdate MutationAction = "update"
	ActionDelete MutationAction = "delete"
)

// PendingMutation is one not-yet-confirmed local write. The durable queue of
// these is the single source of truth for what the remote does not yet know.
//
// Seq is assigned by the local store and orders the queue FIFO. Data carries
// the encrypted payload and is empty for deletes.
type PendingMutation struct {
	Seq       int64          `json:"-"`
	ID        string         `json:"id"`
	Action    MutationAction `json:"action"`
	Key       string         `json:"key"`
	Data      string         `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewPendingMutation stamps a mutation with a unique id and the current time.
func NewPendingMutation(action MutationAction, key, data string) PendingMutation {
	return PendingMutation{
		ID:        uuid.NewString(),
		Action:    action,
		Key:       key,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}
