// Package sync owns the visible record list, the optimistic mutation
// protocol, reconciliation against the remote service, and the durable
// mutation queue with its compaction rules.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"listvault/internal/client/api"
	"listvault/internal/client/models"
	"listvault/internal/client/storage"
	"listvault/internal/common"
	"listvault/internal/cryptox"
	"listvault/internal/logging"
)

// KeySource supplies the encryption key. A nil key means the engine is
// inactive: the session is either signed out or not yet rearmed.
type KeySource interface {
	Key() []byte
}

// Connectivity reports whether the remote service is reachable. Offline
// mutations skip the network and go straight to the queue.
type Connectivity interface {
	Online() bool
}

// Engine is the synchronization core. One mutex serializes every refresh,
// mutation, and drain; record state is only ever read and written under it,
// so two operations against the same key can never interleave.
type Engine struct {
	api   api.Client
	store *storage.Store
	keys  KeySource
	net   Connectivity
	log   logging.Logger

	mu           sync.Mutex
	items        []models.Record
	pendingCount int
	lastError    error
}

func NewEngine(client api.Client, store *storage.Store, keys KeySource, net Connectivity, log logging.Logger) *Engine {
	return &Engine{
		api:   client,
		store: store,
		keys:  keys,
		net:   net,
		log:   log.With("component", "sync"),
	}
}

// Items returns a snapshot of the visible list. Empty while the engine is
// inactive.
func (e *Engine) Items() []models.Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.keys.Key() == nil {
		return nil
	}
	out := make([]models.Record, len(e.items))
	copy(out, e.items)
	return out
}

// PendingCount returns the number of queued, unconfirmed mutations.
func (e *Engine) PendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pendingCount
}

// LastError returns the most recent background failure, cleared by the next
// fully successful refresh.
func (e *Engine) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastError
}

// Refresh reconciles against the remote service. The cached list is loaded
// and made visible first; when online, all remote records are fetched and
// decrypted, and on full success they replace both the visible list and the
// cache wholesale. A record failing authenticated decryption is retried as
// an unencrypted payload; if that also fails the whole pass fails and the
// stale cache stays visible.
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := e.keys.Key()
	if key == nil {
		e.items = nil
		return common.ErrKeyUnavailable
	}

	cached, err := e.store.Records.GetAll(ctx)
	if err != nil {
		return err
	}
	e.items = cached
	if err := e.recount(ctx); err != nil {
		return err
	}

	if !e.net.Online() {
		return nil
	}

	encrypted, err := e.api.FindAllItems(ctx)
	if err != nil {
		e.lastError = err
		return err
	}

	fresh := make([]models.Record, 0, len(encrypted))
	for _, enc := range encrypted {
		payload, err := decodeRecord(enc.Data, key)
		if err != nil {
			err = fmt.Errorf("record %s: %w", enc.Key, err)
			e.lastError = err
			return err
		}
		fresh = append(fresh, models.Record{Key: enc.Key, RecordPayload: payload})
	}

	if err := e.store.Records.ReplaceAll(ctx, fresh); err != nil {
		return err
	}
	e.items = fresh
	e.lastError = nil
	e.log.Debug(ctx, "reconciled", "records", len(fresh))
	return nil
}

// decodeRecord decrypts an encrypted payload, falling back to a strict
// plaintext parse for records written before a key existed.
func decodeRecord(data string, key []byte) (models.RecordPayload, error) {
	raw, err := cryptox.Decrypt(data, key)
	if err == nil {
		var payload models.RecordPayload
		if jerr := json.Unmarshal(raw, &payload); jerr == nil {
			return payload, nil
		}
	}

	if payload, ok := models.DecodePayloadStrict([]byte(data)); ok {
		return payload, nil
	}
	return models.RecordPayload{}, common.ErrDecryptFailed
}

// Add creates a record optimistically. The record is visible immediately;
// if encryption fails it is removed again and nothing is queued or sent.
func (e *Engine) Add(ctx context.Context, title string) (models.Record, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := e.keys.Key()
	if key == nil {
		return models.Record{}, common.ErrKeyUnavailable
	}

	rec := models.NewRecord(title)
	e.items = append(e.items, rec)

	data, err := encryptPayload(rec.RecordPayload, key)
	if err != nil {
		e.items = e.items[:len(e.items)-1]
		return models.Record{}, err
	}

	if e.net.Online() {
		created, err := e.api.CreateItem(ctx, data)
		if err == nil {
			if created.Key != rec.Key {
				e.retargetItem(rec.Key, created.Key)
				rec.Key = created.Key
			}
			if err := e.store.Records.Upsert(ctx, rec); err != nil {
				return models.Record{}, err
			}
			return rec, nil
		}
		e.log.Warn(ctx, "remote create failed, queueing", "error", err)
		e.lastError = err
	}

	if err := e.persistAndQueue(ctx, rec, models.NewPendingMutation(models.ActionCreate, rec.Key, data)); err != nil {
		return models.Record{}, err
	}
	return rec, nil
}

// Rename changes a record's title.
func (e *Engine) Rename(ctx context.Context, key, title string) error {
	return e.update(ctx, key, func(p *models.RecordPayload) { p.Title = title })
}

// Toggle flips a record's completed flag.
func (e *Engine) Toggle(ctx context.Context, key string) error {
	return e.update(ctx, key, func(p *models.RecordPayload) { p.Completed = !p.Completed })
}

// update applies transform to the record optimistically, rolling the
// in-memory change back if the new payload cannot be encrypted.
func (e *Engine) update(ctx context.Context, key string, transform func(*models.RecordPayload)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	encKey := e.keys.Key()
	if encKey == nil {
		return common.ErrKeyUnavailable
	}

	idx := e.indexOf(key)
	if idx < 0 {
		return common.ErrNotFound
	}

	prev := e.items[idx]
	rec := prev
	transform(&rec.RecordPayload)
	rec.UpdatedAt = nowUTC()
	e.items[idx] = rec

	data, err := encryptPayload(rec.RecordPayload, encKey)
	if err != nil {
		e.items[idx] = prev
		return err
	}

	if e.net.Online() {
		err := e.api.UpdateItem(ctx, rec.Key, data)
		if err == nil {
			return e.store.Records.Upsert(ctx, rec)
		}
		e.log.Warn(ctx, "remote update failed, queueing", "error", err)
		e.lastError = err
	}

	return e.persistAndQueue(ctx, rec, models.NewPendingMutation(models.ActionUpdate, rec.Key, data))
}

// Delete removes a record optimistically. Deletes carry no payload, so
// there is no encryption step and no rollback path.
func (e *Engine) Delete(ctx context.Context, key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.keys.Key() == nil {
		return common.ErrKeyUnavailable
	}

	idx := e.indexOf(key)
	if idx < 0 {
		return common.ErrNotFound
	}
	e.items = append(e.items[:idx], e.items[idx+1:]...)

	if e.net.Online() {
		err := e.api.DeleteItem(ctx, key)
		if err == nil {
			return e.store.Records.Delete(ctx, key)
		}
		e.log.Warn(ctx, "remote delete failed, queueing", "error", err)
		e.lastError = err
	}

	err := e.store.WithTx(ctx, func(ctx context.Context, tx *storage.Store) error {
		if err := tx.Records.Delete(ctx, key); err != nil {
			return err
		}
		return appendCompacted(ctx, tx, models.NewPendingMutation(models.ActionDelete, key, ""))
	})
	if err != nil {
		return err
	}
	return e.recount(ctx)
}

// persistAndQueue stores the record and its pending mutation in one
// transaction, then refreshes the pending count.
func (e *Engine) persistAndQueue(ctx context.Context, rec models.Record, m models.PendingMutation) error {
	err := e.store.WithTx(ctx, func(ctx context.Context, tx *storage.Store) error {
		if err := tx.Records.Upsert(ctx, rec); err != nil {
			return err
		}
		return appendCompacted(ctx, tx, m)
	})
	if err != nil {
		return err
	}
	return e.recount(ctx)
}

// appendCompacted appends m to the queue, folding it into an existing entry
// for the same key:
//
//	create + delete  -> both vanish (the remote never saw the record)
//	create + update  -> still a create, now carrying the updated payload
//	anything else    -> the incoming mutation replaces the queued one
//
// The queue therefore holds at most one entry per record key.
func appendCompacted(ctx context.Context, tx *storage.Store, m models.PendingMutation) error {
	existing, err := tx.Queue.GetByKey(ctx, m.Key)
	if err != nil {
		return err
	}
	if existing == nil {
		return tx.Queue.Append(ctx, &m)
	}

	switch {
	case existing.Action == models.ActionCreate && m.Action == models.ActionDelete:
		return tx.Queue.RemoveBySeq(ctx, existing.Seq)
	case existing.Action == models.ActionCreate && m.Action == models.ActionUpdate:
		merged := *existing
		merged.Data = m.Data
		merged.Timestamp = m.Timestamp
		return tx.Queue.Replace(ctx, merged)
	default:
		m.Seq = existing.Seq
		return tx.Queue.Replace(ctx, m)
	}
}

// Drain processes the queue in FIFO order against the remote service. A
// failing mutation stays queued and the drain moves on to the next one.
// Returns the number of mutations confirmed in this pass.
func (e *Engine) Drain(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.keys.Key() == nil {
		return 0, common.ErrKeyUnavailable
	}

	pending, err := e.store.Queue.GetAll(ctx)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, m := range pending {
		if err := e.dispatch(ctx, m); err != nil {
			e.log.Warn(ctx, "queued mutation failed, keeping it",
				"action", string(m.Action), "key", m.Key, "error", err)
			e.lastError = err
			continue
		}
		processed++
	}

	if err := e.recount(ctx); err != nil {
		return processed, err
	}
	e.log.Info(ctx, "queue drained", "processed", processed, "remaining", e.pendingCount)
	return processed, nil
}

// dispatch replays one queued mutation remotely and removes it from the
// queue on success. A create confirmed under a server-assigned key re-keys
// the cached record and any queued followups in the same transaction.
func (e *Engine) dispatch(ctx context.Context, m models.PendingMutation) error {
	switch m.Action {
	case models.ActionCreate:
		created, err := e.api.CreateItem(ctx, m.Data)
		if err != nil {
			return err
		}
		return e.store.WithTx(ctx, func(ctx context.Context, tx *storage.Store) error {
			if err := tx.Queue.RemoveBySeq(ctx, m.Seq); err != nil {
				return err
			}
			if created.Key == m.Key {
				return nil
			}
			if err := rekeyRecord(ctx, tx, m.Key, created.Key); err != nil {
				return err
			}
			e.retargetItem(m.Key, created.Key)
			return nil
		})

	case models.ActionUpdate:
		if err := e.api.UpdateItem(ctx, m.Key, m.Data); err != nil {
			return err
		}
		return e.store.Queue.RemoveBySeq(ctx, m.Seq)

	case models.ActionDelete:
		if err := e.api.DeleteItem(ctx, m.Key); err != nil {
			return err
		}
		return e.store.Queue.RemoveBySeq(ctx, m.Seq)

	default:
		return fmt.Errorf("unknown queued action %q", m.Action)
	}
}

// rekeyRecord moves the cached record and any queued entries from oldKey to
// the server-assigned newKey.
func rekeyRecord(ctx context.Context, tx *storage.Store, oldKey, newKey string) error {
	rec, err := tx.Records.Get(ctx, oldKey)
	if err == nil {
		if err := tx.Records.Delete(ctx, oldKey); err != nil {
			return err
		}
		rec.Key = newKey
		if err := tx.Records.Upsert(ctx, *rec); err != nil {
			return err
		}
	} else if !errors.Is(err, common.ErrNotFound) {
		return err
	}
	return tx.Queue.RekeyEntries(ctx, oldKey, newKey)
}

// HandleReconnect drains the queue and then reconciles. Wired to the
// connectivity monitor's reconnect callback; also the right call after a
// rearm makes the key available again.
func (e *Engine) HandleReconnect(ctx context.Context) {
	if _, err := e.Drain(ctx); err != nil {
		e.log.Warn(ctx, "drain on reconnect failed", "error", err)
		return
	}
	if err := e.Refresh(ctx); err != nil {
		e.log.Warn(ctx, "refresh on reconnect failed", "error", err)
	}
}

// recount re-reads the authoritative queue length. Callers hold e.mu.
func (e *Engine) recount(ctx context.Context) error {
	n, err := e.store.Queue.Count(ctx)
	if err != nil {
		return err
	}
	e.pendingCount = n
	return nil
}

func (e *Engine) indexOf(key string) int {
	for i, rec := range e.items {
		if rec.Key == key {
			return i
		}
	}
	return -1
}

// retargetItem rewrites the in-memory key after a server-assigned rekey.
// Callers hold e.mu.
func (e *Engine) retargetItem(oldKey, newKey string) {
	if i := e.indexOf(oldKey); i >= 0 {
		e.items[i].Key = newKey
	}
}

func encryptPayload(p models.RecordPayload, key []byte) (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to encode payload: %w", err)
	}
	return cryptox.Encrypt(raw, key)
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
