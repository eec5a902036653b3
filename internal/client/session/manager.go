// Package session owns the authentication lifecycle and the in-memory
// encryption key. The key is derived from the user's password and never
// leaves process memory; only a salt and a hash-based verifier are persisted
// so a restarted client can validate the password before trusting a key.
package session

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"listvault/internal/client/api"
	"listvault/internal/client/models"
	"listvault/internal/client/repositories/metadata"
	"listvault/internal/client/storage"
	"listvault/internal/common"
	"listvault/internal/cryptox"
	"listvault/internal/logging"
)

// State is the session lifecycle state.
type State int

const (
	// StateUnauthenticated means no usable credentials exist locally.
	StateUnauthenticated State = iota
	// StateInitializing is the transient state while persisted credentials
	// are being loaded and validated.
	StateInitializing
	// StateAuthenticated means tokens and the encryption key are both live.
	StateAuthenticated
	// StateKeyUnavailable means tokens were restored from disk but the key
	// cannot be re-derived without the password. Remote calls work; payload
	// encryption and decryption do not until RearmWithPassword succeeds.
	StateKeyUnavailable
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateInitializing:
		return "initializing"
	case StateAuthenticated:
		return "authenticated"
	case StateKeyUnavailable:
		return "key-unavailable"
	default:
		return "unknown"
	}
}

// Manager implements the session lifecycle over a remote api.Client and the
// local store. It is also the api.TokenStore: refreshed token pairs flow
// back through StoreTokens and are persisted before any retried request.
type Manager struct {
	store *storage.Store
	log   logging.Logger

	mu     sync.RWMutex
	client api.Client
	state  State
	user   models.User
	pair   models.TokenPair
	key    []byte
}

// NewManager builds a manager in the unauthenticated state. BindClient must
// be called before any operation that talks to the remote service; the
// two-step construction exists because the HTTP client needs the manager as
// its TokenStore.
func NewManager(store *storage.Store, log logging.Logger) *Manager {
	return &Manager{
		store: store,
		log:   log.With("component", "session"),
		state: StateUnauthenticated,
	}
}

// BindClient attaches the remote client.
func (m *Manager) BindClient(c api.Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.client = c
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// User returns the profile of the signed-in user. Zero value when
// unauthenticated.
func (m *Manager) User() models.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user
}

// Key returns the encryption key, or nil when the key is unavailable. The
// returned slice is owned by the manager and is zeroed on logout; callers
// must not retain it across session boundaries.
func (m *Manager) Key() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != StateAuthenticated {
		return nil
	}
	return m.key
}

// Tokens implements api.TokenStore.
func (m *Manager) Tokens() models.TokenPair {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pair
}

// StoreTokens implements api.TokenStore. The pair is written to the store
// first; the in-memory copy only changes once the write succeeded.
func (m *Manager) StoreTokens(ctx context.Context, pair models.TokenPair) error {
	err := m.store.WithTx(ctx, func(ctx context.Context, tx *storage.Store) error {
		if err := tx.Metadata.Set(ctx, metadata.KeyAccessToken, []byte(pair.AccessToken)); err != nil {
			return err
		}
		return tx.Metadata.Set(ctx, metadata.KeyRefreshToken, []byte(pair.RefreshToken))
	})
	if err != nil {
		return fmt.Errorf("failed to persist tokens: %w", err)
	}

	m.mu.Lock()
	m.pair = pair
	m.mu.Unlock()
	return nil
}

// Initialize restores a persisted session. With stored tokens the session
// becomes KeyUnavailable (the password is needed to re-derive the key) and
// the profile is refreshed from the server when it is reachable. Without
// stored tokens the session stays unauthenticated.
func (m *Manager) Initialize(ctx context.Context) error {
	m.setState(ctx, StateInitializing)

	access, err := m.store.Metadata.Get(ctx, metadata.KeyAccessToken)
	if err != nil {
		return err
	}
	refresh, err := m.store.Metadata.Get(ctx, metadata.KeyRefreshToken)
	if err != nil {
		return err
	}
	if len(access) == 0 || len(refresh) == 0 {
		m.setState(ctx, StateUnauthenticated)
		return nil
	}

	rawUser, err := m.store.Metadata.Get(ctx, metadata.KeyUser)
	if err != nil {
		return err
	}
	var user models.User
	if len(rawUser) > 0 {
		if err := json.Unmarshal(rawUser, &user); err != nil {
			return fmt.Errorf("failed to decode stored profile: %w", err)
		}
	}

	m.mu.Lock()
	m.pair = models.TokenPair{AccessToken: string(access), RefreshToken: string(refresh)}
	m.user = user
	m.mu.Unlock()
	m.setState(ctx, StateKeyUnavailable)

	m.refreshProfile(ctx)
	return nil
}

// refreshProfile re-fetches the profile when the server is reachable. A
// definitive rejection of the stored tokens drops the session back to
// unauthenticated; transient failures keep the cached profile.
func (m *Manager) refreshProfile(ctx context.Context) {
	user, err := m.client.Me(ctx)
	switch {
	case err == nil:
		if raw, merr := json.Marshal(user); merr == nil {
			if serr := m.store.Metadata.Set(ctx, metadata.KeyUser, raw); serr != nil {
				m.log.Warn(ctx, "failed to persist refreshed profile", "error", serr)
			}
		}
		m.mu.Lock()
		m.user = user
		m.mu.Unlock()
	case errors.Is(err, common.ErrUnauthorized):
		m.log.Warn(ctx, "stored session rejected by server")
		m.dropTokens(ctx)
	default:
		m.log.Debug(ctx, "profile refresh skipped", "error", err)
	}
}

// dropTokens discards the stored token pair but keeps the encrypted cache so
// a fresh login on the same account can reuse it.
func (m *Manager) dropTokens(ctx context.Context) {
	err := m.store.WithTx(ctx, func(ctx context.Context, tx *storage.Store) error {
		if err := tx.Metadata.Delete(ctx, metadata.KeyAccessToken); err != nil {
			return err
		}
		return tx.Metadata.Delete(ctx, metadata.KeyRefreshToken)
	})
	if err != nil {
		m.log.Warn(ctx, "failed to drop stored tokens", "error", err)
	}

	m.mu.Lock()
	m.pair = models.TokenPair{}
	m.mu.Unlock()
	m.setState(ctx, StateUnauthenticated)
}

// Login authenticates against the server and arms the encryption key. The
// salt is loaded from the store when present and generated on first login;
// the verifier of the derived key overwrites any previous one. When the
// password changed since the cache was written, the old cache is
// undecryptable and is wiped together with the queue.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	pair, user, err := m.client.Login(ctx, email, password)
	if err != nil {
		return err
	}

	if err := m.persistSession(ctx, pair, user); err != nil {
		return err
	}
	return m.armKey(ctx, []byte(password), false)
}

// Register creates an account and arms a fresh key. The returned tokens are
// only trusted once a profile fetch succeeds with them; a failed fetch
// leaves the session unauthenticated.
func (m *Manager) Register(ctx context.Context, name, email, password string) error {
	pair, err := m.client.Register(ctx, name, email, password)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.pair = pair
	m.mu.Unlock()

	user, err := m.client.Me(ctx)
	if err != nil {
		m.mu.Lock()
		m.pair = models.TokenPair{}
		m.mu.Unlock()
		return fmt.Errorf("registration succeeded but profile fetch failed: %w", err)
	}

	if err := m.persistSession(ctx, pair, user); err != nil {
		return err
	}
	return m.armKey(ctx, []byte(password), true)
}

// persistSession stores the token pair and profile in one transaction and
// installs them in memory.
func (m *Manager) persistSession(ctx context.Context, pair models.TokenPair, user models.User) error {
	rawUser, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}

	err = m.store.WithTx(ctx, func(ctx context.Context, tx *storage.Store) error {
		if err := tx.Metadata.Set(ctx, metadata.KeyAccessToken, []byte(pair.AccessToken)); err != nil {
			return err
		}
		if err := tx.Metadata.Set(ctx, metadata.KeyRefreshToken, []byte(pair.RefreshToken)); err != nil {
			return err
		}
		return tx.Metadata.Set(ctx, metadata.KeyUser, rawUser)
	})
	if err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}

	m.mu.Lock()
	m.pair = pair
	m.user = user
	m.mu.Unlock()
	return nil
}

// armKey derives the key from password and the account salt, persists the
// verifier, and moves the session to Authenticated. freshSalt forces a new
// salt (registration); otherwise the stored salt is reused when present.
func (m *Manager) armKey(ctx context.Context, password []byte, freshSalt bool) error {
	defer common.WipeByteArray(password)

	salt, err := m.store.Metadata.Get(ctx, metadata.KeySalt)
	if err != nil {
		return err
	}
	if freshSalt || len(salt) == 0 {
		salt, err = cryptox.GenerateSalt()
		if err != nil {
			return err
		}
		if err := m.store.Metadata.Set(ctx, metadata.KeySalt, salt); err != nil {
			return err
		}
	}

	key := cryptox.DeriveKey(password, salt)
	verifier := cryptox.MakeVerifier(key)

	previous, err := m.store.Metadata.Get(ctx, metadata.KeyVerifier)
	if err != nil {
		return err
	}
	if len(previous) > 0 && subtle.ConstantTimeCompare(previous, verifier) == 0 {
		// The password changed since the cache was encrypted; nothing local
		// can be decrypted with the new key.
		m.log.Warn(ctx, "key changed, discarding local cache")
		err := m.store.WithTx(ctx, func(ctx context.Context, tx *storage.Store) error {
			if err := tx.Records.ReplaceAll(ctx, nil); err != nil {
				return err
			}
			return tx.Queue.Clear(ctx)
		})
		if err != nil {
			return fmt.Errorf("failed to discard stale cache: %w", err)
		}
	}

	if err := m.store.Metadata.Set(ctx, metadata.KeyVerifier, verifier); err != nil {
		return fmt.Errorf("failed to persist verifier: %w", err)
	}

	m.mu.Lock()
	m.key = key
	m.mu.Unlock()
	m.setState(ctx, StateAuthenticated)
	return nil
}

// RearmWithPassword re-derives the key from the stored salt and validates it
// against the stored verifier. A wrong password returns false and changes
// nothing. Only valid in the KeyUnavailable state.
func (m *Manager) RearmWithPassword(ctx context.Context, password string) (bool, error) {
	if m.State() != StateKeyUnavailable {
		return false, fmt.Errorf("rearm in state %s: %w", m.State(), common.ErrKeyUnavailable)
	}

	salt, err := m.store.Metadata.Get(ctx, metadata.KeySalt)
	if err != nil {
		return false, err
	}
	verifier, err := m.store.Metadata.Get(ctx, metadata.KeyVerifier)
	if err != nil {
		return false, err
	}
	if len(salt) == 0 || len(verifier) == 0 {
		return false, fmt.Errorf("no derivation material stored: %w", common.ErrKeyUnavailable)
	}

	pw := []byte(password)
	defer common.WipeByteArray(pw)

	key := cryptox.DeriveKey(pw, salt)
	if subtle.ConstantTimeCompare(verifier, cryptox.MakeVerifier(key)) == 0 {
		common.WipeByteArray(key)
		return false, nil
	}

	m.mu.Lock()
	m.key = key
	m.mu.Unlock()
	m.setState(ctx, StateAuthenticated)
	return true, nil
}

// Logout tells the server to revoke the refresh token (best effort, offline
// logout still succeeds), wipes every local collection, and zeroes the key.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.RLock()
	refresh := m.pair.RefreshToken
	m.mu.RUnlock()

	if refresh != "" {
		if err := m.client.Logout(ctx, refresh); err != nil {
			m.log.Debug(ctx, "remote logout skipped", "error", err)
		}
	}

	if err := m.store.WipeAll(ctx); err != nil {
		return fmt.Errorf("failed to wipe local data: %w", err)
	}

	m.mu.Lock()
	common.WipeByteArray(m.key)
	m.key = nil
	m.pair = models.TokenPair{}
	m.user = models.User{}
	m.mu.Unlock()
	m.setState(ctx, StateUnauthenticated)
	return nil
}

// Shutdown zeroes the key without touching stored state; the next start
// resumes as KeyUnavailable.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	common.WipeByteArray(m.key)
	m.key = nil
	if m.state == StateAuthenticated {
		m.state = StateKeyUnavailable
	}
}

func (m *Manager) setState(ctx context.Context, s State) {
	m.mu.Lock()
	changed := m.state != s
	m.state = s
	m.mu.Unlock()
	if changed {
		m.log.Info(ctx, "session state changed", "state", s.String())
	}
}
