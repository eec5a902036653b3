// Package api provides authenticated HTTP access to the remote item/auth
// service. Authenticated calls transparently refresh an expired access
// token exactly once and retry the original call exactly once; a second
// authorization failure is surfaced to the caller as-is.
package api

import (
	"context"

	"listvault/internal/client/models"
)

// Client is the outbound interface to the remote service.
type Client interface {
	// Register creates an account and returns the issued token pair.
	Register(ctx context.Context, name, email, password string) (models.TokenPair, error)

	// Login authenticates and returns the token pair plus the user profile.
	Login(ctx context.Context, email, password string) (models.TokenPair, models.User, error)

	// Logout invalidates the refresh token on the server. Best effort for
	// callers: a transport failure here must not block a local logout.
	Logout(ctx context.Context, refreshToken string) error

	// Me fetches the authenticated user's profile.
	Me(ctx context.Context) (models.User, error)

	// CreateItem uploads an encrypted payload. The returned record carries
	// the key the server stored it under, which may differ from any
	// client-generated key.
	CreateItem(ctx context.Context, data string) (models.EncryptedRecord, error)

	// FindAllItems fetches every encrypted record of the user.
	FindAllItems(ctx context.Context) ([]models.EncryptedRecord, error)

	// UpdateItem replaces the payload stored under key.
	UpdateItem(ctx context.Context, key, data string) error

	// DeleteItem removes the record stored under key.
	DeleteItem(ctx context.Context, key string) error

	// Ping reports whether the service is reachable at all. Any HTTP
	// response counts as reachable; only transport failures do not.
	Ping(ctx context.Context) error
}

// TokenStore gives the client access to the current bearer credentials and
// a way to persist a refreshed pair. The session manager is the only
// implementation; it remains the sole writer of token state.
type TokenStore interface {
	Tokens() models.TokenPair
	StoreTokens(ctx context.Context, pair models.TokenPair) error
}
