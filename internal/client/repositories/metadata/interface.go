// Package metadata persists small key/value items of the session: bearer
// tokens, the user profile, the encryption salt, and the key verifier.
package metadata

import "context"

// Well-known metadata keys.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUser         = "user"
	KeySalt         = "salt"
	KeyVerifier     = "verifier"
)

// Repository describes the metadata key/value collection. A missing key is
// reported as (nil, nil), storage failures as a non-nil error.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	List(ctx context.Context) (map[string][]byte, error)
}
