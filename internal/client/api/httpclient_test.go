package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listvault/internal/client/models"
	"listvault/internal/common"
	"listvault/internal/logging"
)

type fakeTokenStore struct {
	mu     sync.Mutex
	pair   models.TokenPair
	stored []models.TokenPair
}

func (f *fakeTokenStore) Tokens() models.TokenPair {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pair
}

func (f *fakeTokenStore) StoreTokens(ctx context.Context, pair models.TokenPair) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pair = pair
	f.stored = append(f.stored, pair)
	return nil
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

// handleMethod registers a path-only pattern with an explicit method check,
// matching the behavior of Go 1.22+ "METHOD /path" ServeMux patterns on Go 1.21.
func handleMethod(mux *http.ServeMux, method, path string, h http.HandlerFunc) {
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	})
}

func newClient(t *testing.T, handler http.Handler, pair models.TokenPair) (*HTTPClient, *fakeTokenStore) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	ts := &fakeTokenStore{pair: pair}
	return NewHTTPClient(srv.URL, ts, testLogger()), ts
}

func TestLogin_Success(t *testing.T) {
	mux := http.NewServeMux()
	handleMethod(mux, "POST", "/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a@b.c", body["email"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"accessToken":  "acc",
			"refreshToken": "ref",
			"user":         models.User{ID: "u1", Name: "Alice", Email: "a@b.c"},
		})
	})

	c, _ := newClient(t, mux, models.TokenPair{})

	pair, user, err := c.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	assert.Equal(t, "acc", pair.AccessToken)
	assert.Equal(t, "Alice", user.Name)
}

func TestLogin_RemoteErrorMessage(t *testing.T) {
	mux := http.NewServeMux()
	handleMethod(mux, "POST", "/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "wrong credentials"})
	})

	c, _ := newClient(t, mux, models.TokenPair{})

	_, _, err := c.Login(context.Background(), "a@b.c", "pw")
	require.ErrorIs(t, err, common.ErrRemote)
	assert.Contains(t, err.Error(), "wrong credentials")
}

func TestDoAuthorized_RefreshRetryOnce(t *testing.T) {
	var meCalls, refreshCalls int

	mux := http.NewServeMux()
	handleMethod(mux, "GET", "/auth/me", func(w http.ResponseWriter, r *http.Request) {
		meCalls++
		if r.Header.Get("Authorization") != "Bearer new-acc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(models.User{ID: "u1", Name: "Alice"})
	})
	handleMethod(mux, "POST", "/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls++
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "old-ref", body["refreshToken"])
		_ = json.NewEncoder(w).Encode(models.TokenPair{AccessToken: "new-acc", RefreshToken: "new-ref"})
	})

	c, ts := newClient(t, mux, models.TokenPair{AccessToken: "old-acc", RefreshToken: "old-ref"})

	user, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.Name)

	assert.Equal(t, 2, meCalls, "original call plus exactly one retry")
	assert.Equal(t, 1, refreshCalls, "exactly one refresh")

	// New pair persisted before the retry.
	require.Len(t, ts.stored, 1)
	assert.Equal(t, "new-acc", ts.pair.AccessToken)
	assert.Equal(t, "new-ref", ts.pair.RefreshToken)
}

func TestDoAuthorized_RefreshFails(t *testing.T) {
	mux := http.NewServeMux()
	handleMethod(mux, "GET", "/auth/me", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	handleMethod(mux, "POST", "/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	c, ts := newClient(t, mux, models.TokenPair{AccessToken: "acc", RefreshToken: "ref"})

	_, err := c.Me(context.Background())
	require.ErrorIs(t, err, common.ErrUnauthorized)
	assert.Empty(t, ts.stored, "no tokens persisted on failed refresh")
}

func TestDoAuthorized_SecondUnauthorizedDoesNotLoop(t *testing.T) {
	var meCalls, refreshCalls int

	mux := http.NewServeMux()
	handleMethod(mux, "GET", "/auth/me", func(w http.ResponseWriter, r *http.Request) {
		meCalls++
		w.WriteHeader(http.StatusUnauthorized)
	})
	handleMethod(mux, "POST", "/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls++
		_ = json.NewEncoder(w).Encode(models.TokenPair{AccessToken: "new-acc", RefreshToken: "new-ref"})
	})

	c, _ := newClient(t, mux, models.TokenPair{AccessToken: "acc", RefreshToken: "ref"})

	_, err := c.Me(context.Background())
	require.ErrorIs(t, err, common.ErrUnauthorized)
	assert.Equal(t, 2, meCalls)
	assert.Equal(t, 1, refreshCalls)
}

func TestDoAuthorized_NoAccessToken(t *testing.T) {
	c, _ := newClient(t, http.NewServeMux(), models.TokenPair{})

	_, err := c.Me(context.Background())
	require.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestDoAuthorized_ProactiveRefreshOnExpiredToken(t *testing.T) {
	var refreshCalls int
	expired := signedToken(t, time.Now().Add(-time.Hour))

	mux := http.NewServeMux()
	handleMethod(mux, "POST", "/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls++
		_ = json.NewEncoder(w).Encode(models.TokenPair{AccessToken: "new-acc", RefreshToken: "new-ref"})
	})
	handleMethod(mux, "GET", "/auth/me", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer new-acc", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(models.User{ID: "u1"})
	})

	c, _ := newClient(t, mux, models.TokenPair{AccessToken: expired, RefreshToken: "ref"})

	_, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, refreshCalls)
}

func TestItemOperations(t *testing.T) {
	mux := http.NewServeMux()
	handleMethod(mux, "POST", "/item/create", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_ = json.NewEncoder(w).Encode(models.EncryptedRecord{Key: "server-key", Data: body["data"]})
	})
	handleMethod(mux, "GET", "/item/findAll", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]models.EncryptedRecord{{Key: "k1", Data: "d1"}})
	})
	handleMethod(mux, "PUT", "/item/update", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handleMethod(mux, "DELETE", "/item/delete", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k1", r.URL.Query().Get("key"))
		w.WriteHeader(http.StatusOK)
	})

	c, _ := newClient(t, mux, models.TokenPair{AccessToken: "acc", RefreshToken: "ref"})
	ctx := context.Background()

	rec, err := c.CreateItem(ctx, "blob")
	require.NoError(t, err)
	assert.Equal(t, "server-key", rec.Key)
	assert.Equal(t, "blob", rec.Data)

	recs, err := c.FindAllItems(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	require.NoError(t, c.UpdateItem(ctx, "k1", "d2"))
	require.NoError(t, c.DeleteItem(ctx, "k1"))
}

func TestPing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound) // any response means reachable
	})

	c, _ := newClient(t, mux, models.TokenPair{})
	require.NoError(t, c.Ping(context.Background()))
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NewServeMux())
	srv.Close() // nothing listening anymore

	ts := &fakeTokenStore{pair: models.TokenPair{AccessToken: "acc", RefreshToken: "ref"}}
	c := NewHTTPClient(srv.URL, ts, testLogger())

	_, err := c.FindAllItems(context.Background())
	require.ErrorIs(t, err, common.ErrUnavailable)

	require.Error(t, c.Ping(context.Background()))
}

func TestTokenExpired(t *testing.T) {
	assert.True(t, tokenExpired(signedToken(t, time.Now().Add(-time.Minute))))
	assert.False(t, tokenExpired(signedToken(t, time.Now().Add(time.Hour))))
	assert.False(t, tokenExpired("not-a-jwt"))
}
