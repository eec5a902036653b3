package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"listvault/internal/client/models"
	"listvault/internal/common"
	"listvault/internal/logging"
)

const defaultTimeout = 15 * time.Second

// HTTPClient implements Client over the JSON/REST contract of the remote
// service.
type HTTPClient struct {
	hc      *http.Client
	baseURL string
	tokens  TokenStore
	log     logging.Logger
}

// NewHTTPClient builds a client for the service at baseURL. The TokenStore
// supplies bearer credentials for authenticated calls and persists
// refreshed pairs.
func NewHTTPClient(baseURL string, tokens TokenStore, log logging.Logger) *HTTPClient {
	return &HTTPClient{
		hc:      &http.Client{Timeout: defaultTimeout},
		baseURL: baseURL,
		tokens:  tokens,
		log:     log.With("component", "api"),
	}
}

// reply is the decoded outcome of one HTTP exchange.
type reply struct {
	status  int
	message string // server-provided error message, if any
}

func (r reply) err() error {
	switch {
	case r.status < 400:
		return nil
	case r.status == http.StatusUnauthorized:
		return common.ErrUnauthorized
	case r.message != "":
		return fmt.Errorf("%w: %s", common.ErrRemote, r.message)
	default:
		return fmt.Errorf("%w: status %d", common.ErrRemote, r.status)
	}
}

func (c *HTTPClient) Register(ctx context.Context, name, email, password string) (models.TokenPair, error) {
	body := map[string]string{"name": name, "email": email, "password": password}

	var pair models.TokenPair
	r, err := c.do(ctx, http.MethodPost, "/auth/register", "", body, &pair)
	if err != nil {
		return models.TokenPair{}, err
	}
	if err := r.err(); err != nil {
		return models.TokenPair{}, err
	}
	return pair, nil
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (models.TokenPair, models.User, error) {
	body := map[string]string{"email": email, "password": password}

	var resp struct {
		models.TokenPair
		User models.User `json:"user"`
	}
	r, err := c.do(ctx, http.MethodPost, "/auth/login", "", body, &resp)
	if err != nil {
		return models.TokenPair{}, models.User{}, err
	}
	if err := r.err(); err != nil {
		return models.TokenPair{}, models.User{}, err
	}
	return resp.TokenPair, resp.User, nil
}

func (c *HTTPClient) Logout(ctx context.Context, refreshToken string) error {
	body := map[string]string{"refreshToken": refreshToken}
	return c.doAuthorized(ctx, http.MethodPost, "/auth/logout", body, nil)
}

func (c *HTTPClient) Me(ctx context.Context) (models.User, error) {
	var user models.User
	if err := c.doAuthorized(ctx, http.MethodGet, "/auth/me", nil, &user); err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (c *HTTPClient) CreateItem(ctx context.Context, data string) (models.EncryptedRecord, error) {
	body := map[string]string{"data": data}

	var rec models.EncryptedRecord
	if err := c.doAuthorized(ctx, http.MethodPost, "/item/create", body, &rec); err != nil {
		return models.EncryptedRecord{}, err
	}
	return rec, nil
}

func (c *HTTPClient) FindAllItems(ctx context.Context) ([]models.EncryptedRecord, error) {
	var recs []models.EncryptedRecord
	if err := c.doAuthorized(ctx, http.MethodGet, "/item/findAll", nil, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

func (c *HTTPClient) UpdateItem(ctx context.Context, key, data string) error {
	body := map[string]string{"key": key, "data": data}
	return c.doAuthorized(ctx, http.MethodPut, "/item/update", body, nil)
}

func (c *HTTPClient) DeleteItem(ctx context.Context, key string) error {
	path := "/item/delete?key=" + url.QueryEscape(key)
	return c.doAuthorized(ctx, http.MethodDelete, path, nil, nil)
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return nil
}

// doAuthorized performs an authenticated call with the single
// refresh-and-retry policy:
//
//  1. An access token already expired by the local clock is refreshed up
//     front, saving the doomed round-trip. Failure here is not fatal; the
//     request proceeds and the 401 path below decides.
//  2. On a 401 response, exactly one refresh is attempted. Only if it
//     succeeds (and the new pair is persisted) is the original call retried
//     once with the new access token.
//  3. A refresh failure, or a second 401 after a successful refresh, is
//     surfaced as common.ErrUnauthorized. Never loops.
func (c *HTTPClient) doAuthorized(ctx context.Context, method, path string, body, out any) error {
	pair := c.tokens.Tokens()
	if pair.AccessToken == "" {
		return common.ErrUnauthorized
	}

	if tokenExpired(pair.AccessToken) {
		if refreshed, err := c.refresh(ctx, pair.RefreshToken); err == nil {
			pair = refreshed
		} else {
			c.log.Debug(ctx, "proactive token refresh failed", "error", err)
		}
	}

	r, err := c.do(ctx, method, path, pair.AccessToken, body, out)
	if err != nil {
		return err
	}
	if r.status != http.StatusUnauthorized {
		return r.err()
	}

	refreshed, err := c.refresh(ctx, c.tokens.Tokens().RefreshToken)
	if err != nil {
		c.log.Warn(ctx, "token refresh failed", "error", err)
		return common.ErrUnauthorized
	}

	r, err = c.do(ctx, method, path, refreshed.AccessToken, body, out)
	if err != nil {
		return err
	}
	return r.err()
}

// refresh exchanges the refresh token for a new pair and persists it
// through the TokenStore before returning.
func (c *HTTPClient) refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	if refreshToken == "" {
		return models.TokenPair{}, common.ErrUnauthorized
	}

	body := map[string]string{"refreshToken": refreshToken}
	var pair models.TokenPair
	r, err := c.do(ctx, http.MethodPost, "/auth/refresh", "", body, &pair)
	if err != nil {
		return models.TokenPair{}, err
	}
	if err := r.err(); err != nil {
		return models.TokenPair{}, err
	}

	if err := c.tokens.StoreTokens(ctx, pair); err != nil {
		return models.TokenPair{}, fmt.Errorf("failed to persist refreshed tokens: %w", err)
	}
	c.log.Debug(ctx, "access token refreshed")
	return pair, nil
}

// do sends one JSON request and decodes a 2xx response body into out (when
// out is non-nil). Only transport failures produce an error; HTTP-level
// failures are reported through the reply.
func (c *HTTPClient) do(ctx context.Context, method, path, accessToken string, body, out any) (reply, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return reply{}, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return reply{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return reply{}, fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return reply{}, fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}

	r := reply{status: resp.StatusCode}
	if resp.StatusCode >= 400 {
		var errBody struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if err := json.Unmarshal(raw, &errBody); err == nil {
			if errBody.Message != "" {
				r.message = errBody.Message
			} else {
				r.message = errBody.Error
			}
		}
		return r, nil
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return reply{}, fmt.Errorf("%w: bad response body: %v", common.ErrRemote, err)
		}
	}
	return r, nil
}
