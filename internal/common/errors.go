// Package common defines shared constants and sentinel errors used across
// the listvault client layers. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Storage-level errors.
	ErrNotFound = errors.New("not found")

	// Transport-level errors: the remote service could not be reached or
	// answered with a non-auth failure. Mutations hitting these are queued
	// locally rather than lost.
	ErrUnavailable = errors.New("server unavailable")
	ErrRemote      = errors.New("remote error")

	// Authorization errors. ErrUnauthorized after a refresh attempt is a
	// session-ending condition for the caller to act on.
	ErrUnauthorized = errors.New("unauthorized")

	// Cryptographic errors.
	ErrDecryptFailed = errors.New("decryption failed")
	ErrKeyUnavailable = errors.New("encryption key unavailable")
)
