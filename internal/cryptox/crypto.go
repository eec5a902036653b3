// Package cryptox implements the client-side cryptography for listvault:
// password-based key derivation and authenticated encryption of record
// payloads. All functions are stateless.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// PBKDF2 parameters. keyLength is 32 bytes for AES-256-GCM.
	pbkdf2Iterations = 100000
	keyLength        = 32
	saltLength       = 16

	nonceLength = 12
)

var ErrMalformedPayload = errors.New("malformed encrypted payload")

// DeriveKey derives a 256-bit symmetric key from password and salt using
// PBKDF2-SHA256. Deterministic: the same password and salt always yield the
// same key.
func DeriveKey(password, salt []byte) []byte {
	return pbkdf2.Key(password, salt, pbkdf2Iterations, keyLength, sha256.New)
}

// MakeVerifier returns SHA-256 of the derived key. The verifier is safe to
// persist locally and lets the session manager reject a wrong password on
// rearm without ever storing the key itself.
func MakeVerifier(key []byte) []byte {
	hash := sha256.Sum256(key)
	return hash[:]
}

// GenerateSalt returns 16 random bytes. A salt is generated once per account
// on first key derivation and never regenerated unless all local data is
// wiped.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("salt generation failed: %w", err)
	}
	return salt, nil
}

// EncodeSalt encodes a salt for durable storage.
func EncodeSalt(salt []byte) string {
	return base64.StdEncoding.EncodeToString(salt)
}

// DecodeSalt is the inverse of EncodeSalt.
func DecodeSalt(s string) ([]byte, error) {
	salt, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("salt decoding failed: %w", err)
	}
	return salt, nil
}

// Encrypt encrypts plaintext with AES-GCM under the given key and returns
// base64(nonce || ciphertext). A fresh random 12-byte nonce is generated on
// every call; reusing a nonce under the same key would void the GCM
// guarantees, so the nonce is never taken from the caller.
func Encrypt(plaintext, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("cipher init failed: %w", err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("gcm init failed: %w", err)
	}

	nonce := make([]byte, nonceLength)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("nonce generation failed: %w", err)
	}

	ct := aesgcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(ct), nil
}

// Decrypt reverses Encrypt. It returns an error (never panics) on malformed
// input, a corrupted ciphertext, or a wrong key; callers rely on that error
// to drive their plaintext-fallback handling.
func Decrypt(payload string, key []byte) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, ErrMalformedPayload
	}
	if len(raw) < nonceLength {
		return nil, ErrMalformedPayload
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher init failed: %w", err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm init failed: %w", err)
	}

	nonce, ct := raw[:nonceLength], raw[nonceLength:]
	plaintext, err := aesgcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plaintext, nil
}
