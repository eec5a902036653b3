// Package models defines the data types shared by the listvault client:
// list records in decrypted and wire form, pending mutations, and session
// data.
package models

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RecordPayload is the plaintext schema of a record. It is what gets
// JSON-serialized and encrypted into the wire payload; the remote service
// never sees these fields.
type RecordPayload struct {
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Record is a decrypted list entry. Key is an opaque stable identifier:
// client-generated at creation, possibly replaced by a server-assigned key
// after the first successful create.
type Record struct {
	Key string `json:"key"`
	RecordPayload
}

// NewRecord builds a fresh record with a client-generated key and both
// timestamps set to now.
func NewRecord(title string) Record {
	now := time.Now().UTC()
	return Record{
		Key: uuid.NewString(),
		RecordPayload: RecordPayload{
			Title:     title,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

// EncryptedRecord is the wire/remote form of a record. Data is the opaque
// base64(nonce || ciphertext) payload; only Key and Data ever leave the
// client.
type EncryptedRecord struct {
	Key  string `json:"key"`
	Data string `json:"data"`
}

// DecodePayloadStrict parses raw JSON into a RecordPayload, rejecting
// unknown fields and payloads without a usable createdAt. It backs the
// unencrypted-fallback path during reconciliation: a blob that fails
// authenticated decryption is only accepted if it already matches this
// schema.
func DecodePayloadStrict(raw []byte) (RecordPayload, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var p RecordPayload
	if err := dec.Decode(&p); err != nil {
		return RecordPayload{}, false
	}
	if dec.More() {
		return RecordPayload{}, false
	}
	if p.CreatedAt.IsZero() {
		return RecordPayload{}, false
	}
	return p, true
}
