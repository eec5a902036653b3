package cryptox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey_Deterministic(t *testing.T) {
	password := []byte("secret-password")
	salt := []byte("0123456789abcdef")

	key1 := DeriveKey(password, salt)
	key2 := DeriveKey(password, salt)

	assert.Equal(t, key1, key2)
	assert.Len(t, key1, 32)
}

func TestDeriveKey_DifferentSalts(t *testing.T) {
	password := []byte("secret-password")

	key1 := DeriveKey(password, []byte("salt-one--------"))
	key2 := DeriveKey(password, []byte("salt-two--------"))

	assert.NotEqual(t, key1, key2)
}

func TestGenerateSalt(t *testing.T) {
	s1, err := GenerateSalt()
	require.NoError(t, err)
	s2, err := GenerateSalt()
	require.NoError(t, err)

	assert.Len(t, s1, 16)
	assert.NotEqual(t, s1, s2)
}

func TestSaltEncoding_RoundTrip(t *testing.T) {
	salt, err := GenerateSalt()
	require.NoError(t, err)

	decoded, err := DecodeSalt(EncodeSalt(salt))
	require.NoError(t, err)
	assert.Equal(t, salt, decoded)
}

func TestDecodeSalt_Invalid(t *testing.T) {
	_, err := DecodeSalt("not base64 at all!!!")
	assert.Error(t, err)
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	key := DeriveKey([]byte("pw"), []byte("0123456789abcdef"))

	for _, plaintext := range []string{"", "x", `{"title":"Buy milk","completed":false}`} {
		ct, err := Encrypt([]byte(plaintext), key)
		require.NoError(t, err)

		pt, err := Decrypt(ct, key)
		require.NoError(t, err)
		assert.Equal(t, plaintext, string(pt))
	}
}

func TestEncrypt_FreshNoncePerCall(t *testing.T) {
	key := DeriveKey([]byte("pw"), []byte("0123456789abcdef"))

	ct1, err := Encrypt([]byte("same plaintext"), key)
	require.NoError(t, err)
	ct2, err := Encrypt([]byte("same plaintext"), key)
	require.NoError(t, err)

	assert.NotEqual(t, ct1, ct2)
}

func TestDecrypt_WrongKey(t *testing.T) {
	key1 := DeriveKey([]byte("pw1"), []byte("0123456789abcdef"))
	key2 := DeriveKey([]byte("pw2"), []byte("0123456789abcdef"))

	ct, err := Encrypt([]byte("payload"), key1)
	require.NoError(t, err)

	_, err = Decrypt(ct, key2)
	assert.Error(t, err)
}

func TestDecrypt_Malformed(t *testing.T) {
	key := DeriveKey([]byte("pw"), []byte("0123456789abcdef"))

	for _, payload := range []string{"", "!!not-base64!!", "c2hvcnQ="} {
		_, err := Decrypt(payload, key)
		assert.Error(t, err, "payload %q should fail", payload)
	}
}

func TestMakeVerifier_DistinguishesKeys(t *testing.T) {
	v1 := MakeVerifier([]byte("key-one"))
	v2 := MakeVerifier([]byte("key-two"))

	assert.Len(t, v1, 32)
	assert.NotEqual(t, v1, v2)
	assert.Equal(t, v1, MakeVerifier([]byte("key-one")))
}
