package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	ciphertext, err := Encrypt("rune=abc123", key)
	require.NoError(t, err)
	assert.NotEqual(t, "rune=abc123", ciphertext)

	plaintext, err := Decrypt(ciphertext, key)
	require.NoError(t, err)
	assert.Equal(t, "rune=abc123", plaintext)
}

func TestDecrypt_WrongKeyFails(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	otherKey, err := GenerateKey()
	require.NoError(t, err)

	ciphertext, err := Encrypt("secret", key)
	require.NoError(t, err)

	_, err = Decrypt(ciphertext, otherKey)
	assert.Error(t, err)
}

func TestEncrypt_RejectsWrongKeySize(t *testing.T) {
	_, err := Encrypt("secret", []byte("too-short"))
	assert.Error(t, err)
}

func TestDeriveKey_DeterministicForSameSaltAndPassword(t *testing.T) {
	salt := []byte("0123456789abcdef")
	a := DeriveKey("master-passphrase", salt)
	b := DeriveKey("master-passphrase", salt)
	assert.Equal(t, a, b)
	assert.Len(t, a, KeySize)
}

func TestDeriveKey_DifferentSaltDifferentKey(t *testing.T) {
	a := DeriveKey("master-passphrase", []byte("salt-one-16bytes"))
	b := DeriveKey("master-passphrase", []byte("salt-two-16bytes"))
	assert.NotEqual(t, a, b)
}

func TestEncryptDecryptWithPassword_RoundTrip(t *testing.T) {
	ciphertext, err := EncryptWithPassword("client-cert-bytes", "operator-password")
	require.NoError(t, err)

	plaintext, err := DecryptWithPassword(ciphertext, "operator-password")
	require.NoError(t, err)
	assert.Equal(t, "client-cert-bytes", plaintext)
}

func TestDecryptWithPassword_WrongPasswordFails(t *testing.T) {
	ciphertext, err := EncryptWithPassword("client-cert-bytes", "operator-password")
	require.NoError(t, err)

	_, err = DecryptWithPassword(ciphertext, "wrong-password")
	assert.Error(t, err)
}
