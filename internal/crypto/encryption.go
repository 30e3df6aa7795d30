// Package crypto encrypts the connection credentials (TLS keys,
// macaroons) carried in a DiscoveryBackend's opaque implementation
// descriptor before it is persisted, so the Discovery Store never holds
// raw credential bytes at rest.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/sha3"
)

const (
	KeySize        = 32 // AES-256 requires 32 bytes
	NonceSize      = 12 // GCM standard nonce size
	SaltSize       = 16 // Salt for key derivation
	kdfIterations  = 600_000
)

// Encrypt encrypts plaintext using AES-256-GCM. Returns base64-encoded:
// nonce + ciphertext.
func Encrypt(plaintext string, key []byte) (string, error) {
	if len(key) != KeySize {
		return "", errors.New("encryption key must be 32 bytes long")
	}

	aesCipher, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	aesGcm, err := cipher.NewGCM(aesCipher)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := aesGcm.Seal(nil, nonce, []byte(plaintext), nil)
	result := append(nonce, ciphertext...)

	return base64.StdEncoding.EncodeToString(result), nil
}

// Decrypt decrypts AES-256-GCM encrypted data produced by Encrypt.
func Decrypt(ciphertext string, key []byte) (string, error) {
	if len(key) != KeySize {
		return "", errors.New("encryption key must be 32 bytes long")
	}

	decoded, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}

	if len(decoded) < NonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce := decoded[:NonceSize]
	cipherData := decoded[NonceSize:]

	aesCipher, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	aesGcm, err := cipher.NewGCM(aesCipher)
	if err != nil {
		return "", err
	}

	plaintext, err := aesGcm.Open(nil, nonce, cipherData, nil)
	if err != nil {
		return "", errors.New("decryption failed: invalid key or corrupted data")
	}

	return string(plaintext), nil
}

// GenerateKey generates a random 32-byte encryption key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// DeriveKey derives a 32-byte encryption key from a master key and salt
// using PBKDF2 with a SHA3-256 PRF.
func DeriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, kdfIterations, KeySize, sha3.New256)
}

// EncryptWithPassword encrypts data using a password, handling salt
// generation and key derivation internally. Output is base64-encoded:
// salt + nonce + ciphertext.
func EncryptWithPassword(plaintext, password string) (string, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := DeriveKey(password, salt)
	encrypted, err := Encrypt(plaintext, key)
	if err != nil {
		return "", err
	}

	decoded, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(append(salt, decoded...)), nil
}

// DecryptWithPassword decrypts data encrypted with EncryptWithPassword.
func DecryptWithPassword(ciphertext, password string) (string, error) {
	decoded, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}
	if len(decoded) < SaltSize {
		return "", errors.New("ciphertext too short")
	}

	salt := decoded[:SaltSize]
	rest := decoded[SaltSize:]
	key := DeriveKey(password, salt)

	return Decrypt(base64.StdEncoding.EncodeToString(rest), key)
}
