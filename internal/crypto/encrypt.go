// Package crypto seals small payloads that leave the server, such as the
// guest cart cookie.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

var (
	ErrInvalidKey         = errors.New("crypto: encryption key must be 32 bytes for AES-256")
	ErrCiphertextTooShort = errors.New("crypto: ciphertext too short")
)

// Encryptor provides authenticated encryption for opaque client-held values.
type Encryptor interface {
	// Encrypt returns URL-safe base64 of nonce+ciphertext+tag.
	Encrypt(plaintext []byte) ([]byte, error)

	// Decrypt reverses Encrypt, failing if the value was tampered with.
	Decrypt(ciphertext []byte) ([]byte, error)
}

// AESEncryptor implements Encryptor using AES-256-GCM.
type AESEncryptor struct {
	gcm cipher.AEAD
}

// NewAESEncryptor creates an AES-256-GCM encryptor.
func NewAESEncryptor(key []byte) (*AESEncryptor, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: new gcm: %w", err)
	}
	return &AESEncryptor{gcm: gcm}, nil
}

// Encrypt seals plaintext under a random nonce.
func (e *AESEncryptor) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("crypto: nonce: %w", err)
	}
	sealed := e.gcm.Seal(nonce, nonce, plaintext, nil)

	out := make([]byte, base64.RawURLEncoding.EncodedLen(len(sealed)))
	base64.RawURLEncoding.Encode(out, sealed)
	return out, nil
}

// Decrypt opens a value produced by Encrypt.
func (e *AESEncryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	raw := make([]byte, base64.RawURLEncoding.DecodedLen(len(ciphertext)))
	n, err := base64.RawURLEncoding.Decode(raw, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("crypto: decode: %w", err)
	}
	raw = raw[:n]

	ns := e.gcm.NonceSize()
	if len(raw) < ns+e.gcm.Overhead() {
		return nil, ErrCiphertextTooShort
	}
	plaintext, err := e.gcm.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return nil, fmt.Errorf("crypto: open: %w", err)
	}
	return plaintext, nil
}

// GenerateKey generates a cryptographically secure 32-byte key for AES-256.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("crypto: generate key: %w", err)
	}
	return key, nil
}

// EncodeKeyBase64 encodes an encryption key as base64 for storage in env vars.
func EncodeKeyBase64(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

// DecodeKeyBase64 decodes a base64-encoded encryption key from env vars.
func DecodeKeyBase64(encodedKey string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("crypto: decode key: %w", err)
	}
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	return key, nil
}
