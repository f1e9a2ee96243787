// Package crypto seals provider credentials at rest.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// KeySize is the AES-256 key length.
const KeySize = 32

var (
	// ErrEmptyKey is returned when no key material was configured.
	ErrEmptyKey = errors.New("encryption key is empty")
	// ErrCiphertextTooShort is returned for input shorter than the nonce.
	ErrCiphertextTooShort = errors.New("ciphertext too short")
)

// Encrypter encrypts and decrypts data.
type Encrypter interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// AESEncrypter seals data with AES-GCM. The nonce is prepended to the output.
type AESEncrypter struct {
	aead cipher.AEAD
}

// NewAESGCM creates an encrypter from a raw 32-byte key.
func NewAESGCM(key []byte) (*AESEncrypter, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AESEncrypter{aead: aead}, nil
}

// NewAESGCMFromBase64Key creates an encrypter from a base64-encoded 32-byte key,
// the form ENCRYPTION_KEY is given in.
func NewAESGCMFromBase64Key(encodedKey string) (*AESEncrypter, error) {
	encodedKey = strings.TrimSpace(encodedKey)
	if encodedKey == "" {
		return nil, ErrEmptyKey
	}
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	return NewAESGCM(key)
}

// LoadOrCreateKeyFile reads a base64 key from path, generating and writing a
// new one (mode 0600) when the file does not exist. Local installs use it so
// tokens are encrypted without extra setup.
func LoadOrCreateKeyFile(path string) (*AESEncrypter, error) {
	raw, err := os.ReadFile(path) // #nosec G304 -- path comes from configuration
	if err == nil {
		return NewAESGCMFromBase64Key(string(raw))
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read key file: %w", err)
	}

	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	encoded := base64.StdEncoding.EncodeToString(key)
	if err := os.WriteFile(path, []byte(encoded+"\n"), 0o600); err != nil {
		return nil, fmt.Errorf("write key file: %w", err)
	}
	return NewAESGCM(key)
}

// Encrypt seals plaintext.
func (e *AESEncrypter) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return e.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a value produced by Encrypt.
func (e *AESEncrypter) Decrypt(ciphertext []byte) ([]byte, error) {
	nonceSize := e.aead.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, ErrCiphertextTooShort
	}
	return e.aead.Open(nil, ciphertext[:nonceSize], ciphertext[nonceSize:], nil)
}
