// Package secrets seals integration credentials before they are stored.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

var (
	ErrNoKey       = errors.New("secret key not configured")
	ErrShortCipher = errors.New("ciphertext too short")
)

// Box encrypts values with AES-256-GCM. A nil *Box has no key and
// refuses to seal or open anything.
type Box struct {
	gcm cipher.AEAD
}

// NewBox creates a box from a 32 byte key. An empty key returns a nil box.
func NewBox(key string) (*Box, error) {
	if key == "" {
		return nil, nil
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("secret key must be exactly 32 bytes long for AES-256 encryption")
	}

	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Box{gcm: gcm}, nil
}

// Seal encrypts plaintext and returns it base64 encoded with the nonce prepended
func (b *Box) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	if b == nil {
		return "", ErrNoKey
	}

	nonce := make([]byte, b.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	ciphertext := b.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Open reverses Seal
func (b *Box) Open(sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	if b == nil {
		return "", ErrNoKey
	}

	ciphertext, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64: %w", err)
	}
	size := b.gcm.NonceSize()
	if len(ciphertext) < size {
		return "", ErrShortCipher
	}

	nonce, ciphertext := ciphertext[:size], ciphertext[size:]
	plaintext, err := b.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plaintext), nil
}
