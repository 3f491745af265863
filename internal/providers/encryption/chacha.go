package encryption

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"unicode/utf8"

	"github.com/twohreichel/pisovereign/internal/core"
	"golang.org/x/crypto/chacha20poly1305"
)

// ChaCha encrypts with XChaCha20-Poly1305. Ciphertext is
// base64(nonce || sealed) so it round-trips through TEXT columns.
type ChaCha struct {
	aead cipher.AEAD
}

var _ core.Encryptor = (*ChaCha)(nil)

func NewChaCha(key []byte) (*ChaCha, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", core.ErrInvalidKey, chacha20poly1305.KeySize, len(key))
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidKey, err)
	}

	return &ChaCha{aead: aead}, nil
}

func (c *ChaCha) IsEnabled() bool {
	return true
}

func (c *ChaCha) EncryptString(_ context.Context, plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("%w: nonce: %w", core.ErrEncryptionFailed, err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *ChaCha) DecryptString(_ context.Context, ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: invalid base64: %w", core.ErrDecryptionFailed, err)
	}

	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize {
		return "", fmt.Errorf("%w: ciphertext too short", core.ErrDecryptionFailed)
	}

	plain, err := c.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrDecryptionFailed, err)
	}

	if !utf8.Valid(plain) {
		return "", fmt.Errorf("%w: plaintext is not valid UTF-8", core.ErrDecryptionFailed)
	}
	return string(plain), nil
}
