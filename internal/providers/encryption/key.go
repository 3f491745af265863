package encryption

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/twohreichel/pisovereign/internal/core"
	"golang.org/x/crypto/chacha20poly1305"
)

// GenerateKey returns a fresh random key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

// WriteKey writes key to path with owner-only permissions. An existing file
// is only replaced when overwrite is set.
func WriteKey(path string, key []byte, overwrite bool) error {
	if len(key) != chacha20poly1305.KeySize {
		return fmt.Errorf("%w: expected %d bytes, got %d", core.ErrInvalidKey, chacha20poly1305.KeySize, len(key))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags |= os.O_EXCL
	}

	f, err := os.OpenFile(path, flags, 0600)
	if err != nil {
		return fmt.Errorf("failed to open key file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(key); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return f.Chmod(0600)
}

// LoadOrCreateKey reads the key at path, generating and persisting a new
// one when the file does not exist.
func LoadOrCreateKey(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err == nil {
		if len(key) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("%w: %s holds %d bytes, expected %d", core.ErrInvalidKey, path, len(key), chacha20poly1305.KeySize)
		}
		return key, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	key, err = GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := WriteKey(path, key, false); err != nil {
		return nil, err
	}
	return key, nil
}
