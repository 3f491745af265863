package encryption

import (
	"github.com/twohreichel/pisovereign/internal/config"
	"github.com/twohreichel/pisovereign/internal/core"
)

// NewEncryptor returns NoOp when encryption is disabled, otherwise a ChaCha
// keyed from keyPath (created on first use).
func NewEncryptor(cfg *config.MemoryConfig, keyPath string) (core.Encryptor, error) {
	if !cfg.EnableEncryption {
		return NoOp{}, nil
	}

	key, err := LoadOrCreateKey(keyPath)
	if err != nil {
		return nil, err
	}
	return NewChaCha(key)
}
