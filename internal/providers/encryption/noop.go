package encryption

import (
	"context"

	"github.com/twohreichel/pisovereign/internal/core"
)

// NoOp stores memories in plaintext.
type NoOp struct{}

var _ core.Encryptor = NoOp{}

func (NoOp) IsEnabled() bool { return false }

func (NoOp) EncryptString(_ context.Context, plaintext string) (string, error) {
	return plaintext, nil
}

func (NoOp) DecryptString(_ context.Context, ciphertext string) (string, error) {
	return ciphertext, nil
}
