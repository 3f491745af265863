package core

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("memory not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrEmbeddingFailed  = errors.New("embedding generation failed")
	ErrEncryptionFailed = errors.New("encryption failed")
	ErrDecryptionFailed = errors.New("decryption failed")
	ErrStorageOperation = errors.New("storage operation failed")
	ErrInvalidKey       = errors.New("invalid encryption key")
)

// MemoryError records which memory operation failed.
type MemoryError struct {
	Op  string
	Err error
}

func (e *MemoryError) Error() string {
	return fmt.Sprintf("memory: %s: %v", e.Op, e.Err)
}

func (e *MemoryError) Unwrap() error {
	return e.Err
}

// NewMemoryError wraps err with op. A nil err yields nil.
func NewMemoryError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &MemoryError{Op: op, Err: err}
}

// Wrap tags err with both a sentinel kind and the failing op, so callers can
// match either with errors.Is.
func Wrap(op string, kind, err error) error {
	if err == nil {
		return nil
	}
	return NewMemoryError(op, fmt.Errorf("%w: %w", kind, err))
}
