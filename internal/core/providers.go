package core

import "context"

type ModelInfo struct {
	Model      string
	Dimensions int
	// MaxTokens is 0 when the model has no known input limit.
	MaxTokens int
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	ModelInfo() ModelInfo
}

// Encryptor is string in, string out. Ciphertext encoding is the
// implementation's business.
type Encryptor interface {
	IsEnabled() bool
	EncryptString(ctx context.Context, plaintext string) (string, error)
	DecryptString(ctx context.Context, ciphertext string) (string, error)
}
