package test

import (
	"os"
	"testing"

	"github.com/twohreichel/pisovereign/internal/config"
)

const (
	EmbeddingURLEnv   = "SOVEREIGN_TEST_EMBEDDING_URL"
	EmbeddingModelEnv = "SOVEREIGN_TEST_EMBEDDING_MODEL"

	defaultEmbeddingModel = "nomic-embed-text"
)

// GetEmbeddingConfig points the OpenAI-compatible embedder at a live
// endpoint (e.g. Ollama's /v1), skipping the test when none is configured.
func GetEmbeddingConfig(t *testing.T) *config.EmbeddingConfig {
	t.Helper()

	url := os.Getenv(EmbeddingURLEnv)
	if url == "" {
		t.Skipf("%s not set, skipping live embedding test", EmbeddingURLEnv)
	}

	model := os.Getenv(EmbeddingModelEnv)
	if model == "" {
		model = defaultEmbeddingModel
	}

	settings, err := config.DefaultSettings()
	if err != nil {
		t.Fatalf("failed to resolve default settings: %v", err)
	}

	cfg := &settings.Embedding
	cfg.Provider = config.EmbeddingProviderOpenAI
	cfg.BaseURL = url
	cfg.Model = model
	return cfg
}
