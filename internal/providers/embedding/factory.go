package embedding

import (
	"fmt"

	"github.com/twohreichel/pisovereign/internal/config"
	"github.com/twohreichel/pisovereign/internal/core"
)

// NewEmbedder builds the configured embedder, wrapped in a cache unless
// CacheSize is 0.
func NewEmbedder(cfg *config.EmbeddingConfig) (core.Embedder, error) {
	var inner core.Embedder

	switch cfg.Provider {
	case config.EmbeddingProviderOpenAI:
		inner = NewOpenAI(cfg)
	case config.EmbeddingProviderLocal:
		inner = NewLocal(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}

	if cfg.CacheSize <= 0 {
		return inner, nil
	}

	cached, err := NewCached(inner, cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	return cached, nil
}
