package config

import (
	"context"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/twohreichel/pisovereign/pkg/log"
)

const (
	EmbeddingProviderOpenAI = "openai"
	EmbeddingProviderLocal  = "local"
)

type EmbeddingConfig struct {
	Provider   string        `env:"PROVIDER" envDefault:"openai"`
	BaseURL    string        `env:"BASE_URL" envDefault:"http://localhost:11434/v1"`
	APIKey     string        `env:"API_KEY" envDefault:"ollama"`
	Model      string        `env:"MODEL" envDefault:"nomic-embed-text"`
	Dimensions int           `env:"DIMENSIONS" envDefault:"384"`
	Timeout    time.Duration `env:"TIMEOUT" envDefault:"30s"`
	// MaxTokens bounds a single request; longer input is chunked.
	MaxTokens int `env:"MAX_TOKENS" envDefault:"2048"`
	// CacheSize of 0 disables the embedding cache.
	CacheSize int `env:"CACHE_SIZE" envDefault:"1024"`
}

func NewEmbeddingConfig(ctx context.Context) *EmbeddingConfig {
	c := &EmbeddingConfig{}
	if err := env.ParseWithOptions(c, env.Options{Prefix: "SOVEREIGN_EMBEDDING_"}); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Embedding config")
	}
	return c
}
