package config

import (
	"context"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/twohreichel/pisovereign/pkg/log"
)

type MemoryConfig struct {
	Enabled        bool `env:"ENABLED" envDefault:"true"`
	EnableRAG      bool `env:"ENABLE_RAG" envDefault:"true"`
	EnableLearning bool `env:"ENABLE_LEARNING" envDefault:"true"`

	// Retrieval
	RAGLimit     int     `env:"RAG_LIMIT" envDefault:"5"`
	RAGThreshold float32 `env:"RAG_THRESHOLD" envDefault:"0.5"`

	// Retention
	MergeThreshold      float32       `env:"MERGE_THRESHOLD" envDefault:"0.85"`
	MinImportance       float32       `env:"MIN_IMPORTANCE" envDefault:"0.1"`
	DecayFactor         float32       `env:"DECAY_FACTOR" envDefault:"0.95"`
	MaintenanceInterval time.Duration `env:"MAINTENANCE_INTERVAL" envDefault:"24h"`

	// Encryption at rest
	EnableEncryption  bool   `env:"ENABLE_ENCRYPTION" envDefault:"true"`
	EncryptionKeyPath string `env:"ENCRYPTION_KEY_PATH" envDefault:"memory_encryption.key"`
}

func NewMemoryConfig(ctx context.Context) *MemoryConfig {
	c := &MemoryConfig{}
	if err := env.ParseWithOptions(c, env.Options{Prefix: "SOVEREIGN_MEMORY_"}); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Memory config")
	}
	return c
}
