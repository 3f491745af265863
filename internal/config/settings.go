package config

import (
	"github.com/caarlos0/env/v11"
)

// Settings groups every section the runtime .env can carry.
type Settings struct {
	App       AppConfig
	Memory    MemoryConfig    `envPrefix:"SOVEREIGN_MEMORY_"`
	Embedding EmbeddingConfig `envPrefix:"SOVEREIGN_EMBEDDING_"`
}

// DefaultSettings resolves only the envDefault tags, ignoring the process
// environment.
func DefaultSettings() (*Settings, error) {
	s := &Settings{}
	if err := env.ParseWithOptions(s, env.Options{Environment: map[string]string{}}); err != nil {
		return nil, err
	}
	return s, nil
}
