package config

import (
	"context"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/twohreichel/pisovereign/pkg/log"
)

const (
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

type AppConfig struct {
	RuntimePath string `env:"SOVEREIGN_RUNTIME_PATH" envDefault:".pisovereign"`

	// Storage backend for memories
	StorageDriver string `env:"SOVEREIGN_STORAGE_DRIVER" envDefault:"sqlite"`
	PostgresDSN   string `env:"SOVEREIGN_POSTGRES_DSN"`

	// Owner of memories created from the CLI, shell and MCP surfaces
	UserID string `env:"SOVEREIGN_USER_ID"`
}

func NewAppConfig(ctx context.Context) *AppConfig {
	c := &AppConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse App config")
	}
	c.RuntimePath = GetRuntimePath()
	return c
}

func (c AppConfig) GetRuntimePath() string {
	return c.RuntimePath
}

func (c AppConfig) GetDatabasePath() string {
	return filepath.Join(c.RuntimePath, "memory.db")
}

func (c AppConfig) GetEnvPath() string {
	return filepath.Join(c.RuntimePath, ".env")
}

func (c AppConfig) GetHistoryPath() string {
	return filepath.Join(c.RuntimePath, "shell_history")
}

// ResolvePath anchors relative paths at the runtime directory.
func (c AppConfig) ResolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.RuntimePath, path)
}

// GetUserID parses the configured owner id. An empty or malformed value
// yields uuid.Nil and false.
func (c AppConfig) GetUserID() (uuid.UUID, bool) {
	if c.UserID == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(c.UserID)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
