package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/twohreichel/pisovereign/internal/config"
	"github.com/twohreichel/pisovereign/internal/core"
	"github.com/twohreichel/pisovereign/internal/providers/embedding"
	"github.com/twohreichel/pisovereign/internal/providers/encryption"
	"github.com/twohreichel/pisovereign/internal/service/memory"
	"github.com/twohreichel/pisovereign/internal/storage/postgres"
	"github.com/twohreichel/pisovereign/internal/storage/sqlite"
	"github.com/twohreichel/pisovereign/pkg/log"
	"github.com/twohreichel/pisovereign/pkg/srv"
)

var (
	errNoUser         = errors.New("no user id: pass --user or set SOVEREIGN_USER_ID (`sovereign init` generates one)")
	errMemoryDisabled = errors.New("memory is disabled (SOVEREIGN_MEMORY_ENABLED=false)")
)

// App holds the wired memory stack for one CLI invocation.
type App struct {
	Config    *config.AppConfig
	Memory    *config.MemoryConfig
	Embedding *config.EmbeddingConfig

	Service *memory.Service

	// cleanups run in reverse order on Close; also handed to srv for long-running commands.
	cleanups []srv.Service
}

func NewApp(ctx context.Context) (*App, error) {
	logger := log.FromCtx(ctx)

	// init env
	if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
		return nil, fmt.Errorf("failed to init env: %w", err)
	}

	// 1. Configuration
	app := &App{
		Config:    config.NewAppConfig(ctx),
		Memory:    config.NewMemoryConfig(ctx),
		Embedding: config.NewEmbeddingConfig(ctx),
	}

	// 2. Storage
	db, store, err := initStorage(ctx, app.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.cleanups = append(app.cleanups, srv.NewCleanup(db.Close))

	// 3. Embedder
	embedder, err := embedding.NewEmbedder(app.Embedding)
	if err != nil {
		_ = app.Close(ctx)
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	if cached, ok := embedder.(*embedding.Cached); ok {
		app.cleanups = append(app.cleanups, srv.NewCleanup(func() error {
			cached.Close()
			return nil
		}))
	}

	// 4. Encryption at rest
	encryptor, err := encryption.NewEncryptor(app.Memory, app.Config.ResolvePath(app.Memory.EncryptionKeyPath))
	if err != nil {
		_ = app.Close(ctx)
		return nil, fmt.Errorf("failed to initialize encryption: %w", err)
	}

	app.Service = memory.NewService(store, embedder, encryptor, memory.ServiceConfigFrom(app.Memory))

	info := embedder.ModelInfo()
	logger.Debug().
		Str("storage", app.Config.StorageDriver).
		Str("embedding_model", info.Model).
		Int("dimensions", info.Dimensions).
		Bool("encrypted", encryptor.IsEnabled()).
		Msg("memory stack ready")

	return app, nil
}

// Services returns the teardown hooks for srv.ShutdownServices.
func (a *App) Services() []srv.Service {
	return a.cleanups
}

func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		if err := a.cleanups[i].Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.cleanups = nil
	return errors.Join(errs...)
}

// UserID resolves the --user flag, falling back to SOVEREIGN_USER_ID.
func (a *App) UserID() (uuid.UUID, error) {
	if userID != "" {
		id, err := uuid.Parse(userID)
		if err != nil {
			return uuid.Nil, fmt.Errorf("invalid --user %q: %w", userID, err)
		}
		return id, nil
	}
	if id, ok := a.Config.GetUserID(); ok {
		return id, nil
	}
	return uuid.Nil, errNoUser
}

func initStorage(ctx context.Context, cfg *config.AppConfig) (*sql.DB, core.MemoryStore, error) {
	switch cfg.StorageDriver {
	case config.StorageSQLite:
		db, err := sqlite.NewDB(ctx, cfg.GetDatabasePath())
		if err != nil {
			return nil, nil, err
		}
		return db, sqlite.NewMemoryRepo(db), nil
	case config.StoragePostgres:
		db, err := postgres.NewDB(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return db, postgres.NewMemoryRepo(db), nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver: %s", cfg.StorageDriver)
	}
}

func initEnv(ctx context.Context, runtimePath string) error {
	logger := log.FromCtx(ctx)
	envFile := (&config.AppConfig{RuntimePath: runtimePath}).GetEnvPath()

	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(envFile); err != nil {
		logger.Warn().Err(err).Str("path", envFile).Msg("failed to load .env file")
		return err
	}

	logger.Debug().Str("path", envFile).Msg("loaded .env file")
	return nil
}

// withApp wires the stack, runs fn and tears everything down.
func withApp(ctx context.Context, fn func(ctx context.Context, app *App) error) error {
	app, err := NewApp(ctx)
	if err != nil {
		return err
	}
	if !app.Memory.Enabled {
		_ = app.Close(ctx)
		return errMemoryDisabled
	}
	defer func() {
		if err := app.Close(ctx); err != nil {
			log.FromCtx(ctx).Warn().Err(err).Msg("failed to close memory stack")
		}
	}()
	return fn(ctx, app)
}
