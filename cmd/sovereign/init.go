package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/twohreichel/pisovereign/internal/config"
	"github.com/twohreichel/pisovereign/internal/providers/encryption"
	"github.com/twohreichel/pisovereign/internal/service/ui"
	"github.com/twohreichel/pisovereign/pkg/env"
	"github.com/twohreichel/pisovereign/pkg/log"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the runtime directory, .env and encryption key",
	Long: `Writes a .env with every setting at its default, a fresh user id, and a
32-byte encryption key into the runtime directory (SOVEREIGN_RUNTIME_PATH).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context(), os.Stderr)
		defer flushLog()
		logger := log.FromCtx(ctx)

		runtimePath := config.GetRuntimePath()
		if err := os.MkdirAll(runtimePath, 0o700); err != nil {
			return fmt.Errorf("failed to create runtime directory: %w", err)
		}

		settings, err := config.DefaultSettings()
		if err != nil {
			return fmt.Errorf("failed to resolve default settings: %w", err)
		}
		settings.App.RuntimePath = runtimePath
		settings.App.UserID = uuid.NewString()
		if userID != "" {
			if _, err := uuid.Parse(userID); err != nil {
				return fmt.Errorf("invalid --user %q: %w", userID, err)
			}
			settings.App.UserID = userID
		}

		envPath := settings.App.GetEnvPath()
		if _, err := os.Stat(envPath); err == nil && !initForce {
			return fmt.Errorf("%s already exists, use --force to overwrite", envPath)
		}

		content, err := env.MarshalEnv(settings)
		if err != nil {
			return fmt.Errorf("failed to render .env: %w", err)
		}
		if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", envPath, err)
		}
		logger.Debug().Str("path", envPath).Msg("wrote .env")

		keyPath := settings.App.ResolvePath(settings.Memory.EncryptionKeyPath)
		if _, err := encryption.LoadOrCreateKey(keyPath); err != nil {
			return fmt.Errorf("failed to prepare encryption key: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, ui.SuccessStyle.Render("✓ Initialized "+runtimePath))
		fmt.Fprintf(out, "  %s %s\n", ui.LabelStyle.Render("env:"), envPath)
		fmt.Fprintf(out, "  %s %s\n", ui.LabelStyle.Render("key:"), keyPath)
		fmt.Fprintf(out, "  %s %s\n", ui.LabelStyle.Render("user:"), settings.App.UserID)
		fmt.Fprintln(out, ui.DescStyle.Render("Back up "+filepath.Base(keyPath)+": memories cannot be read without it."))
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing .env")
	rootCmd.AddCommand(initCmd)
}
