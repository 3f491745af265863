package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"github.com/twohreichel/pisovereign/internal/config"
	"github.com/twohreichel/pisovereign/internal/providers/encryption"
	"github.com/twohreichel/pisovereign/internal/service/ui"
)

var keygenForce bool

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new memory encryption key",
	Long: `Writes a fresh 32-byte XChaCha20-Poly1305 key to SOVEREIGN_MEMORY_ENCRYPTION_KEY_PATH.
Memories sealed with the previous key become unreadable.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context(), os.Stderr)
		defer flushLog()

		if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
			return err
		}
		appCfg := config.NewAppConfig(ctx)
		memCfg := config.NewMemoryConfig(ctx)

		key, err := encryption.GenerateKey()
		if err != nil {
			return err
		}

		path := appCfg.ResolvePath(memCfg.EncryptionKeyPath)
		if err := encryption.WriteKey(path, key, keygenForce); err != nil {
			if errors.Is(err, fs.ErrExist) {
				return fmt.Errorf("%s already exists, use --force to replace it", path)
			}
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), ui.SuccessStyle.Render("✓ Wrote "+path))
		return nil
	},
}

func init() {
	keygenCmd.Flags().BoolVar(&keygenForce, "force", false, "replace an existing key")
	rootCmd.AddCommand(keygenCmd)
}
