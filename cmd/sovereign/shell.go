package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/twohreichel/pisovereign/internal/service/command"
	"github.com/twohreichel/pisovereign/internal/transport/cli"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive memory shell",
	Long:  `Opens a readline shell. Slash commands (/remember, /recall, /forget, /memories, /stats, /help) manage memories; any other line is recalled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		ctx, flushLog := setupLogger(ctx, os.Stderr)
		defer flushLog()

		return withApp(ctx, func(ctx context.Context, app *App) error {
			userID, err := app.UserID()
			if err != nil {
				return err
			}

			shell, err := cli.NewReadLine(command.NewRouter(app.Service), userID, app.Config)
			if err != nil {
				return err
			}
			defer shell.Shutdown(ctx)
			return shell.Start(ctx)
		})
	},
}

func init() {
	rootCmd.AddCommand(shellCmd)
}
