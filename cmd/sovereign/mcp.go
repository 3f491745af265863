package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/twohreichel/pisovereign/internal/transport/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the memory tools over MCP stdio",
	Long: `Starts a Model Context Protocol server on stdin/stdout exposing the remember,
recall, forget and memory_stats tools. Logs go to stderr.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// stdout carries the protocol
		ctx, flushLog := setupLogger(ctx, os.Stderr)
		defer flushLog()

		return withApp(ctx, func(ctx context.Context, app *App) error {
			userID, err := app.UserID()
			if err != nil {
				return err
			}

			server := mcp.NewServer(app.Service, userID, os.Stdin, os.Stdout)
			defer server.Shutdown(ctx)
			return server.Start(ctx)
		})
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
