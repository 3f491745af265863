package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/twohreichel/pisovereign/internal/service/memory"
	"github.com/twohreichel/pisovereign/pkg/log"
	"github.com/twohreichel/pisovereign/pkg/srv"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the background memory maintenance worker",
	Long:  `Applies importance decay and removes forgotten memories on every SOVEREIGN_MEMORY_MAINTENANCE_INTERVAL until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// logger setup
		var flushLog func()
		ctx, flushLog = setupLogger(ctx, os.Stdout)
		defer flushLog()

		logger := log.FromCtx(ctx)
		logger.Info().Msg("starting pisovereign memory worker")

		return withApp(ctx, func(ctx context.Context, app *App) error {
			maintainer := memory.NewMaintainer(app.Service, app.Memory.MaintenanceInterval)

			services := []srv.Service{maintainer}

			// Start services
			srv.StartServices(ctx, services)

			// Wait for shutdown signal
			srv.ShutdownServices(ctx, services)
			logger.Info().Msg("pisovereign has been shut down gracefully")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}
