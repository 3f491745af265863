package srv

import (
	"context"
	"time"

	"github.com/twohreichel/pisovereign/pkg/log"
)

// ShutdownTimeout bounds how long ShutdownServices waits on all services.
const ShutdownTimeout = 10 * time.Second

type Service interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

func StartServices(ctx context.Context, services []Service) {
	logger := log.FromCtx(ctx)
	for _, service := range services {
		go func(service Service) {
			if err := service.Start(ctx); err != nil {
				logger.Fatal().Err(err).Msgf("%T failed to start", service)
			}
		}(service)
	}
}

// ShutdownServices blocks until ctx is done, then shuts services down in
// reverse start order so storage is closed after its consumers.
func ShutdownServices(ctx context.Context, services []Service) {
	<-ctx.Done()

	logger := log.FromCtx(ctx)
	shutdownCtx, cancel := context.WithTimeout(logger.WithContext(context.Background()), ShutdownTimeout)
	defer cancel()

	for i := len(services) - 1; i >= 0; i-- {
		if err := services[i].Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msgf("%T failed to shutdown", services[i])
		}
	}
}
