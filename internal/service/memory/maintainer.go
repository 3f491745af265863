package memory

import (
	"context"
	"time"

	"github.com/twohreichel/pisovereign/pkg/log"
)

const defaultMaintenanceInterval = 24 * time.Hour

// MaintenanceReport summarizes one decay and cleanup pass.
type MaintenanceReport struct {
	BelowThreshold int
	Deleted        int
}

// Maintainer periodically decays importance and purges memories that
// fell below the configured floor.
type Maintainer struct {
	service  *Service
	Interval time.Duration
}

func NewMaintainer(service *Service, interval time.Duration) *Maintainer {
	if interval <= 0 {
		interval = defaultMaintenanceInterval
	}
	return &Maintainer{
		service:  service,
		Interval: interval,
	}
}

func (m *Maintainer) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	logger.Info().Dur("interval", m.Interval).Msg("starting memory maintainer")

	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := m.RunOnce(ctx); err != nil {
				logger.Error().Err(err).Msg("memory maintenance failed")
			}
		}
	}
}

func (m *Maintainer) Shutdown(ctx context.Context) error {
	return nil
}

// RunOnce applies decay and then cleanup. Cleanup still runs when decay
// fails part way; the first error is returned.
func (m *Maintainer) RunOnce(ctx context.Context) (MaintenanceReport, error) {
	logger := log.FromCtx(ctx)
	var report MaintenanceReport

	below, decayErr := m.service.ApplyDecay(ctx)
	report.BelowThreshold = len(below)
	if decayErr != nil {
		logger.Error().Err(decayErr).Msg("memory decay failed")
	}

	deleted, err := m.service.CleanupLowImportance(ctx)
	if err != nil {
		return report, err
	}
	report.Deleted = deleted

	logger.Info().
		Int("below_threshold", report.BelowThreshold).
		Int("deleted", report.Deleted).
		Msg("memory maintenance completed")

	return report, decayErr
}
