package srv

import "context"

// cleanupService runs a single teardown func on Shutdown, e.g. closing the DB pool.
type cleanupService struct {
	cleanup func() error
}

func (c *cleanupService) Start(ctx context.Context) error {
	return nil
}

func (c *cleanupService) Shutdown(ctx context.Context) error {
	if c.cleanup == nil {
		return nil
	}
	return c.cleanup()
}

func NewCleanup(fn func() error) Service {
	return &cleanupService{cleanup: fn}
}
