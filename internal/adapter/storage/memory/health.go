package memory

import (
	"context"
	"errors"
)

// HealthCheck implements ports.HealthChecker for the memory driver.
type HealthCheck struct {
	store *Store
}

func NewHealthCheck(store *Store) *HealthCheck {
	return &HealthCheck{store: store}
}

// Ping reports an error only when the store is missing.
func (h *HealthCheck) Ping(ctx context.Context) error {
	if h.store == nil {
		return errors.New("memory: store not initialised")
	}
	return ctx.Err()
}

func (h *HealthCheck) Name() string {
	return "memory"
}
