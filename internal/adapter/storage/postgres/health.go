package postgres

import (
	"context"
	"errors"
)

// HealthCheck reports the database ready once it answers and the ledger schema exists.
type HealthCheck struct {
	pool Pool
}

func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	var present bool
	if err := h.pool.QueryRow(ctx, `SELECT to_regclass('public.transactions') IS NOT NULL`).Scan(&present); err != nil {
		return err
	}
	if !present {
		return errors.New("schema not migrated")
	}
	return nil
}

func (h *HealthCheck) Name() string {
	return "postgres"
}
