package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// HealthChecker implements the observability.Checker interface for PostgreSQL.
type HealthChecker struct {
	pool *pgxpool.Pool
}

// NewHealthChecker creates a new health checker for the given connection pool.
func NewHealthChecker(pool *pgxpool.Pool) *HealthChecker {
	return &HealthChecker{pool: pool}
}

// Name returns the component name.
func (h *HealthChecker) Name() string {
	return "postgres"
}

// Check pings the pool and verifies the award table is reachable, which
// also catches a database that was never migrated.
func (h *HealthChecker) Check(ctx context.Context) error {
	if h.pool == nil {
		return fmt.Errorf("database connection is nil")
	}
	if err := h.pool.Ping(ctx); err != nil {
		return err
	}
	var exists bool
	if err := h.pool.QueryRow(ctx, `SELECT to_regclass('public.user_badges') IS NOT NULL`).Scan(&exists); err != nil {
		return fmt.Errorf("failed to inspect schema: %w", err)
	}
	if !exists {
		return fmt.Errorf("schema not migrated: user_badges is missing")
	}
	return nil
}
