//go:build integration

package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafaeljc/accolade/internal/database"
	"github.com/rafaeljc/accolade/internal/testsupport"
)

func TestPostgres_PoolMonitorAndHealth(t *testing.T) {
	ctx := context.Background()

	pgContainer, err := testsupport.StartPostgresContainer(ctx)
	require.NoError(t, err)
	defer pgContainer.Terminate(ctx)

	pool := pgContainer.DB

	monitorCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go database.RunPoolMonitor(monitorCtx, pool, 10*time.Millisecond)

	t.Run("Should report the configured pool size", func(t *testing.T) {
		require.Eventually(t, func() bool {
			max := testsupport.GetMetricValue(t, "accolade_database_pool_connections", map[string]string{"state": "max"})
			return max == 5
		}, 2*time.Second, 10*time.Millisecond, "metric 'max' connections mismatch")
	})

	t.Run("Should track in-use connections", func(t *testing.T) {
		conn, err := pool.Acquire(ctx)
		require.NoError(t, err)
		defer conn.Release()

		require.Eventually(t, func() bool {
			inUse := testsupport.GetMetricValue(t, "accolade_database_pool_connections", map[string]string{"state": "in_use"})
			return inUse >= 1
		}, 2*time.Second, 10*time.Millisecond, "in_use gauge failed to update")
	})

	t.Run("Should track acquisition counts", func(t *testing.T) {
		initial := testsupport.GetMetricValue(t, "accolade_database_pool_acquire_count_total", nil)

		for range 5 {
			conn, err := pool.Acquire(ctx)
			require.NoError(t, err)
			conn.Release()
		}

		require.Eventually(t, func() bool {
			return testsupport.GetMetricValue(t, "accolade_database_pool_acquire_count_total", nil) >= initial+5
		}, 2*time.Second, 10*time.Millisecond, "acquire_count delta mismatch")
	})

	t.Run("Should enforce MaxConns", func(t *testing.T) {
		var held []*pgxpool.Conn
		for range 5 {
			c, err := pool.Acquire(ctx)
			require.NoError(t, err)
			held = append(held, c)
		}
		defer func() {
			for _, c := range held {
				c.Release()
			}
		}()

		timeoutCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()
		_, err := pool.Acquire(timeoutCtx)
		require.Error(t, err, "6th acquisition must fail when pool is at MaxConns=5")
	})

	t.Run("Health check should pass on a migrated schema", func(t *testing.T) {
		checker := database.NewHealthChecker(pool)
		assert.Equal(t, "postgres", checker.Name())
		assert.NoError(t, checker.Check(ctx))
	})

	t.Run("Migrate should be idempotent", func(t *testing.T) {
		assert.NoError(t, database.Migrate(ctx, pgContainer.ConnectionString))
	})
}
