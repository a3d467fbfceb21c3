// Package testsupport provides helper functions for spinning up ephemeral
// Docker containers (PostgreSQL, Redis) for integration testing.
package testsupport

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/rafaeljc/accolade/internal/config"
	"github.com/rafaeljc/accolade/internal/database"
)

// metricsFixture stands in for the host-owned metrics view. Each column becomes
// one metric or profile field of the user's snapshot.
const metricsFixture = `
CREATE TABLE IF NOT EXISTS user_badge_metrics (
    user_id          TEXT PRIMARY KEY,
    posts_published  BIGINT           NOT NULL DEFAULT 0,
    reviews_written  INTEGER          NOT NULL DEFAULT 0,
    events_attended  INTEGER          NOT NULL DEFAULT 0,
    places_claimed   INTEGER          NOT NULL DEFAULT 0,
    average_rating   DOUBLE PRECISION NOT NULL DEFAULT 0,
    email_verified   BOOLEAN          NOT NULL DEFAULT FALSE,
    newsletter_subscribed BOOLEAN     NOT NULL DEFAULT FALSE,
    banned           BOOLEAN          NOT NULL DEFAULT FALSE,
    registered_at    TIMESTAMPTZ,
    last_post_at     TIMESTAMPTZ
)`

// PostgresContainer holds the references to the running Docker container
// and the initialized database connection pool.
type PostgresContainer struct {
	Container        testcontainers.Container
	DB               *pgxpool.Pool
	ConnectionString string
}

// Terminate stops and removes the docker container.
func (c *PostgresContainer) Terminate(ctx context.Context) error {
	c.DB.Close()
	return c.Container.Terminate(ctx)
}

// Reset empties the award and badge tables and the metrics fixture between scenarios.
func (c *PostgresContainer) Reset(ctx context.Context) error {
	_, err := c.DB.Exec(ctx, `TRUNCATE user_badges, badges, user_badge_metrics RESTART IDENTITY CASCADE`)
	return err
}

// StartPostgresContainer spins up a PostgreSQL 15-alpine container, applies the
// embedded migrations and creates the metrics fixture table.
func StartPostgresContainer(ctx context.Context) (*PostgresContainer, error) {
	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("accolade_test"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpassword"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	if err := database.Migrate(ctx, connStr); err != nil {
		return nil, err
	}

	testCfg := &config.DatabaseConfig{
		URL:             connStr,
		MaxConns:        5,
		MinConns:        1,
		MaxConnLifetime: 30 * time.Minute,
		MaxConnIdleTime: 5 * time.Minute,
		ConnectTimeout:  5 * time.Second,
	}
	pool, err := database.NewPostgresPool(ctx, testCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	if _, err := pool.Exec(ctx, metricsFixture); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create metrics fixture: %w", err)
	}

	return &PostgresContainer{
		Container:        pgContainer,
		DB:               pool,
		ConnectionString: connStr,
	}, nil
}
