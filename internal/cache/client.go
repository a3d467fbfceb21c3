// Package cache provides the Redis client factory used by the event queue and
// the in-memory L1 cache used by the catalog and metrics decorators.
package cache

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	"github.com/rafaeljc/accolade/internal/config"
	"github.com/rafaeljc/accolade/internal/logger"
)

// NewRedisClient initializes a new Redis client connection using the provided configuration.
// It handles connection pooling, TLS, and an initial connectivity check with
// exponential backoff between attempts.
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}

	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis URL: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     cfg.Address(),
			Password: cfg.Password,
			DB:       cfg.DB,
		}
		if cfg.TLSEnabled {
			opts.TLSConfig = &tls.Config{
				MinVersion: tls.VersionTLS12,
			}
		}
	}

	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.PoolTimeout = cfg.PoolTimeout
	opts.MaxRetries = cfg.MaxRetries
	opts.MinRetryBackoff = cfg.MinRetryBackoff
	opts.MaxRetryBackoff = cfg.MaxRetryBackoff

	client := redis.NewClient(opts)

	if err := pingWithRetry(ctx, client, cfg.PingMaxRetries, cfg.PingBackoff); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// pingWithRetry pings until success, doubling the wait after each failure.
func pingWithRetry(ctx context.Context, client *redis.Client, maxAttempts int, initial time.Duration) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	log := logger.FromContext(ctx)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0

	attempt := 0
	op := func() error {
		attempt++
		log.Info("redis ping attempt", slog.Int("attempt", attempt), slog.Int("max_retries", maxAttempts))

		pingCtx, cancel := context.WithTimeout(ctx, max(initial, time.Second))
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			log.Warn("redis ping failed", slog.Int("attempt", attempt), slog.Any("error", err))
			return err
		}
		log.Info("redis ping successful", slog.Int("attempt", attempt))
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxAttempts-1)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return fmt.Errorf("failed to connect to redis after %d attempts: %w", attempt, err)
	}
	return nil
}
