package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// HealthChecker implements the observability.Checker interface for Redis.
type HealthChecker struct {
	client *redis.Client
	keys   []string
}

// NewHealthChecker creates a health checker for the given client. Any keys
// passed must either be absent or hold a list (the event queues).
func NewHealthChecker(client *redis.Client, listKeys ...string) *HealthChecker {
	return &HealthChecker{client: client, keys: listKeys}
}

// Name returns the component name.
func (h *HealthChecker) Name() string {
	return "redis"
}

// Check pings the server and verifies the queue keys have the expected type.
func (h *HealthChecker) Check(ctx context.Context) error {
	if h.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := h.client.Ping(ctx).Err(); err != nil {
		return err
	}
	for _, key := range h.keys {
		kind, err := h.client.Type(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("failed to inspect %q: %w", key, err)
		}
		if kind != "none" && kind != "list" {
			return fmt.Errorf("key %q holds a %s, expected a list", key, kind)
		}
	}
	return nil
}
