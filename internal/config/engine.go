package config

import (
	"fmt"
	"time"
)

const (
	// DispatchSync evaluates host events inline and returns the award results.
	DispatchSync = "sync"
	// DispatchAsync enqueues host events for the worker.
	DispatchAsync = "async"
)

// EngineConfig tunes the badge engine and its read-side caches.
type EngineConfig struct {
	// OperationTimeout bounds every single store call made during an evaluation.
	OperationTimeout time.Duration `envconfig:"OPERATION_TIMEOUT" default:"2s" validate:"gt=0"`

	// SnapshotCacheTTL enables the metrics snapshot cache when positive.
	SnapshotCacheTTL      time.Duration `envconfig:"SNAPSHOT_CACHE_TTL" default:"0s" validate:"min=0"`
	SnapshotCacheCapacity int           `envconfig:"SNAPSHOT_CACHE_CAPACITY" default:"10000" validate:"min=1"`

	// CatalogCacheTTL enables the catalog cache when positive.
	CatalogCacheTTL      time.Duration `envconfig:"CATALOG_CACHE_TTL" default:"30s" validate:"min=0"`
	CatalogCacheCapacity int           `envconfig:"CATALOG_CACHE_CAPACITY" default:"1024" validate:"min=1"`

	// DispatchMode selects how the control plane delivers ingested host events.
	DispatchMode string `envconfig:"DISPATCH_MODE" default:"sync" validate:"oneof=sync async"`
}

// Validate checks the cross-field rules of the engine settings.
func (c *EngineConfig) Validate() error {
	if c.SnapshotCacheTTL > time.Minute {
		return fmt.Errorf("snapshot cache TTL must not exceed 1m, got %s", c.SnapshotCacheTTL)
	}
	return nil
}
