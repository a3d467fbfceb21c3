package config

import (
	"fmt"
	"strings"
	"time"
)

// WorkerConfig contains configuration for the event worker service.
type WorkerConfig struct {
	Enabled        bool          `envconfig:"ENABLED" default:"true"`
	Queue          string        `envconfig:"QUEUE" default:"accolade:events"`
	PopTimeout     time.Duration `envconfig:"POP_TIMEOUT" default:"5s" validate:"gt=0"`
	Concurrency    int           `envconfig:"CONCURRENCY" default:"8" validate:"min=1"`
	MaxRetries     int           `envconfig:"MAX_RETRIES" default:"3" validate:"min=0"`
	BaseRetryDelay time.Duration `envconfig:"BASE_RETRY_DELAY" default:"1s"`
	MaxRetryDelay  time.Duration `envconfig:"MAX_RETRY_DELAY" default:"30s"`
}

// ProcessingQueue is the list holding events that were popped but not yet acknowledged.
func (c *WorkerConfig) ProcessingQueue() string {
	return c.Queue + ":processing"
}

// Validate checks the cross-field rules of the worker settings.
func (c *WorkerConfig) Validate() error {
	if strings.TrimSpace(c.Queue) == "" {
		return fmt.Errorf("worker queue name cannot be empty")
	}
	if c.MaxRetryDelay < c.BaseRetryDelay {
		return fmt.Errorf("max_retry_delay (%s) cannot be lower than base_retry_delay (%s)", c.MaxRetryDelay, c.BaseRetryDelay)
	}
	return nil
}
