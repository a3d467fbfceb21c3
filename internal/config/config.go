// Package config provides centralized configuration management for the Accolade services.
// It uses envconfig for environment variable loading and validator for validation.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvironmentProduction is the production environment identifier
	EnvironmentProduction = "production"

	// envPrefix namespaces every variable, e.g. ACCOLADE_DB_HOST.
	envPrefix = "ACCOLADE"
)

// Config holds the complete application configuration.
type Config struct {
	App           AppConfig           `envconfig:"APP"`
	Server        ServerConfig        `envconfig:"SERVER"`
	Database      DatabaseConfig      `envconfig:"DB"`
	Redis         RedisConfig         `envconfig:"REDIS"`
	Engine        EngineConfig        `envconfig:"ENGINE"`
	Worker        WorkerConfig        `envconfig:"WORKER"`
	Catalog       CatalogConfig       `envconfig:"CATALOG"`
	Observability ObservabilityConfig `envconfig:"OBSERVABILITY"`
}

// AppConfig contains core application settings.
type AppConfig struct {
	Name            string        `envconfig:"NAME" default:"accolade"`
	Version         string        `envconfig:"VERSION" default:"dev"`
	Environment     string        `envconfig:"ENV" default:"development" validate:"oneof=development staging production"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"text" validate:"oneof=json text"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Control ControlPlaneConfig `envconfig:"CONTROL"`
	Data    DataPlaneConfig    `envconfig:"DATA"`
}

// Load reads configuration from environment variables with the ACCOLADE prefix.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate runs the struct tag rules, then the cross-field rules of each section.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	env := c.App.Environment
	checks := []func() error{
		func() error { return c.Database.Validate(env) },
		func() error { return c.Server.Control.Validate(env) },
		c.Server.Data.Validate,
		c.Engine.Validate,
		c.Worker.Validate,
		c.Catalog.Validate,
		c.Observability.Validate,
	}
	// Redis only carries the event queue.
	if c.NeedsRedis() {
		checks = append(checks, func() error { return c.Redis.Validate(env) })
	}

	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

// NeedsRedis reports whether the queue must be reachable: in async dispatch
// mode, or whenever Redis settings are present.
func (c *Config) NeedsRedis() bool {
	return c.Engine.DispatchMode == DispatchAsync || c.Redis.IsConfigured()
}

// LogConfig logs the effective configuration without secrets.
func (c *Config) LogConfig(log *slog.Logger) {
	log.Info("configuration loaded",
		slog.Group("app",
			slog.String("name", c.App.Name),
			slog.String("version", c.App.Version),
			slog.String("environment", c.App.Environment),
			slog.String("log_level", c.App.LogLevel),
			slog.Duration("shutdown_timeout", c.App.ShutdownTimeout),
		),
		slog.Group("server",
			slog.String("control_addr", net.JoinHostPort(c.Server.Control.Host, c.Server.Control.Port)),
			slog.Bool("control_tls", c.Server.Control.TLSEnabled),
			slog.Bool("control_auth", c.Server.Control.APIKeyHash != ""),
			slog.String("data_addr", net.JoinHostPort(c.Server.Data.Host, c.Server.Data.Port)),
			slog.Duration("data_request_timeout", c.Server.Data.RequestTimeout),
			slog.String("observability_addr", net.JoinHostPort(c.Observability.Host, c.Observability.Port)),
		),
		slog.Group("storage",
			slog.Bool("db_configured", c.Database.IsConfigured()),
			slog.Bool("db_auto_migrate", c.Database.AutoMigrate),
			slog.String("metrics_view", c.Database.MetricsView),
			slog.Bool("redis_configured", c.Redis.IsConfigured()),
		),
		slog.Group("engine",
			slog.String("dispatch_mode", c.Engine.DispatchMode),
			slog.Duration("operation_timeout", c.Engine.OperationTimeout),
			slog.Duration("snapshot_cache_ttl", c.Engine.SnapshotCacheTTL),
			slog.Duration("catalog_cache_ttl", c.Engine.CatalogCacheTTL),
			slog.String("catalog_source", c.Catalog.Source),
		),
		slog.Group("worker",
			slog.Bool("enabled", c.Worker.Enabled),
			slog.String("queue", c.Worker.Queue),
			slog.Int("concurrency", c.Worker.Concurrency),
			slog.Int("max_retries", c.Worker.MaxRetries),
		),
	)
}

// validateEndpoint checks a host and port pair. context prefixes the error.
func validateEndpoint(context, host, port string) error {
	if host == "" {
		return fmt.Errorf("%s host cannot be empty", context)
	}
	if strings.TrimSpace(host) != host {
		return fmt.Errorf("%s host cannot contain whitespace", context)
	}

	if port == "" {
		return fmt.Errorf("%s port cannot be empty", context)
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("%s port must be a number: %w", context, err)
	}
	if n < 1 || n > 65535 {
		return fmt.Errorf("%s port must be between 1 and 65535, got %d", context, n)
	}
	return nil
}

func validateNoWhitespace(value, fieldName string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	if strings.TrimSpace(value) != value {
		return fmt.Errorf("%s cannot contain whitespace", fieldName)
	}
	return nil
}

// requireStrongPassword applies the production password rule.
func requireStrongPassword(password, context string) error {
	if password == "" {
		return fmt.Errorf("%s password is required in production environment", context)
	}
	if len(password) < 12 {
		return fmt.Errorf("%s password must be at least 12 characters in production", context)
	}
	return nil
}

func isSecureSSLMode(mode string) bool {
	return mode == "require" || mode == "verify-ca" || mode == "verify-full"
}

// parseAndValidateURL parses rawURL and checks its scheme and host.
func parseAndValidateURL(rawURL string, allowedSchemes []string) (*url.URL, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	if !slices.Contains(allowedSchemes, parsed.Scheme) {
		return nil, fmt.Errorf("invalid scheme '%s', must be one of: %v", parsed.Scheme, allowedSchemes)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("host is required in URL")
	}
	return parsed, nil
}
