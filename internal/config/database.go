package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// DatabaseConfig contains the PostgreSQL settings. Postgres holds the badge
// catalog and the award ledger, and serves the per-user metrics view.
type DatabaseConfig struct {
	// Either URL or the individual components.
	URL      string `envconfig:"URL"`
	Host     string `envconfig:"HOST"`
	Port     string `envconfig:"PORT"`
	Name     string `envconfig:"NAME"`
	User     string `envconfig:"USER"`
	Password string `envconfig:"PASSWORD"`
	SSLMode  string `envconfig:"SSL_MODE" default:"prefer" validate:"oneof=disable allow prefer require verify-ca verify-full"`

	MaxConns        int           `envconfig:"MAX_CONNS" default:"25" validate:"min=1"`
	MinConns        int           `envconfig:"MIN_CONNS" default:"2" validate:"min=0"`
	MaxConnLifetime time.Duration `envconfig:"MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `envconfig:"MAX_CONN_IDLE_TIME" default:"30m"`
	ConnectTimeout  time.Duration `envconfig:"CONNECT_TIMEOUT" default:"5s"`

	// StatementTimeout is set as the session statement_timeout; 0 leaves the server default.
	StatementTimeout time.Duration `envconfig:"STATEMENT_TIMEOUT" default:"0s" validate:"min=0"`

	// MetricsView is the host-owned relation snapshots are read from,
	// optionally schema qualified (reporting.user_badge_metrics).
	MetricsView string `envconfig:"METRICS_VIEW" default:"user_badge_metrics"`

	// AutoMigrate applies the embedded schema migrations at start-up.
	AutoMigrate bool `envconfig:"AUTO_MIGRATE" default:"true"`
}

// relationName matches an unquoted, optionally schema qualified, identifier.
var relationName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ConnectionString returns URL when set, otherwise a postgres:// URL built from the components.
func (c *DatabaseConfig) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

// IsConfigured reports whether enough is set to attempt a connection.
func (c *DatabaseConfig) IsConfigured() bool {
	return c.URL != "" || (c.Host != "" && c.Port != "" && c.Name != "" && c.User != "")
}

// Validate checks the connection settings. Production additionally demands a
// strong password and a verifying SSL mode.
func (c *DatabaseConfig) Validate(environment string) error {
	if c.URL != "" {
		if err := validatePostgresURL(c.URL); err != nil {
			return fmt.Errorf("invalid database URL: %w", err)
		}
	} else if err := c.validateComponents(environment); err != nil {
		return err
	}

	if c.MinConns > c.MaxConns {
		return fmt.Errorf("min_conns (%d) cannot be greater than max_conns (%d)", c.MinConns, c.MaxConns)
	}
	if !relationName.MatchString(c.MetricsView) {
		return fmt.Errorf("invalid metrics view name %q", c.MetricsView)
	}
	return nil
}

func (c *DatabaseConfig) validateComponents(environment string) error {
	if err := validateEndpoint("database", c.Host, c.Port); err != nil {
		return err
	}
	if err := validateNoWhitespace(c.Name, "database name"); err != nil {
		return err
	}
	// Postgres truncates identifiers at 63 bytes.
	if len(c.Name) > 63 {
		return fmt.Errorf("database name cannot exceed 63 characters")
	}
	if err := validateNoWhitespace(c.User, "database user"); err != nil {
		return err
	}

	if environment != EnvironmentProduction {
		return nil
	}
	if err := requireStrongPassword(c.Password, "database"); err != nil {
		return err
	}
	if !isSecureSSLMode(c.SSLMode) {
		return fmt.Errorf("database SSL mode must be 'require', 'verify-ca', or 'verify-full' in production environment")
	}
	return nil
}

func validatePostgresURL(dbURL string) error {
	parsed, err := parseAndValidateURL(dbURL, []string{"postgres", "postgresql"})
	if err != nil {
		return err
	}
	if parsed.User == nil || parsed.User.Username() == "" {
		return fmt.Errorf("user is required in URL")
	}
	if strings.TrimPrefix(parsed.Path, "/") == "" {
		return fmt.Errorf("database name is required in URL path")
	}
	return nil
}
