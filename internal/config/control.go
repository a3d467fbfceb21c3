package config

import (
	"encoding/hex"
	"fmt"
	"time"
)

// ControlPlaneConfig configures the REST API.
type ControlPlaneConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`

	ReadTimeout       time.Duration `envconfig:"READ_TIMEOUT" default:"10s"`
	WriteTimeout      time.Duration `envconfig:"WRITE_TIMEOUT" default:"10s"`
	ReadHeaderTimeout time.Duration `envconfig:"READ_HEADER_TIMEOUT" default:"5s"`
	IdleTimeout       time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes    int           `envconfig:"MAX_HEADER_BYTES" default:"524288" validate:"min=1"` // 512KB
	// MaxBodyBytes caps request bodies; event payloads are small.
	MaxBodyBytes int64 `envconfig:"MAX_BODY_BYTES" default:"65536" validate:"min=1"` // 64KB

	// APIKeyHash is the hex SHA-256 of the key callers send in X-API-Key.
	APIKeyHash string `envconfig:"API_KEY_HASH"`

	TLSEnabled bool   `envconfig:"TLS_ENABLED" default:"false"`
	TLSCert    string `envconfig:"TLS_CERT_FILE"`
	TLSKey     string `envconfig:"TLS_KEY_FILE"`
}

// Validate checks the listener settings. Production requires an API key and TLS.
func (c *ControlPlaneConfig) Validate(environment string) error {
	if err := validateEndpoint("control plane", c.Host, c.Port); err != nil {
		return err
	}
	if c.WriteTimeout > 0 && c.WriteTimeout < c.ReadHeaderTimeout {
		return fmt.Errorf("control plane write timeout (%s) cannot be lower than the read header timeout (%s)", c.WriteTimeout, c.ReadHeaderTimeout)
	}

	if c.APIKeyHash != "" {
		if err := validateSHA256Hash(c.APIKeyHash); err != nil {
			return fmt.Errorf("invalid API key hash: %w", err)
		}
	}
	if c.TLSEnabled && (c.TLSCert == "" || c.TLSKey == "") {
		return fmt.Errorf("TLS enabled but cert or key file not specified")
	}

	if environment == EnvironmentProduction {
		if c.APIKeyHash == "" {
			return fmt.Errorf("API key hash is required in production environment")
		}
		if !c.TLSEnabled {
			return fmt.Errorf("TLS must be enabled in production environment")
		}
	}
	return nil
}

func validateSHA256Hash(hash string) error {
	if len(hash) != 64 {
		return fmt.Errorf("SHA-256 hash must be 64 characters, got %d", len(hash))
	}
	if _, err := hex.DecodeString(hash); err != nil {
		return fmt.Errorf("hash must be valid hexadecimal: %w", err)
	}
	return nil
}
