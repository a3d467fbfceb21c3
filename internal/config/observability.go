package config

import (
	"fmt"
	"strings"
	"time"
)

// ObservabilityConfig configures the health check and metrics listener every binary runs.
type ObservabilityConfig struct {
	Host string `envconfig:"HOST" default:"0.0.0.0"`
	Port string `envconfig:"PORT" default:"9090"`

	// Timeout bounds the readiness checks and the listener's I/O.
	Timeout time.Duration `envconfig:"TIMEOUT" default:"5s" validate:"min=1s"`

	LivenessPath  string `envconfig:"LIVENESS_PATH" default:"/healthz"`
	ReadinessPath string `envconfig:"READINESS_PATH" default:"/readyz"`
	MetricsPath   string `envconfig:"METRICS_PATH" default:"/metrics"`
}

// Validate checks the listener and that the three paths are distinct absolute paths.
func (o *ObservabilityConfig) Validate() error {
	if err := validateEndpoint("observability", o.Host, o.Port); err != nil {
		return err
	}

	seen := make(map[string]string, 3)
	for name, p := range map[string]string{
		"liveness":  o.LivenessPath,
		"readiness": o.ReadinessPath,
		"metrics":   o.MetricsPath,
	} {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("observability %s path must start with '/', got %q", name, p)
		}
		if other, dup := seen[p]; dup {
			return fmt.Errorf("observability %s and %s paths are both %q", other, name, p)
		}
		seen[p] = name
	}
	return nil
}
