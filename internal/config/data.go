package config

import (
	"fmt"
	"time"
)

// DataPlaneConfig configures the gRPC API.
type DataPlaneConfig struct {
	Port string `envconfig:"PORT" default:"50051"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`

	// RequestTimeout bounds every RPC whose caller did not set a shorter deadline.
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"5s" validate:"gt=0"`
	MaxRecvMsgBytes int           `envconfig:"MAX_RECV_MSG_BYTES" default:"1048576" validate:"min=1024"` // 1MB

	MaxConcurrentStreams uint32        `envconfig:"MAX_CONCURRENT_STREAMS" default:"100"`
	KeepaliveTime        time.Duration `envconfig:"KEEPALIVE_TIME" default:"120s"`
	KeepaliveTimeout     time.Duration `envconfig:"KEEPALIVE_TIMEOUT" default:"20s"`
	MaxConnectionAge     time.Duration `envconfig:"MAX_CONNECTION_AGE" default:"300s"`
}

// Validate checks the listener and keepalive settings.
func (c *DataPlaneConfig) Validate() error {
	if err := validateEndpoint("data plane", c.Host, c.Port); err != nil {
		return err
	}
	if c.KeepaliveTime > 0 && c.KeepaliveTimeout >= c.KeepaliveTime {
		return fmt.Errorf("data plane keepalive timeout (%s) must be lower than the keepalive time (%s)", c.KeepaliveTimeout, c.KeepaliveTime)
	}
	return nil
}
