package config

import (
	"fmt"
	"time"
)

type GrpcServerConfig struct {
	Port              string        `koanf:"port"`
	ReflectionEnabled bool          `koanf:"reflection"`
	Timeout           time.Duration `koanf:"timeout"`
}

func (c *GrpcServerConfig) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("gRPC port is not configured")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("gRPC call timeout must not be negative")
	}
	return nil
}
