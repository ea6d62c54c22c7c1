package config

import (
	"fmt"
	"strings"
	"time"
)

type ShutdownConfig struct {
	Timeout time.Duration `koanf:"timeout"`
	// Flush bounds the final telemetry export, Timeout is used when unset.
	Flush time.Duration `koanf:"flush"`
}

// FlushTimeout returns the time left for exporting buffered spans and metrics on exit.
func (c *ShutdownConfig) FlushTimeout() time.Duration {
	if c.Flush == 0 {
		return c.Timeout
	}
	return c.Flush
}

// String returns a string representation of the ShutdownConfig.
func (c *ShutdownConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Shutdown ---\n")
	b.WriteString(fmt.Sprintf("  timeout: %s\n", c.Timeout))
	b.WriteString(fmt.Sprintf("  flush: %s\n", c.FlushTimeout()))
	return b.String()
}

func (c *ShutdownConfig) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("shutdown timeout is not configured")
	}
	if c.Flush < 0 || c.Flush > c.Timeout {
		return fmt.Errorf("shutdown flush must be between 0 and the shutdown timeout %s, got %s", c.Timeout, c.Flush)
	}
	return nil
}
