package config

import (
	"fmt"
	"strings"
	"time"
)

// GatewayConfig points the engine at the storefront backend.
type GatewayConfig struct {
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`
}

func (c *GatewayConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("gateway URL is not configured")
	}
	if !strings.HasPrefix(c.URL, "http://") && !strings.HasPrefix(c.URL, "https://") {
		return fmt.Errorf("gateway URL must start with 'http://' or 'https://': %s", c.URL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("invalid gateway timeout: %v", c.Timeout)
	}
	return nil
}
