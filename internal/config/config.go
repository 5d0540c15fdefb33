// Package config composes the engine and dev server configuration.
package config

import (
	"fmt"
	"strings"

	"github.com/storekit/cartsync/pkg/config"
	"github.com/storekit/cartsync/pkg/config/configloader"
)

var _ configloader.Validator = (*Config)(nil)

type Config struct {
	Gateway  config.GatewayConfig  `koanf:"gateway"`
	Storage  config.StorageConfig  `koanf:"storage"`
	Checkout config.CheckoutConfig `koanf:"checkout"`
	Log      config.LogConfig      `koanf:"log"`
}

// String returns a printable summary of the configuration.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("\n--- Gateway ---\n")
	b.WriteString(fmt.Sprintf("  gateway.url: %s\n", c.Gateway.URL))
	b.WriteString(fmt.Sprintf("  gateway.timeout: %s\n", c.Gateway.Timeout))
	b.WriteString("\n--- Storage ---\n")
	b.WriteString(fmt.Sprintf("  storage.dir: %s\n", c.Storage.Dir))
	b.WriteString("\n--- Checkout ---\n")
	b.WriteString(fmt.Sprintf("  checkout.shippingCost: %d\n", c.Checkout.ShippingCost))
	b.WriteString(fmt.Sprintf("  checkout.taxRateBps: %d\n", c.Checkout.TaxRateBps))
	b.WriteString("\n--- Logging ---\n")
	b.WriteString(fmt.Sprintf("  log.level: %s\n", c.Log.Level))
	return b.String()
}

// Validate checks if the configuration values are valid.
func (c *Config) Validate() error {
	if err := c.Gateway.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Checkout.Validate(); err != nil {
		return err
	}
	return c.Log.Validate()
}

// ServerConfig is the dev server configuration.
type ServerConfig struct {
	HTTPServer config.HTTPConfig     `koanf:"server"`
	Checkout   config.CheckoutConfig `koanf:"checkout"`
	Log        config.LogConfig      `koanf:"log"`
	Shutdown   config.ShutdownConfig `koanf:"shutdown"`
}

var _ configloader.Validator = (*ServerConfig)(nil)

func (c *ServerConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Server ---\n")
	b.WriteString(fmt.Sprintf("  server.port: %d\n", c.HTTPServer.Port))
	b.WriteString(fmt.Sprintf("  server.timeout.read: %v\n", c.HTTPServer.Timeout.Read))
	b.WriteString(fmt.Sprintf("  server.timeout.write: %v\n", c.HTTPServer.Timeout.Write))
	b.WriteString("\n--- Checkout ---\n")
	b.WriteString(fmt.Sprintf("  checkout.shippingCost: %d\n", c.Checkout.ShippingCost))
	b.WriteString(fmt.Sprintf("  checkout.taxRateBps: %d\n", c.Checkout.TaxRateBps))
	b.WriteString("\n--- Behavior ---\n")
	b.WriteString(fmt.Sprintf("  log.level: %s\n", c.Log.Level))
	b.WriteString(fmt.Sprintf("  shutdown.timeout: %s\n", c.Shutdown.Timeout))
	return b.String()
}

func (c *ServerConfig) Validate() error {
	if err := c.HTTPServer.Validate(); err != nil {
		return err
	}
	if err := c.Checkout.Validate(); err != nil {
		return err
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}
	return c.Shutdown.Validate()
}
