package config

import "fmt"

// StorageConfig locates the app-private directory for guest state.
type StorageConfig struct {
	Dir string `koanf:"dir"`
}

func (c *StorageConfig) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("storage directory is not configured")
	}
	return nil
}
