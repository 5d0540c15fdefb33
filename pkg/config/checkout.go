package config

import "fmt"

// CheckoutConfig carries the server-agreed pricing constants, in minor
// currency units and basis points.
type CheckoutConfig struct {
	ShippingCost int64 `koanf:"shippingCost"`
	TaxRateBps   int64 `koanf:"taxRateBps"`
}

func (c *CheckoutConfig) Validate() error {
	if c.ShippingCost < 0 {
		return fmt.Errorf("invalid shipping cost: %d", c.ShippingCost)
	}
	if c.TaxRateBps < 0 || c.TaxRateBps > 10000 {
		return fmt.Errorf("invalid tax rate (basis points): %d", c.TaxRateBps)
	}
	return nil
}
