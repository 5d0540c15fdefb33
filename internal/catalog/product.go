// Package catalog holds the product model consumed by the cart engine.
// Products are fetched from the storefront catalog and are immutable from
// this subsystem's point of view.
package catalog

// Product describes a single storefront product. Price is held in minor
// currency units (cents) so totals stay exact.
type Product struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Image    string `json:"image,omitempty"`
	Category string `json:"category,omitempty"`
	InStock  bool   `json:"inStock"`
}
