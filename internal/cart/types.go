// Package cart implements the in-memory cart and wishlist state
// containers. A container owns its item collection for the lifetime of
// the process and routes every mutation to either the durable guest
// store or the server gateway, depending on the current session mode.
package cart

import (
	"context"
	"time"

	"github.com/storekit/cartsync/internal/catalog"
)

// Mode selects the backing store for mutations.
type Mode string

const (
	ModeGuest         Mode = "guest"
	ModeAuthenticated Mode = "authenticated"
)

// Status is the collection-wide mutation status shown to the UI.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusError   Status = "error"
)

// Variant carries the optional size/color tags chosen by the shopper.
type Variant struct {
	Size  string `json:"selectedSize,omitempty"`
	Color string `json:"selectedColor,omitempty"`
}

// Item is a single cart line. ID is server-assigned once synced;
// guest-mode items carry a locally generated temporary id.
// Quantity is always >= 1: an update to a non-positive quantity removes
// the item instead.
type Item struct {
	ID            string          `json:"id"`
	Product       catalog.Product `json:"product"`
	Quantity      int64           `json:"quantity"`
	SelectedSize  string          `json:"selectedSize,omitempty"`
	SelectedColor string          `json:"selectedColor,omitempty"`
}

// WishlistEntry is a single wishlist line. Membership is boolean, there
// is no quantity.
type WishlistEntry struct {
	ID            string          `json:"id"`
	Product       catalog.Product `json:"product"`
	AddedAt       time.Time       `json:"addedAt"`
	SelectedSize  string          `json:"selectedSize,omitempty"`
	SelectedColor string          `json:"selectedColor,omitempty"`
}

// ServerGateway is the contract for the authoritative server-side cart
// and wishlist, consumed once a session exists. Every call returns the
// full canonical collection, never a delta, and never retries
// internally; retry policy belongs to the caller.
type ServerGateway interface {
	// FetchCart returns the authoritative server cart.
	FetchCart(ctx context.Context) ([]Item, error)

	// UpsertItem sets the absolute quantity for a product, creating the
	// cart line if absent, and returns the updated cart.
	UpsertItem(ctx context.Context, productID string, qty int64) ([]Item, error)

	// RemoveItem deletes the cart line for a product and returns the
	// updated cart.
	RemoveItem(ctx context.Context, productID string) ([]Item, error)

	// FetchWishlist returns the authoritative server wishlist.
	FetchWishlist(ctx context.Context) ([]WishlistEntry, error)

	// AddToWishlist adds a product to the server wishlist (idempotent)
	// and returns the updated wishlist.
	AddToWishlist(ctx context.Context, productID string) ([]WishlistEntry, error)

	// RemoveFromWishlist removes a product from the server wishlist and
	// returns the updated wishlist.
	RemoveFromWishlist(ctx context.Context, productID string) ([]WishlistEntry, error)
}

// ProductResolver re-hydrates full product details for product ids held
// in the guest store. Backed by the storefront catalog cache.
type ProductResolver interface {
	Product(ctx context.Context, id string) (catalog.Product, error)
}
