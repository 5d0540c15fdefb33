// Package store provides durable, best-effort persistence for the guest
// cart and wishlist. Data written here survives app restarts and is the
// source of truth for an unauthenticated session.
package store

// Record is a single guest cart line. Only the product id is persisted;
// product details are re-hydrated from the catalog at display time.
type Record struct {
	ProductID string `json:"id"`
	Quantity  int64  `json:"quantity"`
	AddedAt   int64  `json:"addedAt"`
}

// GuestStore is an interface for guest cart and wishlist persistence.
// It abstracts the underlying storage, allowing for different implementations (e.g., in-memory, on-disk).
//
// Durability is best-effort: implementations never return errors to the
// caller. Storage failures are logged and the operation becomes a no-op,
// and unreadable data is treated as empty rather than fatal.
type GuestStore interface {
	// Read returns all guest cart records in insertion order.
	// Corrupt or missing data yields an empty slice.
	Read() []Record

	// Write atomically replaces the whole cart record set.
	Write(records []Record)

	// AddOrIncrement adds delta to the record for productID, creating the
	// record if absent. A resulting quantity below 1 drops the record.
	AddOrIncrement(productID string, delta int64)

	// SetQuantity sets the quantity for productID. qty <= 0 removes the record.
	SetQuantity(productID string, qty int64)

	// Remove deletes the record for productID, if present.
	Remove(productID string)

	// Clear removes all cart records. Safe to call on an empty store.
	Clear()

	// ReadWishlist returns the persisted wishlist product ids in insertion order.
	ReadWishlist() []string

	// WriteWishlist atomically replaces the wishlist id set.
	WriteWishlist(ids []string)

	// AddWishlist adds productID to the wishlist set (idempotent).
	AddWishlist(productID string)

	// RemoveWishlist removes productID from the wishlist set.
	RemoveWishlist(productID string)

	// ContainsWishlist reports whether productID is in the wishlist set.
	ContainsWishlist(productID string) bool

	// ClearWishlist removes all wishlist ids. Safe to call on an empty store.
	ClearWishlist()
}
