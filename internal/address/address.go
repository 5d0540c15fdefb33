// Package address manages the shopper's address book through the server
// gateway and enforces the single-default invariant on the local mirror.
package address

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"

	carterrors "github.com/storekit/cartsync/internal/errors"
)

// Address is a shipping address. At most one address per user has
// IsDefault set; the mutation that sets a new default atomically unsets
// the previous one.
type Address struct {
	ID           string `json:"id"`
	FullName     string `json:"fullName" validate:"required"`
	Phone        string `json:"phone" validate:"required"`
	Address      string `json:"address" validate:"required"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	City         string `json:"city" validate:"required"`
	State        string `json:"state" validate:"required"`
	ZipCode      string `json:"zipCode" validate:"required"`
	Country      string `json:"country" validate:"required"`
	IsDefault    bool   `json:"isDefault"`
	Label        string `json:"label,omitempty"`
}

// Gateway is the server contract for address persistence. Create,
// Update, and SetDefault return the full updated address book, so the
// local mirror never drifts from the server.
type Gateway interface {
	FetchAddresses(ctx context.Context) ([]Address, error)
	CreateAddress(ctx context.Context, a Address) ([]Address, error)
	UpdateAddress(ctx context.Context, a Address) ([]Address, error)
	DeleteAddress(ctx context.Context, id string) ([]Address, error)
	SetDefaultAddress(ctx context.Context, id string) ([]Address, error)
}

// Book is the in-memory address book, mirroring the server state.
type Book struct {
	mu        sync.Mutex
	addresses []Address
	gateway   Gateway
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewBook creates an empty address book backed by the gateway.
func NewBook(gateway Gateway, logger *slog.Logger) *Book {
	return &Book{
		gateway:  gateway,
		validate: validator.New(),
		logger:   logger.With("component", "address_book"),
	}
}

// Addresses returns the current address book.
func (b *Book) Addresses() []Address {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Address, len(b.addresses))
	copy(out, b.addresses)
	return out
}

// Default returns the default address, if one is set.
func (b *Book) Default() (Address, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, a := range b.addresses {
		if a.IsDefault {
			return a, true
		}
	}
	return Address{}, false
}

// Load refreshes the local mirror from the server.
func (b *Book) Load(ctx context.Context) error {
	addresses, err := b.gateway.FetchAddresses(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch addresses: %w", err)
	}
	b.replace(addresses)
	return nil
}

// Add validates and creates a new address.
func (b *Book) Add(ctx context.Context, a Address) error {
	if err := b.validate.Struct(a); err != nil {
		return err
	}
	addresses, err := b.gateway.CreateAddress(ctx, a)
	if err != nil {
		return fmt.Errorf("failed to create address: %w", err)
	}
	b.replace(addresses)
	return nil
}

// Update validates and updates an existing address.
func (b *Book) Update(ctx context.Context, a Address) error {
	if a.ID == "" {
		return carterrors.ErrAddressNotFound
	}
	if err := b.validate.Struct(a); err != nil {
		return err
	}
	addresses, err := b.gateway.UpdateAddress(ctx, a)
	if err != nil {
		return fmt.Errorf("failed to update address: %w", err)
	}
	b.replace(addresses)
	return nil
}

// Delete removes an address.
func (b *Book) Delete(ctx context.Context, id string) error {
	addresses, err := b.gateway.DeleteAddress(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete address: %w", err)
	}
	b.replace(addresses)
	return nil
}

// SetDefault marks the address as the default. The previous default is
// unset in the same mutation, so at most one default exists at any time.
func (b *Book) SetDefault(ctx context.Context, id string) error {
	b.mu.Lock()
	found := false
	for _, a := range b.addresses {
		if a.ID == id {
			found = true
			break
		}
	}
	b.mu.Unlock()
	if !found {
		return carterrors.ErrAddressNotFound
	}

	addresses, err := b.gateway.SetDefaultAddress(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to set default address: %w", err)
	}
	b.replace(addresses)
	return nil
}

// replace installs the server response, re-asserting the single-default
// invariant on the mirror regardless of what the server returned.
func (b *Book) replace(addresses []Address) {
	defaultSeen := false
	for i := range addresses {
		if addresses[i].IsDefault {
			if defaultSeen {
				b.logger.Warn("Server returned multiple default addresses, keeping the first", "id", addresses[i].ID)
				addresses[i].IsDefault = false
			}
			defaultSeen = true
		}
	}
	b.mu.Lock()
	b.addresses = addresses
	b.mu.Unlock()
}
