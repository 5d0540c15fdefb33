package cart

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/storekit/cartsync/internal/catalog"
	carterrors "github.com/storekit/cartsync/internal/errors"
	"github.com/storekit/cartsync/internal/store"
)

// Wishlist is the wishlist state machine. It follows the same mode,
// status, and last-write-wins discipline as the cart Container, with
// boolean membership instead of quantities.
type Wishlist struct {
	mu          sync.Mutex
	entries     []WishlistEntry
	mode        Mode
	status      Status
	lastErr     error
	inFlight    int
	seq         uint64
	lastApplied uint64
	store       store.GuestStore
	gateway     ServerGateway
	logger      *slog.Logger
	now         func() time.Time
}

// NewWishlist creates a wishlist container in guest mode.
func NewWishlist(guestStore store.GuestStore, gateway ServerGateway, logger *slog.Logger) *Wishlist {
	return &Wishlist{
		mode:    ModeGuest,
		status:  StatusIdle,
		store:   guestStore,
		gateway: gateway,
		logger:  logger.With("component", "wishlist"),
		now:     time.Now,
	}
}

// SetAuthenticated switches the backing store for subsequent mutations.
func (w *Wishlist) SetAuthenticated(authenticated bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if authenticated {
		w.mode = ModeAuthenticated
	} else {
		w.mode = ModeGuest
	}
}

// Status returns the collection-wide mutation status.
func (w *Wishlist) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// LastError returns the error behind a Status of StatusError, or nil.
func (w *Wishlist) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// Entries returns the wishlist in display order.
func (w *Wishlist) Entries() []WishlistEntry {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]WishlistEntry, len(w.entries))
	copy(out, w.entries)
	return out
}

// Count returns the number of wishlist entries.
func (w *Wishlist) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}

// Contains reports whether the product is on the wishlist.
func (w *Wishlist) Contains(productID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, e := range w.entries {
		if e.Product.ID == productID {
			return true
		}
	}
	return false
}

// Add puts a product on the wishlist. Idempotent: adding a product that
// is already present leaves the wishlist unchanged.
func (w *Wishlist) Add(ctx context.Context, product catalog.Product, variant Variant) error {
	w.mu.Lock()
	mode := w.mode
	seq := w.beginLocked()
	w.mu.Unlock()

	if mode == ModeGuest {
		w.store.AddWishlist(product.ID)
		w.applyLocal(seq, product.ID, func(entries []WishlistEntry) []WishlistEntry {
			for _, e := range entries {
				if e.Product.ID == product.ID {
					return entries
				}
			}
			return append(entries, WishlistEntry{
				ID:            localItemID(),
				Product:       product,
				AddedAt:       w.now(),
				SelectedSize:  variant.Size,
				SelectedColor: variant.Color,
			})
		})
		return nil
	}

	serverEntries, err := w.gateway.AddToWishlist(ctx, product.ID)
	if err != nil {
		return w.fail("add", err)
	}
	w.apply(seq, product.ID, serverEntries)
	return nil
}

// Remove deletes the identified wishlist entry.
func (w *Wishlist) Remove(ctx context.Context, entryID string) error {
	w.mu.Lock()
	idx := w.indexByIDLocked(entryID)
	if idx < 0 {
		w.mu.Unlock()
		return carterrors.ErrItemNotFound
	}
	productID := w.entries[idx].Product.ID
	mode := w.mode
	seq := w.beginLocked()
	w.mu.Unlock()

	if mode == ModeGuest {
		w.store.RemoveWishlist(productID)
		w.applyLocal(seq, productID, func(entries []WishlistEntry) []WishlistEntry {
			for i := range entries {
				if entries[i].Product.ID == productID {
					return append(entries[:i], entries[i+1:]...)
				}
			}
			return entries
		})
		return nil
	}

	serverEntries, err := w.gateway.RemoveFromWishlist(ctx, productID)
	if err != nil {
		return w.fail("remove", err)
	}
	w.apply(seq, productID, serverEntries)
	return nil
}

// MoveToCart is a compound operation: the cart add must succeed before
// the wishlist entry is removed. If the add fails, the entry is retained
// so nothing is silently lost.
func (w *Wishlist) MoveToCart(ctx context.Context, entryID string, qty int64, cart *Container) error {
	w.mu.Lock()
	idx := w.indexByIDLocked(entryID)
	if idx < 0 {
		w.mu.Unlock()
		return carterrors.ErrItemNotFound
	}
	entry := w.entries[idx]
	w.mu.Unlock()

	variant := Variant{Size: entry.SelectedSize, Color: entry.SelectedColor}
	if err := cart.AddItem(ctx, entry.Product, qty, variant); err != nil {
		return err
	}
	return w.Remove(ctx, entryID)
}

// Refresh replaces the in-memory wishlist with the authoritative server
// state. Only meaningful in authenticated mode.
func (w *Wishlist) Refresh(ctx context.Context) error {
	w.mu.Lock()
	seq := w.beginLocked()
	w.mu.Unlock()

	serverEntries, err := w.gateway.FetchWishlist(ctx)
	if err != nil {
		return w.fail("refresh", err)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.inFlight--
	w.replaceLocked(seq, serverEntries)
	if w.inFlight == 0 && w.status == StatusLoading {
		w.status = StatusIdle
	}
	return nil
}

// Hydrate rebuilds the in-memory wishlist from the guest store.
func (w *Wishlist) Hydrate(ctx context.Context, resolver ProductResolver) {
	ids := w.store.ReadWishlist()
	entries := make([]WishlistEntry, 0, len(ids))
	for _, id := range ids {
		product, err := resolver.Product(ctx, id)
		if err != nil {
			w.logger.Warn("Skipping guest wishlist id with unresolvable product", "product_id", id, "error", err)
			continue
		}
		entries = append(entries, WishlistEntry{ID: localItemID(), Product: product, AddedAt: w.now()})
	}
	w.ReplaceEntries(entries)
}

// ReplaceEntries installs the given collection as the authoritative
// wishlist state, superseding any in-flight mutation responses.
func (w *Wishlist) ReplaceEntries(entries []WishlistEntry) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.seq++
	w.replaceLocked(w.seq, entries)
}

func (w *Wishlist) beginLocked() uint64 {
	w.seq++
	w.inFlight++
	w.status = StatusLoading
	w.lastErr = nil
	return w.seq
}

// apply installs a server response unless a newer mutation has already
// resolved. Responses are full-collection snapshots, so an older one is
// stale in its entirety regardless of which product it mutated.
func (w *Wishlist) apply(seq uint64, productID string, entries []WishlistEntry) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.inFlight--
	if seq > w.lastApplied {
		w.lastApplied = seq
		w.entries = entries
	} else {
		w.logger.Debug("Discarding stale mutation response", "product_id", productID, "seq", seq)
	}
	if w.inFlight == 0 && w.status == StatusLoading {
		w.status = StatusIdle
	}
}

func (w *Wishlist) applyLocal(seq uint64, productID string, fn func([]WishlistEntry) []WishlistEntry) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.inFlight--
	if seq > w.lastApplied {
		w.lastApplied = seq
		w.entries = fn(w.entries)
	} else {
		w.logger.Debug("Discarding stale local mutation", "product_id", productID, "seq", seq)
	}
	if w.inFlight == 0 && w.status == StatusLoading {
		w.status = StatusIdle
	}
}

func (w *Wishlist) replaceLocked(seq uint64, entries []WishlistEntry) {
	if seq <= w.lastApplied {
		return
	}
	w.lastApplied = seq
	w.entries = entries
}

func (w *Wishlist) fail(op string, err error) error {
	w.mu.Lock()
	w.inFlight--
	w.status = StatusError
	w.lastErr = err
	w.mu.Unlock()
	w.logger.Error("Wishlist mutation failed", "op", op, "error", err)
	return err
}

func (w *Wishlist) indexByIDLocked(entryID string) int {
	for i := range w.entries {
		if w.entries[i].ID == entryID {
			return i
		}
	}
	return -1
}
