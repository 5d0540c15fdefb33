package cart

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/storekit/cartsync/internal/catalog"
	carterrors "github.com/storekit/cartsync/internal/errors"
	"github.com/storekit/cartsync/internal/store"
)

// Container is the cart state machine. It is a single process-wide
// instance; all screens read from and mutate it through the same
// reference. Mutations release the lock across I/O and re-acquire it to
// apply the result, so the collection stays displayable while loading.
//
// Responses are applied last-write-wins: every mutation takes a
// monotonically increasing sequence number at dispatch, and because each
// response carries the full canonical collection, a response older than
// the newest one already applied is discarded wholesale rather than
// applied. Gating on the collection rather than the mutated product
// keeps a delayed response from regressing a different product's line.
type Container struct {
	mu          sync.Mutex
	items       []Item
	mode        Mode
	status      Status
	lastErr     error
	inFlight    int
	seq         uint64
	lastApplied uint64
	store       store.GuestStore
	gateway     ServerGateway
	logger      *slog.Logger
}

// NewContainer creates a cart container in guest mode backed by the given
// guest store and server gateway.
func NewContainer(guestStore store.GuestStore, gateway ServerGateway, logger *slog.Logger) *Container {
	return &Container{
		mode:    ModeGuest,
		status:  StatusIdle,
		store:   guestStore,
		gateway: gateway,
		logger:  logger.With("component", "cart"),
	}
}

// SetAuthenticated switches the backing store for subsequent mutations.
// It does not migrate guest data; that is the session handler's job.
func (c *Container) SetAuthenticated(authenticated bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if authenticated {
		c.mode = ModeAuthenticated
	} else {
		c.mode = ModeGuest
	}
}

// Mode returns the current session mode.
func (c *Container) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Status returns the collection-wide mutation status.
func (c *Container) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// LastError returns the error behind a Status of StatusError, or nil.
func (c *Container) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Items returns the cart lines in display order.
func (c *Container) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Snapshot returns an immutable copy of the cart, decoupled from
// subsequent live mutations. Used by checkout.
func (c *Container) Snapshot() []Item {
	return c.Items()
}

// TotalItemCount returns the sum of quantities across all lines.
func (c *Container) TotalItemCount() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for _, it := range c.items {
		n += it.Quantity
	}
	return n
}

// TotalPrice returns the cart total in minor currency units.
func (c *Container) TotalPrice() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total int64
	for _, it := range c.items {
		total += it.Product.Price * it.Quantity
	}
	return total
}

// AddItem adds qty units of the product to the cart. In guest mode the
// guest store is updated and the change is mirrored into memory from the
// supplied product data, with no network round trip. In authenticated
// mode the server is asked for the new absolute quantity and its
// canonical response replaces the in-memory cart. qty below 1 is a no-op.
func (c *Container) AddItem(ctx context.Context, product catalog.Product, qty int64, variant Variant) error {
	if qty < 1 {
		return nil
	}
	c.mu.Lock()
	mode := c.mode
	target := qty
	for _, it := range c.items {
		if it.Product.ID == product.ID {
			target = it.Quantity + qty
			break
		}
	}
	seq := c.beginLocked()
	c.mu.Unlock()

	if mode == ModeGuest {
		c.store.AddOrIncrement(product.ID, qty)
		c.applyLocal(seq, product.ID, func(items []Item) []Item {
			for i := range items {
				if items[i].Product.ID == product.ID {
					items[i].Quantity += qty
					return items
				}
			}
			return append(items, Item{
				ID:            localItemID(),
				Product:       product,
				Quantity:      qty,
				SelectedSize:  variant.Size,
				SelectedColor: variant.Color,
			})
		})
		return nil
	}

	serverItems, err := c.gateway.UpsertItem(ctx, product.ID, target)
	if err != nil {
		return c.fail("add_item", err)
	}
	c.apply(seq, product.ID, serverItems)
	return nil
}

// UpdateQuantity sets the quantity of the identified cart line.
// A non-positive quantity is routed to the removal path and is never sent
// to a backing store as a literal zero or negative. Server calls are
// keyed by product identity, since the server is quantity-authoritative
// per product rather than per cart row.
func (c *Container) UpdateQuantity(ctx context.Context, itemID string, qty int64) error {
	c.mu.Lock()
	idx := c.indexByIDLocked(itemID)
	if idx < 0 {
		c.mu.Unlock()
		return carterrors.ErrItemNotFound
	}
	productID := c.items[idx].Product.ID
	if qty <= 0 {
		c.mu.Unlock()
		return c.removeByProduct(ctx, productID)
	}
	mode := c.mode
	seq := c.beginLocked()
	c.mu.Unlock()

	if mode == ModeGuest {
		c.store.SetQuantity(productID, qty)
		c.applyLocal(seq, productID, func(items []Item) []Item {
			for i := range items {
				if items[i].Product.ID == productID {
					items[i].Quantity = qty
				}
			}
			return items
		})
		return nil
	}

	serverItems, err := c.gateway.UpsertItem(ctx, productID, qty)
	if err != nil {
		return c.fail("update_quantity", err)
	}
	c.apply(seq, productID, serverItems)
	return nil
}

// RemoveItem deletes the identified cart line.
func (c *Container) RemoveItem(ctx context.Context, itemID string) error {
	c.mu.Lock()
	idx := c.indexByIDLocked(itemID)
	if idx < 0 {
		c.mu.Unlock()
		return carterrors.ErrItemNotFound
	}
	productID := c.items[idx].Product.ID
	c.mu.Unlock()
	return c.removeByProduct(ctx, productID)
}

// Refresh replaces the in-memory cart with the authoritative server
// state. Only meaningful in authenticated mode.
func (c *Container) Refresh(ctx context.Context) error {
	c.mu.Lock()
	seq := c.beginLocked()
	c.mu.Unlock()

	serverItems, err := c.gateway.FetchCart(ctx)
	if err != nil {
		return c.fail("refresh", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight--
	c.replaceLocked(seq, serverItems)
	if c.inFlight == 0 && c.status == StatusLoading {
		c.status = StatusIdle
	}
	return nil
}

// Hydrate rebuilds the in-memory cart from the guest store, resolving
// product details through the catalog. Records whose product cannot be
// resolved are skipped, not dropped from storage. Used on cold start of
// a guest session.
func (c *Container) Hydrate(ctx context.Context, resolver ProductResolver) {
	records := c.store.Read()
	items := make([]Item, 0, len(records))
	for _, rec := range records {
		product, err := resolver.Product(ctx, rec.ProductID)
		if err != nil {
			c.logger.Warn("Skipping guest cart record with unresolvable product", "product_id", rec.ProductID, "error", err)
			continue
		}
		items = append(items, Item{ID: localItemID(), Product: product, Quantity: rec.Quantity})
	}
	c.ReplaceItems(items)
}

// ReplaceItems installs the given collection as the authoritative cart
// state, superseding any in-flight mutation responses.
func (c *Container) ReplaceItems(items []Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.replaceLocked(c.seq, items)
}

// Clear empties the cart after a confirmed checkout. In guest mode the
// guest store is cleared as well; in authenticated mode the server cart
// is cleared server-side as part of order confirmation.
func (c *Container) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == ModeGuest {
		c.store.Clear()
	}
	c.seq++
	c.replaceLocked(c.seq, nil)
}

// removeByProduct removes the cart line for a product via the backing
// store for the current mode.
func (c *Container) removeByProduct(ctx context.Context, productID string) error {
	c.mu.Lock()
	mode := c.mode
	seq := c.beginLocked()
	c.mu.Unlock()

	if mode == ModeGuest {
		c.store.Remove(productID)
		c.applyLocal(seq, productID, func(items []Item) []Item {
			for i := range items {
				if items[i].Product.ID == productID {
					return append(items[:i], items[i+1:]...)
				}
			}
			return items
		})
		return nil
	}

	serverItems, err := c.gateway.RemoveItem(ctx, productID)
	if err != nil {
		return c.fail("remove_item", err)
	}
	c.apply(seq, productID, serverItems)
	return nil
}

// beginLocked registers a new mutation: a fresh sequence number, loading
// status, and a cleared error. Caller must hold the lock.
func (c *Container) beginLocked() uint64 {
	c.seq++
	c.inFlight++
	c.status = StatusLoading
	c.lastErr = nil
	return c.seq
}

// apply installs a server response unless a newer mutation has already
// resolved. Responses are full-collection snapshots, so an older one is
// stale in its entirety: applying it would regress every line mutated
// since it was dispatched, not just the one it belongs to.
func (c *Container) apply(seq uint64, productID string, items []Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight--
	if seq > c.lastApplied {
		c.lastApplied = seq
		c.items = items
	} else {
		c.logger.Debug("Discarding stale mutation response", "product_id", productID, "seq", seq)
	}
	if c.inFlight == 0 && c.status == StatusLoading {
		c.status = StatusIdle
	}
}

// applyLocal mirrors a guest-store change into memory, with the same
// staleness gate as server responses.
func (c *Container) applyLocal(seq uint64, productID string, fn func([]Item) []Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight--
	if seq > c.lastApplied {
		c.lastApplied = seq
		c.items = fn(c.items)
	} else {
		c.logger.Debug("Discarding stale local mutation", "product_id", productID, "seq", seq)
	}
	if c.inFlight == 0 && c.status == StatusLoading {
		c.status = StatusIdle
	}
}

// replaceLocked swaps the collection wholesale and advances the applied
// watermark to seq so responses still in flight cannot resurrect
// superseded state. A seq at or below the watermark means a newer
// mutation already resolved and the replacement itself is stale.
// Caller must hold the lock.
func (c *Container) replaceLocked(seq uint64, items []Item) {
	if seq <= c.lastApplied {
		return
	}
	c.lastApplied = seq
	c.items = items
}

// fail records a mutation failure. The previous items are retained so
// the UI can offer an explicit retry.
func (c *Container) fail(op string, err error) error {
	c.mu.Lock()
	c.inFlight--
	c.status = StatusError
	c.lastErr = err
	c.mu.Unlock()
	if errors.Is(err, carterrors.ErrUnauthorized) {
		c.logger.Warn("Cart mutation rejected, session invalid", "op", op)
	} else {
		c.logger.Error("Cart mutation failed", "op", op, "error", err)
	}
	return err
}

func (c *Container) indexByIDLocked(itemID string) int {
	for i := range c.items {
		if c.items[i].ID == itemID {
			return i
		}
	}
	return -1
}

// localItemID generates a temporary id for an item that has not been
// assigned a server id yet.
func localItemID() string {
	return "local-" + uuid.NewString()
}
