// Package migration replays guest-stored cart and wishlist entries into
// the server when the shopper signs in.
package migration

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/storekit/cartsync/internal/cart"
	"github.com/storekit/cartsync/internal/store"
)

// replayConcurrency bounds the number of gateway calls issued at once
// during a replay.
const replayConcurrency = 4

// Handler observes authentication-state changes and runs the guest to
// server migration exactly once per login edge. A cold start in an
// already-authenticated session does not trigger a migration, but any
// guest records left behind by an earlier partial failure are picked up
// by the next login, since only successfully replayed records are
// cleared.
type Handler struct {
	mu            sync.Mutex
	authenticated bool
	store         store.GuestStore
	gateway       cart.ServerGateway
	cart          *cart.Container
	wishlist      *cart.Wishlist
	logger        *slog.Logger
}

// NewHandler creates a Handler. alreadyAuthenticated is the session
// state at cold start; passing true suppresses the migration that a
// false-to-true transition would otherwise run.
func NewHandler(guestStore store.GuestStore, gateway cart.ServerGateway, cartC *cart.Container, wishlist *cart.Wishlist, alreadyAuthenticated bool, logger *slog.Logger) *Handler {
	h := &Handler{
		authenticated: alreadyAuthenticated,
		store:         guestStore,
		gateway:       gateway,
		cart:          cartC,
		wishlist:      wishlist,
		logger:        logger.With("component", "migration"),
	}
	cartC.SetAuthenticated(alreadyAuthenticated)
	wishlist.SetAuthenticated(alreadyAuthenticated)
	return h
}

// SetAuthenticated records the new session state, switches both
// containers' mode, and on a false-to-true edge runs the migration.
// The returned error reflects the migration only; the mode switch always
// takes effect.
func (h *Handler) SetAuthenticated(ctx context.Context, authenticated bool) error {
	h.mu.Lock()
	was := h.authenticated
	h.authenticated = authenticated
	h.mu.Unlock()

	h.cart.SetAuthenticated(authenticated)
	h.wishlist.SetAuthenticated(authenticated)

	if authenticated && !was {
		return h.Migrate(ctx)
	}
	return nil
}

// Migrate replays the guest store against the server, replaces both
// containers with the authoritative server state, and clears the
// successfully replayed guest records. Records whose replay failed stay
// in the guest store as candidates for the next attempt. The replay of
// individual records is independent: one failure does not block the
// others.
func (h *Handler) Migrate(ctx context.Context) error {
	records := h.store.Read()
	wishIDs := h.store.ReadWishlist()
	if len(records) == 0 && len(wishIDs) == 0 {
		h.logger.Debug("Guest store empty, nothing to migrate")
		return h.refresh(ctx)
	}
	h.logger.Info("Starting guest cart migration", "cart_records", len(records), "wishlist_ids", len(wishIDs))

	var mu sync.Mutex
	failedCart := make(map[string]bool)
	failedWish := make(map[string]bool)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(replayConcurrency)
	for _, rec := range records {
		g.Go(func() error {
			if _, err := h.gateway.UpsertItem(gctx, rec.ProductID, rec.Quantity); err != nil {
				h.logger.Warn("Failed to replay guest cart record", "product_id", rec.ProductID, "error", err)
				mu.Lock()
				failedCart[rec.ProductID] = true
				mu.Unlock()
			}
			return nil
		})
	}
	for _, id := range wishIDs {
		g.Go(func() error {
			if _, err := h.gateway.AddToWishlist(gctx, id); err != nil {
				h.logger.Warn("Failed to replay guest wishlist id", "product_id", id, "error", err)
				mu.Lock()
				failedWish[id] = true
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	// The server result is authoritative, not the locally replayed
	// assumption: server-side rules such as stock caps apply here.
	// Guest data is cleared only after this succeeds, so a crash
	// mid-migration leaves it intact for a retry on next launch.
	if err := h.refresh(ctx); err != nil {
		return err
	}

	if len(failedCart) == 0 {
		h.store.Clear()
	} else {
		kept := make([]store.Record, 0, len(failedCart))
		for _, rec := range records {
			if failedCart[rec.ProductID] {
				kept = append(kept, rec)
			}
		}
		h.store.Write(kept)
	}
	if len(failedWish) == 0 {
		h.store.ClearWishlist()
	} else {
		kept := make([]string, 0, len(failedWish))
		for _, id := range wishIDs {
			if failedWish[id] {
				kept = append(kept, id)
			}
		}
		h.store.WriteWishlist(kept)
	}

	if len(failedCart) > 0 || len(failedWish) > 0 {
		h.logger.Warn("Migration completed partially", "failed_cart", len(failedCart), "failed_wishlist", len(failedWish))
	} else {
		h.logger.Info("Migration completed")
	}
	return nil
}

// refresh pulls the authoritative cart and wishlist into the containers.
func (h *Handler) refresh(ctx context.Context) error {
	serverCart, err := h.gateway.FetchCart(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch server cart: %w", err)
	}
	h.cart.ReplaceItems(serverCart)

	serverWish, err := h.gateway.FetchWishlist(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch server wishlist: %w", err)
	}
	h.wishlist.ReplaceEntries(serverWish)
	return nil
}
