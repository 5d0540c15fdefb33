// Package app wires the cart engine together.
package app

import (
	"log/slog"
	"net/http"

	"github.com/storekit/cartsync/internal/address"
	"github.com/storekit/cartsync/internal/cart"
	"github.com/storekit/cartsync/internal/catalog"
	"github.com/storekit/cartsync/internal/checkout"
	"github.com/storekit/cartsync/internal/config"
	"github.com/storekit/cartsync/internal/devserver"
	"github.com/storekit/cartsync/internal/gateway"
	"github.com/storekit/cartsync/internal/migration"
	"github.com/storekit/cartsync/internal/store"
	"github.com/storekit/cartsync/pkg/server"
)

// Engine is the dependency-injected state root of the cart subsystem.
// The UI layer holds exactly one Engine and routes every cart, wishlist,
// address, and checkout intent through it. There is no ambient global
// state.
type Engine struct {
	Cart      *cart.Container
	Wishlist  *cart.Wishlist
	Session   *migration.Handler
	Checkout  *checkout.Orchestrator
	Addresses *address.Book
	Store     store.GuestStore
	Gateway   *gateway.Client
	Logger    *slog.Logger
}

// SetupEngine builds an Engine from configuration. token supplies the
// session bearer token for server calls; alreadyAuthenticated is the
// session state at cold start.
func SetupEngine(cfg *config.Config, token gateway.TokenProvider, alreadyAuthenticated bool, logger *slog.Logger) *Engine {
	guestStore := store.NewFileStore(cfg.Storage.Dir, logger)
	client := gateway.NewClient(cfg.Gateway.URL, cfg.Gateway.Timeout, token, logger)

	cartC := cart.NewContainer(guestStore, client, logger)
	wishlist := cart.NewWishlist(guestStore, client, logger)
	session := migration.NewHandler(guestStore, client, cartC, wishlist, alreadyAuthenticated, logger)
	orchestrator := checkout.NewOrchestrator(client, cartC, checkout.Config{
		ShippingCost: cfg.Checkout.ShippingCost,
		TaxRateBps:   cfg.Checkout.TaxRateBps,
	}, logger)
	book := address.NewBook(client, logger)

	return &Engine{
		Cart:      cartC,
		Wishlist:  wishlist,
		Session:   session,
		Checkout:  orchestrator,
		Addresses: book,
		Store:     guestStore,
		Gateway:   client,
		Logger:    logger,
	}
}

// SetupDevHandler builds the dev backend HTTP handler. Used by the dev
// server binary and the e2e suite.
func SetupDevHandler(products []catalog.Product, pricing devserver.Pricing, logger *slog.Logger) (http.Handler, *devserver.Server) {
	backend := devserver.New(products, pricing, logger)
	mux := server.NewChiRouter(logger)
	backend.RegisterRoutes(mux)
	return mux, backend
}
