// Package devserver is an in-memory reference implementation of the
// storefront backend contracts the engine consumes. It backs the e2e
// suite and local development; it is not a production server.
package devserver

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/storekit/cartsync/internal/address"
	"github.com/storekit/cartsync/internal/cart"
	"github.com/storekit/cartsync/internal/catalog"
	"github.com/storekit/cartsync/internal/checkout"
	carterrors "github.com/storekit/cartsync/internal/errors"
	"github.com/storekit/cartsync/pkg/web"
)

// Pricing mirrors the server-agreed checkout constants.
type Pricing struct {
	ShippingCost int64
	TaxRateBps   int64
}

// userState is the per-session server-side state, keyed by bearer token.
type userState struct {
	cartItems []cart.Item
	wishlist  []cart.WishlistEntry
	addresses []address.Address
	orders    []checkout.PlacementResult
}

// Server holds all state behind a single mutex; contention is irrelevant
// at dev scale.
type Server struct {
	mu       sync.Mutex
	users    map[string]*userState
	products map[string]catalog.Product
	pricing  Pricing
	logger   *slog.Logger
}

// New creates a Server with the given catalog and pricing.
func New(products []catalog.Product, pricing Pricing, logger *slog.Logger) *Server {
	byID := make(map[string]catalog.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return &Server{
		users:    make(map[string]*userState),
		products: byID,
		pricing:  pricing,
		logger:   logger.With("component", "devserver"),
	}
}

// Product implements cart.ProductResolver against the seeded catalog.
func (s *Server) Product(_ context.Context, id string) (catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return catalog.Product{}, carterrors.ErrProductNotFound
	}
	return p, nil
}

// RegisterRoutes mounts the backend contract on the router.
func (s *Server) RegisterRoutes(r *chi.Mux) {
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", s.getCart)
			r.Post("/items", s.upsertCartItem)
			r.Delete("/items/{productId}", s.removeCartItem)
		})
		r.Route("/wishlist", func(r chi.Router) {
			r.Get("/", s.getWishlist)
			r.Post("/items", s.addWishlistItem)
			r.Delete("/items/{productId}", s.removeWishlistItem)
		})
		r.Route("/addresses", func(r chi.Router) {
			r.Get("/", s.listAddresses)
			r.Post("/", s.createAddress)
			r.Put("/{id}", s.updateAddress)
			r.Delete("/{id}", s.deleteAddress)
			r.Post("/{id}/default", s.setDefaultAddress)
		})
		r.Post("/orders/payment", s.placeOrder)
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		web.RespondJSON(w, s.logger, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// authMiddleware requires a non-empty bearer token and keys all state by it.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" || token == r.Header.Get("Authorization") {
			web.RespondError(w, s.logger, http.StatusUnauthorized, "Missing or invalid bearer token")
			return
		}
		next.ServeHTTP(w, r.WithContext(web.WithSessionToken(r.Context(), token)))
	})
}

// user returns (creating if needed) the state for the request's session.
func (s *Server) user(r *http.Request) *userState {
	token, _ := web.GetSessionToken(r.Context())
	st, ok := s.users[token]
	if !ok {
		st = &userState{}
		s.users[token] = st
	}
	return st
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	items := append([]cart.Item(nil), s.user(r).cartItems...)
	s.mu.Unlock()
	web.RespondJSON(w, s.logger, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) upsertCartItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID string `json:"productId"`
		Qty       int64  `json:"qty"`
	}
	if !web.DecodeJSON(w, r, s.logger, &req) {
		return
	}
	if req.Qty < 1 {
		web.RespondError(w, s.logger, http.StatusBadRequest, "qty must be >= 1")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	product, ok := s.products[req.ProductID]
	if !ok {
		web.RespondError(w, s.logger, http.StatusNotFound, "Unknown product: "+req.ProductID)
		return
	}
	st := s.user(r)
	updated := false
	for i := range st.cartItems {
		if st.cartItems[i].Product.ID == req.ProductID {
			// The server is quantity-authoritative per product: the
			// submitted qty is the new absolute quantity.
			st.cartItems[i].Quantity = req.Qty
			updated = true
			break
		}
	}
	if !updated {
		st.cartItems = append(st.cartItems, cart.Item{
			ID:       uuid.NewString(),
			Product:  product,
			Quantity: req.Qty,
		})
	}
	web.RespondJSON(w, s.logger, http.StatusOK, map[string]any{"items": st.cartItems})
}

func (s *Server) removeCartItem(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.user(r)
	for i := range st.cartItems {
		if st.cartItems[i].Product.ID == productID {
			st.cartItems = append(st.cartItems[:i], st.cartItems[i+1:]...)
			break
		}
	}
	web.RespondJSON(w, s.logger, http.StatusOK, map[string]any{"items": st.cartItems})
}

func (s *Server) getWishlist(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	items := append([]cart.WishlistEntry(nil), s.user(r).wishlist...)
	s.mu.Unlock()
	web.RespondJSON(w, s.logger, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) addWishlistItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID string `json:"productId"`
	}
	if !web.DecodeJSON(w, r, s.logger, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	product, ok := s.products[req.ProductID]
	if !ok {
		web.RespondError(w, s.logger, http.StatusNotFound, "Unknown product: "+req.ProductID)
		return
	}
	st := s.user(r)
	for _, e := range st.wishlist {
		if e.Product.ID == req.ProductID {
			web.RespondJSON(w, s.logger, http.StatusOK, map[string]any{"items": st.wishlist})
			return
		}
	}
	st.wishlist = append(st.wishlist, cart.WishlistEntry{
		ID:      uuid.NewString(),
		Product: product,
	})
	web.RespondJSON(w, s.logger, http.StatusOK, map[string]any{"items": st.wishlist})
}

func (s *Server) removeWishlistItem(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.user(r)
	for i := range st.wishlist {
		if st.wishlist[i].Product.ID == productID {
			st.wishlist = append(st.wishlist[:i], st.wishlist[i+1:]...)
			break
		}
	}
	web.RespondJSON(w, s.logger, http.StatusOK, map[string]any{"items": st.wishlist})
}

func (s *Server) listAddresses(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	addresses := append([]address.Address(nil), s.user(r).addresses...)
	s.mu.Unlock()
	web.RespondJSON(w, s.logger, http.StatusOK, map[string]any{"addresses": addresses})
}

func (s *Server) createAddress(w http.ResponseWriter, r *http.Request) {
	var a address.Address
	if !web.DecodeJSON(w, r, s.logger, &a) {
		return
	}
	a.ID = uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.user(r)
	if a.IsDefault || len(st.addresses) == 0 {
		a.IsDefault = true
		for i := range st.addresses {
			st.addresses[i].IsDefault = false
		}
	}
	st.addresses = append(st.addresses, a)
	web.RespondJSON(w, s.logger, http.StatusCreated, map[string]any{"addresses": st.addresses})
}

func (s *Server) updateAddress(w http.ResponseWriter, r *http.Request) {
	var a address.Address
	if !web.DecodeJSON(w, r, s.logger, &a) {
		return
	}
	a.ID = chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.user(r)
	for i := range st.addresses {
		if st.addresses[i].ID == a.ID {
			a.IsDefault = st.addresses[i].IsDefault
			st.addresses[i] = a
			web.RespondJSON(w, s.logger, http.StatusOK, map[string]any{"addresses": st.addresses})
			return
		}
	}
	web.RespondError(w, s.logger, http.StatusNotFound, "Address not found: "+a.ID)
}

func (s *Server) deleteAddress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.user(r)
	for i := range st.addresses {
		if st.addresses[i].ID == id {
			wasDefault := st.addresses[i].IsDefault
			st.addresses = append(st.addresses[:i], st.addresses[i+1:]...)
			if wasDefault && len(st.addresses) > 0 {
				st.addresses[0].IsDefault = true
			}
			web.RespondJSON(w, s.logger, http.StatusOK, map[string]any{"addresses": st.addresses})
			return
		}
	}
	web.RespondError(w, s.logger, http.StatusNotFound, "Address not found: "+id)
}

func (s *Server) setDefaultAddress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.user(r)
	found := false
	for i := range st.addresses {
		// Atomic swap: the previous default is unset in the same mutation.
		st.addresses[i].IsDefault = st.addresses[i].ID == id
		if st.addresses[i].IsDefault {
			found = true
		}
	}
	if !found {
		web.RespondError(w, s.logger, http.StatusNotFound, "Address not found: "+id)
		return
	}
	web.RespondJSON(w, s.logger, http.StatusOK, map[string]any{"addresses": st.addresses})
}

func (s *Server) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req checkout.PlacementRequest
	if !web.DecodeJSON(w, r, s.logger, &req) {
		return
	}
	if len(req.Items) == 0 {
		web.RespondError(w, s.logger, http.StatusBadRequest, "cart is empty")
		return
	}

	var subtotal int64
	for _, it := range req.Items {
		subtotal += it.Product.Price * it.Quantity
	}
	tax := subtotal * s.pricing.TaxRateBps / 10000
	amount := subtotal + req.ShippingCost + tax

	result := checkout.PlacementResult{
		OrderID: uuid.NewString(),
		Status:  checkout.OrderPending,
		Amount:  amount,
	}
	if req.PaymentMethod == checkout.PaymentCashOnDelivery {
		result.Status = checkout.OrderConfirmed
	} else {
		result.RazorpayOrderID = "order_" + uuid.NewString()
		result.Key = "rzp_test_devserver"
	}

	s.mu.Lock()
	st := s.user(r)
	st.orders = append(st.orders, result)
	// Order confirmation empties the server-side cart.
	st.cartItems = nil
	s.mu.Unlock()

	s.logger.Info("Order created", "order_id", result.OrderID, "amount", amount, "payment_method", req.PaymentMethod)
	web.RespondJSON(w, s.logger, http.StatusCreated, result)
}
