// Package checkout converts the current cart, a shipping address, and a
// payment method into a server order. The cart is cleared only after the
// server confirms the order, never before.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/storekit/cartsync/internal/address"
	"github.com/storekit/cartsync/internal/cart"
	carterrors "github.com/storekit/cartsync/internal/errors"
)

// State is the orchestrator's phase: reviewing -> placing -> confirmed | failed.
type State string

const (
	StateReviewing State = "reviewing"
	StatePlacing   State = "placing"
	StateConfirmed State = "confirmed"
	StateFailed    State = "failed"
)

// PaymentMethod identifies how the shopper pays.
type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "cod"
	PaymentRazorpay       PaymentMethod = "razorpay"
)

// OrderStatus is the server-side lifecycle status of an order.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
	OrderRefunded   OrderStatus = "refunded"
)

// Totals breaks down the order amount in minor currency units.
type Totals struct {
	Subtotal int64 `json:"subtotal"`
	Shipping int64 `json:"shipping"`
	Tax      int64 `json:"tax"`
	Total    int64 `json:"total"`
}

// Order is the client-side record of a placed order. Items and the
// shipping address are snapshots taken at placement time, not live
// references: prices and availability may change later.
type Order struct {
	ID              string          `json:"id"`
	Items           []cart.Item     `json:"items"`
	ShippingAddress address.Address `json:"shippingAddress"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	Status          OrderStatus     `json:"status"`
	Totals          Totals          `json:"totals"`
}

// PaymentSession carries the provider-specific parameters returned for
// non-cash payment methods. Opaque to this subsystem; forwarded to the
// payment step as-is.
type PaymentSession struct {
	OrderID         string `json:"orderId"`
	RazorpayOrderID string `json:"razorpayOrderId"`
	Key             string `json:"key"`
}

// PlacementRequest is what the server needs to create an order.
type PlacementRequest struct {
	Items           []cart.Item     `json:"cart"`
	ShippingAddress address.Address `json:"shippingAddress"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	ShippingCost    int64           `json:"shippingCost"`
}

// PlacementResult is the server's order-creation response. The razorpay
// fields are present only for non-cash payment methods.
type PlacementResult struct {
	OrderID         string      `json:"orderId"`
	Status          OrderStatus `json:"status"`
	Amount          int64       `json:"amount"`
	RazorpayOrderID string      `json:"razorpayOrderId,omitempty"`
	Key             string      `json:"key,omitempty"`
}

// Gateway is the server contract for order placement. It never retries
// internally.
type Gateway interface {
	PlaceOrder(ctx context.Context, req PlacementRequest) (*PlacementResult, error)
}

// FieldError is a checkout precondition violation, identified by the
// violating field so the UI can surface it inline. It is local and never
// sent to the server.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Config carries the server-agreed pricing constants.
type Config struct {
	// ShippingCost is the flat shipping fee in minor units.
	ShippingCost int64
	// TaxRateBps is the tax rate in basis points (e.g. 1800 = 18%).
	TaxRateBps int64
}

// Orchestrator drives order placement. A single order may be in flight
// per session: a second PlaceOrder call while one is placing is rejected
// outright rather than raced.
type Orchestrator struct {
	mu        sync.Mutex
	state     State
	lastOrder *Order
	gateway   Gateway
	cart      *cart.Container
	cfg       Config
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewOrchestrator creates an Orchestrator in the reviewing state.
func NewOrchestrator(gateway Gateway, cartC *cart.Container, cfg Config, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		state:    StateReviewing,
		gateway:  gateway,
		cart:     cartC,
		cfg:      cfg,
		validate: validator.New(),
		logger:   logger.With("component", "checkout"),
	}
}

// State returns the current checkout phase.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// LastOrder returns the most recently confirmed order, if any.
func (o *Orchestrator) LastOrder() (Order, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.lastOrder == nil {
		return Order{}, false
	}
	return *o.lastOrder, true
}

// ComputeTotals derives the order totals for the given items.
func (o *Orchestrator) ComputeTotals(items []cart.Item) Totals {
	var subtotal int64
	for _, it := range items {
		subtotal += it.Product.Price * it.Quantity
	}
	tax := subtotal * o.cfg.TaxRateBps / 10000
	return Totals{
		Subtotal: subtotal,
		Shipping: o.cfg.ShippingCost,
		Tax:      tax,
		Total:    subtotal + o.cfg.ShippingCost + tax,
	}
}

// PlaceOrder snapshots the cart and asks the server to create an order.
// Preconditions are checked locally and reported as FieldErrors without
// touching the server. On any failure the live cart is left unchanged so
// the shopper can retry without re-adding items; the cart is cleared
// only after the server confirms. For cash on delivery the returned
// session is nil and the order is immediately confirmed.
func (o *Orchestrator) PlaceOrder(ctx context.Context, shippingAddress address.Address, method PaymentMethod) (*Order, *PaymentSession, error) {
	o.mu.Lock()
	if o.state == StatePlacing {
		o.mu.Unlock()
		return nil, nil, carterrors.ErrOrderInFlight
	}

	// Snapshot at invocation time: a concurrent cart mutation must not
	// corrupt the in-flight order.
	snapshot := o.cart.Snapshot()
	if err := o.checkPreconditions(snapshot, shippingAddress, method); err != nil {
		o.state = StateReviewing
		o.mu.Unlock()
		return nil, nil, err
	}
	o.state = StatePlacing
	o.mu.Unlock()

	totals := o.ComputeTotals(snapshot)
	o.logger.Info("Placing order", "items", len(snapshot), "total", totals.Total, "payment_method", method)

	result, err := o.gateway.PlaceOrder(ctx, PlacementRequest{
		Items:           snapshot,
		ShippingAddress: shippingAddress,
		PaymentMethod:   method,
		ShippingCost:    o.cfg.ShippingCost,
	})
	if err != nil {
		o.mu.Lock()
		o.state = StateFailed
		o.mu.Unlock()
		o.logger.Error("Order placement failed, cart retained", "error", err)
		return nil, nil, err
	}
	if result.OrderID == "" {
		o.mu.Lock()
		o.state = StateFailed
		o.mu.Unlock()
		return nil, nil, carterrors.ErrOrderNotConfirmed
	}

	order := &Order{
		ID:              result.OrderID,
		Items:           snapshot,
		ShippingAddress: shippingAddress,
		PaymentMethod:   method,
		Status:          result.Status,
		Totals:          totals,
	}

	var session *PaymentSession
	if method == PaymentCashOnDelivery {
		order.Status = OrderConfirmed
	} else {
		session = &PaymentSession{
			OrderID:         result.OrderID,
			RazorpayOrderID: result.RazorpayOrderID,
			Key:             result.Key,
		}
	}

	// Confirmed success: only now is local state allowed to change.
	o.cart.Clear()

	o.mu.Lock()
	o.state = StateConfirmed
	o.lastOrder = order
	o.mu.Unlock()
	o.logger.Info("Order placed", "order_id", order.ID, "status", order.Status)
	return order, session, nil
}

// checkPreconditions validates the reviewing-to-placing transition.
func (o *Orchestrator) checkPreconditions(snapshot []cart.Item, shippingAddress address.Address, method PaymentMethod) error {
	if len(snapshot) == 0 {
		return &FieldError{Field: "cart", Message: carterrors.ErrCartEmpty.Error()}
	}
	if method == "" {
		return &FieldError{Field: "paymentMethod", Message: "a payment method must be selected"}
	}
	if err := o.validate.Struct(shippingAddress); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &FieldError{
				Field:   "shippingAddress." + verrs[0].Field(),
				Message: "required field is missing",
			}
		}
		return &FieldError{Field: "shippingAddress", Message: "a shipping address must be selected"}
	}
	return nil
}
