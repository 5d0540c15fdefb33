package gateway_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storekit/cartsync/internal/address"
	"github.com/storekit/cartsync/internal/app"
	"github.com/storekit/cartsync/internal/catalog"
	"github.com/storekit/cartsync/internal/checkout"
	"github.com/storekit/cartsync/internal/devserver"
	carterrors "github.com/storekit/cartsync/internal/errors"
	"github.com/storekit/cartsync/internal/gateway"
)

var seedProducts = []catalog.Product{
	{ID: "p1", Name: "Linen Shirt", Price: 1000, Category: "apparel", InStock: true},
	{ID: "p2", Name: "Stoneware Mug", Price: 500, Category: "home", InStock: true},
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	handler, _ := app.SetupDevHandler(seedProducts, devserver.Pricing{ShippingCost: 50, TaxRateBps: 1800}, testLogger())
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, baseURL, token string) *gateway.Client {
	t.Helper()
	return gateway.NewClient(baseURL, 5*time.Second, func() string { return token }, testLogger())
}

func Test_Client_CartRoundTrip(t *testing.T) {
	srv := newBackend(t)
	c := newClient(t, srv.URL, "tok-1")
	ctx := context.Background()

	items, err := c.FetchCart(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	items, err = c.UpsertItem(ctx, "p1", 2)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "p1", items[0].Product.ID)
	assert.Equal(t, int64(2), items[0].Quantity)
	assert.Equal(t, int64(1000), items[0].Product.Price)
	assert.NotEmpty(t, items[0].ID)

	// Upsert sets the absolute quantity for the product.
	items, err = c.UpsertItem(ctx, "p1", 5)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(5), items[0].Quantity)

	items, err = c.RemoveItem(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func Test_Client_MissingTokenIsUnauthorized(t *testing.T) {
	srv := newBackend(t)
	c := newClient(t, srv.URL, "")

	_, err := c.FetchCart(context.Background())
	assert.ErrorIs(t, err, carterrors.ErrUnauthorized)
}

func Test_Client_UnknownProductIsNotFound(t *testing.T) {
	srv := newBackend(t)
	c := newClient(t, srv.URL, "tok-1")

	_, err := c.UpsertItem(context.Background(), "missing", 1)
	assert.ErrorIs(t, err, carterrors.ErrItemNotFound)
}

func Test_Client_BadRequestCarriesServerMessage(t *testing.T) {
	srv := newBackend(t)
	c := newClient(t, srv.URL, "tok-1")

	_, err := c.UpsertItem(context.Background(), "p1", 0)
	require.ErrorIs(t, err, carterrors.ErrBadRequest)
	assert.Contains(t, err.Error(), "qty must be >= 1")
}

func Test_Client_ServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	c := newClient(t, srv.URL, "tok-1")

	_, err := c.FetchCart(context.Background())
	assert.ErrorIs(t, err, carterrors.ErrUnavailable)
}

func Test_Client_UnreachableServerIsUnavailable(t *testing.T) {
	srv := newBackend(t)
	srv.Close()
	c := newClient(t, srv.URL, "tok-1")

	_, err := c.FetchCart(context.Background())
	assert.ErrorIs(t, err, carterrors.ErrUnavailable)
}

func Test_Client_SessionsAreIsolatedByToken(t *testing.T) {
	srv := newBackend(t)
	alice := newClient(t, srv.URL, "tok-alice")
	bob := newClient(t, srv.URL, "tok-bob")
	ctx := context.Background()

	_, err := alice.UpsertItem(ctx, "p1", 1)
	require.NoError(t, err)

	items, err := bob.FetchCart(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func Test_Client_WishlistRoundTrip(t *testing.T) {
	srv := newBackend(t)
	c := newClient(t, srv.URL, "tok-1")
	ctx := context.Background()

	entries, err := c.AddToWishlist(ctx, "p2")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "p2", entries[0].Product.ID)

	// Adding the same product again is idempotent.
	entries, err = c.AddToWishlist(ctx, "p2")
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	entries, err = c.RemoveFromWishlist(ctx, "p2")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func Test_Client_AddressRoundTrip(t *testing.T) {
	srv := newBackend(t)
	c := newClient(t, srv.URL, "tok-1")
	ctx := context.Background()

	addr := address.Address{
		FullName: "Asha Rao",
		Phone:    "9876543210",
		Address:  "14 Hill Road",
		City:     "Bengaluru",
		State:    "Karnataka",
		ZipCode:  "560001",
		Country:  "India",
	}

	addresses, err := c.CreateAddress(ctx, addr)
	require.NoError(t, err)
	require.Len(t, addresses, 1)
	assert.NotEmpty(t, addresses[0].ID)
	assert.True(t, addresses[0].IsDefault, "first address becomes the default")

	second := addr
	second.FullName = "Ravi Rao"
	addresses, err = c.CreateAddress(ctx, second)
	require.NoError(t, err)
	require.Len(t, addresses, 2)

	addresses, err = c.SetDefaultAddress(ctx, addresses[1].ID)
	require.NoError(t, err)
	assert.False(t, addresses[0].IsDefault)
	assert.True(t, addresses[1].IsDefault)

	addresses, err = c.DeleteAddress(ctx, addresses[1].ID)
	require.NoError(t, err)
	require.Len(t, addresses, 1)
	assert.True(t, addresses[0].IsDefault, "default falls back after deleting the default")

	_, err = c.SetDefaultAddress(ctx, "missing")
	assert.ErrorIs(t, err, carterrors.ErrItemNotFound)
}

func Test_Client_PlaceOrder(t *testing.T) {
	srv := newBackend(t)
	c := newClient(t, srv.URL, "tok-1")
	ctx := context.Background()

	items, err := c.UpsertItem(ctx, "p1", 2)
	require.NoError(t, err)

	result, err := c.PlaceOrder(ctx, checkout.PlacementRequest{
		Items:         items,
		PaymentMethod: checkout.PaymentCashOnDelivery,
		ShippingCost:  50,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.OrderID)
	assert.Equal(t, checkout.OrderConfirmed, result.Status)
	// subtotal 2000, tax 360, shipping 50.
	assert.Equal(t, int64(2410), result.Amount)

	// Order creation empties the server-side cart.
	items, err = c.FetchCart(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func Test_Client_PlaceOrder_RazorpayFields(t *testing.T) {
	srv := newBackend(t)
	c := newClient(t, srv.URL, "tok-1")
	ctx := context.Background()

	items, err := c.UpsertItem(ctx, "p2", 1)
	require.NoError(t, err)

	result, err := c.PlaceOrder(ctx, checkout.PlacementRequest{
		Items:         items,
		PaymentMethod: checkout.PaymentRazorpay,
	})
	require.NoError(t, err)
	assert.Equal(t, checkout.OrderPending, result.Status)
	assert.NotEmpty(t, result.RazorpayOrderID)
	assert.Equal(t, "rzp_test_devserver", result.Key)
}
