package cart

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	carterrors "github.com/storekit/cartsync/internal/errors"
)

func Test_Wishlist_GuestAddIsIdempotent(t *testing.T) {
	guestStore := testStore(t)
	w := NewWishlist(guestStore, &mockGateway{}, testLogger())

	require.NoError(t, w.Add(context.Background(), productShirt, Variant{Color: "blue"}))
	require.NoError(t, w.Add(context.Background(), productShirt, Variant{}))

	assert.Equal(t, 1, w.Count())
	assert.True(t, w.Contains("p1"))
	assert.False(t, w.Contains("p2"))
	assert.Equal(t, []string{"p1"}, guestStore.ReadWishlist())
}

func Test_Wishlist_GuestRemove(t *testing.T) {
	guestStore := testStore(t)
	w := NewWishlist(guestStore, &mockGateway{}, testLogger())
	require.NoError(t, w.Add(context.Background(), productShirt, Variant{}))
	entryID := w.Entries()[0].ID

	require.NoError(t, w.Remove(context.Background(), entryID))
	assert.Zero(t, w.Count())
	assert.Empty(t, guestStore.ReadWishlist())

	err := w.Remove(context.Background(), entryID)
	assert.ErrorIs(t, err, carterrors.ErrItemNotFound)
}

func Test_Wishlist_MoveToCart(t *testing.T) {
	guestStore := testStore(t)
	w := NewWishlist(guestStore, &mockGateway{}, testLogger())
	c := NewContainer(guestStore, &mockGateway{}, testLogger())
	require.NoError(t, w.Add(context.Background(), productShirt, Variant{Size: "L"}))
	entryID := w.Entries()[0].ID

	require.NoError(t, w.MoveToCart(context.Background(), entryID, 2, c))

	assert.Zero(t, w.Count())
	items := c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "p1", items[0].Product.ID)
	assert.Equal(t, int64(2), items[0].Quantity)
	assert.Equal(t, "L", items[0].SelectedSize)
}

// The cart add fails; the wishlist entry must be retained and the cart
// left unchanged.
func Test_Wishlist_MoveToCart_AddFails(t *testing.T) {
	guestStore := testStore(t)
	gw := &mockGateway{
		wishAddFn: func(_ context.Context, productID string) ([]WishlistEntry, error) {
			return []WishlistEntry{{ID: "srv-w1", Product: productShirt}}, nil
		},
		upsertFn: func(_ context.Context, _ string, _ int64) ([]Item, error) {
			return nil, carterrors.ErrUnavailable
		},
	}
	w := NewWishlist(guestStore, gw, testLogger())
	c := NewContainer(guestStore, gw, testLogger())
	w.SetAuthenticated(true)
	c.SetAuthenticated(true)
	require.NoError(t, w.Add(context.Background(), productShirt, Variant{}))
	entryID := w.Entries()[0].ID

	err := w.MoveToCart(context.Background(), entryID, 1, c)
	require.ErrorIs(t, err, carterrors.ErrUnavailable)

	assert.Equal(t, 1, w.Count())
	assert.Empty(t, c.Items())
}

func Test_Wishlist_AuthenticatedAdd(t *testing.T) {
	serverEntries := []WishlistEntry{{ID: "srv-w1", Product: productMug}}
	gw := &mockGateway{
		wishAddFn: func(_ context.Context, productID string) ([]WishlistEntry, error) {
			assert.Equal(t, "p2", productID)
			return serverEntries, nil
		},
	}
	w := NewWishlist(testStore(t), gw, testLogger())
	w.SetAuthenticated(true)

	require.NoError(t, w.Add(context.Background(), productMug, Variant{}))
	assert.Equal(t, serverEntries, w.Entries())
	assert.Equal(t, StatusIdle, w.Status())
}

func Test_Wishlist_AuthenticatedFailure(t *testing.T) {
	gw := &mockGateway{
		wishAddFn: func(_ context.Context, _ string) ([]WishlistEntry, error) {
			return nil, carterrors.ErrUnavailable
		},
	}
	w := NewWishlist(testStore(t), gw, testLogger())
	w.SetAuthenticated(true)

	err := w.Add(context.Background(), productMug, Variant{})
	require.ErrorIs(t, err, carterrors.ErrUnavailable)
	assert.Equal(t, StatusError, w.Status())
	assert.Empty(t, w.Entries())
}

func Test_Wishlist_Hydrate(t *testing.T) {
	guestStore := testStore(t)
	guestStore.AddWishlist("p1")
	guestStore.AddWishlist("p2")

	w := NewWishlist(guestStore, &mockGateway{}, testLogger())
	w.Hydrate(context.Background(), mapResolver{"p1": productShirt, "p2": productMug})

	entries := w.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "p1", entries[0].Product.ID)
	assert.Equal(t, "p2", entries[1].Product.ID)
}
