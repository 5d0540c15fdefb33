package address

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	carterrors "github.com/storekit/cartsync/internal/errors"
)

type mockAddressGateway struct {
	fetchFn      func(ctx context.Context) ([]Address, error)
	createFn     func(ctx context.Context, a Address) ([]Address, error)
	updateFn     func(ctx context.Context, a Address) ([]Address, error)
	deleteFn     func(ctx context.Context, id string) ([]Address, error)
	setDefaultFn func(ctx context.Context, id string) ([]Address, error)
}

var errNotWired = errors.New("gateway method not wired")

func (m *mockAddressGateway) FetchAddresses(ctx context.Context) ([]Address, error) {
	if m.fetchFn == nil {
		return nil, errNotWired
	}
	return m.fetchFn(ctx)
}

func (m *mockAddressGateway) CreateAddress(ctx context.Context, a Address) ([]Address, error) {
	if m.createFn == nil {
		return nil, errNotWired
	}
	return m.createFn(ctx, a)
}

func (m *mockAddressGateway) UpdateAddress(ctx context.Context, a Address) ([]Address, error) {
	if m.updateFn == nil {
		return nil, errNotWired
	}
	return m.updateFn(ctx, a)
}

func (m *mockAddressGateway) DeleteAddress(ctx context.Context, id string) ([]Address, error) {
	if m.deleteFn == nil {
		return nil, errNotWired
	}
	return m.deleteFn(ctx, id)
}

func (m *mockAddressGateway) SetDefaultAddress(ctx context.Context, id string) ([]Address, error) {
	if m.setDefaultFn == nil {
		return nil, errNotWired
	}
	return m.setDefaultFn(ctx, id)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func homeAddress(id string, isDefault bool) Address {
	return Address{
		ID:        id,
		FullName:  "Asha Rao",
		Phone:     "9876543210",
		Address:   "14 Hill Road",
		City:      "Bengaluru",
		State:     "Karnataka",
		ZipCode:   "560001",
		Country:   "India",
		IsDefault: isDefault,
		Label:     "Home",
	}
}

func Test_Book_Load(t *testing.T) {
	gw := &mockAddressGateway{fetchFn: func(context.Context) ([]Address, error) {
		return []Address{homeAddress("a1", true), homeAddress("a2", false)}, nil
	}}
	book := NewBook(gw, testLogger())

	require.NoError(t, book.Load(context.Background()))

	assert.Len(t, book.Addresses(), 2)
	def, ok := book.Default()
	require.True(t, ok)
	assert.Equal(t, "a1", def.ID)
}

func Test_Book_Add_RejectsIncompleteAddress(t *testing.T) {
	gw := &mockAddressGateway{}
	book := NewBook(gw, testLogger())

	incomplete := homeAddress("", false)
	incomplete.City = ""
	err := book.Add(context.Background(), incomplete)

	require.Error(t, err)
	assert.Empty(t, book.Addresses(), "invalid address never reaches the gateway")
}

func Test_Book_Add(t *testing.T) {
	gw := &mockAddressGateway{createFn: func(_ context.Context, a Address) ([]Address, error) {
		a.ID = "a1"
		return []Address{a}, nil
	}}
	book := NewBook(gw, testLogger())

	require.NoError(t, book.Add(context.Background(), homeAddress("", false)))

	got := book.Addresses()
	require.Len(t, got, 1)
	assert.Equal(t, "a1", got[0].ID)
}

func Test_Book_Update_RequiresID(t *testing.T) {
	book := NewBook(&mockAddressGateway{}, testLogger())
	err := book.Update(context.Background(), homeAddress("", false))
	assert.ErrorIs(t, err, carterrors.ErrAddressNotFound)
}

func Test_Book_SetDefault_MovesTheFlag(t *testing.T) {
	addresses := []Address{homeAddress("a1", true), homeAddress("a2", false)}
	gw := &mockAddressGateway{
		fetchFn: func(context.Context) ([]Address, error) { return addresses, nil },
		setDefaultFn: func(_ context.Context, id string) ([]Address, error) {
			out := make([]Address, len(addresses))
			copy(out, addresses)
			for i := range out {
				out[i].IsDefault = out[i].ID == id
			}
			return out, nil
		},
	}
	book := NewBook(gw, testLogger())
	require.NoError(t, book.Load(context.Background()))

	require.NoError(t, book.SetDefault(context.Background(), "a2"))

	def, ok := book.Default()
	require.True(t, ok)
	assert.Equal(t, "a2", def.ID)
	defaults := 0
	for _, a := range book.Addresses() {
		if a.IsDefault {
			defaults++
		}
	}
	assert.Equal(t, 1, defaults)
}

func Test_Book_SetDefault_UnknownID(t *testing.T) {
	gw := &mockAddressGateway{fetchFn: func(context.Context) ([]Address, error) {
		return []Address{homeAddress("a1", true)}, nil
	}}
	book := NewBook(gw, testLogger())
	require.NoError(t, book.Load(context.Background()))

	err := book.SetDefault(context.Background(), "missing")
	assert.ErrorIs(t, err, carterrors.ErrAddressNotFound)
}

func Test_Book_MirrorKeepsSingleDefault(t *testing.T) {
	// A misbehaving server response with two defaults is normalized.
	gw := &mockAddressGateway{fetchFn: func(context.Context) ([]Address, error) {
		return []Address{homeAddress("a1", true), homeAddress("a2", true)}, nil
	}}
	book := NewBook(gw, testLogger())
	require.NoError(t, book.Load(context.Background()))

	defaults := 0
	for _, a := range book.Addresses() {
		if a.IsDefault {
			defaults++
		}
	}
	assert.Equal(t, 1, defaults)
	def, _ := book.Default()
	assert.Equal(t, "a1", def.ID)
}

func Test_Book_Delete(t *testing.T) {
	gw := &mockAddressGateway{
		fetchFn: func(context.Context) ([]Address, error) {
			return []Address{homeAddress("a1", true), homeAddress("a2", false)}, nil
		},
		deleteFn: func(_ context.Context, id string) ([]Address, error) {
			return []Address{homeAddress("a1", true)}, nil
		},
	}
	book := NewBook(gw, testLogger())
	require.NoError(t, book.Load(context.Background()))

	require.NoError(t, book.Delete(context.Background(), "a2"))
	assert.Len(t, book.Addresses(), 1)
}

func Test_Book_GatewayFailureLeavesMirrorUntouched(t *testing.T) {
	gw := &mockAddressGateway{
		fetchFn: func(context.Context) ([]Address, error) {
			return []Address{homeAddress("a1", true)}, nil
		},
		deleteFn: func(context.Context, string) ([]Address, error) {
			return nil, fmt.Errorf("boom: %w", carterrors.ErrUnavailable)
		},
	}
	book := NewBook(gw, testLogger())
	require.NoError(t, book.Load(context.Background()))

	err := book.Delete(context.Background(), "a1")
	require.ErrorIs(t, err, carterrors.ErrUnavailable)
	assert.Len(t, book.Addresses(), 1)
}
