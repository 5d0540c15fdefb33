// Package gateway is the HTTP/JSON client for the authoritative
// storefront backend. It implements the gateway contracts defined by the
// cart, address, and checkout packages. Calls never retry internally;
// retry policy belongs to the caller.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/storekit/cartsync/internal/address"
	"github.com/storekit/cartsync/internal/cart"
	"github.com/storekit/cartsync/internal/checkout"
	carterrors "github.com/storekit/cartsync/internal/errors"
)

// TokenProvider supplies the current session bearer token. An empty
// string sends the request unauthenticated.
type TokenProvider func() string

// Client talks to the storefront backend. Safe for concurrent use.
type Client struct {
	baseURL string
	httpc   *http.Client
	token   TokenProvider
	logger  *slog.Logger
}

var _ cart.ServerGateway = (*Client)(nil)
var _ address.Gateway = (*Client)(nil)
var _ checkout.Gateway = (*Client)(nil)

// NewClient creates a gateway client for the given base URL.
func NewClient(baseURL string, timeout time.Duration, token TokenProvider, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
		token:   token,
		logger:  logger.With("component", "gateway"),
	}
}

// cartResponse is the canonical cart payload returned by every cart
// endpoint: the server returns the full updated cart, not a delta.
type cartResponse struct {
	Items []cart.Item `json:"items"`
}

type wishlistResponse struct {
	Items []cart.WishlistEntry `json:"items"`
}

type addressesResponse struct {
	Addresses []address.Address `json:"addresses"`
}

type upsertRequest struct {
	ProductID string `json:"productId"`
	Qty       int64  `json:"qty"`
}

type wishlistAddRequest struct {
	ProductID string `json:"productId"`
}

func (c *Client) FetchCart(ctx context.Context) ([]cart.Item, error) {
	var resp cartResponse
	if err := c.do(ctx, http.MethodGet, "/cart", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *Client) UpsertItem(ctx context.Context, productID string, qty int64) ([]cart.Item, error) {
	var resp cartResponse
	if err := c.do(ctx, http.MethodPost, "/cart/items", upsertRequest{ProductID: productID, Qty: qty}, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *Client) RemoveItem(ctx context.Context, productID string) ([]cart.Item, error) {
	var resp cartResponse
	if err := c.do(ctx, http.MethodDelete, "/cart/items/"+productID, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *Client) FetchWishlist(ctx context.Context) ([]cart.WishlistEntry, error) {
	var resp wishlistResponse
	if err := c.do(ctx, http.MethodGet, "/wishlist", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *Client) AddToWishlist(ctx context.Context, productID string) ([]cart.WishlistEntry, error) {
	var resp wishlistResponse
	if err := c.do(ctx, http.MethodPost, "/wishlist/items", wishlistAddRequest{ProductID: productID}, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *Client) RemoveFromWishlist(ctx context.Context, productID string) ([]cart.WishlistEntry, error) {
	var resp wishlistResponse
	if err := c.do(ctx, http.MethodDelete, "/wishlist/items/"+productID, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *Client) FetchAddresses(ctx context.Context) ([]address.Address, error) {
	var resp addressesResponse
	if err := c.do(ctx, http.MethodGet, "/addresses", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Addresses, nil
}

func (c *Client) CreateAddress(ctx context.Context, a address.Address) ([]address.Address, error) {
	var resp addressesResponse
	if err := c.do(ctx, http.MethodPost, "/addresses", a, &resp); err != nil {
		return nil, err
	}
	return resp.Addresses, nil
}

func (c *Client) UpdateAddress(ctx context.Context, a address.Address) ([]address.Address, error) {
	var resp addressesResponse
	if err := c.do(ctx, http.MethodPut, "/addresses/"+a.ID, a, &resp); err != nil {
		return nil, err
	}
	return resp.Addresses, nil
}

func (c *Client) DeleteAddress(ctx context.Context, id string) ([]address.Address, error) {
	var resp addressesResponse
	if err := c.do(ctx, http.MethodDelete, "/addresses/"+id, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Addresses, nil
}

func (c *Client) SetDefaultAddress(ctx context.Context, id string) ([]address.Address, error) {
	var resp addressesResponse
	if err := c.do(ctx, http.MethodPost, "/addresses/"+id+"/default", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Addresses, nil
}

func (c *Client) PlaceOrder(ctx context.Context, req checkout.PlacementRequest) (*checkout.PlacementResult, error) {
	var resp checkout.PlacementResult
	if err := c.do(ctx, http.MethodPost, "/orders/payment", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do performs one request/response round trip and maps the status code
// onto the sentinel error taxonomy.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s %s request: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build %s %s request: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.logger.Warn("Gateway request failed", "method", method, "path", path, "error", err)
		return fmt.Errorf("%s %s: %v: %w", method, path, err, carterrors.ErrUnavailable)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
		}
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%s %s: %w", method, path, carterrors.ErrUnauthorized)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, path, carterrors.ErrItemNotFound)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return fmt.Errorf("%s %s: %s: %w", method, path, errorMessage(resp.Body), carterrors.ErrBadRequest)
	default:
		return fmt.Errorf("%s %s: status %d: %w", method, path, resp.StatusCode, carterrors.ErrUnavailable)
	}
}

// errorMessage extracts the server's {"error": "..."} message, if any.
func errorMessage(body io.Reader) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err != nil || payload.Error == "" {
		return "request rejected"
	}
	return payload.Error
}
