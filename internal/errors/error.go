// Package errors provides custom error types for cart and checkout operations.
package errors

import "errors"

var ErrUnauthorized = errors.New("session is no longer valid, please sign in again")
var ErrUnavailable = errors.New("store service is temporarily unavailable")
var ErrBadRequest = errors.New("request rejected by the server")

var ErrItemNotFound = errors.New("item not found")
var ErrProductNotFound = errors.New("product not found")
var ErrAddressNotFound = errors.New("address not found")

var ErrCartEmpty = errors.New("cart is empty")
var ErrOrderInFlight = errors.New("an order is already being placed")
var ErrOrderNotConfirmed = errors.New("order was not confirmed by the server")
