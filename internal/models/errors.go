package models

import (
	"errors"
	"fmt"
)

// Error categories. Every error returned by a service wraps exactly one of these.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrOutOfStock   = errors.New("out of stock")
	ErrConflict     = errors.New("conflict")
)

var (
	ErrEmptyCart          = fmt.Errorf("cart is empty: %w", ErrInvalidInput)
	ErrInvalidQuantity    = fmt.Errorf("quantity must be positive: %w", ErrInvalidInput)
	ErrInvalidDiscount    = fmt.Errorf("discount must be between 0 and 100 with at most 2 decimals: %w", ErrInvalidInput)
	ErrInvalidDestination = fmt.Errorf("exactly one of table_name, takeaway or bar is required: %w", ErrInvalidInput)
	ErrInvalidStatus      = fmt.Errorf("unknown order status: %w", ErrInvalidInput)
	ErrInvalidOrderID     = fmt.Errorf("malformed order id: %w", ErrInvalidInput)

	ErrActorRequired = fmt.Errorf("authenticated actor required: %w", ErrUnauthorized)

	ErrItemNotFound  = fmt.Errorf("menu item %w", ErrNotFound)
	ErrOrderNotFound = fmt.Errorf("order %w", ErrNotFound)
	ErrTableNotFound = fmt.Errorf("table %w", ErrNotFound)
	ErrNoOpenBill    = fmt.Errorf("open bill %w", ErrNotFound)

	ErrStationNotRequired = fmt.Errorf("station has no items in this order: %w", ErrConflict)
	ErrInvalidTransition  = fmt.Errorf("status transition not allowed: %w", ErrConflict)
	ErrOrderNotPaid       = fmt.Errorf("order is not paid: %w", ErrConflict)
)

// ValidationError names the offending request field. It unwraps to Err,
// or to ErrInvalidInput when Err is nil.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// ItemOutOfStockError names the item that could not be reserved
type ItemOutOfStockError struct {
	ItemID int64
	Name   string
}

func (e *ItemOutOfStockError) Error() string {
	return fmt.Sprintf("menu item %d (%s) is out of stock", e.ItemID, e.Name)
}

func (e *ItemOutOfStockError) Unwrap() error {
	return ErrOutOfStock
}

// ErrorCode returns the stable machine-readable code for err
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrOutOfStock):
		return "out_of_stock"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "internal"
	}
}
