package sale

import (
	"errors"
	"fmt"
)

// ErrInvalidFilter reports a malformed filter value (e.g. a date that
// does not parse as 2006-01-02).
var ErrInvalidFilter = errors.New("invalid filter")

type ErrorKind string

const (
	KindEmptyCart         ErrorKind = "empty_cart"
	KindProductNotFound   ErrorKind = "product_not_found"
	KindInvalidQuantity   ErrorKind = "invalid_quantity"
	KindInsufficientStock ErrorKind = "insufficient_stock"
	KindPersistence       ErrorKind = "persistence_failure"
	KindUnexpected        ErrorKind = "unexpected_failure"
)

// Error is the typed result of a rejected sale submission. The first
// four kinds are recoverable by fixing the cart and resubmitting;
// persistence and unexpected failures may be retried as a whole. No
// error kind leaves inventory or sale records in a partial state.
type Error struct {
	Kind        ErrorKind
	ProductID   int64
	ProductName string
	Available   int
	cause       error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindEmptyCart:
		return "the cart is empty"
	case KindProductNotFound:
		return fmt.Sprintf("product %d does not exist", e.ProductID)
	case KindInvalidQuantity:
		return fmt.Sprintf("the quantity for product '%s' must be at least 1", e.productLabel())
	case KindInsufficientStock:
		return fmt.Sprintf("not enough stock for product '%s'. Available: %d", e.productLabel(), e.Available)
	case KindPersistence:
		return fmt.Sprintf("could not persist the sale: %v", e.cause)
	default:
		return fmt.Sprintf("unexpected error while registering the sale: %v", e.cause)
	}
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Recoverable reports whether resubmitting a corrected cart can succeed.
func (e *Error) Recoverable() bool {
	switch e.Kind {
	case KindEmptyCart, KindProductNotFound, KindInvalidQuantity, KindInsufficientStock:
		return true
	}
	return false
}

func (e *Error) productLabel() string {
	if e.ProductName != "" {
		return e.ProductName
	}
	return fmt.Sprintf("#%d", e.ProductID)
}
