package orders

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidCheckout   = errors.New("invalid checkout input")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// InsufficientStockError aborts the whole order. Nothing of the order persists.
type InsufficientStockError struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Requested   int    `json:"requested"`
	Available   int    `json:"available"`
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.ProductName, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

type InvalidCheckoutError struct {
	Reason string
}

func (e *InvalidCheckoutError) Error() string { return "invalid checkout: " + e.Reason }

func (e *InvalidCheckoutError) Is(target error) bool { return target == ErrInvalidCheckout }

func InvalidCheckout(format string, args ...any) error {
	return &InvalidCheckoutError{Reason: fmt.Sprintf(format, args...)}
}
