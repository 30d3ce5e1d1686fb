package repositories

import "fmt"

// CheckoutErrorCode enumerates repository error causes for checkout commits.
type CheckoutErrorCode string

const (
	// CheckoutErrorUnknown represents an unspecified failure.
	CheckoutErrorUnknown CheckoutErrorCode = "checkout_unknown"
	// CheckoutErrorInsufficientStock indicates requested quantity exceeds availability.
	CheckoutErrorInsufficientStock CheckoutErrorCode = "checkout_insufficient_stock"
	// CheckoutErrorProductNotFound indicates a line references a missing product.
	CheckoutErrorProductNotFound CheckoutErrorCode = "checkout_product_not_found"
	// CheckoutErrorConflict indicates the transaction document already exists.
	CheckoutErrorConflict CheckoutErrorCode = "checkout_conflict"
)

// CheckoutError wraps checkout-specific failures with machine readable codes.
// Stock shortfalls carry the offending product and quantities.
type CheckoutError struct {
	Op        string
	Code      CheckoutErrorCode
	Message   string
	ProductID string
	Requested int
	Available int
	Err       error
}

// Error implements the error interface.
func (e *CheckoutError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *CheckoutError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewCheckoutError constructs a typed checkout error.
func NewCheckoutError(code CheckoutErrorCode, message string, err error) *CheckoutError {
	if message == "" {
		message = string(code)
	}
	return &CheckoutError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewInsufficientStockError records the product and quantities behind a shortfall.
func NewInsufficientStockError(productID string, requested, available int) *CheckoutError {
	return &CheckoutError{
		Code:      CheckoutErrorInsufficientStock,
		Message:   fmt.Sprintf("insufficient stock for product %s: requested %d, available %d", productID, requested, available),
		ProductID: productID,
		Requested: requested,
		Available: available,
	}
}
