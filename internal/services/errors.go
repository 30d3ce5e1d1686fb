package services

import (
	"errors"
	"fmt"

	"github.com/duka-pos/api/internal/repositories"
)

var (
	// ErrInvalidInput signals the caller provided invalid arguments.
	ErrInvalidInput = errors.New("sales: invalid input")
	// ErrShopNotFound indicates the tenant document does not exist.
	ErrShopNotFound = errors.New("sales: shop not found")
	// ErrShopAccessDenied indicates the user is not a member of the shop.
	ErrShopAccessDenied = errors.New("sales: shop access denied")
	// ErrProductNotFound indicates the referenced product does not exist.
	ErrProductNotFound = errors.New("sales: product not found")
	// ErrCustomerNotFound indicates the referenced customer does not exist.
	ErrCustomerNotFound = errors.New("sales: customer not found")
	// ErrTransactionNotFound indicates the ledger entry does not exist.
	ErrTransactionNotFound = errors.New("sales: transaction not found")
	// ErrEmptyCart indicates checkout was attempted with no lines.
	ErrEmptyCart = errors.New("checkout: cart is empty")
	// ErrInvalidPaymentState indicates the payment method and amounts disagree.
	ErrInvalidPaymentState = errors.New("checkout: invalid payment state")
	// ErrCommitFailure indicates the atomic commit failed without partial
	// state. The caller may retry the whole checkout.
	ErrCommitFailure = errors.New("checkout: commit failed")
)

// InsufficientStockError reports the first line whose requested quantity
// exceeded live availability. The whole checkout fails; nothing was written.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

// Error implements the error interface.
func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("checkout: insufficient stock for product %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

// mapNotFound converts categorized repository errors into a service sentinel.
func mapNotFound(err error, sentinel error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return fmt.Errorf("%w: %s", sentinel, repoErr.Error())
	}
	return err
}
