package repositories

import (
	"context"
	"time"

	domain "github.com/duka-pos/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Shops() ShopRepository
	Products() ProductRepository
	Categories() CategoryRepository
	Customers() CustomerRepository
	Transactions() TransactionRepository
	Checkout() CheckoutRepository
	Health() HealthRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// ShopRepository resolves tenant documents and membership.
type ShopRepository interface {
	FindByID(ctx context.Context, shopID string) (domain.Shop, error)
}

// ProductRepository persists the tenant-scoped product catalog.
type ProductRepository interface {
	Insert(ctx context.Context, product domain.Product) error
	Update(ctx context.Context, product domain.Product) error
	Delete(ctx context.Context, shopID, productID string) error
	FindByID(ctx context.Context, shopID, productID string) (domain.Product, error)
	FindByCode(ctx context.Context, shopID, code string) (domain.Product, error)
	List(ctx context.Context, shopID string, filter ProductListFilter) (domain.CursorPage[domain.Product], error)
	ListLowStock(ctx context.Context, shopID string, defaultThreshold int) ([]domain.Product, error)
	Restock(ctx context.Context, shopID, productID string, quantity int, now time.Time) (domain.Product, error)
}

// ProductListFilter narrows product listings.
type ProductListFilter struct {
	CategoryID string
	NamePrefix string
	Pagination domain.Pagination
}

// CategoryRepository persists the tenant-scoped category directory.
type CategoryRepository interface {
	Insert(ctx context.Context, category domain.Category) error
	Delete(ctx context.Context, shopID, categoryID string) error
	List(ctx context.Context, shopID string) ([]domain.Category, error)
}

// CustomerRepository persists the tenant-scoped customer ledger.
type CustomerRepository interface {
	Insert(ctx context.Context, customer domain.Customer) error
	Update(ctx context.Context, customer domain.Customer) error
	Delete(ctx context.Context, shopID, customerID string) error
	FindByID(ctx context.Context, shopID, customerID string) (domain.Customer, error)
	List(ctx context.Context, shopID string, filter CustomerListFilter) (domain.CursorPage[domain.Customer], error)
}

// CustomerListFilter narrows customer listings.
type CustomerListFilter struct {
	NamePrefix string
	Pagination domain.Pagination
}

// TransactionRepository reads the immutable sales ledger. Writes happen only
// through CheckoutRepository.Commit.
type TransactionRepository interface {
	FindByID(ctx context.Context, shopID, transactionID string) (domain.Transaction, error)
	List(ctx context.Context, shopID string, filter TransactionListFilter) (domain.CursorPage[domain.Transaction], error)
	ListRange(ctx context.Context, shopID string, from, to time.Time) ([]domain.Transaction, error)
}

// TransactionListFilter narrows ledger listings.
type TransactionListFilter struct {
	From       time.Time
	To         time.Time
	DebtOnly   bool
	CustomerID string
	Pagination domain.Pagination
}

// CheckoutCommitRequest carries the transaction to persist along with the
// stock decrements implied by its items.
type CheckoutCommitRequest struct {
	ShopID      string
	Transaction domain.Transaction
	// DefaultLowStockThreshold applies to products without their own threshold
	// when deciding which committed lines crossed into low stock.
	DefaultLowStockThreshold int
}

// CheckoutCommitResult reports the committed transaction and any products that
// dropped to or below their low stock threshold during the commit.
type CheckoutCommitResult struct {
	Transaction domain.Transaction
	LowStock    []domain.Product
}

// CheckoutRepository performs the atomic sale commit: one Firestore transaction
// creating the ledger document and conditionally decrementing every product's
// stock. Either everything applies or nothing does.
type CheckoutRepository interface {
	Commit(ctx context.Context, req CheckoutCommitRequest) (CheckoutCommitResult, error)
}

// HealthRepository aggregates dependency probes for readiness reporting.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
