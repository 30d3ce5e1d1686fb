package services

import (
	"context"
	"time"

	domain "github.com/duka-pos/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination      = domain.Pagination
	Product         = domain.Product
	ProductVariant  = domain.ProductVariant
	Category        = domain.Category
	Customer        = domain.Customer
	Shop            = domain.Shop
	Cart            = domain.Cart
	CartLine        = domain.CartLine
	CartTotals      = domain.CartTotals
	Transaction     = domain.Transaction
	TransactionLine = domain.TransactionLine
	PaymentMethod   = domain.PaymentMethod
)

// ShopService resolves tenants and enforces seller membership.
type ShopService interface {
	// Authorize loads the shop and verifies the user may operate it.
	Authorize(ctx context.Context, shopID, userID string) (Shop, error)
}

// CatalogService manages the tenant product catalog and category directory.
type CatalogService interface {
	CreateProduct(ctx context.Context, cmd CreateProductCommand) (Product, error)
	UpdateProduct(ctx context.Context, cmd UpdateProductCommand) (Product, error)
	DeleteProduct(ctx context.Context, shopID, productID string) error
	GetProduct(ctx context.Context, shopID, productID string) (Product, error)
	GetProductByCode(ctx context.Context, shopID, code string) (Product, error)
	ListProducts(ctx context.Context, shopID string, filter ProductListFilter) (domain.CursorPage[Product], error)
	ListLowStock(ctx context.Context, shopID string) ([]Product, error)
	Restock(ctx context.Context, cmd RestockCommand) (Product, error)

	CreateCategory(ctx context.Context, shopID, name string) (Category, error)
	DeleteCategory(ctx context.Context, shopID, categoryID string) error
	ListCategories(ctx context.Context, shopID string) ([]Category, error)
}

// CartService applies session-local cart edits, validating quantities against
// the live catalog on every mutation.
type CartService interface {
	AddLine(ctx context.Context, cart Cart, cmd AddCartLineCommand) (Cart, CartUpdateResult, error)
	SetLineQuantity(ctx context.Context, cart Cart, productID string, quantity int) (Cart, CartUpdateResult, error)
	Totals(ctx context.Context, cart Cart) (CartTotals, error)
	Clear(cart Cart) Cart
}

// CheckoutService runs the sale commit: validate stock, settle the payment
// breakdown, and atomically write the ledger entry with stock decrements.
type CheckoutService interface {
	Checkout(ctx context.Context, cmd CheckoutCommand) (CheckoutResult, error)
}

// SalesService reads the immutable ledger for receipts, listings, summaries,
// and exports.
type SalesService interface {
	GetTransaction(ctx context.Context, shopID, transactionID string) (Transaction, error)
	ListTransactions(ctx context.Context, shopID string, filter TransactionListFilter) (domain.CursorPage[Transaction], error)
	DailySummary(ctx context.Context, shopID string, day time.Time) (SalesSummary, error)
	ExportCSV(ctx context.Context, cmd ExportCommand) (ExportResult, error)
}

// CustomerService manages the tenant customer directory.
type CustomerService interface {
	CreateCustomer(ctx context.Context, cmd CreateCustomerCommand) (Customer, error)
	UpdateCustomer(ctx context.Context, cmd UpdateCustomerCommand) (Customer, error)
	DeleteCustomer(ctx context.Context, shopID, customerID string) error
	GetCustomer(ctx context.Context, shopID, customerID string) (Customer, error)
	ListCustomers(ctx context.Context, shopID string, filter CustomerListFilter) (domain.CursorPage[Customer], error)
}

// SystemService surfaces operational health for readiness probes.
type SystemService interface {
	Health(ctx context.Context) (domain.SystemHealthReport, error)
}

// EventPublisher accepts post-commit notifications for downstream processing.
type EventPublisher interface {
	PublishSaleCompleted(ctx context.Context, message SaleCompletedMessage) (string, error)
	PublishLowStock(ctx context.Context, message LowStockMessage) (string, error)
}

// SaleCompletedMessage is the payload published after a checkout commit.
type SaleCompletedMessage struct {
	ShopID        string    `json:"shopId"`
	TransactionID string    `json:"transactionId"`
	PaymentMethod string    `json:"paymentMethod"`
	SellerID      string    `json:"sellerId"`
	Total         float64   `json:"total"`
	AmountDue     float64   `json:"amountDue"`
	CompletedAt   time.Time `json:"completedAt"`
}

// LowStockMessage is published for each product that crossed its low stock
// threshold during a commit.
type LowStockMessage struct {
	ShopID      string `json:"shopId"`
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	Remaining   int    `json:"remaining"`
	Threshold   int    `json:"threshold"`
}

// CreateProductCommand carries the fields for a new catalog entry.
type CreateProductCommand struct {
	ShopID            string
	Name              string
	Description       string
	SalesPrice        float64
	PurchasePrice     float64
	Quantity          int
	LowStockThreshold int
	CategoryID        string
	Unit              string
	Code              string
	Variants          []ProductVariant
}

// UpdateProductCommand overwrites an existing catalog entry.
type UpdateProductCommand struct {
	ShopID            string
	ProductID         string
	Name              string
	Description       string
	SalesPrice        float64
	PurchasePrice     float64
	Quantity          int
	LowStockThreshold int
	CategoryID        string
	Unit              string
	Code              string
	Variants          []ProductVariant
}

// RestockCommand increments on-hand stock for one product.
type RestockCommand struct {
	ShopID    string
	ProductID string
	Quantity  int
}

// ProductListFilter narrows product listings.
type ProductListFilter struct {
	CategoryID string
	NamePrefix string
	Pagination Pagination
}

// AddCartLineCommand adds or merges one line into the cart.
type AddCartLineCommand struct {
	ProductID string
	Quantity  int
	Variants  []domain.VariantSelection
}

// CartUpdateResult reports the outcome of a cart mutation. A stock-limited
// mutation leaves the cart unchanged and is not an error.
type CartUpdateResult struct {
	StockLimited bool
	ProductID    string
	Requested    int
	Available    int
}

// CheckoutCommand carries everything the checkout engine needs to commit a sale.
type CheckoutCommand struct {
	ShopID     string
	Cart       Cart
	SellerID   string
	SellerName string
	// AmountPaid applies only when the payment method is debt.
	AmountPaid float64
}

// CheckoutResult reports the committed transaction.
type CheckoutResult struct {
	Transaction Transaction
	LowStock    []Product
}

// TransactionListFilter narrows ledger listings.
type TransactionListFilter struct {
	From       time.Time
	To         time.Time
	DebtOnly   bool
	CustomerID string
	Pagination Pagination
}

// SalesSummary aggregates one day of ledger activity for dashboard cards.
type SalesSummary struct {
	Day              time.Time
	TransactionCount int
	Revenue          float64
	AmountDue        float64
	DebtCount        int
	ItemsSold        int
	RevenueDisplay   string
}

// ExportCommand requests a CSV export of a ledger date range.
type ExportCommand struct {
	ShopID string
	From   time.Time
	To     time.Time
}

// ExportResult points at the uploaded export object.
type ExportResult struct {
	Bucket    string
	Object    string
	RowCount  int
	SignedURL string
	ExpiresAt time.Time
}

// CreateCustomerCommand carries the fields for a new customer record.
type CreateCustomerCommand struct {
	ShopID    string
	Name      string
	Email     string
	Phone     string
	AvatarURL string
	Notes     string
}

// UpdateCustomerCommand overwrites contact fields on an existing customer.
type UpdateCustomerCommand struct {
	ShopID     string
	CustomerID string
	Name       string
	Email      string
	Phone      string
	AvatarURL  string
	Notes      string
}

// CustomerListFilter narrows customer listings.
type CustomerListFilter struct {
	NamePrefix string
	Pagination Pagination
}
