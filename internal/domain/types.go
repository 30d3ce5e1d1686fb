package domain

import (
	"strings"
	"time"
)

// PaymentMethod enumerates the tender types a sale can be settled with.
type PaymentMethod string

const (
	PaymentCash        PaymentMethod = "cash"
	PaymentCard        PaymentMethod = "card"
	PaymentMobileMoney PaymentMethod = "mobile_money"
	PaymentDebt        PaymentMethod = "debt"
)

// Valid reports whether the payment method is one of the supported tender types.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentMobileMoney, PaymentDebt:
		return true
	}
	return false
}

// IsDebt reports whether the method defers part of the payment.
func (m PaymentMethod) IsDebt() bool { return m == PaymentDebt }

// ParsePaymentMethod normalises a wire value into a PaymentMethod.
func ParsePaymentMethod(raw string) (PaymentMethod, bool) {
	m := PaymentMethod(strings.ToLower(strings.TrimSpace(raw)))
	return m, m.Valid()
}

// DefaultLowStockThreshold applies when a product does not configure its own.
const DefaultLowStockThreshold = 10

// ProductVariant is an optional attribute choice that adjusts the unit price.
type ProductVariant struct {
	Name            string
	Value           string
	AdditionalPrice float64
}

// Product is a tenant-scoped catalog entry. Quantity is the authoritative
// on-hand stock figure; only checkout commits and restocks mutate it.
type Product struct {
	ID                string
	ShopID            string
	Name              string
	Description       string
	SalesPrice        float64
	PurchasePrice     float64
	Quantity          int
	InitialQuantity   int
	LowStockThreshold int
	CategoryID        string
	Unit              string
	Code              string
	Variants          []ProductVariant
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Variant resolves a catalog variant by name and value, both compared
// case-insensitively after trimming.
func (p Product) Variant(name, value string) (ProductVariant, bool) {
	name = strings.TrimSpace(name)
	value = strings.TrimSpace(value)
	for _, v := range p.Variants {
		if strings.EqualFold(strings.TrimSpace(v.Name), name) && strings.EqualFold(strings.TrimSpace(v.Value), value) {
			return v, true
		}
	}
	return ProductVariant{}, false
}

// EffectiveLowStockThreshold resolves the threshold, falling back to the default.
func (p Product) EffectiveLowStockThreshold() int {
	if p.LowStockThreshold > 0 {
		return p.LowStockThreshold
	}
	return DefaultLowStockThreshold
}

// LowOnStock reports whether the product sits at or below its threshold.
func (p Product) LowOnStock() bool {
	return p.Quantity <= p.EffectiveLowStockThreshold()
}

// Category groups products within one shop.
type Category struct {
	ID        string
	ShopID    string
	Name      string
	CreatedAt time.Time
}

// Customer is a tenant-scoped directory entry. Checkout reads it for
// attribution and never mutates it.
type Customer struct {
	ID         string
	ShopID     string
	Name       string
	Email      string
	Phone      string
	AvatarURL  string
	Notes      string
	TotalSpent float64
	LastSeen   time.Time
	CreatedAt  time.Time
}

// Shop is the tenant boundary. All catalog and ledger data hangs below one shop.
type Shop struct {
	ID        string
	Name      string
	OwnerID   string
	Currency  string
	MemberIDs []string
	CreatedAt time.Time
}

// IsMember reports whether the given user may operate this shop.
func (s Shop) IsMember(userID string) bool {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false
	}
	if strings.EqualFold(s.OwnerID, userID) {
		return true
	}
	for _, id := range s.MemberIDs {
		if strings.EqualFold(id, userID) {
			return true
		}
	}
	return false
}

// VariantSelection records one variant choice made when a line was added.
type VariantSelection struct {
	Name            string
	Value           string
	AdditionalPrice float64
}

// CartLine is a requested product plus quantity. It lives only inside a
// checkout session and is consumed by the checkout engine.
type CartLine struct {
	ProductID string
	Quantity  int
	Variants  []VariantSelection
}

// UnitPriceWith returns the effective unit price for the line given the
// product's base sales price.
func (l CartLine) UnitPriceWith(basePrice float64) float64 {
	price := basePrice
	for _, v := range l.Variants {
		price += v.AdditionalPrice
	}
	return price
}

// Cart aggregates the lines and settlement selections for one sale in
// progress. It has no identity beyond the session that owns it.
type Cart struct {
	ShopID        string
	Lines         []CartLine
	CustomerID    string
	PaymentMethod PaymentMethod
	AmountPaid    float64
}

// IsEmpty reports whether the cart holds no sellable lines.
func (c Cart) IsEmpty() bool { return len(c.Lines) == 0 }

// Line returns the line for the given product id, if present.
func (c Cart) Line(productID string) (CartLine, bool) {
	for _, line := range c.Lines {
		if line.ProductID == productID {
			return line, true
		}
	}
	return CartLine{}, false
}

// TransactionLine is the immutable snapshot of one sold line. Price is the
// effective unit price at sale time; later catalog edits never alter it.
type TransactionLine struct {
	ProductID   string
	ProductName string
	Quantity    int
	Price       float64
}

// Transaction is the sales-ledger record produced by a successful checkout
// commit. It is never updated or deleted by normal application flow.
type Transaction struct {
	ID            string
	ShopID        string
	Date          time.Time
	TotalAmount   float64
	PaymentMethod PaymentMethod
	SellerID      string
	SellerName    string
	CustomerID    string
	CustomerName  string
	Items         []TransactionLine
	IsDebt        bool
	AmountPaid    float64
	AmountDue     float64
}

// WalkInCustomerName is recorded when a sale has no customer attribution.
const WalkInCustomerName = "Walk-in"

// Pagination carries cursor parameters shared by list queries.
type Pagination struct {
	PageSize  int
	PageToken string
}

// CursorPage is a single page of results plus the token for the next one.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// RangeQuery bounds list queries by an inclusive lower and exclusive upper value.
type RangeQuery[T any] struct {
	From *T
	To   *T
}
