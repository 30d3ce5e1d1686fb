package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	domain "github.com/duka-pos/api/internal/domain"
	"github.com/duka-pos/api/internal/platform/requestctx"
	"github.com/duka-pos/api/internal/repositories"
)

// checkoutState tracks the engine's progress through a single checkout.
type checkoutState string

const (
	checkoutIdle       checkoutState = "idle"
	checkoutValidating checkoutState = "validating"
	checkoutCommitting checkoutState = "committing"
	checkoutCommitted  checkoutState = "committed"
	checkoutFailed     checkoutState = "failed"
)

// CheckoutServiceDeps bundles the collaborators required to construct a checkout service.
type CheckoutServiceDeps struct {
	Products          repositories.ProductRepository
	Customers         repositories.CustomerRepository
	Checkout          repositories.CheckoutRepository
	Events            EventPublisher
	TaxRate           float64
	LowStockThreshold int
	Clock             func() time.Time
	IDGenerator       func() string
	Meter             metric.Meter
}

type checkoutService struct {
	products  repositories.ProductRepository
	customers repositories.CustomerRepository
	checkout  repositories.CheckoutRepository
	events    EventPublisher
	taxRate   float64
	threshold int
	clock     func() time.Time
	newID     func() string

	commits metric.Int64Counter
}

// NewCheckoutService wires dependencies into a concrete CheckoutService implementation.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Products == nil {
		return nil, errors.New("checkout service: product repository is required")
	}
	if deps.Checkout == nil {
		return nil, errors.New("checkout service: checkout repository is required")
	}
	if deps.TaxRate < 0 || deps.TaxRate >= 1 {
		return nil, errors.New("checkout service: tax rate must be in [0, 1)")
	}

	threshold := deps.LowStockThreshold
	if threshold <= 0 {
		threshold = domain.DefaultLowStockThreshold
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	meter := deps.Meter
	if meter == nil {
		meter = otel.Meter("github.com/duka-pos/api/internal/services")
	}

	commits, err := meter.Int64Counter("checkout.commits",
		metric.WithDescription("Checkout commit attempts by outcome"))
	if err != nil {
		return nil, fmt.Errorf("checkout service: build commit counter: %w", err)
	}

	return &checkoutService{
		products:  deps.Products,
		customers: deps.Customers,
		checkout:  deps.Checkout,
		events:    deps.Events,
		taxRate:   deps.TaxRate,
		threshold: threshold,
		clock:     func() time.Time { return clock().UTC() },
		newID:     idGen,
		commits:   commits,
	}, nil
}

// Checkout walks the sale through validation and the atomic commit. Any
// failure before the commit leaves no side effects; the commit itself is
// all-or-nothing inside one Firestore transaction.
func (s *checkoutService) Checkout(ctx context.Context, cmd CheckoutCommand) (CheckoutResult, error) {
	shopID := strings.TrimSpace(cmd.ShopID)
	if shopID == "" {
		return CheckoutResult{}, fmt.Errorf("%w: shop id is required", ErrInvalidInput)
	}
	sellerID := strings.TrimSpace(cmd.SellerID)
	if sellerID == "" {
		return CheckoutResult{}, fmt.Errorf("%w: seller identity is required", ErrInvalidInput)
	}
	if cmd.Cart.IsEmpty() {
		return CheckoutResult{}, ErrEmptyCart
	}
	method := cmd.Cart.PaymentMethod
	if !method.Valid() {
		return CheckoutResult{}, fmt.Errorf("%w: unsupported payment method %q", ErrInvalidPaymentState, string(method))
	}

	state := checkoutValidating
	lines, totals, err := s.validateAndPrice(ctx, shopID, cmd.Cart)
	if err != nil {
		s.record(ctx, state, method, err)
		return CheckoutResult{}, err
	}

	amountPaid, amountDue, err := settleAmounts(method, totals.Total, cmd.AmountPaid)
	if err != nil {
		s.record(ctx, state, method, err)
		return CheckoutResult{}, err
	}

	customerID, customerName, err := s.resolveCustomer(ctx, shopID, cmd.Cart.CustomerID)
	if err != nil {
		s.record(ctx, state, method, err)
		return CheckoutResult{}, err
	}

	now := s.clock()
	txn := Transaction{
		ID:            s.newID(),
		ShopID:        shopID,
		Date:          now,
		TotalAmount:   totals.Total,
		PaymentMethod: method,
		SellerID:      sellerID,
		SellerName:    strings.TrimSpace(cmd.SellerName),
		CustomerID:    customerID,
		CustomerName:  customerName,
		Items:         lines,
		IsDebt:        method.IsDebt(),
		AmountPaid:    amountPaid,
		AmountDue:     amountDue,
	}

	state = checkoutCommitting
	result, err := s.checkout.Commit(ctx, repositories.CheckoutCommitRequest{
		ShopID:                   shopID,
		Transaction:              txn,
		DefaultLowStockThreshold: s.threshold,
	})
	if err != nil {
		mapped := s.mapCommitError(err)
		s.record(ctx, state, method, mapped)
		return CheckoutResult{}, mapped
	}

	state = checkoutCommitted
	s.record(ctx, state, method, nil)
	s.publishEvents(ctx, result)

	return CheckoutResult{Transaction: result.Transaction, LowStock: result.LowStock}, nil
}

// validateAndPrice re-reads the authoritative quantity for every line and
// snapshots name and effective unit price from the live catalog.
func (s *checkoutService) validateAndPrice(ctx context.Context, shopID string, cart Cart) ([]TransactionLine, CartTotals, error) {
	lines := make([]TransactionLine, 0, len(cart.Lines))
	subtotal := 0.0
	for _, line := range cart.Lines {
		if line.Quantity <= 0 {
			return nil, CartTotals{}, fmt.Errorf("%w: line quantity must be positive", ErrInvalidInput)
		}
		product, err := s.products.FindByID(ctx, shopID, line.ProductID)
		if err != nil {
			return nil, CartTotals{}, mapNotFound(err, ErrProductNotFound)
		}
		if product.Quantity < line.Quantity {
			return nil, CartTotals{}, &InsufficientStockError{
				ProductID: line.ProductID,
				Requested: line.Quantity,
				Available: product.Quantity,
			}
		}

		unitPrice, err := priceLine(product, line)
		if err != nil {
			return nil, CartTotals{}, err
		}
		lines = append(lines, TransactionLine{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    line.Quantity,
			Price:       unitPrice,
		})
		subtotal += unitPrice * float64(line.Quantity)
	}

	subtotal = domain.RoundMoney(subtotal)
	tax := domain.RoundMoney(subtotal * s.taxRate)
	return lines, CartTotals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    domain.RoundMoney(subtotal + tax),
	}, nil
}

// priceLine snapshots the effective unit price from the live catalog read.
// Variant surcharges come from the product document, never from the caller's
// selection payload; a selection that matches no catalog variant rejects the
// whole checkout.
func priceLine(product domain.Product, line domain.CartLine) (float64, error) {
	price := product.SalesPrice
	for _, sel := range line.Variants {
		variant, ok := product.Variant(sel.Name, sel.Value)
		if !ok {
			return 0, fmt.Errorf("%w: product %s has no variant %s=%s", ErrInvalidInput, product.ID, sel.Name, sel.Value)
		}
		price += variant.AdditionalPrice
	}
	return domain.RoundMoney(price), nil
}

// settleAmounts derives the payment breakdown from the method. Debt sales
// accept any partial payment in [0, total]; everything else settles in full.
func settleAmounts(method PaymentMethod, total, amountPaid float64) (paid, due float64, err error) {
	if !method.IsDebt() {
		return total, 0, nil
	}
	if amountPaid < 0 || amountPaid > total+domain.MoneyEpsilon {
		return 0, 0, fmt.Errorf("%w: amount paid %.2f must be within [0, %.2f]", ErrInvalidPaymentState, amountPaid, total)
	}
	paid = domain.RoundMoney(amountPaid)
	due = domain.RoundMoney(total - paid)
	if due < 0 {
		due = 0
	}
	return paid, due, nil
}

func (s *checkoutService) resolveCustomer(ctx context.Context, shopID, customerID string) (string, string, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return "", domain.WalkInCustomerName, nil
	}
	if s.customers == nil {
		return "", "", fmt.Errorf("%w: customer lookup is not configured", ErrInvalidInput)
	}
	customer, err := s.customers.FindByID(ctx, shopID, customerID)
	if err != nil {
		return "", "", mapNotFound(err, ErrCustomerNotFound)
	}
	return customer.ID, customer.Name, nil
}

// mapCommitError converts typed repository failures into service errors.
// Anything unclassified becomes a retryable CommitFailure.
func (s *checkoutService) mapCommitError(err error) error {
	if err == nil {
		return nil
	}
	var checkoutErr *repositories.CheckoutError
	if errors.As(err, &checkoutErr) {
		switch checkoutErr.Code {
		case repositories.CheckoutErrorInsufficientStock:
			return &InsufficientStockError{
				ProductID: checkoutErr.ProductID,
				Requested: checkoutErr.Requested,
				Available: checkoutErr.Available,
			}
		case repositories.CheckoutErrorProductNotFound:
			return fmt.Errorf("%w: %s", ErrProductNotFound, checkoutErr.Message)
		}
	}
	return fmt.Errorf("%w: %v", ErrCommitFailure, err)
}

// publishEvents notifies downstream consumers after a successful commit.
// Publish failures are logged, never surfaced; the sale already happened.
func (s *checkoutService) publishEvents(ctx context.Context, result repositories.CheckoutCommitResult) {
	if s.events == nil {
		return
	}
	logger := requestctx.Logger(ctx)
	txn := result.Transaction

	if _, err := s.events.PublishSaleCompleted(ctx, SaleCompletedMessage{
		ShopID:        txn.ShopID,
		TransactionID: txn.ID,
		PaymentMethod: string(txn.PaymentMethod),
		SellerID:      txn.SellerID,
		Total:         txn.TotalAmount,
		AmountDue:     txn.AmountDue,
		CompletedAt:   txn.Date,
	}); err != nil {
		logger.Warn("sale completed publish failed",
			zap.String("transactionId", txn.ID),
			zap.Error(err))
	}

	for _, product := range result.LowStock {
		if _, err := s.events.PublishLowStock(ctx, LowStockMessage{
			ShopID:      txn.ShopID,
			ProductID:   product.ID,
			ProductName: product.Name,
			Remaining:   product.Quantity,
			Threshold:   product.EffectiveLowStockThreshold(),
		}); err != nil {
			logger.Warn("low stock publish failed",
				zap.String("productId", product.ID),
				zap.Error(err))
		}
	}
}

func (s *checkoutService) record(ctx context.Context, state checkoutState, method PaymentMethod, err error) {
	if s.commits == nil {
		return
	}
	outcome := "committed"
	if err != nil {
		outcome = "failed"
	}
	s.commits.Add(ctx, 1, metric.WithAttributes(
		attribute.String("state", string(state)),
		attribute.String("outcome", outcome),
		attribute.String("payment_method", string(method)),
	))
}
