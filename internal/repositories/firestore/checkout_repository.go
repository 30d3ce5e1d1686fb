package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/duka-pos/api/internal/domain"
	pfirestore "github.com/duka-pos/api/internal/platform/firestore"
	"github.com/duka-pos/api/internal/repositories"
)

// CheckoutRepository commits a sale atomically: one Firestore transaction that
// conditionally decrements stock for every line and creates the ledger
// document. Any shortfall aborts the transaction, leaving stock and ledger
// untouched.
type CheckoutRepository struct {
	provider     *pfirestore.Provider
	products     *pfirestore.TenantRepository[productDocument]
	transactions *pfirestore.TenantRepository[transactionDocument]
}

// NewCheckoutRepository constructs a Firestore-backed checkout repository.
func NewCheckoutRepository(provider *pfirestore.Provider) (*CheckoutRepository, error) {
	if provider == nil {
		return nil, errors.New("checkout repository requires firestore provider")
	}
	return &CheckoutRepository{
		provider:     provider,
		products:     pfirestore.NewTenantRepository[productDocument](provider, shopsCollection, productsCollection, nil, nil),
		transactions: pfirestore.NewTenantRepository[transactionDocument](provider, shopsCollection, transactionsCollection, nil, nil),
	}, nil
}

// Commit applies the sale. All stock reads happen before any write so the
// transaction observes a consistent snapshot; Firestore retries on contention
// via the provider's transaction options.
func (r *CheckoutRepository) Commit(ctx context.Context, req repositories.CheckoutCommitRequest) (repositories.CheckoutCommitResult, error) {
	if r == nil || r.provider == nil {
		return repositories.CheckoutCommitResult{}, errors.New("checkout repository not initialised")
	}
	shopID := strings.TrimSpace(req.ShopID)
	if shopID == "" {
		return repositories.CheckoutCommitResult{}, errors.New("checkout repository: shop id is required")
	}
	txn := req.Transaction
	if strings.TrimSpace(txn.ID) == "" {
		return repositories.CheckoutCommitResult{}, errors.New("checkout repository: transaction id is required")
	}
	if len(txn.Items) == 0 {
		return repositories.CheckoutCommitResult{}, errors.New("checkout repository: transaction has no items")
	}

	defaultThreshold := req.DefaultLowStockThreshold
	if defaultThreshold <= 0 {
		defaultThreshold = domain.DefaultLowStockThreshold
	}

	// Quantities are merged per product so duplicate lines decrement once.
	required := make(map[string]int, len(txn.Items))
	order := make([]string, 0, len(txn.Items))
	for _, item := range txn.Items {
		productID := strings.TrimSpace(item.ProductID)
		if productID == "" {
			return repositories.CheckoutCommitResult{}, repositories.NewCheckoutError(repositories.CheckoutErrorProductNotFound, "transaction line is missing a product id", nil)
		}
		if item.Quantity <= 0 {
			return repositories.CheckoutCommitResult{}, fmt.Errorf("checkout repository: quantity for product %s must be > 0", productID)
		}
		if _, seen := required[productID]; !seen {
			order = append(order, productID)
		}
		required[productID] += item.Quantity
	}

	var lowStock []domain.Product
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		lowStock = lowStock[:0]

		type pendingWrite struct {
			ref *firestore.DocumentRef
			doc productDocument
		}
		writes := make([]pendingWrite, 0, len(order))

		for _, productID := range order {
			ref, err := r.products.DocumentRef(ctx, shopID, productID)
			if err != nil {
				return err
			}
			snap, err := tx.Get(ref)
			if err != nil {
				if status.Code(err) == codes.NotFound {
					return repositories.NewCheckoutError(
						repositories.CheckoutErrorProductNotFound,
						fmt.Sprintf("product %s not found", productID),
						err,
					)
				}
				return err
			}
			var doc productDocument
			if err := snap.DataTo(&doc); err != nil {
				return fmt.Errorf("decode product %s: %w", productID, err)
			}

			requested := required[productID]
			if doc.Quantity < requested {
				return repositories.NewInsufficientStockError(productID, requested, doc.Quantity)
			}

			doc.Quantity -= requested
			doc.UpdatedAt = txn.Date.UTC()
			writes = append(writes, pendingWrite{ref: ref, doc: doc})

			threshold := doc.LowStockThreshold
			if threshold <= 0 {
				threshold = defaultThreshold
			}
			if doc.Quantity <= threshold {
				lowStock = append(lowStock, doc.toDomain(shopID, productID))
			}
		}

		for _, w := range writes {
			if err := tx.Set(w.ref, w.doc); err != nil {
				return err
			}
		}

		txnRef, err := r.transactions.DocumentRef(ctx, shopID, txn.ID)
		if err != nil {
			return err
		}
		return tx.Create(txnRef, newTransactionDocument(txn))
	})
	if err != nil {
		return repositories.CheckoutCommitResult{}, wrapCheckoutError("checkout.commit", err)
	}

	sort.Slice(lowStock, func(i, j int) bool { return lowStock[i].Name < lowStock[j].Name })

	txn.ShopID = shopID
	return repositories.CheckoutCommitResult{Transaction: txn, LowStock: lowStock}, nil
}

// wrapCheckoutError preserves typed checkout errors and classifies everything
// else through the shared firestore error mapping.
func wrapCheckoutError(op string, err error) error {
	if err == nil {
		return nil
	}
	var checkoutErr *repositories.CheckoutError
	if errors.As(err, &checkoutErr) {
		if checkoutErr.Op == "" {
			checkoutErr.Op = op
		}
		return checkoutErr
	}
	if status.Code(err) == codes.AlreadyExists {
		return &repositories.CheckoutError{
			Op:      op,
			Code:    repositories.CheckoutErrorConflict,
			Message: "transaction already recorded",
			Err:     pfirestore.WrapError(op, err),
		}
	}
	return pfirestore.WrapError(op, err)
}
