package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/duka-pos/api/internal/domain"
	pfirestore "github.com/duka-pos/api/internal/platform/firestore"
	"github.com/duka-pos/api/internal/platform/pagination"
	"github.com/duka-pos/api/internal/repositories"
)

const (
	transactionsCollection = "transactions"

	defaultTransactionPageSize = 50
	maxTransactionPageSize     = 200
)

type transactionLineDocument struct {
	ProductID   string  `firestore:"productId"`
	ProductName string  `firestore:"productName"`
	Quantity    int     `firestore:"quantity"`
	Price       float64 `firestore:"price"`
}

type transactionDocument struct {
	Date          time.Time                 `firestore:"date"`
	TotalAmount   float64                   `firestore:"totalAmount"`
	PaymentMethod string                    `firestore:"paymentMethod"`
	SellerID      string                    `firestore:"sellerId"`
	SellerName    string                    `firestore:"sellerName,omitempty"`
	CustomerID    string                    `firestore:"customerId,omitempty"`
	CustomerName  string                    `firestore:"customerName"`
	Items         []transactionLineDocument `firestore:"items"`
	IsDebt        bool                      `firestore:"isDebt"`
	AmountPaid    float64                   `firestore:"amountPaid"`
	AmountDue     float64                   `firestore:"amountDue"`
}

func newTransactionDocument(txn domain.Transaction) transactionDocument {
	doc := transactionDocument{
		Date:          txn.Date.UTC(),
		TotalAmount:   txn.TotalAmount,
		PaymentMethod: string(txn.PaymentMethod),
		SellerID:      strings.TrimSpace(txn.SellerID),
		SellerName:    strings.TrimSpace(txn.SellerName),
		CustomerID:    strings.TrimSpace(txn.CustomerID),
		CustomerName:  strings.TrimSpace(txn.CustomerName),
		IsDebt:        txn.IsDebt,
		AmountPaid:    txn.AmountPaid,
		AmountDue:     txn.AmountDue,
	}
	if doc.CustomerName == "" {
		doc.CustomerName = domain.WalkInCustomerName
	}
	for _, item := range txn.Items {
		doc.Items = append(doc.Items, transactionLineDocument{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       item.Price,
		})
	}
	return doc
}

func (d transactionDocument) toDomain(shopID, id string) domain.Transaction {
	txn := domain.Transaction{
		ID:            id,
		ShopID:        shopID,
		Date:          d.Date,
		TotalAmount:   d.TotalAmount,
		PaymentMethod: domain.PaymentMethod(d.PaymentMethod),
		SellerID:      d.SellerID,
		SellerName:    d.SellerName,
		CustomerID:    d.CustomerID,
		CustomerName:  d.CustomerName,
		IsDebt:        d.IsDebt,
		AmountPaid:    d.AmountPaid,
		AmountDue:     d.AmountDue,
	}
	for _, item := range d.Items {
		txn.Items = append(txn.Items, domain.TransactionLine{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       item.Price,
		})
	}
	return txn
}

// TransactionRepository reads the immutable sales ledger.
type TransactionRepository struct {
	transactions *pfirestore.TenantRepository[transactionDocument]
}

// NewTransactionRepository constructs a Firestore-backed transaction repository.
func NewTransactionRepository(provider *pfirestore.Provider) (*TransactionRepository, error) {
	if provider == nil {
		return nil, errors.New("transaction repository requires firestore provider")
	}
	transactions := pfirestore.NewTenantRepository[transactionDocument](provider, shopsCollection, transactionsCollection, nil, nil)
	return &TransactionRepository{transactions: transactions}, nil
}

// FindByID fetches a single ledger entry (receipt view).
func (r *TransactionRepository) FindByID(ctx context.Context, shopID, transactionID string) (domain.Transaction, error) {
	if r == nil || r.transactions == nil {
		return domain.Transaction{}, errors.New("transaction repository not initialised")
	}
	doc, err := r.transactions.Get(ctx, shopID, transactionID)
	if err != nil {
		return domain.Transaction{}, err
	}
	return doc.Data.toDomain(shopID, doc.ID), nil
}

// List returns a page of ledger entries ordered by date descending.
func (r *TransactionRepository) List(ctx context.Context, shopID string, filter repositories.TransactionListFilter) (domain.CursorPage[domain.Transaction], error) {
	if r == nil || r.transactions == nil {
		return domain.CursorPage[domain.Transaction]{}, errors.New("transaction repository not initialised")
	}

	limit := filter.Pagination.PageSize
	if limit <= 0 {
		limit = defaultTransactionPageSize
	}
	if limit > maxTransactionPageSize {
		limit = maxTransactionPageSize
	}
	fetchLimit := limit + 1

	var startAfter []any
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		cursor, err := pagination.DecodeToken(token)
		if err != nil {
			return domain.CursorPage[domain.Transaction]{}, fmt.Errorf("transaction repository: %w", err)
		}
		startAfter = []any{cursor.Date, cursor.DocID}
	}

	customerID := strings.TrimSpace(filter.CustomerID)

	docs, err := r.transactions.Query(ctx, shopID, func(q firestore.Query) firestore.Query {
		if !filter.From.IsZero() {
			q = q.Where("date", ">=", filter.From.UTC())
		}
		if !filter.To.IsZero() {
			q = q.Where("date", "<", filter.To.UTC())
		}
		if filter.DebtOnly {
			q = q.Where("isDebt", "==", true)
		}
		if customerID != "" {
			q = q.Where("customerId", "==", customerID)
		}
		q = q.OrderBy("date", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if len(startAfter) == 2 {
			q = q.StartAfter(startAfter...)
		}
		return q.Limit(fetchLimit)
	})
	if err != nil {
		return domain.CursorPage[domain.Transaction]{}, err
	}

	nextToken := ""
	if len(docs) == fetchLimit {
		last := docs[len(docs)-1]
		tokenTime := last.Data.Date
		if tokenTime.IsZero() {
			tokenTime = last.CreateTime
		}
		nextToken, err = pagination.EncodeToken(pagination.Cursor{Date: tokenTime, DocID: last.ID})
		if err != nil {
			return domain.CursorPage[domain.Transaction]{}, fmt.Errorf("transaction repository: %w", err)
		}
		docs = docs[:len(docs)-1]
	}

	items := make([]domain.Transaction, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.Data.toDomain(shopID, doc.ID))
	}
	return domain.CursorPage[domain.Transaction]{Items: items, NextPageToken: nextToken}, nil
}

// ListRange returns every ledger entry in [from, to) ordered by date
// ascending. Used by summaries and exports which consume the full range.
func (r *TransactionRepository) ListRange(ctx context.Context, shopID string, from, to time.Time) ([]domain.Transaction, error) {
	if r == nil || r.transactions == nil {
		return nil, errors.New("transaction repository not initialised")
	}
	docs, err := r.transactions.Query(ctx, shopID, func(q firestore.Query) firestore.Query {
		if !from.IsZero() {
			q = q.Where("date", ">=", from.UTC())
		}
		if !to.IsZero() {
			q = q.Where("date", "<", to.UTC())
		}
		return q.OrderBy("date", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	items := make([]domain.Transaction, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.Data.toDomain(shopID, doc.ID))
	}
	return items, nil
}
