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
	customersCollection = "customers"

	defaultCustomerPageSize = 50
	maxCustomerPageSize     = 200
)

type customerDocument struct {
	Name       string    `firestore:"name"`
	Email      string    `firestore:"email,omitempty"`
	Phone      string    `firestore:"phone,omitempty"`
	AvatarURL  string    `firestore:"avatarUrl,omitempty"`
	Notes      string    `firestore:"notes,omitempty"`
	TotalSpent float64   `firestore:"totalSpent"`
	LastSeen   time.Time `firestore:"lastSeen,omitempty"`
	CreatedAt  time.Time `firestore:"createdAt"`
}

func newCustomerDocument(customer domain.Customer) customerDocument {
	return customerDocument{
		Name:       strings.TrimSpace(customer.Name),
		Email:      strings.TrimSpace(customer.Email),
		Phone:      strings.TrimSpace(customer.Phone),
		AvatarURL:  strings.TrimSpace(customer.AvatarURL),
		Notes:      customer.Notes,
		TotalSpent: customer.TotalSpent,
		LastSeen:   customer.LastSeen.UTC(),
		CreatedAt:  customer.CreatedAt.UTC(),
	}
}

func (d customerDocument) toDomain(shopID, id string) domain.Customer {
	return domain.Customer{
		ID:         id,
		ShopID:     shopID,
		Name:       d.Name,
		Email:      d.Email,
		Phone:      d.Phone,
		AvatarURL:  d.AvatarURL,
		Notes:      d.Notes,
		TotalSpent: d.TotalSpent,
		LastSeen:   d.LastSeen,
		CreatedAt:  d.CreatedAt,
	}
}

// CustomerRepository persists the tenant-scoped customer ledger.
type CustomerRepository struct {
	customers *pfirestore.TenantRepository[customerDocument]
}

// NewCustomerRepository constructs a Firestore-backed customer repository.
func NewCustomerRepository(provider *pfirestore.Provider) (*CustomerRepository, error) {
	if provider == nil {
		return nil, errors.New("customer repository requires firestore provider")
	}
	customers := pfirestore.NewTenantRepository[customerDocument](provider, shopsCollection, customersCollection, nil, nil)
	return &CustomerRepository{customers: customers}, nil
}

// Insert creates a new customer document.
func (r *CustomerRepository) Insert(ctx context.Context, customer domain.Customer) error {
	if r == nil || r.customers == nil {
		return errors.New("customer repository not initialised")
	}
	if strings.TrimSpace(customer.ID) == "" {
		return errors.New("customer repository: customer id is required")
	}
	_, err := r.customers.Create(ctx, customer.ShopID, customer.ID, newCustomerDocument(customer))
	return err
}

// Update overwrites an existing customer document.
func (r *CustomerRepository) Update(ctx context.Context, customer domain.Customer) error {
	if r == nil || r.customers == nil {
		return errors.New("customer repository not initialised")
	}
	if strings.TrimSpace(customer.ID) == "" {
		return errors.New("customer repository: customer id is required")
	}
	_, err := r.customers.Set(ctx, customer.ShopID, customer.ID, newCustomerDocument(customer))
	return err
}

// Delete removes a customer. Ledger transactions keep their snapshot of the
// customer name.
func (r *CustomerRepository) Delete(ctx context.Context, shopID, customerID string) error {
	if r == nil || r.customers == nil {
		return errors.New("customer repository not initialised")
	}
	return r.customers.Delete(ctx, shopID, customerID)
}

// FindByID fetches a customer by document id.
func (r *CustomerRepository) FindByID(ctx context.Context, shopID, customerID string) (domain.Customer, error) {
	if r == nil || r.customers == nil {
		return domain.Customer{}, errors.New("customer repository not initialised")
	}
	doc, err := r.customers.Get(ctx, shopID, customerID)
	if err != nil {
		return domain.Customer{}, err
	}
	return doc.Data.toDomain(shopID, doc.ID), nil
}

// List returns a page of customers ordered by name.
func (r *CustomerRepository) List(ctx context.Context, shopID string, filter repositories.CustomerListFilter) (domain.CursorPage[domain.Customer], error) {
	if r == nil || r.customers == nil {
		return domain.CursorPage[domain.Customer]{}, errors.New("customer repository not initialised")
	}

	limit := filter.Pagination.PageSize
	if limit <= 0 {
		limit = defaultCustomerPageSize
	}
	if limit > maxCustomerPageSize {
		limit = maxCustomerPageSize
	}
	fetchLimit := limit + 1

	var startAfter []any
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		cursor, err := pagination.DecodeToken(token)
		if err != nil {
			return domain.CursorPage[domain.Customer]{}, fmt.Errorf("customer repository: %w", err)
		}
		startAfter = []any{cursor.Name, cursor.DocID}
	}

	prefix := strings.TrimSpace(filter.NamePrefix)

	docs, err := r.customers.Query(ctx, shopID, func(q firestore.Query) firestore.Query {
		if prefix != "" {
			q = q.Where("name", ">=", prefix).Where("name", "<", prefix+"\uf8ff")
		}
		q = q.OrderBy("name", firestore.Asc).OrderBy(firestore.DocumentID, firestore.Asc)
		if len(startAfter) == 2 {
			q = q.StartAfter(startAfter...)
		}
		return q.Limit(fetchLimit)
	})
	if err != nil {
		return domain.CursorPage[domain.Customer]{}, err
	}

	nextToken := ""
	if len(docs) == fetchLimit {
		last := docs[len(docs)-1]
		nextToken, err = pagination.EncodeToken(pagination.Cursor{Name: last.Data.Name, DocID: last.ID})
		if err != nil {
			return domain.CursorPage[domain.Customer]{}, fmt.Errorf("customer repository: %w", err)
		}
		docs = docs[:len(docs)-1]
	}

	items := make([]domain.Customer, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.Data.toDomain(shopID, doc.ID))
	}
	return domain.CursorPage[domain.Customer]{Items: items, NextPageToken: nextToken}, nil
}
