package firestore

import (
	"context"
	"errors"
	"fmt"

	pfirestore "github.com/duka-pos/api/internal/platform/firestore"
	"github.com/duka-pos/api/internal/repositories"
)

// Registry bundles the Firestore-backed repositories behind the
// repositories.Registry contract.
type Registry struct {
	provider *pfirestore.Provider

	shops        *ShopRepository
	products     *ProductRepository
	categories   *CategoryRepository
	customers    *CustomerRepository
	transactions *TransactionRepository
	checkout     *CheckoutRepository
	health       repositories.HealthRepository
}

// NewRegistry constructs every repository over a shared provider. The health
// repository is optional and may be attached later via SetHealth.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}

	shops, err := NewShopRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build shop repository: %w", err)
	}
	products, err := NewProductRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build product repository: %w", err)
	}
	categories, err := NewCategoryRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build category repository: %w", err)
	}
	customers, err := NewCustomerRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build customer repository: %w", err)
	}
	transactions, err := NewTransactionRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build transaction repository: %w", err)
	}
	checkout, err := NewCheckoutRepository(provider)
	if err != nil {
		return nil, fmt.Errorf("build checkout repository: %w", err)
	}

	return &Registry{
		provider:     provider,
		shops:        shops,
		products:     products,
		categories:   categories,
		customers:    customers,
		transactions: transactions,
		checkout:     checkout,
	}, nil
}

// SetHealth attaches the dependency health repository once probes are known.
func (r *Registry) SetHealth(health repositories.HealthRepository) {
	if r == nil {
		return
	}
	r.health = health
}

// Close releases the underlying Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

func (r *Registry) Shops() repositories.ShopRepository               { return r.shops }
func (r *Registry) Products() repositories.ProductRepository         { return r.products }
func (r *Registry) Categories() repositories.CategoryRepository      { return r.categories }
func (r *Registry) Customers() repositories.CustomerRepository       { return r.customers }
func (r *Registry) Transactions() repositories.TransactionRepository { return r.transactions }
func (r *Registry) Checkout() repositories.CheckoutRepository        { return r.checkout }
func (r *Registry) Health() repositories.HealthRepository            { return r.health }

var _ repositories.Registry = (*Registry)(nil)
