package services

import (
	"context"
	"errors"
	"time"

	domain "github.com/duka-pos/api/internal/domain"
	"github.com/duka-pos/api/internal/repositories"
)

// notFoundErr satisfies repositories.RepositoryError for stubbed lookups.
type notFoundErr struct{ msg string }

func (e notFoundErr) Error() string       { return e.msg }
func (e notFoundErr) IsNotFound() bool    { return true }
func (e notFoundErr) IsConflict() bool    { return false }
func (e notFoundErr) IsUnavailable() bool { return false }

type stubProductRepo struct {
	insertFn       func(ctx context.Context, product domain.Product) error
	updateFn       func(ctx context.Context, product domain.Product) error
	deleteFn       func(ctx context.Context, shopID, productID string) error
	findFn         func(ctx context.Context, shopID, productID string) (domain.Product, error)
	findByCodeFn   func(ctx context.Context, shopID, code string) (domain.Product, error)
	listFn         func(ctx context.Context, shopID string, filter repositories.ProductListFilter) (domain.CursorPage[domain.Product], error)
	listLowStockFn func(ctx context.Context, shopID string, defaultThreshold int) ([]domain.Product, error)
	restockFn      func(ctx context.Context, shopID, productID string, quantity int, now time.Time) (domain.Product, error)
}

func (s *stubProductRepo) Insert(ctx context.Context, product domain.Product) error {
	if s.insertFn != nil {
		return s.insertFn(ctx, product)
	}
	return nil
}

func (s *stubProductRepo) Update(ctx context.Context, product domain.Product) error {
	if s.updateFn != nil {
		return s.updateFn(ctx, product)
	}
	return nil
}

func (s *stubProductRepo) Delete(ctx context.Context, shopID, productID string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, shopID, productID)
	}
	return nil
}

func (s *stubProductRepo) FindByID(ctx context.Context, shopID, productID string) (domain.Product, error) {
	if s.findFn != nil {
		return s.findFn(ctx, shopID, productID)
	}
	return domain.Product{}, notFoundErr{msg: "product not found"}
}

func (s *stubProductRepo) FindByCode(ctx context.Context, shopID, code string) (domain.Product, error) {
	if s.findByCodeFn != nil {
		return s.findByCodeFn(ctx, shopID, code)
	}
	return domain.Product{}, notFoundErr{msg: "product not found"}
}

func (s *stubProductRepo) List(ctx context.Context, shopID string, filter repositories.ProductListFilter) (domain.CursorPage[domain.Product], error) {
	if s.listFn != nil {
		return s.listFn(ctx, shopID, filter)
	}
	return domain.CursorPage[domain.Product]{}, nil
}

func (s *stubProductRepo) ListLowStock(ctx context.Context, shopID string, defaultThreshold int) ([]domain.Product, error) {
	if s.listLowStockFn != nil {
		return s.listLowStockFn(ctx, shopID, defaultThreshold)
	}
	return nil, nil
}

func (s *stubProductRepo) Restock(ctx context.Context, shopID, productID string, quantity int, now time.Time) (domain.Product, error) {
	if s.restockFn != nil {
		return s.restockFn(ctx, shopID, productID, quantity, now)
	}
	return domain.Product{}, errors.New("not implemented")
}

type stubCategoryRepo struct {
	insertFn func(ctx context.Context, category domain.Category) error
	deleteFn func(ctx context.Context, shopID, categoryID string) error
	listFn   func(ctx context.Context, shopID string) ([]domain.Category, error)
}

func (s *stubCategoryRepo) Insert(ctx context.Context, category domain.Category) error {
	if s.insertFn != nil {
		return s.insertFn(ctx, category)
	}
	return nil
}

func (s *stubCategoryRepo) Delete(ctx context.Context, shopID, categoryID string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, shopID, categoryID)
	}
	return nil
}

func (s *stubCategoryRepo) List(ctx context.Context, shopID string) ([]domain.Category, error) {
	if s.listFn != nil {
		return s.listFn(ctx, shopID)
	}
	return nil, nil
}

type stubCustomerRepo struct {
	insertFn func(ctx context.Context, customer domain.Customer) error
	updateFn func(ctx context.Context, customer domain.Customer) error
	deleteFn func(ctx context.Context, shopID, customerID string) error
	findFn   func(ctx context.Context, shopID, customerID string) (domain.Customer, error)
	listFn   func(ctx context.Context, shopID string, filter repositories.CustomerListFilter) (domain.CursorPage[domain.Customer], error)
}

func (s *stubCustomerRepo) Insert(ctx context.Context, customer domain.Customer) error {
	if s.insertFn != nil {
		return s.insertFn(ctx, customer)
	}
	return nil
}

func (s *stubCustomerRepo) Update(ctx context.Context, customer domain.Customer) error {
	if s.updateFn != nil {
		return s.updateFn(ctx, customer)
	}
	return nil
}

func (s *stubCustomerRepo) Delete(ctx context.Context, shopID, customerID string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, shopID, customerID)
	}
	return nil
}

func (s *stubCustomerRepo) FindByID(ctx context.Context, shopID, customerID string) (domain.Customer, error) {
	if s.findFn != nil {
		return s.findFn(ctx, shopID, customerID)
	}
	return domain.Customer{}, notFoundErr{msg: "customer not found"}
}

func (s *stubCustomerRepo) List(ctx context.Context, shopID string, filter repositories.CustomerListFilter) (domain.CursorPage[domain.Customer], error) {
	if s.listFn != nil {
		return s.listFn(ctx, shopID, filter)
	}
	return domain.CursorPage[domain.Customer]{}, nil
}

type stubTransactionRepo struct {
	findFn      func(ctx context.Context, shopID, transactionID string) (domain.Transaction, error)
	listFn      func(ctx context.Context, shopID string, filter repositories.TransactionListFilter) (domain.CursorPage[domain.Transaction], error)
	listRangeFn func(ctx context.Context, shopID string, from, to time.Time) ([]domain.Transaction, error)
}

func (s *stubTransactionRepo) FindByID(ctx context.Context, shopID, transactionID string) (domain.Transaction, error) {
	if s.findFn != nil {
		return s.findFn(ctx, shopID, transactionID)
	}
	return domain.Transaction{}, notFoundErr{msg: "transaction not found"}
}

func (s *stubTransactionRepo) List(ctx context.Context, shopID string, filter repositories.TransactionListFilter) (domain.CursorPage[domain.Transaction], error) {
	if s.listFn != nil {
		return s.listFn(ctx, shopID, filter)
	}
	return domain.CursorPage[domain.Transaction]{}, nil
}

func (s *stubTransactionRepo) ListRange(ctx context.Context, shopID string, from, to time.Time) ([]domain.Transaction, error) {
	if s.listRangeFn != nil {
		return s.listRangeFn(ctx, shopID, from, to)
	}
	return nil, nil
}

type stubCheckoutRepo struct {
	commitFn func(ctx context.Context, req repositories.CheckoutCommitRequest) (repositories.CheckoutCommitResult, error)
}

func (s *stubCheckoutRepo) Commit(ctx context.Context, req repositories.CheckoutCommitRequest) (repositories.CheckoutCommitResult, error) {
	if s.commitFn != nil {
		return s.commitFn(ctx, req)
	}
	return repositories.CheckoutCommitResult{Transaction: req.Transaction}, nil
}

type stubShopRepo struct {
	findFn func(ctx context.Context, shopID string) (domain.Shop, error)
}

func (s *stubShopRepo) FindByID(ctx context.Context, shopID string) (domain.Shop, error) {
	if s.findFn != nil {
		return s.findFn(ctx, shopID)
	}
	return domain.Shop{}, notFoundErr{msg: "shop not found"}
}

type captureEvents struct {
	sales    []SaleCompletedMessage
	lowStock []LowStockMessage
	err      error
}

func (c *captureEvents) PublishSaleCompleted(_ context.Context, message SaleCompletedMessage) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	c.sales = append(c.sales, message)
	return "msg-1", nil
}

func (c *captureEvents) PublishLowStock(_ context.Context, message LowStockMessage) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	c.lowStock = append(c.lowStock, message)
	return "msg-2", nil
}
