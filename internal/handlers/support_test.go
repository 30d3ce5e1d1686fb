package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	domain "github.com/duka-pos/api/internal/domain"
	"github.com/duka-pos/api/internal/platform/auth"
	"github.com/duka-pos/api/internal/services"
)

type stubShopService struct {
	authorizeFn func(ctx context.Context, shopID, userID string) (domain.Shop, error)
}

func (s *stubShopService) Authorize(ctx context.Context, shopID, userID string) (domain.Shop, error) {
	if s.authorizeFn != nil {
		return s.authorizeFn(ctx, shopID, userID)
	}
	return domain.Shop{ID: shopID, OwnerID: userID}, nil
}

type stubCatalogService struct {
	createProductFn    func(ctx context.Context, cmd services.CreateProductCommand) (domain.Product, error)
	updateProductFn    func(ctx context.Context, cmd services.UpdateProductCommand) (domain.Product, error)
	deleteProductFn    func(ctx context.Context, shopID, productID string) error
	getProductFn       func(ctx context.Context, shopID, productID string) (domain.Product, error)
	getProductByCodeFn func(ctx context.Context, shopID, code string) (domain.Product, error)
	listProductsFn     func(ctx context.Context, shopID string, filter services.ProductListFilter) (domain.CursorPage[domain.Product], error)
	listLowStockFn     func(ctx context.Context, shopID string) ([]domain.Product, error)
	restockFn          func(ctx context.Context, cmd services.RestockCommand) (domain.Product, error)
	createCategoryFn   func(ctx context.Context, shopID, name string) (domain.Category, error)
	deleteCategoryFn   func(ctx context.Context, shopID, categoryID string) error
	listCategoriesFn   func(ctx context.Context, shopID string) ([]domain.Category, error)
}

func (s *stubCatalogService) CreateProduct(ctx context.Context, cmd services.CreateProductCommand) (domain.Product, error) {
	if s.createProductFn != nil {
		return s.createProductFn(ctx, cmd)
	}
	return domain.Product{}, nil
}

func (s *stubCatalogService) UpdateProduct(ctx context.Context, cmd services.UpdateProductCommand) (domain.Product, error) {
	if s.updateProductFn != nil {
		return s.updateProductFn(ctx, cmd)
	}
	return domain.Product{}, nil
}

func (s *stubCatalogService) DeleteProduct(ctx context.Context, shopID, productID string) error {
	if s.deleteProductFn != nil {
		return s.deleteProductFn(ctx, shopID, productID)
	}
	return nil
}

func (s *stubCatalogService) GetProduct(ctx context.Context, shopID, productID string) (domain.Product, error) {
	if s.getProductFn != nil {
		return s.getProductFn(ctx, shopID, productID)
	}
	return domain.Product{}, nil
}

func (s *stubCatalogService) GetProductByCode(ctx context.Context, shopID, code string) (domain.Product, error) {
	if s.getProductByCodeFn != nil {
		return s.getProductByCodeFn(ctx, shopID, code)
	}
	return domain.Product{}, nil
}

func (s *stubCatalogService) ListProducts(ctx context.Context, shopID string, filter services.ProductListFilter) (domain.CursorPage[domain.Product], error) {
	if s.listProductsFn != nil {
		return s.listProductsFn(ctx, shopID, filter)
	}
	return domain.CursorPage[domain.Product]{}, nil
}

func (s *stubCatalogService) ListLowStock(ctx context.Context, shopID string) ([]domain.Product, error) {
	if s.listLowStockFn != nil {
		return s.listLowStockFn(ctx, shopID)
	}
	return nil, nil
}

func (s *stubCatalogService) Restock(ctx context.Context, cmd services.RestockCommand) (domain.Product, error) {
	if s.restockFn != nil {
		return s.restockFn(ctx, cmd)
	}
	return domain.Product{}, nil
}

func (s *stubCatalogService) CreateCategory(ctx context.Context, shopID, name string) (domain.Category, error) {
	if s.createCategoryFn != nil {
		return s.createCategoryFn(ctx, shopID, name)
	}
	return domain.Category{}, nil
}

func (s *stubCatalogService) DeleteCategory(ctx context.Context, shopID, categoryID string) error {
	if s.deleteCategoryFn != nil {
		return s.deleteCategoryFn(ctx, shopID, categoryID)
	}
	return nil
}

func (s *stubCatalogService) ListCategories(ctx context.Context, shopID string) ([]domain.Category, error) {
	if s.listCategoriesFn != nil {
		return s.listCategoriesFn(ctx, shopID)
	}
	return nil, nil
}

type stubCustomerService struct {
	createFn func(ctx context.Context, cmd services.CreateCustomerCommand) (domain.Customer, error)
	updateFn func(ctx context.Context, cmd services.UpdateCustomerCommand) (domain.Customer, error)
	deleteFn func(ctx context.Context, shopID, customerID string) error
	getFn    func(ctx context.Context, shopID, customerID string) (domain.Customer, error)
	listFn   func(ctx context.Context, shopID string, filter services.CustomerListFilter) (domain.CursorPage[domain.Customer], error)
}

func (s *stubCustomerService) CreateCustomer(ctx context.Context, cmd services.CreateCustomerCommand) (domain.Customer, error) {
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return domain.Customer{}, nil
}

func (s *stubCustomerService) UpdateCustomer(ctx context.Context, cmd services.UpdateCustomerCommand) (domain.Customer, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, cmd)
	}
	return domain.Customer{}, nil
}

func (s *stubCustomerService) DeleteCustomer(ctx context.Context, shopID, customerID string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, shopID, customerID)
	}
	return nil
}

func (s *stubCustomerService) GetCustomer(ctx context.Context, shopID, customerID string) (domain.Customer, error) {
	if s.getFn != nil {
		return s.getFn(ctx, shopID, customerID)
	}
	return domain.Customer{}, nil
}

func (s *stubCustomerService) ListCustomers(ctx context.Context, shopID string, filter services.CustomerListFilter) (domain.CursorPage[domain.Customer], error) {
	if s.listFn != nil {
		return s.listFn(ctx, shopID, filter)
	}
	return domain.CursorPage[domain.Customer]{}, nil
}

type stubCheckoutService struct {
	checkoutFn func(ctx context.Context, cmd services.CheckoutCommand) (services.CheckoutResult, error)
}

func (s *stubCheckoutService) Checkout(ctx context.Context, cmd services.CheckoutCommand) (services.CheckoutResult, error) {
	if s.checkoutFn != nil {
		return s.checkoutFn(ctx, cmd)
	}
	return services.CheckoutResult{}, nil
}

type stubSalesService struct {
	getFn     func(ctx context.Context, shopID, transactionID string) (domain.Transaction, error)
	listFn    func(ctx context.Context, shopID string, filter services.TransactionListFilter) (domain.CursorPage[domain.Transaction], error)
	summaryFn func(ctx context.Context, shopID string, day time.Time) (services.SalesSummary, error)
	exportFn  func(ctx context.Context, cmd services.ExportCommand) (services.ExportResult, error)
}

func (s *stubSalesService) GetTransaction(ctx context.Context, shopID, transactionID string) (domain.Transaction, error) {
	if s.getFn != nil {
		return s.getFn(ctx, shopID, transactionID)
	}
	return domain.Transaction{}, nil
}

func (s *stubSalesService) ListTransactions(ctx context.Context, shopID string, filter services.TransactionListFilter) (domain.CursorPage[domain.Transaction], error) {
	if s.listFn != nil {
		return s.listFn(ctx, shopID, filter)
	}
	return domain.CursorPage[domain.Transaction]{}, nil
}

func (s *stubSalesService) DailySummary(ctx context.Context, shopID string, day time.Time) (services.SalesSummary, error) {
	if s.summaryFn != nil {
		return s.summaryFn(ctx, shopID, day)
	}
	return services.SalesSummary{}, nil
}

func (s *stubSalesService) ExportCSV(ctx context.Context, cmd services.ExportCommand) (services.ExportResult, error) {
	if s.exportFn != nil {
		return s.exportFn(ctx, cmd)
	}
	return services.ExportResult{}, nil
}

type stubSystemService struct {
	healthFn func(ctx context.Context) (domain.SystemHealthReport, error)
}

func (s *stubSystemService) Health(ctx context.Context) (domain.SystemHealthReport, error) {
	if s.healthFn != nil {
		return s.healthFn(ctx)
	}
	return domain.SystemHealthReport{Status: domain.HealthStatusOK}, nil
}

// newShopRouter mounts a registrar under /shops/{shopID}/<segment> so path
// parameters resolve the same way they do in the full router.
func newShopRouter(segment string, registrar RouteRegistrar) http.Handler {
	opt := map[string]func(RouteRegistrar) Option{
		"products":     WithProductRoutes,
		"categories":   WithCategoryRoutes,
		"customers":    WithCustomerRoutes,
		"checkout":     WithCheckoutRoutes,
		"transactions": WithTransactionRoutes,
	}[segment]
	return NewRouter(opt(registrar))
}

func authedRequest(method, target string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	return req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "seller-1", Name: "Akinyi"}))
}

func shopPath(segment, rest string) string {
	return "/api/v1/shops/shop-1/" + segment + rest
}
