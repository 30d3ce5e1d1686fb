package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/duka-pos/api/internal/domain"
	"github.com/duka-pos/api/internal/platform/textutil"
	"github.com/duka-pos/api/internal/repositories"
)

const (
	maxProductNameLength  = 120
	maxCategoryNameLength = 80
	maxDescriptionLength  = 2000
)

// CatalogServiceDeps bundles the collaborators required to construct a catalog service.
type CatalogServiceDeps struct {
	Products          repositories.ProductRepository
	Categories        repositories.CategoryRepository
	LowStockThreshold int
	Clock             func() time.Time
	IDGenerator       func() string
}

type catalogService struct {
	products   repositories.ProductRepository
	categories repositories.CategoryRepository
	threshold  int
	clock      func() time.Time
	newID      func() string
}

// NewCatalogService wires dependencies into a concrete CatalogService implementation.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Products == nil {
		return nil, errors.New("catalog service: product repository is required")
	}
	if deps.Categories == nil {
		return nil, errors.New("catalog service: category repository is required")
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

	return &catalogService{
		products:   deps.Products,
		categories: deps.Categories,
		threshold:  threshold,
		clock:      func() time.Time { return clock().UTC() },
		newID:      idGen,
	}, nil
}

func (s *catalogService) CreateProduct(ctx context.Context, cmd CreateProductCommand) (Product, error) {
	product, err := s.buildProduct(cmd.ShopID, "", cmd.Name, cmd.Description, cmd.SalesPrice, cmd.PurchasePrice, cmd.Quantity, cmd.LowStockThreshold, cmd.CategoryID, cmd.Unit, cmd.Code, cmd.Variants)
	if err != nil {
		return Product{}, err
	}

	now := s.clock()
	product.ID = s.newID()
	product.InitialQuantity = product.Quantity
	product.CreatedAt = now
	product.UpdatedAt = now

	if err := s.products.Insert(ctx, product); err != nil {
		return Product{}, err
	}
	return product, nil
}

func (s *catalogService) UpdateProduct(ctx context.Context, cmd UpdateProductCommand) (Product, error) {
	if strings.TrimSpace(cmd.ProductID) == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrInvalidInput)
	}

	existing, err := s.products.FindByID(ctx, cmd.ShopID, cmd.ProductID)
	if err != nil {
		return Product{}, mapNotFound(err, ErrProductNotFound)
	}

	product, err := s.buildProduct(cmd.ShopID, cmd.ProductID, cmd.Name, cmd.Description, cmd.SalesPrice, cmd.PurchasePrice, cmd.Quantity, cmd.LowStockThreshold, cmd.CategoryID, cmd.Unit, cmd.Code, cmd.Variants)
	if err != nil {
		return Product{}, err
	}
	product.InitialQuantity = existing.InitialQuantity
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = s.clock()

	if err := s.products.Update(ctx, product); err != nil {
		return Product{}, mapNotFound(err, ErrProductNotFound)
	}
	return product, nil
}

func (s *catalogService) DeleteProduct(ctx context.Context, shopID, productID string) error {
	if strings.TrimSpace(productID) == "" {
		return fmt.Errorf("%w: product id is required", ErrInvalidInput)
	}
	return mapNotFound(s.products.Delete(ctx, shopID, productID), ErrProductNotFound)
}

func (s *catalogService) GetProduct(ctx context.Context, shopID, productID string) (Product, error) {
	product, err := s.products.FindByID(ctx, shopID, productID)
	if err != nil {
		return Product{}, mapNotFound(err, ErrProductNotFound)
	}
	return product, nil
}

func (s *catalogService) GetProductByCode(ctx context.Context, shopID, code string) (Product, error) {
	if strings.TrimSpace(code) == "" {
		return Product{}, fmt.Errorf("%w: product code is required", ErrInvalidInput)
	}
	product, err := s.products.FindByCode(ctx, shopID, code)
	if err != nil {
		return Product{}, mapNotFound(err, ErrProductNotFound)
	}
	return product, nil
}

func (s *catalogService) ListProducts(ctx context.Context, shopID string, filter ProductListFilter) (domain.CursorPage[Product], error) {
	return s.products.List(ctx, shopID, repositories.ProductListFilter{
		CategoryID: strings.TrimSpace(filter.CategoryID),
		NamePrefix: strings.TrimSpace(filter.NamePrefix),
		Pagination: filter.Pagination,
	})
}

func (s *catalogService) ListLowStock(ctx context.Context, shopID string) ([]Product, error) {
	return s.products.ListLowStock(ctx, shopID, s.threshold)
}

func (s *catalogService) Restock(ctx context.Context, cmd RestockCommand) (Product, error) {
	if strings.TrimSpace(cmd.ProductID) == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrInvalidInput)
	}
	if cmd.Quantity <= 0 {
		return Product{}, fmt.Errorf("%w: restock quantity must be positive", ErrInvalidInput)
	}
	product, err := s.products.Restock(ctx, cmd.ShopID, cmd.ProductID, cmd.Quantity, s.clock())
	if err != nil {
		return Product{}, mapNotFound(err, ErrProductNotFound)
	}
	return product, nil
}

func (s *catalogService) CreateCategory(ctx context.Context, shopID, name string) (Category, error) {
	name = textutil.SanitizeName(name, maxCategoryNameLength)
	if name == "" {
		return Category{}, fmt.Errorf("%w: category name is required", ErrInvalidInput)
	}

	category := Category{
		ID:        s.newID(),
		ShopID:    strings.TrimSpace(shopID),
		Name:      name,
		CreatedAt: s.clock(),
	}
	if err := s.categories.Insert(ctx, category); err != nil {
		return Category{}, err
	}
	return category, nil
}

func (s *catalogService) DeleteCategory(ctx context.Context, shopID, categoryID string) error {
	if strings.TrimSpace(categoryID) == "" {
		return fmt.Errorf("%w: category id is required", ErrInvalidInput)
	}
	return s.categories.Delete(ctx, shopID, categoryID)
}

func (s *catalogService) ListCategories(ctx context.Context, shopID string) ([]Category, error) {
	return s.categories.List(ctx, shopID)
}

func (s *catalogService) buildProduct(shopID, productID, name, description string, salesPrice, purchasePrice float64, quantity, lowStockThreshold int, categoryID, unit, code string, variants []ProductVariant) (Product, error) {
	if strings.TrimSpace(shopID) == "" {
		return Product{}, fmt.Errorf("%w: shop id is required", ErrInvalidInput)
	}
	name = textutil.SanitizeName(name, maxProductNameLength)
	if name == "" {
		return Product{}, fmt.Errorf("%w: product name is required", ErrInvalidInput)
	}
	if salesPrice < 0 || purchasePrice < 0 {
		return Product{}, fmt.Errorf("%w: prices must not be negative", ErrInvalidInput)
	}
	if quantity < 0 {
		return Product{}, fmt.Errorf("%w: quantity must not be negative", ErrInvalidInput)
	}
	if lowStockThreshold < 0 {
		return Product{}, fmt.Errorf("%w: low stock threshold must not be negative", ErrInvalidInput)
	}

	description = textutil.Truncate(textutil.SanitizePlainText(description), maxDescriptionLength)

	cleaned := make([]ProductVariant, 0, len(variants))
	for _, v := range variants {
		variantName := textutil.SanitizeName(v.Name, maxProductNameLength)
		variantValue := textutil.SanitizeName(v.Value, maxProductNameLength)
		if variantName == "" || variantValue == "" {
			return Product{}, fmt.Errorf("%w: variant name and value are required", ErrInvalidInput)
		}
		cleaned = append(cleaned, ProductVariant{
			Name:            variantName,
			Value:           variantValue,
			AdditionalPrice: v.AdditionalPrice,
		})
	}

	return Product{
		ID:                productID,
		ShopID:            strings.TrimSpace(shopID),
		Name:              name,
		Description:       description,
		SalesPrice:        salesPrice,
		PurchasePrice:     purchasePrice,
		Quantity:          quantity,
		LowStockThreshold: lowStockThreshold,
		CategoryID:        strings.TrimSpace(categoryID),
		Unit:              strings.TrimSpace(unit),
		Code:              strings.TrimSpace(code),
		Variants:          cleaned,
	}, nil
}
