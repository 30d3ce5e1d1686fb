package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	domain "github.com/duka-pos/api/internal/domain"
)

func newCatalogFixture(t *testing.T, products *stubProductRepo, categories *stubCategoryRepo) CatalogService {
	t.Helper()
	svc, err := NewCatalogService(CatalogServiceDeps{
		Products:    products,
		Categories:  categories,
		Clock:       func() time.Time { return time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC) },
		IDGenerator: func() string { return "id-0001" },
	})
	if err != nil {
		t.Fatalf("new catalog service: %v", err)
	}
	return svc
}

func TestCreateProductAssignsIdentityAndSanitizes(t *testing.T) {
	var inserted domain.Product
	products := &stubProductRepo{
		insertFn: func(_ context.Context, product domain.Product) error {
			inserted = product
			return nil
		},
	}
	svc := newCatalogFixture(t, products, &stubCategoryRepo{})

	created, err := svc.CreateProduct(context.Background(), CreateProductCommand{
		ShopID:      "shop-1",
		Name:        "  Sukari <b>1kg</b>  ",
		Description: "<script>alert(1)</script>Refined white sugar",
		SalesPrice:  120,
		Quantity:    40,
		Unit:        "pkt",
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	if created.ID != "id-0001" {
		t.Fatalf("unexpected id %s", created.ID)
	}
	if created.Name != "Sukari 1kg" {
		t.Fatalf("expected markup stripped from name, got %q", created.Name)
	}
	if created.Description != "Refined white sugar" {
		t.Fatalf("expected sanitized description, got %q", created.Description)
	}
	if created.InitialQuantity != 40 {
		t.Fatalf("initial quantity must mirror opening stock, got %d", created.InitialQuantity)
	}
	if created.CreatedAt.IsZero() || !created.CreatedAt.Equal(created.UpdatedAt) {
		t.Fatalf("unexpected timestamps %v / %v", created.CreatedAt, created.UpdatedAt)
	}
	if inserted.ID != created.ID {
		t.Fatal("insert must receive the built product")
	}
}

func TestCreateProductTruncatesLongDescriptionOnRuneBoundary(t *testing.T) {
	svc := newCatalogFixture(t, &stubProductRepo{}, &stubCategoryRepo{})

	// Pad past the cap so the final character landing on the boundary is
	// multi-byte; the stored description must stay valid UTF-8.
	long := strings.Repeat("a", maxDescriptionLength-1) + "é overflowing tail"
	created, err := svc.CreateProduct(context.Background(), CreateProductCommand{
		ShopID:      "shop-1",
		Name:        "Mchele 2kg",
		Description: long,
		SalesPrice:  250,
		Quantity:    10,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	if got := len([]rune(created.Description)); got > maxDescriptionLength {
		t.Fatalf("description exceeds cap: %d runes", got)
	}
	if !utf8.ValidString(created.Description) {
		t.Fatal("truncated description must remain valid UTF-8")
	}
	if !strings.HasSuffix(created.Description, "é") {
		t.Fatalf("expected truncation to keep the boundary rune, got tail %q", created.Description[len(created.Description)-8:])
	}
}

func TestCreateProductRejectsNegativePrice(t *testing.T) {
	svc := newCatalogFixture(t, &stubProductRepo{}, &stubCategoryRepo{})

	_, err := svc.CreateProduct(context.Background(), CreateProductCommand{
		ShopID:     "shop-1",
		Name:       "Widget",
		SalesPrice: -5,
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestUpdateProductPreservesProvenance(t *testing.T) {
	createdAt := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	products := &stubProductRepo{
		findFn: func(_ context.Context, _, _ string) (domain.Product, error) {
			return domain.Product{
				ID: "prod-1", ShopID: "shop-1", Name: "Widget",
				Quantity: 8, InitialQuantity: 50, CreatedAt: createdAt,
			}, nil
		},
	}
	svc := newCatalogFixture(t, products, &stubCategoryRepo{})

	updated, err := svc.UpdateProduct(context.Background(), UpdateProductCommand{
		ShopID:     "shop-1",
		ProductID:  "prod-1",
		Name:       "Widget Pro",
		SalesPrice: 15,
		Quantity:   8,
	})
	if err != nil {
		t.Fatalf("update product: %v", err)
	}
	if updated.InitialQuantity != 50 {
		t.Fatalf("update must not rewrite initial quantity, got %d", updated.InitialQuantity)
	}
	if !updated.CreatedAt.Equal(createdAt) {
		t.Fatalf("update must keep created at, got %v", updated.CreatedAt)
	}
	if updated.UpdatedAt.Equal(createdAt) {
		t.Fatal("update must advance updated at")
	}
}

func TestRestockValidatesQuantity(t *testing.T) {
	svc := newCatalogFixture(t, &stubProductRepo{}, &stubCategoryRepo{})

	if _, err := svc.Restock(context.Background(), RestockCommand{ShopID: "shop-1", ProductID: "prod-1", Quantity: 0}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for zero quantity, got %v", err)
	}
	if _, err := svc.Restock(context.Background(), RestockCommand{ShopID: "shop-1", Quantity: 5}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing product id, got %v", err)
	}
}

func TestRestockDelegatesToRepository(t *testing.T) {
	products := &stubProductRepo{
		restockFn: func(_ context.Context, shopID, productID string, quantity int, _ time.Time) (domain.Product, error) {
			if shopID != "shop-1" || productID != "prod-1" || quantity != 24 {
				return domain.Product{}, errors.New("unexpected arguments")
			}
			return domain.Product{ID: "prod-1", Quantity: 32}, nil
		},
	}
	svc := newCatalogFixture(t, products, &stubCategoryRepo{})

	product, err := svc.Restock(context.Background(), RestockCommand{ShopID: "shop-1", ProductID: "prod-1", Quantity: 24})
	if err != nil {
		t.Fatalf("restock: %v", err)
	}
	if product.Quantity != 32 {
		t.Fatalf("expected updated quantity 32, got %d", product.Quantity)
	}
}

func TestGetProductByCodeRequiresCode(t *testing.T) {
	svc := newCatalogFixture(t, &stubProductRepo{}, &stubCategoryRepo{})

	if _, err := svc.GetProductByCode(context.Background(), "shop-1", "  "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestGetProductMapsNotFound(t *testing.T) {
	svc := newCatalogFixture(t, &stubProductRepo{}, &stubCategoryRepo{})

	if _, err := svc.GetProduct(context.Background(), "shop-1", "missing"); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestCreateCategoryRequiresName(t *testing.T) {
	svc := newCatalogFixture(t, &stubProductRepo{}, &stubCategoryRepo{})

	if _, err := svc.CreateCategory(context.Background(), "shop-1", "<p></p>"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty name, got %v", err)
	}
}

func TestCreateCategoryAssignsIdentity(t *testing.T) {
	var inserted domain.Category
	categories := &stubCategoryRepo{
		insertFn: func(_ context.Context, category domain.Category) error {
			inserted = category
			return nil
		},
	}
	svc := newCatalogFixture(t, &stubProductRepo{}, categories)

	category, err := svc.CreateCategory(context.Background(), "shop-1", " Beverages ")
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	if category.ID != "id-0001" || category.Name != "Beverages" {
		t.Fatalf("unexpected category %+v", category)
	}
	if inserted.ShopID != "shop-1" {
		t.Fatalf("insert received shop %q", inserted.ShopID)
	}
}
