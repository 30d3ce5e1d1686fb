package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/duka-pos/api/internal/domain"
	pfirestore "github.com/duka-pos/api/internal/platform/firestore"
	"github.com/duka-pos/api/internal/platform/pagination"
	"github.com/duka-pos/api/internal/repositories"
)

const (
	productsCollection = "products"

	defaultProductPageSize = 50
	maxProductPageSize     = 200
)

type productVariantDocument struct {
	Name            string  `firestore:"name"`
	Value           string  `firestore:"value"`
	AdditionalPrice float64 `firestore:"additionalPrice"`
}

type productDocument struct {
	Name              string                   `firestore:"name"`
	Description       string                   `firestore:"description,omitempty"`
	SalesPrice        float64                  `firestore:"salesPrice"`
	PurchasePrice     float64                  `firestore:"purchasePrice"`
	Quantity          int                      `firestore:"quantity"`
	InitialQuantity   int                      `firestore:"initialQuantity"`
	LowStockThreshold int                      `firestore:"lowStockThreshold,omitempty"`
	CategoryID        string                   `firestore:"categoryId,omitempty"`
	Unit              string                   `firestore:"unit,omitempty"`
	Code              string                   `firestore:"code,omitempty"`
	Variants          []productVariantDocument `firestore:"variants,omitempty"`
	CreatedAt         time.Time                `firestore:"createdAt"`
	UpdatedAt         time.Time                `firestore:"updatedAt"`
}

func newProductDocument(product domain.Product) productDocument {
	doc := productDocument{
		Name:              strings.TrimSpace(product.Name),
		Description:       product.Description,
		SalesPrice:        product.SalesPrice,
		PurchasePrice:     product.PurchasePrice,
		Quantity:          product.Quantity,
		InitialQuantity:   product.InitialQuantity,
		LowStockThreshold: product.LowStockThreshold,
		CategoryID:        strings.TrimSpace(product.CategoryID),
		Unit:              strings.TrimSpace(product.Unit),
		Code:              strings.TrimSpace(product.Code),
		CreatedAt:         product.CreatedAt.UTC(),
		UpdatedAt:         product.UpdatedAt.UTC(),
	}
	for _, v := range product.Variants {
		doc.Variants = append(doc.Variants, productVariantDocument{
			Name:            strings.TrimSpace(v.Name),
			Value:           strings.TrimSpace(v.Value),
			AdditionalPrice: v.AdditionalPrice,
		})
	}
	return doc
}

func (d productDocument) toDomain(shopID, id string) domain.Product {
	product := domain.Product{
		ID:                id,
		ShopID:            shopID,
		Name:              d.Name,
		Description:       d.Description,
		SalesPrice:        d.SalesPrice,
		PurchasePrice:     d.PurchasePrice,
		Quantity:          d.Quantity,
		InitialQuantity:   d.InitialQuantity,
		LowStockThreshold: d.LowStockThreshold,
		CategoryID:        d.CategoryID,
		Unit:              d.Unit,
		Code:              d.Code,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
	for _, v := range d.Variants {
		product.Variants = append(product.Variants, domain.ProductVariant{
			Name:            v.Name,
			Value:           v.Value,
			AdditionalPrice: v.AdditionalPrice,
		})
	}
	return product
}

// ProductRepository persists the tenant-scoped product catalog.
type ProductRepository struct {
	provider *pfirestore.Provider
	products *pfirestore.TenantRepository[productDocument]
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	products := pfirestore.NewTenantRepository[productDocument](provider, shopsCollection, productsCollection, nil, nil)
	return &ProductRepository{provider: provider, products: products}, nil
}

// Insert creates a new product document. The product id must be pre-assigned.
func (r *ProductRepository) Insert(ctx context.Context, product domain.Product) error {
	if err := r.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(product.ID) == "" {
		return errors.New("product repository: product id is required")
	}
	_, err := r.products.Create(ctx, product.ShopID, product.ID, newProductDocument(product))
	return err
}

// Update overwrites an existing product document.
func (r *ProductRepository) Update(ctx context.Context, product domain.Product) error {
	if err := r.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(product.ID) == "" {
		return errors.New("product repository: product id is required")
	}
	_, err := r.products.Set(ctx, product.ShopID, product.ID, newProductDocument(product))
	return err
}

// Delete removes a product from the catalog.
func (r *ProductRepository) Delete(ctx context.Context, shopID, productID string) error {
	if err := r.ready(); err != nil {
		return err
	}
	return r.products.Delete(ctx, shopID, productID)
}

// FindByID fetches a product by document id.
func (r *ProductRepository) FindByID(ctx context.Context, shopID, productID string) (domain.Product, error) {
	if err := r.ready(); err != nil {
		return domain.Product{}, err
	}
	doc, err := r.products.Get(ctx, shopID, productID)
	if err != nil {
		return domain.Product{}, err
	}
	return doc.Data.toDomain(shopID, doc.ID), nil
}

// FindByCode resolves a product by its SKU / barcode value.
func (r *ProductRepository) FindByCode(ctx context.Context, shopID, code string) (domain.Product, error) {
	if err := r.ready(); err != nil {
		return domain.Product{}, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.Product{}, errors.New("product repository: code is required")
	}

	docs, err := r.products.Query(ctx, shopID, func(q firestore.Query) firestore.Query {
		return q.Where("code", "==", code).Limit(1)
	})
	if err != nil {
		return domain.Product{}, err
	}
	if len(docs) == 0 {
		return domain.Product{}, pfirestore.WrapError("products.findbycode", status.Error(codes.NotFound, fmt.Sprintf("product with code %s not found", code)))
	}
	return docs[0].Data.toDomain(shopID, docs[0].ID), nil
}

// List returns a page of products ordered by name.
func (r *ProductRepository) List(ctx context.Context, shopID string, filter repositories.ProductListFilter) (domain.CursorPage[domain.Product], error) {
	if err := r.ready(); err != nil {
		return domain.CursorPage[domain.Product]{}, err
	}

	limit := filter.Pagination.PageSize
	if limit <= 0 {
		limit = defaultProductPageSize
	}
	if limit > maxProductPageSize {
		limit = maxProductPageSize
	}
	fetchLimit := limit + 1

	var startAfter []any
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		cursor, err := pagination.DecodeToken(token)
		if err != nil {
			return domain.CursorPage[domain.Product]{}, fmt.Errorf("product repository: %w", err)
		}
		startAfter = []any{cursor.Name, cursor.DocID}
	}

	categoryID := strings.TrimSpace(filter.CategoryID)
	prefix := strings.TrimSpace(filter.NamePrefix)

	docs, err := r.products.Query(ctx, shopID, func(q firestore.Query) firestore.Query {
		if categoryID != "" {
			q = q.Where("categoryId", "==", categoryID)
		}
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
		return domain.CursorPage[domain.Product]{}, err
	}

	nextToken := ""
	if len(docs) == fetchLimit {
		last := docs[len(docs)-1]
		nextToken, err = pagination.EncodeToken(pagination.Cursor{Name: last.Data.Name, DocID: last.ID})
		if err != nil {
			return domain.CursorPage[domain.Product]{}, fmt.Errorf("product repository: %w", err)
		}
		docs = docs[:len(docs)-1]
	}

	items := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.Data.toDomain(shopID, doc.ID))
	}
	return domain.CursorPage[domain.Product]{Items: items, NextPageToken: nextToken}, nil
}

// ListLowStock returns every product at or below its low stock threshold.
// Thresholds vary per product, so the filter runs client-side over the shop's
// catalog rather than as a Firestore predicate.
func (r *ProductRepository) ListLowStock(ctx context.Context, shopID string, defaultThreshold int) ([]domain.Product, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	if defaultThreshold <= 0 {
		defaultThreshold = domain.DefaultLowStockThreshold
	}

	docs, err := r.products.Query(ctx, shopID, func(q firestore.Query) firestore.Query {
		return q.OrderBy("quantity", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}

	var low []domain.Product
	for _, doc := range docs {
		product := doc.Data.toDomain(shopID, doc.ID)
		threshold := product.LowStockThreshold
		if threshold <= 0 {
			threshold = defaultThreshold
		}
		if product.Quantity <= threshold {
			low = append(low, product)
		}
	}
	return low, nil
}

// Restock increments on-hand stock inside a transaction and returns the
// updated product.
func (r *ProductRepository) Restock(ctx context.Context, shopID, productID string, quantity int, now time.Time) (domain.Product, error) {
	if err := r.ready(); err != nil {
		return domain.Product{}, err
	}
	if quantity <= 0 {
		return domain.Product{}, errors.New("product repository: restock quantity must be > 0")
	}

	var restocked domain.Product
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.products.DocumentRef(ctx, shopID, productID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc productDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode product %s: %w", productID, err)
		}
		doc.Quantity += quantity
		doc.InitialQuantity += quantity
		doc.UpdatedAt = now.UTC()
		if err := tx.Set(ref, doc); err != nil {
			return err
		}
		restocked = doc.toDomain(shopID, productID)
		return nil
	})
	if err != nil {
		return domain.Product{}, pfirestore.WrapError("products.restock", err)
	}
	return restocked, nil
}

func (r *ProductRepository) ready() error {
	if r == nil || r.provider == nil || r.products == nil {
		return errors.New("product repository not initialised")
	}
	return nil
}
