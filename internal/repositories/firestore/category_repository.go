package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/duka-pos/api/internal/domain"
	pfirestore "github.com/duka-pos/api/internal/platform/firestore"
)

const categoriesCollection = "categories"

type categoryDocument struct {
	Name      string    `firestore:"name"`
	CreatedAt time.Time `firestore:"createdAt"`
}

func (d categoryDocument) toDomain(shopID, id string) domain.Category {
	return domain.Category{
		ID:        id,
		ShopID:    shopID,
		Name:      d.Name,
		CreatedAt: d.CreatedAt,
	}
}

// CategoryRepository persists the tenant-scoped category directory.
type CategoryRepository struct {
	categories *pfirestore.TenantRepository[categoryDocument]
}

// NewCategoryRepository constructs a Firestore-backed category repository.
func NewCategoryRepository(provider *pfirestore.Provider) (*CategoryRepository, error) {
	if provider == nil {
		return nil, errors.New("category repository requires firestore provider")
	}
	categories := pfirestore.NewTenantRepository[categoryDocument](provider, shopsCollection, categoriesCollection, nil, nil)
	return &CategoryRepository{categories: categories}, nil
}

// Insert creates a new category document.
func (r *CategoryRepository) Insert(ctx context.Context, category domain.Category) error {
	if r == nil || r.categories == nil {
		return errors.New("category repository not initialised")
	}
	if strings.TrimSpace(category.ID) == "" {
		return errors.New("category repository: category id is required")
	}
	doc := categoryDocument{
		Name:      strings.TrimSpace(category.Name),
		CreatedAt: category.CreatedAt.UTC(),
	}
	_, err := r.categories.Create(ctx, category.ShopID, category.ID, doc)
	return err
}

// Delete removes a category. Products keep their categoryId reference and fall
// back to uncategorised rendering.
func (r *CategoryRepository) Delete(ctx context.Context, shopID, categoryID string) error {
	if r == nil || r.categories == nil {
		return errors.New("category repository not initialised")
	}
	return r.categories.Delete(ctx, shopID, categoryID)
}

// List returns all categories for the shop ordered by name.
func (r *CategoryRepository) List(ctx context.Context, shopID string) ([]domain.Category, error) {
	if r == nil || r.categories == nil {
		return nil, errors.New("category repository not initialised")
	}
	docs, err := r.categories.Query(ctx, shopID, func(q firestore.Query) firestore.Query {
		return q.OrderBy("name", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	items := make([]domain.Category, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.Data.toDomain(shopID, doc.ID))
	}
	return items, nil
}
