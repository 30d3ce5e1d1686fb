package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/duka-pos/api/internal/domain"
	pfirestore "github.com/duka-pos/api/internal/platform/firestore"
)

const shopsCollection = "shops"

type shopDocument struct {
	Name      string    `firestore:"name"`
	OwnerID   string    `firestore:"ownerId"`
	Currency  string    `firestore:"currency"`
	MemberIDs []string  `firestore:"memberIds"`
	CreatedAt time.Time `firestore:"createdAt"`
}

func (d shopDocument) toDomain(id string) domain.Shop {
	return domain.Shop{
		ID:        id,
		Name:      d.Name,
		OwnerID:   d.OwnerID,
		Currency:  d.Currency,
		MemberIDs: append([]string(nil), d.MemberIDs...),
		CreatedAt: d.CreatedAt,
	}
}

// ShopRepository resolves tenant documents from the root shops collection.
type ShopRepository struct {
	base *pfirestore.BaseRepository[shopDocument]
}

// NewShopRepository constructs a Firestore-backed shop repository.
func NewShopRepository(provider *pfirestore.Provider) (*ShopRepository, error) {
	if provider == nil {
		return nil, errors.New("shop repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[shopDocument](provider, shopsCollection, nil, nil)
	return &ShopRepository{base: base}, nil
}

// FindByID fetches a shop by document id.
func (r *ShopRepository) FindByID(ctx context.Context, shopID string) (domain.Shop, error) {
	if r == nil || r.base == nil {
		return domain.Shop{}, errors.New("shop repository not initialised")
	}
	shopID = strings.TrimSpace(shopID)
	if shopID == "" {
		return domain.Shop{}, errors.New("shop repository: shop id is required")
	}

	doc, err := r.base.Get(ctx, shopID)
	if err != nil {
		return domain.Shop{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}
