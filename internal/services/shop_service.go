package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/duka-pos/api/internal/repositories"
)

// ShopServiceDeps bundles the collaborators required to construct a shop service.
type ShopServiceDeps struct {
	Shops repositories.ShopRepository
}

type shopService struct {
	shops repositories.ShopRepository
}

// NewShopService wires dependencies into a concrete ShopService implementation.
func NewShopService(deps ShopServiceDeps) (ShopService, error) {
	if deps.Shops == nil {
		return nil, errors.New("shop service: shop repository is required")
	}
	return &shopService{shops: deps.Shops}, nil
}

func (s *shopService) Authorize(ctx context.Context, shopID, userID string) (Shop, error) {
	shopID = strings.TrimSpace(shopID)
	if shopID == "" {
		return Shop{}, fmt.Errorf("%w: shop id is required", ErrInvalidInput)
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Shop{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	shop, err := s.shops.FindByID(ctx, shopID)
	if err != nil {
		return Shop{}, mapNotFound(err, ErrShopNotFound)
	}
	if !shop.IsMember(userID) {
		return Shop{}, fmt.Errorf("%w: user %s is not a member of shop %s", ErrShopAccessDenied, userID, shopID)
	}
	return shop, nil
}
