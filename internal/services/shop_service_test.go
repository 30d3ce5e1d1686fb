package services

import (
	"context"
	"errors"
	"testing"

	domain "github.com/duka-pos/api/internal/domain"
)

func TestShopAuthorizeAllowsMembers(t *testing.T) {
	shops := &stubShopRepo{
		findFn: func(_ context.Context, shopID string) (domain.Shop, error) {
			return domain.Shop{
				ID:        shopID,
				Name:      "Wanjiku Grocery",
				OwnerID:   "owner-1",
				MemberIDs: []string{"seller-1", "seller-2"},
			}, nil
		},
	}
	svc, err := NewShopService(ShopServiceDeps{Shops: shops})
	if err != nil {
		t.Fatalf("new shop service: %v", err)
	}

	for _, userID := range []string{"owner-1", "seller-2"} {
		if _, err := svc.Authorize(context.Background(), "shop-1", userID); err != nil {
			t.Fatalf("expected %s to be authorized: %v", userID, err)
		}
	}

	if _, err := svc.Authorize(context.Background(), "shop-1", "stranger"); !errors.Is(err, ErrShopAccessDenied) {
		t.Fatalf("expected ErrShopAccessDenied, got %v", err)
	}
}

func TestShopAuthorizeMapsNotFound(t *testing.T) {
	svc, err := NewShopService(ShopServiceDeps{Shops: &stubShopRepo{}})
	if err != nil {
		t.Fatalf("new shop service: %v", err)
	}

	if _, err := svc.Authorize(context.Background(), "missing", "seller-1"); !errors.Is(err, ErrShopNotFound) {
		t.Fatalf("expected ErrShopNotFound, got %v", err)
	}
}
