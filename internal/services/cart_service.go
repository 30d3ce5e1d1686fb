package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/duka-pos/api/internal/domain"
	"github.com/duka-pos/api/internal/repositories"
)

// CartServiceDeps bundles the collaborators required to construct a cart service.
type CartServiceDeps struct {
	Products repositories.ProductRepository
	TaxRate  float64
}

type cartService struct {
	products repositories.ProductRepository
	taxRate  float64
}

// NewCartService wires dependencies into a concrete CartService implementation.
// Every mutation re-reads the live product so stale session state can never
// grow a line past current availability.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Products == nil {
		return nil, errors.New("cart service: product repository is required")
	}
	if deps.TaxRate < 0 || deps.TaxRate >= 1 {
		return nil, errors.New("cart service: tax rate must be in [0, 1)")
	}
	return &cartService{products: deps.Products, taxRate: deps.TaxRate}, nil
}

func (s *cartService) AddLine(ctx context.Context, cart Cart, cmd AddCartLineCommand) (Cart, CartUpdateResult, error) {
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return cart, CartUpdateResult{}, fmt.Errorf("%w: product id is required", ErrInvalidInput)
	}
	quantity := cmd.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	product, err := s.products.FindByID(ctx, cart.ShopID, productID)
	if err != nil {
		return cart, CartUpdateResult{}, mapNotFound(err, ErrProductNotFound)
	}

	requested := quantity
	if existing, ok := cart.Line(productID); ok {
		requested += existing.Quantity
	}
	if requested > product.Quantity {
		return cart, CartUpdateResult{
			StockLimited: true,
			ProductID:    productID,
			Requested:    requested,
			Available:    product.Quantity,
		}, nil
	}

	updated := cloneCart(cart)
	merged := false
	for i, line := range updated.Lines {
		if line.ProductID == productID {
			updated.Lines[i].Quantity = requested
			if len(cmd.Variants) > 0 {
				updated.Lines[i].Variants = cmd.Variants
			}
			merged = true
			break
		}
	}
	if !merged {
		updated.Lines = append(updated.Lines, CartLine{
			ProductID: productID,
			Quantity:  requested,
			Variants:  cmd.Variants,
		})
	}
	return updated, CartUpdateResult{ProductID: productID, Requested: requested, Available: product.Quantity}, nil
}

func (s *cartService) SetLineQuantity(ctx context.Context, cart Cart, productID string, quantity int) (Cart, CartUpdateResult, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return cart, CartUpdateResult{}, fmt.Errorf("%w: product id is required", ErrInvalidInput)
	}

	if quantity <= 0 {
		updated := cloneCart(cart)
		kept := updated.Lines[:0]
		for _, line := range updated.Lines {
			if line.ProductID != productID {
				kept = append(kept, line)
			}
		}
		updated.Lines = kept
		return updated, CartUpdateResult{ProductID: productID}, nil
	}

	product, err := s.products.FindByID(ctx, cart.ShopID, productID)
	if err != nil {
		return cart, CartUpdateResult{}, mapNotFound(err, ErrProductNotFound)
	}
	if quantity > product.Quantity {
		return cart, CartUpdateResult{
			StockLimited: true,
			ProductID:    productID,
			Requested:    quantity,
			Available:    product.Quantity,
		}, nil
	}

	updated := cloneCart(cart)
	found := false
	for i, line := range updated.Lines {
		if line.ProductID == productID {
			updated.Lines[i].Quantity = quantity
			found = true
			break
		}
	}
	if !found {
		updated.Lines = append(updated.Lines, CartLine{ProductID: productID, Quantity: quantity})
	}
	return updated, CartUpdateResult{ProductID: productID, Requested: quantity, Available: product.Quantity}, nil
}

// Totals re-prices every line from the live catalog. Client-supplied prices
// are never trusted.
func (s *cartService) Totals(ctx context.Context, cart Cart) (CartTotals, error) {
	subtotal := 0.0
	for _, line := range cart.Lines {
		product, err := s.products.FindByID(ctx, cart.ShopID, line.ProductID)
		if err != nil {
			return CartTotals{}, mapNotFound(err, ErrProductNotFound)
		}
		subtotal += line.UnitPriceWith(product.SalesPrice) * float64(line.Quantity)
	}

	subtotal = domain.RoundMoney(subtotal)
	tax := domain.RoundMoney(subtotal * s.taxRate)
	return CartTotals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    domain.RoundMoney(subtotal + tax),
	}, nil
}

func (s *cartService) Clear(cart Cart) Cart {
	return Cart{ShopID: cart.ShopID}
}

func cloneCart(cart Cart) Cart {
	cloned := cart
	cloned.Lines = make([]CartLine, len(cart.Lines))
	copy(cloned.Lines, cart.Lines)
	return cloned
}
