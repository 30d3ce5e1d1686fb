package services

import (
	"context"
	"testing"

	domain "github.com/duka-pos/api/internal/domain"
)

func newCartFixture(t *testing.T, products *stubProductRepo) CartService {
	t.Helper()
	svc, err := NewCartService(CartServiceDeps{Products: products, TaxRate: 0.08})
	if err != nil {
		t.Fatalf("new cart service: %v", err)
	}
	return svc
}

func TestCartAddLineMergesQuantities(t *testing.T) {
	svc := newCartFixture(t, widgetRepo())
	cart := Cart{ShopID: "shop-1"}

	cart, result, err := svc.AddLine(context.Background(), cart, AddCartLineCommand{ProductID: "prod-1", Quantity: 2})
	if err != nil {
		t.Fatalf("add line: %v", err)
	}
	if result.StockLimited {
		t.Fatal("first add must not be stock limited")
	}

	cart, result, err = svc.AddLine(context.Background(), cart, AddCartLineCommand{ProductID: "prod-1", Quantity: 3})
	if err != nil {
		t.Fatalf("merge line: %v", err)
	}
	if result.StockLimited {
		t.Fatal("merged quantity 5 of 8 must not be stock limited")
	}
	if len(cart.Lines) != 1 || cart.Lines[0].Quantity != 5 {
		t.Fatalf("expected one line of quantity 5, got %+v", cart.Lines)
	}
}

func TestCartAddLineStockLimitLeavesCartUnchanged(t *testing.T) {
	svc := newCartFixture(t, widgetRepo())
	cart := Cart{ShopID: "shop-1", Lines: []CartLine{{ProductID: "prod-2", Quantity: 2}}}

	updated, result, err := svc.AddLine(context.Background(), cart, AddCartLineCommand{ProductID: "prod-2", Quantity: 2})
	if err != nil {
		t.Fatalf("add line: %v", err)
	}
	if !result.StockLimited {
		t.Fatal("expected stock limit for 4 of 3 available")
	}
	if result.Requested != 4 || result.Available != 3 {
		t.Fatalf("unexpected limit details %+v", result)
	}
	if len(updated.Lines) != 1 || updated.Lines[0].Quantity != 2 {
		t.Fatalf("cart must be unchanged after a stock limit, got %+v", updated.Lines)
	}
}

func TestCartAddLineDefaultsQuantityToOne(t *testing.T) {
	svc := newCartFixture(t, widgetRepo())

	cart, _, err := svc.AddLine(context.Background(), Cart{ShopID: "shop-1"}, AddCartLineCommand{ProductID: "prod-1"})
	if err != nil {
		t.Fatalf("add line: %v", err)
	}
	if cart.Lines[0].Quantity != 1 {
		t.Fatalf("expected quantity 1, got %d", cart.Lines[0].Quantity)
	}
}

func TestCartSetLineQuantityZeroRemovesLine(t *testing.T) {
	svc := newCartFixture(t, widgetRepo())
	cart := Cart{ShopID: "shop-1", Lines: []CartLine{
		{ProductID: "prod-1", Quantity: 2},
		{ProductID: "prod-2", Quantity: 1},
	}}

	cart, _, err := svc.SetLineQuantity(context.Background(), cart, "prod-1", 0)
	if err != nil {
		t.Fatalf("set quantity: %v", err)
	}
	if len(cart.Lines) != 1 || cart.Lines[0].ProductID != "prod-2" {
		t.Fatalf("expected only prod-2 to remain, got %+v", cart.Lines)
	}
}

func TestCartSetLineQuantityStockLimit(t *testing.T) {
	svc := newCartFixture(t, widgetRepo())
	cart := Cart{ShopID: "shop-1", Lines: []CartLine{{ProductID: "prod-2", Quantity: 1}}}

	updated, result, err := svc.SetLineQuantity(context.Background(), cart, "prod-2", 10)
	if err != nil {
		t.Fatalf("set quantity: %v", err)
	}
	if !result.StockLimited || result.Available != 3 {
		t.Fatalf("expected stock limit at 3, got %+v", result)
	}
	if updated.Lines[0].Quantity != 1 {
		t.Fatalf("cart must be unchanged, got quantity %d", updated.Lines[0].Quantity)
	}
}

func TestCartTotalsIncludeVariantsAndTax(t *testing.T) {
	svc := newCartFixture(t, widgetRepo())
	cart := Cart{ShopID: "shop-1", Lines: []CartLine{
		{
			ProductID: "prod-1",
			Quantity:  2,
			Variants:  []domain.VariantSelection{{Name: "Size", Value: "Large", AdditionalPrice: 1.50}},
		},
		{ProductID: "prod-2", Quantity: 1},
	}}

	totals, err := svc.Totals(context.Background(), cart)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	// 2 x (10 + 1.50) + 1 x 25 = 48.00, tax 3.84
	if !domain.MoneyEqual(totals.Subtotal, 48.00) {
		t.Fatalf("expected subtotal 48.00, got %.2f", totals.Subtotal)
	}
	if !domain.MoneyEqual(totals.Tax, 3.84) {
		t.Fatalf("expected tax 3.84, got %.2f", totals.Tax)
	}
	if !domain.MoneyEqual(totals.Total, 51.84) {
		t.Fatalf("expected total 51.84, got %.2f", totals.Total)
	}
}

func TestCartClearResetsSelections(t *testing.T) {
	svc := newCartFixture(t, widgetRepo())
	cart := Cart{
		ShopID:        "shop-1",
		Lines:         []CartLine{{ProductID: "prod-1", Quantity: 2}},
		CustomerID:    "cust-1",
		PaymentMethod: domain.PaymentDebt,
		AmountPaid:    40,
	}

	cleared := svc.Clear(cart)
	if !cleared.IsEmpty() || cleared.CustomerID != "" || cleared.PaymentMethod != "" || cleared.AmountPaid != 0 {
		t.Fatalf("expected empty cart, got %+v", cleared)
	}
	if cleared.ShopID != "shop-1" {
		t.Fatal("clear must keep the tenant binding")
	}
}
