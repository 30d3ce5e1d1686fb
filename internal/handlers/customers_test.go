package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domain "github.com/duka-pos/api/internal/domain"
	"github.com/duka-pos/api/internal/services"
)

func TestCustomerHandlersListForwardsSearch(t *testing.T) {
	var captured services.CustomerListFilter
	customers := &stubCustomerService{
		listFn: func(ctx context.Context, shopID string, filter services.CustomerListFilter) (domain.CursorPage[domain.Customer], error) {
			captured = filter
			return domain.CursorPage[domain.Customer]{
				Items: []domain.Customer{{ID: "cust-1", Name: "Joseph Otieno", TotalSpent: 2450.5}},
			}, nil
		},
	}
	router := newShopRouter("customers", NewCustomerHandlers(&stubShopService{}, customers).Routes)

	req := authedRequest(http.MethodGet, shopPath("customers", "?search=jos&pageSize=10"), nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.NamePrefix != "jos" || captured.Pagination.PageSize != 10 {
		t.Fatalf("unexpected filter %+v", captured)
	}

	var resp struct {
		Items []customerPayload `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].TotalSpent != 2450.5 {
		t.Fatalf("unexpected items %+v", resp.Items)
	}
}

func TestCustomerHandlersCreate(t *testing.T) {
	var captured services.CreateCustomerCommand
	customers := &stubCustomerService{
		createFn: func(ctx context.Context, cmd services.CreateCustomerCommand) (domain.Customer, error) {
			captured = cmd
			return domain.Customer{
				ID:        "cust-1",
				Name:      cmd.Name,
				Phone:     cmd.Phone,
				CreatedAt: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
			}, nil
		},
	}
	router := newShopRouter("customers", NewCustomerHandlers(&stubShopService{}, customers).Routes)

	payload := `{"name":"Joseph Otieno","phone":"+254700111222","notes":"regular"}`
	req := authedRequest(http.MethodPost, shopPath("customers", ""), bytes.NewBufferString(payload))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.ShopID != "shop-1" || captured.Phone != "+254700111222" {
		t.Fatalf("unexpected command %+v", captured)
	}

	var resp customerPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID != "cust-1" || resp.Name != "Joseph Otieno" {
		t.Fatalf("unexpected payload %+v", resp)
	}
}

func TestCustomerHandlersUpdateTargetsPathCustomer(t *testing.T) {
	customers := &stubCustomerService{
		updateFn: func(ctx context.Context, cmd services.UpdateCustomerCommand) (domain.Customer, error) {
			if cmd.CustomerID != "cust-1" {
				t.Fatalf("unexpected customer id %s", cmd.CustomerID)
			}
			return domain.Customer{ID: cmd.CustomerID, Name: cmd.Name}, nil
		},
	}
	router := newShopRouter("customers", NewCustomerHandlers(&stubShopService{}, customers).Routes)

	req := authedRequest(http.MethodPut, shopPath("customers", "/cust-1"), bytes.NewBufferString(`{"name":"Joseph O."}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}

func TestCustomerHandlersDelete(t *testing.T) {
	deleted := false
	customers := &stubCustomerService{
		deleteFn: func(ctx context.Context, shopID, customerID string) error {
			deleted = customerID == "cust-1"
			return nil
		},
	}
	router := newShopRouter("customers", NewCustomerHandlers(&stubShopService{}, customers).Routes)

	req := authedRequest(http.MethodDelete, shopPath("customers", "/cust-1"), nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rr.Code)
	}
	if !deleted {
		t.Fatal("expected delete to reach the service")
	}
}

func TestCustomerHandlersGetMapsNotFound(t *testing.T) {
	customers := &stubCustomerService{
		getFn: func(ctx context.Context, shopID, customerID string) (domain.Customer, error) {
			return domain.Customer{}, fmt.Errorf("%w: %s", services.ErrCustomerNotFound, customerID)
		},
	}
	router := newShopRouter("customers", NewCustomerHandlers(&stubShopService{}, customers).Routes)

	req := authedRequest(http.MethodGet, shopPath("customers", "/missing"), nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}
