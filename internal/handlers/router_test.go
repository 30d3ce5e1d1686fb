package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestRouterServesHealthEndpoints(t *testing.T) {
	router := NewRouter()

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200 for %s, got %d", path, rr.Code)
		}
	}
}

func TestRouterUnknownRouteReturnsEnvelope(t *testing.T) {
	router := NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/unknown", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if resp["error"] != "route_not_found" {
		t.Fatalf("expected route_not_found, got %#v", resp["error"])
	}
}

func TestRouterUnregisteredGroupReturnsNotImplemented(t *testing.T) {
	router := NewRouter()

	req := authedRequest(http.MethodGet, "/api/v1/shops/shop-1/products", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("expected status 501, got %d", rr.Code)
	}
}

func TestRouterMountsRegistrarsUnderShopScope(t *testing.T) {
	called := false
	router := NewRouter(WithProductRoutes(func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			if chi.URLParam(req, "shopID") != "shop-1" {
				t.Fatalf("expected shopID param, got %q", chi.URLParam(req, "shopID"))
			}
			called = true
			w.WriteHeader(http.StatusOK)
		})
	}))

	req := authedRequest(http.MethodGet, "/api/v1/shops/shop-1/products", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !called {
		t.Fatal("expected product registrar to handle the request")
	}
}

func TestRouterAppliesShopMiddlewares(t *testing.T) {
	router := NewRouter(
		WithShopMiddlewares(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				w.Header().Set("X-Shop-Scope", chi.URLParam(req, "shopID"))
				next.ServeHTTP(w, req)
			})
		}),
		WithTransactionRoutes(func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, req *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
		}),
	)

	req := authedRequest(http.MethodGet, "/api/v1/shops/shop-1/transactions", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if rr.Header().Get("X-Shop-Scope") != "shop-1" {
		t.Fatalf("expected shop middleware to run, got %q", rr.Header().Get("X-Shop-Scope"))
	}
}
