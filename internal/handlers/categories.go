package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	domain "github.com/duka-pos/api/internal/domain"
	"github.com/duka-pos/api/internal/platform/httpx"
	"github.com/duka-pos/api/internal/services"
)

const maxCategoryBodySize = 4 * 1024

// CategoryHandlers exposes the tenant category directory endpoints.
type CategoryHandlers struct {
	shops   services.ShopService
	catalog services.CatalogService
}

func NewCategoryHandlers(shops services.ShopService, catalog services.CatalogService) *CategoryHandlers {
	return &CategoryHandlers{shops: shops, catalog: catalog}
}

// Routes wires the /shops/{shopID}/categories endpoints onto the provided router.
func (h *CategoryHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Delete("/{categoryID}", h.delete)
}

type categoryPayload struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt,omitempty"`
}

func buildCategoryPayload(category domain.Category) categoryPayload {
	return categoryPayload{
		ID:        category.ID,
		Name:      category.Name,
		CreatedAt: formatTime(category.CreatedAt),
	}
}

func (h *CategoryHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shopID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	categories, err := h.catalog.ListCategories(ctx, shopID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	items := make([]categoryPayload, 0, len(categories))
	for _, category := range categories {
		items = append(items, buildCategoryPayload(category))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": items})
}

type createCategoryRequest struct {
	Name string `json:"name"`
}

func (h *CategoryHandlers) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shopID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxCategoryBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req createCategoryRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", fmt.Sprintf("invalid JSON payload: %v", err), http.StatusBadRequest))
		return
	}

	category, err := h.catalog.CreateCategory(ctx, shopID, req.Name)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildCategoryPayload(category))
}

func (h *CategoryHandlers) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shopID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	if err := h.catalog.DeleteCategory(ctx, shopID, chi.URLParam(r, "categoryID")); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CategoryHandlers) authorize(w http.ResponseWriter, r *http.Request) (string, bool) {
	ctx := r.Context()
	if h.catalog == nil || h.shops == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return "", false
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return "", false
	}
	shopID := chi.URLParam(r, "shopID")
	if _, err := h.shops.Authorize(ctx, shopID, identity.UID); err != nil {
		writeServiceError(ctx, w, err)
		return "", false
	}
	return shopID, true
}
