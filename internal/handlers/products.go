package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/duka-pos/api/internal/domain"
	"github.com/duka-pos/api/internal/platform/httpx"
	"github.com/duka-pos/api/internal/services"
)

const maxProductBodySize = 32 * 1024

// ProductHandlers exposes the tenant product catalog endpoints.
type ProductHandlers struct {
	shops   services.ShopService
	catalog services.CatalogService
}

// NewProductHandlers constructs handlers enforcing shop membership before
// invoking the catalog service.
func NewProductHandlers(shops services.ShopService, catalog services.CatalogService) *ProductHandlers {
	return &ProductHandlers{shops: shops, catalog: catalog}
}

// Routes wires the /shops/{shopID}/products endpoints onto the provided router.
func (h *ProductHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/low-stock", h.lowStock)
	r.Get("/{productID}", h.get)
	r.Put("/{productID}", h.update)
	r.Delete("/{productID}", h.delete)
	r.Post("/{productID}/restock", h.restock)
}

type productVariantPayload struct {
	Name            string  `json:"name"`
	Value           string  `json:"value"`
	AdditionalPrice float64 `json:"additionalPrice"`
}

type productPayload struct {
	ID                string                  `json:"id"`
	Name              string                  `json:"name"`
	Description       string                  `json:"description,omitempty"`
	SalesPrice        float64                 `json:"salesPrice"`
	PurchasePrice     float64                 `json:"purchasePrice"`
	Quantity          int                     `json:"quantity"`
	InitialQuantity   int                     `json:"initialQuantity"`
	LowStockThreshold int                     `json:"lowStockThreshold,omitempty"`
	LowOnStock        bool                    `json:"lowOnStock"`
	CategoryID        string                  `json:"categoryId,omitempty"`
	Unit              string                  `json:"unit,omitempty"`
	Code              string                  `json:"code,omitempty"`
	Variants          []productVariantPayload `json:"variants,omitempty"`
	CreatedAt         string                  `json:"createdAt,omitempty"`
	UpdatedAt         string                  `json:"updatedAt,omitempty"`
}

type productRequest struct {
	Name              string                  `json:"name"`
	Description       string                  `json:"description"`
	SalesPrice        float64                 `json:"salesPrice"`
	PurchasePrice     float64                 `json:"purchasePrice"`
	Quantity          int                     `json:"quantity"`
	LowStockThreshold int                     `json:"lowStockThreshold"`
	CategoryID        string                  `json:"categoryId"`
	Unit              string                  `json:"unit"`
	Code              string                  `json:"code"`
	Variants          []productVariantPayload `json:"variants"`
}

func buildProductPayload(product domain.Product) productPayload {
	payload := productPayload{
		ID:                product.ID,
		Name:              product.Name,
		Description:       product.Description,
		SalesPrice:        product.SalesPrice,
		PurchasePrice:     product.PurchasePrice,
		Quantity:          product.Quantity,
		InitialQuantity:   product.InitialQuantity,
		LowStockThreshold: product.LowStockThreshold,
		LowOnStock:        product.LowOnStock(),
		CategoryID:        product.CategoryID,
		Unit:              product.Unit,
		Code:              product.Code,
		CreatedAt:         formatTime(product.CreatedAt),
		UpdatedAt:         formatTime(product.UpdatedAt),
	}
	for _, v := range product.Variants {
		payload.Variants = append(payload.Variants, productVariantPayload{
			Name:            v.Name,
			Value:           v.Value,
			AdditionalPrice: v.AdditionalPrice,
		})
	}
	return payload
}

func (h *ProductHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shopID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	if code := strings.TrimSpace(query.Get("code")); code != "" {
		product, err := h.catalog.GetProductByCode(ctx, shopID, code)
		if err != nil {
			writeServiceError(ctx, w, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, map[string]any{
			"items": []productPayload{buildProductPayload(product)},
		})
		return
	}

	pageSize := 0
	if raw := strings.TrimSpace(query.Get("pageSize")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "pageSize must be a non-negative integer", http.StatusBadRequest))
			return
		}
		pageSize = parsed
	}

	page, err := h.catalog.ListProducts(ctx, shopID, services.ProductListFilter{
		CategoryID: query.Get("category"),
		NamePrefix: query.Get("search"),
		Pagination: services.Pagination{PageSize: pageSize, PageToken: query.Get("pageToken")},
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	items := make([]productPayload, 0, len(page.Items))
	for _, product := range page.Items {
		items = append(items, buildProductPayload(product))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"items":         items,
		"nextPageToken": page.NextPageToken,
	})
}

func (h *ProductHandlers) lowStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shopID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	products, err := h.catalog.ListLowStock(ctx, shopID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	items := make([]productPayload, 0, len(products))
	for _, product := range products {
		items = append(items, buildProductPayload(product))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": items})
}

func (h *ProductHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shopID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	product, err := h.catalog.GetProduct(ctx, shopID, chi.URLParam(r, "productID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildProductPayload(product))
}

func (h *ProductHandlers) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shopID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	req, ok := h.decodeProductRequest(w, r)
	if !ok {
		return
	}

	product, err := h.catalog.CreateProduct(ctx, services.CreateProductCommand{
		ShopID:            shopID,
		Name:              req.Name,
		Description:       req.Description,
		SalesPrice:        req.SalesPrice,
		PurchasePrice:     req.PurchasePrice,
		Quantity:          req.Quantity,
		LowStockThreshold: req.LowStockThreshold,
		CategoryID:        req.CategoryID,
		Unit:              req.Unit,
		Code:              req.Code,
		Variants:          variantsFromPayload(req.Variants),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildProductPayload(product))
}

func (h *ProductHandlers) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shopID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	req, ok := h.decodeProductRequest(w, r)
	if !ok {
		return
	}

	product, err := h.catalog.UpdateProduct(ctx, services.UpdateProductCommand{
		ShopID:            shopID,
		ProductID:         chi.URLParam(r, "productID"),
		Name:              req.Name,
		Description:       req.Description,
		SalesPrice:        req.SalesPrice,
		PurchasePrice:     req.PurchasePrice,
		Quantity:          req.Quantity,
		LowStockThreshold: req.LowStockThreshold,
		CategoryID:        req.CategoryID,
		Unit:              req.Unit,
		Code:              req.Code,
		Variants:          variantsFromPayload(req.Variants),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildProductPayload(product))
}

func (h *ProductHandlers) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shopID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	if err := h.catalog.DeleteProduct(ctx, shopID, chi.URLParam(r, "productID")); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type restockRequest struct {
	Quantity int `json:"quantity"`
}

func (h *ProductHandlers) restock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shopID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxProductBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req restockRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", fmt.Sprintf("invalid JSON payload: %v", err), http.StatusBadRequest))
		return
	}

	product, err := h.catalog.Restock(ctx, services.RestockCommand{
		ShopID:    shopID,
		ProductID: chi.URLParam(r, "productID"),
		Quantity:  req.Quantity,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildProductPayload(product))
}

func (h *ProductHandlers) decodeProductRequest(w http.ResponseWriter, r *http.Request) (productRequest, bool) {
	ctx := r.Context()
	body, err := readLimitedBody(r, maxProductBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return productRequest{}, false
	}
	var req productRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", fmt.Sprintf("invalid JSON payload: %v", err), http.StatusBadRequest))
		return productRequest{}, false
	}
	return req, true
}

// authorize resolves the seller identity and verifies shop membership.
func (h *ProductHandlers) authorize(w http.ResponseWriter, r *http.Request) (string, bool) {
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

func variantsFromPayload(payloads []productVariantPayload) []services.ProductVariant {
	if len(payloads) == 0 {
		return nil
	}
	variants := make([]services.ProductVariant, 0, len(payloads))
	for _, p := range payloads {
		variants = append(variants, services.ProductVariant{
			Name:            p.Name,
			Value:           p.Value,
			AdditionalPrice: p.AdditionalPrice,
		})
	}
	return variants
}
