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

const maxCustomerBodySize = 16 * 1024

// CustomerHandlers exposes the tenant customer directory endpoints.
type CustomerHandlers struct {
	shops     services.ShopService
	customers services.CustomerService
}

func NewCustomerHandlers(shops services.ShopService, customers services.CustomerService) *CustomerHandlers {
	return &CustomerHandlers{shops: shops, customers: customers}
}

// Routes wires the /shops/{shopID}/customers endpoints onto the provided router.
func (h *CustomerHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{customerID}", h.get)
	r.Put("/{customerID}", h.update)
	r.Delete("/{customerID}", h.delete)
}

type customerPayload struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Email      string  `json:"email,omitempty"`
	Phone      string  `json:"phone,omitempty"`
	AvatarURL  string  `json:"avatarUrl,omitempty"`
	Notes      string  `json:"notes,omitempty"`
	TotalSpent float64 `json:"totalSpent"`
	LastSeen   string  `json:"lastSeen,omitempty"`
	CreatedAt  string  `json:"createdAt,omitempty"`
}

type customerRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	AvatarURL string `json:"avatarUrl"`
	Notes     string `json:"notes"`
}

func buildCustomerPayload(customer domain.Customer) customerPayload {
	return customerPayload{
		ID:         customer.ID,
		Name:       customer.Name,
		Email:      customer.Email,
		Phone:      customer.Phone,
		AvatarURL:  customer.AvatarURL,
		Notes:      customer.Notes,
		TotalSpent: customer.TotalSpent,
		LastSeen:   formatTime(customer.LastSeen),
		CreatedAt:  formatTime(customer.CreatedAt),
	}
}

func (h *CustomerHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shopID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	pageSize := 0
	if raw := strings.TrimSpace(query.Get("pageSize")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "pageSize must be a non-negative integer", http.StatusBadRequest))
			return
		}
		pageSize = parsed
	}

	page, err := h.customers.ListCustomers(ctx, shopID, services.CustomerListFilter{
		NamePrefix: query.Get("search"),
		Pagination: services.Pagination{PageSize: pageSize, PageToken: query.Get("pageToken")},
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	items := make([]customerPayload, 0, len(page.Items))
	for _, customer := range page.Items {
		items = append(items, buildCustomerPayload(customer))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"items":         items,
		"nextPageToken": page.NextPageToken,
	})
}

func (h *CustomerHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shopID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	customer, err := h.customers.GetCustomer(ctx, shopID, chi.URLParam(r, "customerID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCustomerPayload(customer))
}

func (h *CustomerHandlers) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shopID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	req, ok := h.decodeCustomerRequest(w, r)
	if !ok {
		return
	}

	customer, err := h.customers.CreateCustomer(ctx, services.CreateCustomerCommand{
		ShopID:    shopID,
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		AvatarURL: req.AvatarURL,
		Notes:     req.Notes,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildCustomerPayload(customer))
}

func (h *CustomerHandlers) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shopID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	req, ok := h.decodeCustomerRequest(w, r)
	if !ok {
		return
	}

	customer, err := h.customers.UpdateCustomer(ctx, services.UpdateCustomerCommand{
		ShopID:     shopID,
		CustomerID: chi.URLParam(r, "customerID"),
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		AvatarURL:  req.AvatarURL,
		Notes:      req.Notes,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCustomerPayload(customer))
}

func (h *CustomerHandlers) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shopID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	if err := h.customers.DeleteCustomer(ctx, shopID, chi.URLParam(r, "customerID")); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CustomerHandlers) decodeCustomerRequest(w http.ResponseWriter, r *http.Request) (customerRequest, bool) {
	ctx := r.Context()
	body, err := readLimitedBody(r, maxCustomerBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return customerRequest{}, false
	}
	var req customerRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", fmt.Sprintf("invalid JSON payload: %v", err), http.StatusBadRequest))
		return customerRequest{}, false
	}
	return req, true
}

func (h *CustomerHandlers) authorize(w http.ResponseWriter, r *http.Request) (string, bool) {
	ctx := r.Context()
	if h.customers == nil || h.shops == nil {
		httpx.WriteError(ctx, w, httpx.NewError("customers_unavailable", "customer service is unavailable", http.StatusServiceUnavailable))
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
