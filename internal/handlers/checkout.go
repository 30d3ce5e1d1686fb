package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	domain "github.com/duka-pos/api/internal/domain"
	"github.com/duka-pos/api/internal/platform/httpx"
	"github.com/duka-pos/api/internal/services"
)

const maxCheckoutBodySize = 64 * 1024

// CheckoutHandlers exposes the sale commit endpoint.
type CheckoutHandlers struct {
	shops    services.ShopService
	checkout services.CheckoutService
}

func NewCheckoutHandlers(shops services.ShopService, checkout services.CheckoutService) *CheckoutHandlers {
	return &CheckoutHandlers{shops: shops, checkout: checkout}
}

// Routes wires the /shops/{shopID}/checkout endpoint onto the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.commit)
}

type checkoutVariantPayload struct {
	Name            string  `json:"name"`
	Value           string  `json:"value"`
	AdditionalPrice float64 `json:"additionalPrice"`
}

type checkoutLinePayload struct {
	ProductID string                   `json:"productId"`
	Quantity  int                      `json:"quantity"`
	Variants  []checkoutVariantPayload `json:"variants"`
}

type checkoutRequest struct {
	Lines         []checkoutLinePayload `json:"lines"`
	PaymentMethod string                `json:"paymentMethod"`
	CustomerID    string                `json:"customerId"`
	AmountPaid    float64               `json:"amountPaid"`
}

type checkoutItemPayload struct {
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
}

type checkoutResponse struct {
	TransactionID string                `json:"transactionId"`
	Date          string                `json:"date"`
	PaymentMethod string                `json:"paymentMethod"`
	CustomerName  string                `json:"customerName"`
	Items         []checkoutItemPayload `json:"items"`
	Total         float64               `json:"total"`
	IsDebt        bool                  `json:"isDebt"`
	AmountPaid    float64               `json:"amountPaid"`
	AmountDue     float64               `json:"amountDue"`
	LowStock      []productPayload      `json:"lowStock,omitempty"`
}

func (h *CheckoutHandlers) commit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil || h.shops == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	shopID := chi.URLParam(r, "shopID")
	if _, err := h.shops.Authorize(ctx, shopID, identity.UID); err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	body, err := readLimitedBody(r, maxCheckoutBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req checkoutRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", fmt.Sprintf("invalid JSON payload: %v", err), http.StatusBadRequest))
		return
	}

	method, valid := domain.ParsePaymentMethod(req.PaymentMethod)
	if !valid {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_payment_method", fmt.Sprintf("unsupported payment method %q", req.PaymentMethod), http.StatusBadRequest))
		return
	}

	cart := domain.Cart{
		ShopID:        shopID,
		CustomerID:    req.CustomerID,
		PaymentMethod: method,
		AmountPaid:    req.AmountPaid,
	}
	for _, line := range req.Lines {
		cartLine := domain.CartLine{ProductID: line.ProductID, Quantity: line.Quantity}
		for _, v := range line.Variants {
			cartLine.Variants = append(cartLine.Variants, domain.VariantSelection{
				Name:            v.Name,
				Value:           v.Value,
				AdditionalPrice: v.AdditionalPrice,
			})
		}
		cart.Lines = append(cart.Lines, cartLine)
	}

	result, err := h.checkout.Checkout(ctx, services.CheckoutCommand{
		ShopID:     shopID,
		Cart:       cart,
		SellerID:   identity.UID,
		SellerName: identity.Name,
		AmountPaid: req.AmountPaid,
	})
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, buildCheckoutResponse(result))
}

func buildCheckoutResponse(result services.CheckoutResult) checkoutResponse {
	txn := result.Transaction
	resp := checkoutResponse{
		TransactionID: txn.ID,
		Date:          formatTime(txn.Date),
		PaymentMethod: string(txn.PaymentMethod),
		CustomerName:  txn.CustomerName,
		Total:         txn.TotalAmount,
		IsDebt:        txn.IsDebt,
		AmountPaid:    txn.AmountPaid,
		AmountDue:     txn.AmountDue,
	}
	for _, item := range txn.Items {
		resp.Items = append(resp.Items, checkoutItemPayload{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       item.Price,
		})
	}
	for _, product := range result.LowStock {
		resp.LowStock = append(resp.LowStock, buildProductPayload(product))
	}
	return resp
}

// writeCheckoutError maps the commit failure modes, surfacing stock shortfalls
// with enough detail for the client to adjust the cart.
func writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	var stockErr *services.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", stockErr.Error(), http.StatusConflict).
			WithDetails(map[string]any{
				"productId": stockErr.ProductID,
				"requested": stockErr.Requested,
				"available": stockErr.Available,
			}))
	case errors.Is(err, services.ErrEmptyCart):
		httpx.WriteError(ctx, w, httpx.NewError("empty_cart", "cart has no lines to commit", http.StatusBadRequest))
	case errors.Is(err, services.ErrInvalidPaymentState):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_payment_state", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrCommitFailure):
		httpx.WriteError(ctx, w, httpx.NewError("commit_failed", "sale could not be committed, retry the checkout", http.StatusServiceUnavailable))
	default:
		writeServiceError(ctx, w, err)
	}
}
