package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/duka-pos/api/internal/domain"
	"github.com/duka-pos/api/internal/platform/httpx"
	"github.com/duka-pos/api/internal/services"
)

const maxExportBodySize = 4 * 1024

// TransactionHandlers exposes the read-only sales ledger endpoints.
type TransactionHandlers struct {
	shops services.ShopService
	sales services.SalesService
}

func NewTransactionHandlers(shops services.ShopService, sales services.SalesService) *TransactionHandlers {
	return &TransactionHandlers{shops: shops, sales: sales}
}

// Routes wires the /shops/{shopID}/transactions endpoints onto the provided router.
func (h *TransactionHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.list)
	r.Get("/summary", h.summary)
	r.Post("/export", h.export)
	r.Get("/{transactionID}", h.get)
}

type transactionItemPayload struct {
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
}

type transactionPayload struct {
	ID            string                   `json:"id"`
	Date          string                   `json:"date"`
	TotalAmount   float64                  `json:"totalAmount"`
	PaymentMethod string                   `json:"paymentMethod"`
	SellerID      string                   `json:"sellerId"`
	SellerName    string                   `json:"sellerName,omitempty"`
	CustomerID    string                   `json:"customerId,omitempty"`
	CustomerName  string                   `json:"customerName"`
	Items         []transactionItemPayload `json:"items"`
	IsDebt        bool                     `json:"isDebt"`
	AmountPaid    float64                  `json:"amountPaid"`
	AmountDue     float64                  `json:"amountDue"`
}

func buildTransactionPayload(txn domain.Transaction) transactionPayload {
	payload := transactionPayload{
		ID:            txn.ID,
		Date:          formatTime(txn.Date),
		TotalAmount:   txn.TotalAmount,
		PaymentMethod: string(txn.PaymentMethod),
		SellerID:      txn.SellerID,
		SellerName:    txn.SellerName,
		CustomerID:    txn.CustomerID,
		CustomerName:  txn.CustomerName,
		IsDebt:        txn.IsDebt,
		AmountPaid:    txn.AmountPaid,
		AmountDue:     txn.AmountDue,
	}
	for _, item := range txn.Items {
		payload.Items = append(payload.Items, transactionItemPayload{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       item.Price,
		})
	}
	return payload
}

func (h *TransactionHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shopID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	filter := services.TransactionListFilter{
		CustomerID: query.Get("customerId"),
		Pagination: services.Pagination{PageToken: query.Get("pageToken")},
	}

	if raw := strings.TrimSpace(query.Get("from")); raw != "" {
		from, err := parseQueryTime(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "from must be an RFC 3339 timestamp or YYYY-MM-DD date", http.StatusBadRequest))
			return
		}
		filter.From = from
	}
	if raw := strings.TrimSpace(query.Get("to")); raw != "" {
		to, err := parseQueryTime(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "to must be an RFC 3339 timestamp or YYYY-MM-DD date", http.StatusBadRequest))
			return
		}
		filter.To = to
	}
	if raw := strings.TrimSpace(query.Get("debt")); raw != "" {
		debt, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "debt must be a boolean", http.StatusBadRequest))
			return
		}
		filter.DebtOnly = debt
	}
	if raw := strings.TrimSpace(query.Get("pageSize")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "pageSize must be a non-negative integer", http.StatusBadRequest))
			return
		}
		filter.Pagination.PageSize = parsed
	}

	page, err := h.sales.ListTransactions(ctx, shopID, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	items := make([]transactionPayload, 0, len(page.Items))
	for _, txn := range page.Items {
		items = append(items, buildTransactionPayload(txn))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"items":         items,
		"nextPageToken": page.NextPageToken,
	})
}

func (h *TransactionHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shopID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	txn, err := h.sales.GetTransaction(ctx, shopID, chi.URLParam(r, "transactionID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildTransactionPayload(txn))
}

type summaryPayload struct {
	Date             string  `json:"date"`
	TransactionCount int     `json:"transactionCount"`
	Revenue          float64 `json:"revenue"`
	RevenueDisplay   string  `json:"revenueDisplay"`
	AmountDue        float64 `json:"amountDue"`
	DebtCount        int     `json:"debtCount"`
	ItemsSold        int     `json:"itemsSold"`
}

func (h *TransactionHandlers) summary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shopID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	var day time.Time
	if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "date must be formatted as YYYY-MM-DD", http.StatusBadRequest))
			return
		}
		day = parsed
	}

	summary, err := h.sales.DailySummary(ctx, shopID, day)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, summaryPayload{
		Date:             summary.Day.UTC().Format("2006-01-02"),
		TransactionCount: summary.TransactionCount,
		Revenue:          summary.Revenue,
		RevenueDisplay:   summary.RevenueDisplay,
		AmountDue:        summary.AmountDue,
		DebtCount:        summary.DebtCount,
		ItemsSold:        summary.ItemsSold,
	})
}

type exportRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type exportPayload struct {
	Bucket    string `json:"bucket"`
	Object    string `json:"object"`
	RowCount  int    `json:"rowCount"`
	SignedURL string `json:"signedUrl,omitempty"`
	ExpiresAt string `json:"expiresAt,omitempty"`
}

func (h *TransactionHandlers) export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	shopID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxExportBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req exportRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", fmt.Sprintf("invalid JSON payload: %v", err), http.StatusBadRequest))
		return
	}

	from, err := parseQueryTime(req.From)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "from must be an RFC 3339 timestamp or YYYY-MM-DD date", http.StatusBadRequest))
		return
	}
	to, err := parseQueryTime(req.To)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "to must be an RFC 3339 timestamp or YYYY-MM-DD date", http.StatusBadRequest))
		return
	}

	result, err := h.sales.ExportCSV(ctx, services.ExportCommand{ShopID: shopID, From: from, To: to})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, exportPayload{
		Bucket:    result.Bucket,
		Object:    result.Object,
		RowCount:  result.RowCount,
		SignedURL: result.SignedURL,
		ExpiresAt: formatTime(result.ExpiresAt),
	})
}

// parseQueryTime accepts either an RFC 3339 timestamp or a bare date.
func parseQueryTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

func (h *TransactionHandlers) authorize(w http.ResponseWriter, r *http.Request) (string, bool) {
	ctx := r.Context()
	if h.sales == nil || h.shops == nil {
		httpx.WriteError(ctx, w, httpx.NewError("ledger_unavailable", "sales service is unavailable", http.StatusServiceUnavailable))
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
