package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	domain "github.com/duka-pos/api/internal/domain"
	"github.com/duka-pos/api/internal/platform/textutil"
	"github.com/duka-pos/api/internal/repositories"
)

// ExportUploader stores generated export files and issues download URLs.
type ExportUploader interface {
	Bucket() string
	Write(ctx context.Context, object, contentType string, payload []byte) error
	SignedURL(object string) (string, time.Time, error)
}

// SalesServiceDeps bundles the collaborators required to construct a sales service.
type SalesServiceDeps struct {
	Transactions repositories.TransactionRepository
	Exports      ExportUploader
	Currency     string
	Clock        func() time.Time
}

type salesService struct {
	transactions repositories.TransactionRepository
	exports      ExportUploader
	currency     string
	clock        func() time.Time
}

// NewSalesService wires dependencies into a concrete SalesService implementation.
// The export uploader is optional; without it ExportCSV is unavailable.
func NewSalesService(deps SalesServiceDeps) (SalesService, error) {
	if deps.Transactions == nil {
		return nil, errors.New("sales service: transaction repository is required")
	}
	currency := strings.TrimSpace(deps.Currency)
	if currency == "" {
		return nil, errors.New("sales service: currency is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &salesService{
		transactions: deps.Transactions,
		exports:      deps.Exports,
		currency:     currency,
		clock:        func() time.Time { return clock().UTC() },
	}, nil
}

func (s *salesService) GetTransaction(ctx context.Context, shopID, transactionID string) (Transaction, error) {
	if strings.TrimSpace(transactionID) == "" {
		return Transaction{}, fmt.Errorf("%w: transaction id is required", ErrInvalidInput)
	}
	txn, err := s.transactions.FindByID(ctx, shopID, transactionID)
	if err != nil {
		return Transaction{}, mapNotFound(err, ErrTransactionNotFound)
	}
	return txn, nil
}

func (s *salesService) ListTransactions(ctx context.Context, shopID string, filter TransactionListFilter) (domain.CursorPage[Transaction], error) {
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return domain.CursorPage[Transaction]{}, fmt.Errorf("%w: range end precedes start", ErrInvalidInput)
	}
	return s.transactions.List(ctx, shopID, repositories.TransactionListFilter{
		From:       filter.From,
		To:         filter.To,
		DebtOnly:   filter.DebtOnly,
		CustomerID: strings.TrimSpace(filter.CustomerID),
		Pagination: filter.Pagination,
	})
}

// DailySummary aggregates one calendar day (UTC) of ledger activity.
func (s *salesService) DailySummary(ctx context.Context, shopID string, day time.Time) (SalesSummary, error) {
	if day.IsZero() {
		day = s.clock()
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	txns, err := s.transactions.ListRange(ctx, shopID, start, end)
	if err != nil {
		return SalesSummary{}, err
	}

	summary := SalesSummary{Day: start, TransactionCount: len(txns)}
	for _, txn := range txns {
		summary.Revenue += txn.TotalAmount
		summary.AmountDue += txn.AmountDue
		if txn.IsDebt {
			summary.DebtCount++
		}
		for _, item := range txn.Items {
			summary.ItemsSold += item.Quantity
		}
	}
	summary.Revenue = domain.RoundMoney(summary.Revenue)
	summary.AmountDue = domain.RoundMoney(summary.AmountDue)
	summary.RevenueDisplay = textutil.FormatAmount(s.currency, summary.Revenue)
	return summary, nil
}

// ExportCSV writes the date range to the exports bucket as CSV and returns a
// signed download URL when signing credentials are configured.
func (s *salesService) ExportCSV(ctx context.Context, cmd ExportCommand) (ExportResult, error) {
	if s.exports == nil {
		return ExportResult{}, fmt.Errorf("%w: exports are not configured", ErrInvalidInput)
	}
	shopID := strings.TrimSpace(cmd.ShopID)
	if shopID == "" {
		return ExportResult{}, fmt.Errorf("%w: shop id is required", ErrInvalidInput)
	}
	if cmd.From.IsZero() || cmd.To.IsZero() {
		return ExportResult{}, fmt.Errorf("%w: export range is required", ErrInvalidInput)
	}
	if cmd.To.Before(cmd.From) {
		return ExportResult{}, fmt.Errorf("%w: range end precedes start", ErrInvalidInput)
	}

	txns, err := s.transactions.ListRange(ctx, shopID, cmd.From, cmd.To)
	if err != nil {
		return ExportResult{}, err
	}

	payload, rows, err := renderTransactionsCSV(txns, s.currency)
	if err != nil {
		return ExportResult{}, err
	}

	object := fmt.Sprintf("exports/%s/sales_%s_%s_%d.csv",
		shopID,
		cmd.From.UTC().Format("20060102"),
		cmd.To.UTC().Format("20060102"),
		s.clock().UnixMilli())
	if err := s.exports.Write(ctx, object, "text/csv", payload); err != nil {
		return ExportResult{}, err
	}

	result := ExportResult{
		Bucket:   s.exports.Bucket(),
		Object:   object,
		RowCount: rows,
	}
	if url, expires, err := s.exports.SignedURL(object); err == nil {
		result.SignedURL = url
		result.ExpiresAt = expires
	}
	return result, nil
}

func renderTransactionsCSV(txns []Transaction, currency string) ([]byte, int, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"transaction_id", "date", "payment_method", "seller", "customer", "items", "total", "amount_paid", "amount_due", "total_display"}
	if err := w.Write(header); err != nil {
		return nil, 0, fmt.Errorf("sales: write csv header: %w", err)
	}

	rows := 0
	for _, txn := range txns {
		items := make([]string, 0, len(txn.Items))
		for _, item := range txn.Items {
			items = append(items, fmt.Sprintf("%s x%d", item.ProductName, item.Quantity))
		}
		record := []string{
			txn.ID,
			txn.Date.UTC().Format(time.RFC3339),
			string(txn.PaymentMethod),
			txn.SellerName,
			txn.CustomerName,
			strings.Join(items, "; "),
			strconv.FormatFloat(txn.TotalAmount, 'f', 2, 64),
			strconv.FormatFloat(txn.AmountPaid, 'f', 2, 64),
			strconv.FormatFloat(txn.AmountDue, 'f', 2, 64),
			textutil.FormatAmount(currency, txn.TotalAmount),
		}
		if err := w.Write(record); err != nil {
			return nil, 0, fmt.Errorf("sales: write csv row: %w", err)
		}
		rows++
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, 0, fmt.Errorf("sales: flush csv: %w", err)
	}
	return buf.Bytes(), rows, nil
}
