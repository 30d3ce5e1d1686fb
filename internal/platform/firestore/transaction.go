package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
)

const (
	txDefaultAttempts = 5
	txDefaultTimeout  = 15 * time.Second
)

// TxFunc is the body of a Firestore transaction.
type TxFunc func(ctx context.Context, tx *firestore.Transaction) error

// TxOption tunes retry and deadline behaviour for a single transaction.
type TxOption func(*txSettings)

type txSettings struct {
	attempts int
	timeout  time.Duration
}

// WithTxAttempts caps the number of commit attempts.
func WithTxAttempts(attempts int) TxOption {
	return func(s *txSettings) {
		if attempts > 0 {
			s.attempts = attempts
		}
	}
}

// WithTxTimeout bounds the wall-clock time of the whole transaction.
func WithTxTimeout(timeout time.Duration) TxOption {
	return func(s *txSettings) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// RunTransaction runs fn inside a Firestore transaction and wraps any failure
// with repository error semantics. The transaction deadline is only tightened,
// never extended past a deadline already present on ctx.
func RunTransaction(ctx context.Context, client *firestore.Client, fn TxFunc, opts ...TxOption) error {
	if client == nil {
		return WrapError("transaction", errors.New("firestore: client is nil"))
	}
	if fn == nil {
		return WrapError("transaction", errors.New("firestore: transaction function is nil"))
	}

	settings := txSettings{attempts: txDefaultAttempts, timeout: txDefaultTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(&settings)
		}
	}

	if settings.timeout > 0 {
		deadline, ok := ctx.Deadline()
		if !ok || time.Until(deadline) > settings.timeout {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, settings.timeout)
			defer cancel()
		}
	}

	var txOpts []firestore.TransactionOption
	if settings.attempts > 0 {
		txOpts = append(txOpts, firestore.MaxAttempts(settings.attempts))
	}

	err := client.RunTransaction(ctx, func(txCtx context.Context, tx *firestore.Transaction) error {
		return fn(txCtx, tx)
	}, txOpts...)
	return WrapError("transaction", err)
}
