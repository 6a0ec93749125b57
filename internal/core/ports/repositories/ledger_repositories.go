package repositories

import (
	"context"

	"github.com/altpay/payments-service/internal/core/domain"
	"github.com/shopspring/decimal"
)

// LedgerRepository is the single owner of persisted accounts and transactions.
// Accounts are inserted once; transactions are append-only and never mutated.
type LedgerRepository interface {
	// FindAccountByUserID retrieves an account, or apperrors.ErrNotFound.
	FindAccountByUserID(ctx context.Context, userID int64) (*domain.Account, error)

	// CreateAccount inserts a new account. Duplicates are detected
	// transactionally (not by a prior read) and reported as apperrors.ErrDuplicate.
	CreateAccount(ctx context.Context, userID int64) (*domain.Account, error)

	// AppendTransaction appends a signed transaction. It is atomic and durable
	// once it returns, but does not enforce the no-overdraft invariant; that is
	// the caller's job. A missing account surfaces as apperrors.ErrNotFound.
	AppendTransaction(ctx context.Context, accountID int64, amount decimal.Decimal, description *string) (*domain.Transaction, error)

	// SumTransactionAmounts returns the sum of all transaction amounts for the
	// account, zero if none exist.
	SumTransactionAmounts(ctx context.Context, accountID int64) (decimal.Decimal, error)

	// ListTransactions returns the account's transactions in insertion order.
	ListTransactions(ctx context.Context, accountID int64) ([]domain.Transaction, error)

	// WithdrawWithLock runs the read-validate-append sequence for a withdrawal
	// under an exclusive lock scoped to the account: recompute the balance,
	// fail with apperrors.ErrInsufficientFunds if it is below amount, else
	// append a transaction of -amount. The lock is released on every exit
	// path. Transient conflicts surface as apperrors.ErrSerializationConflict.
	WithdrawWithLock(ctx context.Context, accountID int64, amount decimal.Decimal, description *string) (*domain.Transaction, error)
}
