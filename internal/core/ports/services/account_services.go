package services

import (
	"context"

	"github.com/altpay/payments-service/internal/dto"
	"github.com/shopspring/decimal"
)

// AccountSvc exposes the ledger use cases to the transport layer.
type AccountSvc interface {
	// CreateAccount creates a zero-balance account for userID.
	// Fails with apperrors.ErrDuplicate if one already exists.
	CreateAccount(ctx context.Context, userID int64) (*dto.AccountResponse, error)

	// GetAccount returns the account with its balance derived from the full
	// transaction history. Fails with apperrors.ErrNotFound if absent.
	GetAccount(ctx context.Context, userID int64) (*dto.AccountResponse, error)

	// Deposit appends a positive transaction. Fails with apperrors.ErrValidation
	// for non-positive amounts and apperrors.ErrNotFound for missing accounts.
	Deposit(ctx context.Context, userID int64, amount decimal.Decimal, description *string) (*dto.TransactionResponse, error)

	// Withdraw appends a negative transaction under the per-account concurrency
	// guard. Fails with apperrors.ErrValidation, apperrors.ErrNotFound,
	// apperrors.ErrInsufficientFunds, or apperrors.ErrRetryExhausted when a
	// transient conflict persists past the retry budget.
	Withdraw(ctx context.Context, userID int64, amount decimal.Decimal, description *string) (*dto.TransactionResponse, error)

	// ListTransactions returns all transactions in insertion order, with
	// direction derived from the sign and amounts normalized to absolute value.
	ListTransactions(ctx context.Context, userID int64) ([]dto.TransactionResponse, error)
}

// ServiceContainer bundles the services the route registration needs.
type ServiceContainer struct {
	Account AccountSvc
}
