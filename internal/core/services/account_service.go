package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/altpay/payments-service/internal/apperrors"
	"github.com/altpay/payments-service/internal/core/domain"
	portsrepo "github.com/altpay/payments-service/internal/core/ports/repositories"
	portssvc "github.com/altpay/payments-service/internal/core/ports/services"
	"github.com/altpay/payments-service/internal/dto"
	"github.com/altpay/payments-service/internal/events"
	"github.com/shopspring/decimal"
)

const (
	defaultWithdrawMaxRetries = 3
	withdrawRetryBaseDelay    = 25 * time.Millisecond
)

// accountService implements the AccountSvc interface. It orchestrates the
// ledger repository per request: Validate -> Lookup -> Guard -> Mutate ->
// Respond, and holds no state of its own.
type accountService struct {
	BaseService
	ledgerRepo         portsrepo.LedgerRepository
	publisher          events.Publisher
	withdrawMaxRetries int
}

// ServiceOption is a functional option for configuring the account service
type ServiceOption func(*accountService)

// WithEventPublisher adds a publisher for committed-transaction events
func WithEventPublisher(p events.Publisher) ServiceOption {
	return func(s *accountService) {
		s.publisher = p
	}
}

// WithWithdrawMaxRetries overrides the retry budget for transient withdrawal conflicts
func WithWithdrawMaxRetries(n int) ServiceOption {
	return func(s *accountService) {
		if n > 0 {
			s.withdrawMaxRetries = n
		}
	}
}

// NewAccountService creates a new account service with the provided options
func NewAccountService(repo portsrepo.LedgerRepository, options ...ServiceOption) portssvc.AccountSvc {
	svc := &accountService{
		ledgerRepo:         repo,
		withdrawMaxRetries: defaultWithdrawMaxRetries,
	}

	for _, option := range options {
		option(svc)
	}

	return svc
}

// Ensure accountService implements the AccountSvc interface
var _ portssvc.AccountSvc = (*accountService)(nil)

// lookupAccount fetches the account or reports ErrNotFound. Other use cases
// build on this so that every operation validates existence the same way.
func (s *accountService) lookupAccount(ctx context.Context, userID int64) (*domain.Account, error) {
	account, err := s.ledgerRepo.FindAccountByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.LogError(ctx, err, "Failed to find account",
				slog.Int64("user_id", userID))
		}
		return nil, err
	}
	return account, nil
}

func (s *accountService) CreateAccount(ctx context.Context, userID int64) (*dto.AccountResponse, error) {
	account, err := s.ledgerRepo.CreateAccount(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrDuplicate) {
			s.LogInfo(ctx, "Account already exists",
				slog.Int64("user_id", userID))
		} else {
			s.LogError(ctx, err, "Failed to create account",
				slog.Int64("user_id", userID))
		}
		return nil, err
	}

	s.LogInfo(ctx, "Account created successfully",
		slog.Int64("user_id", account.UserID))
	// A fresh account has no transactions, so its balance is exactly zero.
	return &dto.AccountResponse{UserID: account.UserID, Balance: decimal.Zero}, nil
}

func (s *accountService) GetAccount(ctx context.Context, userID int64) (*dto.AccountResponse, error) {
	account, err := s.lookupAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	// The balance is always recomputed from the transaction history; no cached
	// value is ever returned by this path.
	balance, err := s.ledgerRepo.SumTransactionAmounts(ctx, account.UserID)
	if err != nil {
		s.LogError(ctx, err, "Failed to resolve balance",
			slog.Int64("user_id", userID))
		return nil, err
	}

	s.LogDebug(ctx, "Account retrieved successfully",
		slog.Int64("user_id", userID),
		slog.String("balance", balance.String()))
	return &dto.AccountResponse{UserID: account.UserID, Balance: balance}, nil
}

func (s *accountService) Deposit(ctx context.Context, userID int64, amount decimal.Decimal, description *string) (*dto.TransactionResponse, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		err := fmt.Errorf("%w: deposit amount must be positive, got %s", apperrors.ErrValidation, amount.String())
		s.LogWarn(ctx, "Rejected non-positive deposit",
			slog.Int64("user_id", userID),
			slog.String("amount", amount.String()))
		return nil, err
	}

	account, err := s.lookupAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Deposits cannot overdraw, so they skip the account lock; the single
	// insert is atomic at the storage layer.
	txn, err := s.ledgerRepo.AppendTransaction(ctx, account.UserID, amount, description)
	if err != nil {
		s.LogError(ctx, err, "Failed to append deposit",
			slog.Int64("user_id", userID),
			slog.String("amount", amount.String()))
		return nil, err
	}

	s.LogInfo(ctx, "Deposit successful",
		slog.Int64("user_id", userID),
		slog.Int64("transaction_id", txn.ID),
		slog.String("amount", amount.String()))
	s.publishTransaction(ctx, txn)

	resp := dto.ToTransactionResponse(txn)
	return &resp, nil
}

func (s *accountService) Withdraw(ctx context.Context, userID int64, amount decimal.Decimal, description *string) (*dto.TransactionResponse, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		err := fmt.Errorf("%w: withdrawal amount must be positive, got %s", apperrors.ErrValidation, amount.String())
		s.LogWarn(ctx, "Rejected non-positive withdrawal",
			slog.Int64("user_id", userID),
			slog.String("amount", amount.String()))
		return nil, err
	}

	account, err := s.lookupAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	// The guarded sequence is retried only on transient conflicts; business
	// failures like insufficient funds surface immediately.
	var txn *domain.Transaction
	var lastErr error
	for attempt := 0; attempt < s.withdrawMaxRetries; attempt++ {
		if attempt > 0 {
			delay := withdrawRetryBaseDelay << (attempt - 1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		txn, lastErr = s.ledgerRepo.WithdrawWithLock(ctx, account.UserID, amount, description)
		if lastErr == nil {
			break
		}
		if !errors.Is(lastErr, apperrors.ErrSerializationConflict) {
			break
		}
		s.LogWarn(ctx, "Withdrawal hit transient conflict, retrying",
			slog.Int64("user_id", userID),
			slog.String("amount", amount.String()),
			slog.Int("attempt", attempt+1))
	}

	if lastErr != nil {
		if errors.Is(lastErr, apperrors.ErrSerializationConflict) {
			s.LogError(ctx, lastErr, "Withdrawal retry budget exhausted",
				slog.Int64("user_id", userID),
				slog.String("amount", amount.String()),
				slog.Int("attempts", s.withdrawMaxRetries))
			return nil, fmt.Errorf("%w: withdrawal for user %d after %d attempts", apperrors.ErrRetryExhausted, userID, s.withdrawMaxRetries)
		}
		if errors.Is(lastErr, apperrors.ErrInsufficientFunds) {
			s.LogWarn(ctx, "Insufficient funds for withdrawal",
				slog.Int64("user_id", userID),
				slog.String("amount", amount.String()))
		} else {
			s.LogError(ctx, lastErr, "Failed to append withdrawal",
				slog.Int64("user_id", userID),
				slog.String("amount", amount.String()))
		}
		return nil, lastErr
	}

	s.LogInfo(ctx, "Withdrawal successful",
		slog.Int64("user_id", userID),
		slog.Int64("transaction_id", txn.ID),
		slog.String("amount", amount.String()))
	s.publishTransaction(ctx, txn)

	resp := dto.ToTransactionResponse(txn)
	return &resp, nil
}

func (s *accountService) ListTransactions(ctx context.Context, userID int64) ([]dto.TransactionResponse, error) {
	account, err := s.lookupAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	transactions, err := s.ledgerRepo.ListTransactions(ctx, account.UserID)
	if err != nil {
		s.LogError(ctx, err, "Failed to list transactions",
			slog.Int64("user_id", userID))
		return nil, err
	}

	s.LogDebug(ctx, "Transactions retrieved successfully",
		slog.Int64("user_id", userID),
		slog.Int("count", len(transactions)))
	return dto.ToTransactionResponseSlice(transactions), nil
}

// publishTransaction emits a TransactionRecorded event after a commit. Event
// delivery is best effort: a publish failure is logged, never surfaced to the
// caller, since the ledger mutation is already durable.
func (s *accountService) publishTransaction(ctx context.Context, txn *domain.Transaction) {
	if s.publisher == nil {
		return
	}

	event := events.TransactionRecorded{
		TransactionID: txn.ID,
		AccountID:     txn.AccountID,
		Amount:        txn.Amount.Abs(),
		Direction:     string(txn.Direction()),
		OccurredAt:    txn.CreatedAt,
	}
	key := strconv.FormatInt(txn.AccountID, 10)
	if err := s.publisher.Publish(key, event); err != nil {
		s.LogError(ctx, err, "Failed to publish transaction event",
			slog.Int64("transaction_id", txn.ID),
			slog.Int64("account_id", txn.AccountID))
	}
}
