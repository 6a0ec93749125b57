package pgsql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/altpay/payments-service/internal/apperrors"
	"github.com/altpay/payments-service/internal/core/domain"
	portsrepo "github.com/altpay/payments-service/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PgxLedgerRepository persists accounts and their append-only transaction log
// in PostgreSQL. Withdrawals take a per-account advisory lock so that the
// read-validate-append sequence is exclusive per account while unrelated
// accounts proceed in parallel.
type PgxLedgerRepository struct {
	BaseRepository
}

// NewLedgerRepository creates a new repository for ledger data.
func NewLedgerRepository(pool *pgxpool.Pool) portsrepo.LedgerRepository {
	return &PgxLedgerRepository{BaseRepository: BaseRepository{Pool: pool}}
}

// Ensure PgxLedgerRepository implements portsrepo.LedgerRepository
var _ portsrepo.LedgerRepository = (*PgxLedgerRepository)(nil)

// classifyPgError maps PostgreSQL error codes onto the application taxonomy.
// 40001 (serialization_failure) and 40P01 (deadlock_detected) are transient
// and retryable; constraint violations map to their business meaning.
func classifyPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "40001", "40P01":
		return fmt.Errorf("%w: %s", apperrors.ErrSerializationConflict, pgErr.Message)
	case "23505":
		return fmt.Errorf("%w: %s", apperrors.ErrDuplicate, pgErr.Message)
	case "23503":
		// FK violation on transactions.account_id means the account is gone.
		return fmt.Errorf("%w: %s", apperrors.ErrNotFound, pgErr.Message)
	}
	return err
}

// FindAccountByUserID retrieves an account by its user ID.
func (r *PgxLedgerRepository) FindAccountByUserID(ctx context.Context, userID int64) (*domain.Account, error) {
	query := `
		SELECT user_id, created_at
		FROM accounts
		WHERE user_id = $1;
	`
	var account domain.Account
	err := r.Pool.QueryRow(ctx, query, userID).Scan(&account.UserID, &account.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find account for user %d: %w", userID, err)
	}
	return &account, nil
}

// CreateAccount inserts a new account. The unique constraint on user_id is the
// authoritative duplicate check, so concurrent creates cannot both succeed.
func (r *PgxLedgerRepository) CreateAccount(ctx context.Context, userID int64) (*domain.Account, error) {
	query := `
		INSERT INTO accounts (user_id)
		VALUES ($1)
		RETURNING user_id, created_at;
	`
	var account domain.Account
	err := r.Pool.QueryRow(ctx, query, userID).Scan(&account.UserID, &account.CreatedAt)
	if err != nil {
		if classified := classifyPgError(err); errors.Is(classified, apperrors.ErrDuplicate) {
			return nil, fmt.Errorf("%w: account for user %d already exists", apperrors.ErrDuplicate, userID)
		}
		return nil, fmt.Errorf("failed to create account for user %d: %w", userID, err)
	}
	return &account, nil
}

// AppendTransaction appends a signed transaction as a single atomic insert.
// It deliberately does not check the resulting balance; withdrawals go through
// WithdrawWithLock instead.
func (r *PgxLedgerRepository) AppendTransaction(ctx context.Context, accountID int64, amount decimal.Decimal, description *string) (*domain.Transaction, error) {
	txn, err := insertTransaction(ctx, r.Pool, accountID, amount, description)
	if err != nil {
		if classified := classifyPgError(err); errors.Is(classified, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: account %d does not exist", apperrors.ErrNotFound, accountID)
		}
		return nil, fmt.Errorf("failed to append transaction for account %d: %w", accountID, err)
	}
	return txn, nil
}

// rowQuerier is satisfied by both *pgxpool.Pool and pgx.Tx.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertTransaction(ctx context.Context, q rowQuerier, accountID int64, amount decimal.Decimal, description *string) (*domain.Transaction, error) {
	query := `
		INSERT INTO transactions (account_id, amount, description)
		VALUES ($1, $2, $3)
		RETURNING id, account_id, amount, description, created_at;
	`
	var desc sql.NullString
	if description != nil {
		desc = sql.NullString{String: *description, Valid: true}
	}

	var txn domain.Transaction
	var scannedDesc sql.NullString
	err := q.QueryRow(ctx, query, accountID, amount, desc).Scan(
		&txn.ID,
		&txn.AccountID,
		&txn.Amount,
		&scannedDesc,
		&txn.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if scannedDesc.Valid {
		txn.Description = &scannedDesc.String
	}
	return &txn, nil
}

// SumTransactionAmounts returns the exact sum of an account's transaction
// amounts, zero if the account has no transactions.
func (r *PgxLedgerRepository) SumTransactionAmounts(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	return sumAmounts(ctx, r.Pool, accountID)
}

func sumAmounts(ctx context.Context, q rowQuerier, accountID int64) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE account_id = $1;
	`
	var sum decimal.Decimal
	if err := q.QueryRow(ctx, query, accountID).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum transaction amounts for account %d: %w", accountID, err)
	}
	return sum, nil
}

// ListTransactions retrieves the account's transactions ordered by ID, which
// equals commit order.
func (r *PgxLedgerRepository) ListTransactions(ctx context.Context, accountID int64) ([]domain.Transaction, error) {
	query := `
		SELECT id, account_id, amount, description, created_at
		FROM transactions
		WHERE account_id = $1
		ORDER BY id;
	`
	rows, err := r.Pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions for account %d: %w", accountID, err)
	}
	defer rows.Close()

	transactions := []domain.Transaction{}
	for rows.Next() {
		var txn domain.Transaction
		var desc sql.NullString
		err := rows.Scan(
			&txn.ID,
			&txn.AccountID,
			&txn.Amount,
			&desc,
			&txn.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction row for account %d: %w", accountID, err)
		}
		if desc.Valid {
			txn.Description = &desc.String
		}
		transactions = append(transactions, txn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction rows for account %d: %w", accountID, err)
	}

	return transactions, nil
}

// WithdrawWithLock runs the withdrawal's read-validate-append sequence inside
// one database transaction holding pg_advisory_xact_lock keyed by the account
// ID. The lock scope is the single account, so withdrawals on distinct
// accounts never serialize against each other. The lock is dropped
// automatically at commit or rollback, including on context cancellation, and
// a rolled-back transaction leaves no partial record behind.
func (r *PgxLedgerRepository) WithdrawWithLock(ctx context.Context, accountID int64, amount decimal.Decimal, description *string) (*domain.Transaction, error) {
	tx, err := r.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Rollback(ctx, tx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1);`, accountID); err != nil {
		return nil, fmt.Errorf("failed to acquire account lock for %d: %w", accountID, classifyPgError(err))
	}

	balance, err := sumAmounts(ctx, tx, accountID)
	if err != nil {
		return nil, classifyPgError(err)
	}

	if balance.LessThan(amount) {
		return nil, fmt.Errorf("%w: balance %s is below withdrawal amount %s for account %d",
			apperrors.ErrInsufficientFunds, balance.String(), amount.String(), accountID)
	}

	txn, err := insertTransaction(ctx, tx, accountID, amount.Neg(), description)
	if err != nil {
		if classified := classifyPgError(err); errors.Is(classified, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: account %d does not exist", apperrors.ErrNotFound, accountID)
		}
		return nil, fmt.Errorf("failed to append withdrawal for account %d: %w", accountID, classifyPgError(err))
	}

	if err := r.Commit(ctx, tx); err != nil {
		return nil, classifyPgError(err)
	}

	return txn, nil
}
