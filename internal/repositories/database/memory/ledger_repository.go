package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/altpay/payments-service/internal/apperrors"
	"github.com/altpay/payments-service/internal/core/domain"
	portsrepo "github.com/altpay/payments-service/internal/core/ports/repositories"
	"github.com/shopspring/decimal"
)

// MemoryLedgerRepository is an in-memory implementation of the ledger store,
// used for local development and tests. It is safe for concurrent use: the
// account registry and transaction log are guarded by a store-wide mutex,
// while withdrawals additionally hold a lazily-created per-account mutex for
// the whole read-validate-append sequence, mirroring the advisory-lock
// behavior of the PostgreSQL implementation.
type MemoryLedgerRepository struct {
	mu       sync.Mutex
	accounts map[int64]domain.Account
	txns     map[int64][]domain.Transaction
	nextID   int64

	// Per-account lock table; created lazily, never removed.
	lockMu sync.Mutex
	locks  map[int64]*sync.Mutex
}

// NewLedgerRepository creates an empty in-memory ledger repository.
func NewLedgerRepository() *MemoryLedgerRepository {
	return &MemoryLedgerRepository{
		accounts: make(map[int64]domain.Account),
		txns:     make(map[int64][]domain.Transaction),
		locks:    make(map[int64]*sync.Mutex),
	}
}

// Ensure MemoryLedgerRepository implements portsrepo.LedgerRepository
var _ portsrepo.LedgerRepository = (*MemoryLedgerRepository)(nil)

func (m *MemoryLedgerRepository) accountLock(accountID int64) *sync.Mutex {
	m.lockMu.Lock()
	defer m.lockMu.Unlock()

	if _, exists := m.locks[accountID]; !exists {
		m.locks[accountID] = &sync.Mutex{}
	}
	return m.locks[accountID]
}

// FindAccountByUserID retrieves an account by its user ID.
func (m *MemoryLedgerRepository) FindAccountByUserID(ctx context.Context, userID int64) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[userID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &account, nil
}

// CreateAccount inserts a new account. The existence check and the insert
// happen under the same lock, so concurrent creates cannot both succeed.
func (m *MemoryLedgerRepository) CreateAccount(ctx context.Context, userID int64) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.accounts[userID]; exists {
		return nil, fmt.Errorf("%w: account for user %d already exists", apperrors.ErrDuplicate, userID)
	}

	account := domain.Account{UserID: userID, CreatedAt: time.Now().UTC()}
	m.accounts[userID] = account
	return &account, nil
}

// appendLocked appends a transaction. Caller must hold m.mu.
func (m *MemoryLedgerRepository) appendLocked(accountID int64, amount decimal.Decimal, description *string) (*domain.Transaction, error) {
	if _, exists := m.accounts[accountID]; !exists {
		return nil, fmt.Errorf("%w: account %d does not exist", apperrors.ErrNotFound, accountID)
	}

	m.nextID++
	txn := domain.Transaction{
		ID:          m.nextID,
		AccountID:   accountID,
		Amount:      amount,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	m.txns[accountID] = append(m.txns[accountID], txn)
	return &txn, nil
}

// AppendTransaction appends a signed transaction without any balance check.
func (m *MemoryLedgerRepository) AppendTransaction(ctx context.Context, accountID int64, amount decimal.Decimal, description *string) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(accountID, amount, description)
}

func (m *MemoryLedgerRepository) sumLocked(accountID int64) decimal.Decimal {
	sum := decimal.Zero
	for _, txn := range m.txns[accountID] {
		sum = sum.Add(txn.Amount)
	}
	return sum
}

// SumTransactionAmounts returns the sum of the account's transaction amounts.
func (m *MemoryLedgerRepository) SumTransactionAmounts(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sumLocked(accountID), nil
}

// ListTransactions returns a copy of the account's transactions in insertion
// order, so callers cannot mutate internal state.
func (m *MemoryLedgerRepository) ListTransactions(ctx context.Context, accountID int64) ([]domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	txns := m.txns[accountID]
	copied := make([]domain.Transaction, len(txns))
	copy(copied, txns)
	return copied, nil
}

// WithdrawWithLock holds the account's mutex across the read-validate-append
// sequence: no two withdrawals on the same account can both validate against
// a balance that does not reflect the other.
func (m *MemoryLedgerRepository) WithdrawWithLock(ctx context.Context, accountID int64, amount decimal.Decimal, description *string) (*domain.Transaction, error) {
	lock := m.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.accounts[accountID]; !exists {
		return nil, fmt.Errorf("%w: account %d does not exist", apperrors.ErrNotFound, accountID)
	}

	balance := m.sumLocked(accountID)
	if balance.LessThan(amount) {
		return nil, fmt.Errorf("%w: balance %s is below withdrawal amount %s for account %d",
			apperrors.ErrInsufficientFunds, balance.String(), amount.String(), accountID)
	}

	return m.appendLocked(accountID, amount.Neg(), description)
}
