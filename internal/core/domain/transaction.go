package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction indicates whether a transaction moved money into or out of an account.
type Direction string

const (
	Deposit  Direction = "deposit"
	Withdraw Direction = "withdraw"
)

// Transaction is an immutable ledger record. Amount is signed: positive for
// deposits, negative for withdrawals. IDs are server-assigned and strictly
// increase with commit order, so ordering by ID equals insertion order.
type Transaction struct {
	ID          int64           `json:"id"`        // Primary key, monotonically assigned
	AccountID   int64           `json:"accountID"` // FK -> Account.userID
	Amount      decimal.Decimal `json:"amount"`    // Signed; precise decimal type
	Description *string         `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Direction derives the movement direction from the amount's sign.
func (t Transaction) Direction() Direction {
	if t.Amount.IsNegative() {
		return Withdraw
	}
	return Deposit
}
