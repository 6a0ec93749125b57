package dto

import (
	"github.com/altpay/payments-service/internal/core/domain"
	"github.com/shopspring/decimal"
)

// AccountResponse defines the data returned for an account. The balance is
// always the exact sum of the account's committed transaction amounts.
type AccountResponse struct {
	UserID  int64           `json:"userID"`
	Balance decimal.Decimal `json:"balance"`
}

// TransactionResponse defines the data returned for a ledger transaction.
// Amount is normalized to its absolute value; the sign is carried by Direction.
type TransactionResponse struct {
	ID          int64            `json:"id"`
	AccountID   int64            `json:"accountID"`
	Amount      decimal.Decimal  `json:"amount"`
	Description *string          `json:"description,omitempty"`
	Direction   domain.Direction `json:"direction"`
}

// ToTransactionResponse converts a domain.Transaction to its DTO, deriving the
// direction from the amount's sign.
func ToTransactionResponse(txn *domain.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:          txn.ID,
		AccountID:   txn.AccountID,
		Amount:      txn.Amount.Abs(),
		Description: txn.Description,
		Direction:   txn.Direction(),
	}
}

// ToTransactionResponseSlice converts a slice of domain transactions.
func ToTransactionResponseSlice(txns []domain.Transaction) []TransactionResponse {
	res := make([]TransactionResponse, len(txns))
	for i := range txns {
		res[i] = ToTransactionResponse(&txns[i])
	}
	return res
}
