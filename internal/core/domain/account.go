package domain

import "time"

// Account is a per-user monetary account. It carries no stored balance;
// the balance is always derived from the account's transaction history.
type Account struct {
	UserID    int64     `json:"userID"` // Primary key, supplied by the caller
	CreatedAt time.Time `json:"createdAt"`
}
