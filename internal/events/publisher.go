package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// Publisher emits domain events to an external broker. The key selects the
// partition, so events for one account are totally ordered.
type Publisher interface {
	Publish(key string, event any) error
}

// TransactionRecorded is emitted after a deposit or withdrawal commits.
type TransactionRecorded struct {
	TransactionID int64           `json:"transaction_id"`
	AccountID     int64           `json:"account_id"`
	Amount        decimal.Decimal `json:"amount"`
	Direction     string          `json:"direction"`
	OccurredAt    time.Time       `json:"occurred_at"`
}
