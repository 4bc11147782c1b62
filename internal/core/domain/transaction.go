package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType is the kind of ownership movement a settlement records.
type TransactionType string

const (
	TransactionTypePurchase   TransactionType = "PURCHASE"
	TransactionTypeTransfer   TransactionType = "TRANSFER"
	TransactionTypeRetirement TransactionType = "RETIREMENT"
)

// TransactionStatus represents the lifecycle state of a settlement record.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusConfirmed TransactionStatus = "CONFIRMED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

// Transaction is the off-chain settlement record of a ledger purchase.
// TotalPriceMinor is amount x unitPrice in smallest currency units, computed
// once and equal to what the ledger was paid.
type Transaction struct {
	ID              uuid.UUID         `json:"id"`
	CreditID        uuid.UUID         `json:"credit_id"`
	FromUserID      uuid.UUID         `json:"from_user_id"`
	ToUserID        uuid.UUID         `json:"to_user_id"`
	Amount          decimal.Decimal   `json:"amount"`
	UnitPrice       decimal.Decimal   `json:"unit_price"`
	TotalPriceMinor int64             `json:"total_price_minor"`
	LedgerReference *string           `json:"ledger_reference,omitempty"`
	TransactionType TransactionType   `json:"transaction_type"`
	Status          TransactionStatus `json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
}

// IsTerminal returns true if the transaction is in a final state.
func (t *Transaction) IsTerminal() bool {
	return t.Status == TransactionStatusConfirmed || t.Status == TransactionStatusFailed
}

// Involves reports whether the user is either side of the settlement.
func (t *Transaction) Involves(userID uuid.UUID) bool {
	return t.FromUserID == userID || t.ToUserID == userID
}
