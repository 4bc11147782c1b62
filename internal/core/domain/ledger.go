package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerCredit is the ledger's view of a minted token.
type LedgerCredit struct {
	ID               string          `json:"id"`
	ExternalRef      string          `json:"external_ref"` // off-chain credit id
	LedgerFacilityID string          `json:"ledger_facility_id"`
	Amount           decimal.Decimal `json:"amount"`
	UnitPriceMinor   int64           `json:"unit_price_minor"`
	Validated        bool            `json:"validated"`
	Sold             bool            `json:"sold"`
	Owner            string          `json:"owner"`
	PurchaseRef      *string         `json:"purchase_ref,omitempty"`
}

// LedgerPurchase is the ledger's record of a confirmed purchase.
type LedgerPurchase struct {
	Reference      string          `json:"reference"`
	LedgerCreditID string          `json:"ledger_credit_id"`
	Buyer          string          `json:"buyer"`
	Amount         decimal.Decimal `json:"amount"`
	TotalMinor     int64           `json:"total_minor"`
	ConfirmedAt    time.Time       `json:"confirmed_at"`
}
