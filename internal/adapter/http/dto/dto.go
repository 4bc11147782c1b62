package dto

import (
	"github.com/shopspring/decimal"
)

// RegisterRequest is the request body for user registration.
type RegisterRequest struct {
	Username      string  `json:"username" binding:"required,min=3,max=50,safe_id"`
	Password      string  `json:"password" binding:"required,min=8,max=128"`
	Name          string  `json:"name" binding:"required,min=1,max=100"`
	Role          string  `json:"role" binding:"required"`
	WalletAddress *string `json:"wallet_address,omitempty" binding:"omitempty,wallet_address"`
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID            string  `json:"id"`
	Username      string  `json:"username"`
	Name          string  `json:"name"`
	Role          string  `json:"role"`
	WalletAddress *string `json:"wallet_address,omitempty"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// RegisterFacilityRequest is the request body for a new facility.
type RegisterFacilityRequest struct {
	Name     string          `json:"name" binding:"required,max=100"`
	Location string          `json:"location" binding:"max=200"`
	Source   string          `json:"source" binding:"required"`
	Capacity decimal.Decimal `json:"capacity"`
}

// SubmitCreditRequest is the request body for a new credit. Amounts are kg,
// prices are per kg in the configured currency.
type SubmitCreditRequest struct {
	FacilityID     string          `json:"facility_id" binding:"required,uuid"`
	Amount         decimal.Decimal `json:"amount"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Source         string          `json:"source,omitempty"`
	ProductionDate string          `json:"production_date" binding:"required"` // YYYY-MM-DD or RFC 3339
}

// PurchaseCreditRequest is the request body for buying a credit.
type PurchaseCreditRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// ReattachRequest names the ledger credit to bind.
type ReattachRequest struct {
	LedgerCreditID string `json:"ledger_credit_id" binding:"required,max=128,safe_id"`
}

// ReplaySettlementRequest names a confirmed ledger purchase to record.
// BuyerID is only read for admins.
type ReplaySettlementRequest struct {
	LedgerTxReference string  `json:"ledger_tx_reference" binding:"required,max=128,safe_id"`
	BuyerID           *string `json:"buyer_id,omitempty" binding:"omitempty,uuid"`
}

// ClearCreditsResponse reports the bulk-clear result.
type ClearCreditsResponse struct {
	Deleted int64 `json:"deleted"`
}
