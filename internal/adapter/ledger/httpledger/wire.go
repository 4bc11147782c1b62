package httpledger

import (
	"time"

	"credit-ledger-bridge/internal/core/domain"

	"github.com/shopspring/decimal"
)

type facilityRequest struct {
	FacilityID string          `json:"facility_id"`
	Producer   string          `json:"producer"`
	Name       string          `json:"name"`
	Location   string          `json:"location"`
	Source     string          `json:"source"`
	Capacity   decimal.Decimal `json:"capacity"`
}

type mintRequest struct {
	ExternalRef    string          `json:"external_ref"`
	FacilityID     string          `json:"facility_id"`
	Producer       string          `json:"producer"`
	Amount         decimal.Decimal `json:"amount"`
	UnitPriceMinor int64           `json:"unit_price_minor"`
	Source         string          `json:"source"`
	ProductionDate time.Time       `json:"production_date"`
}

type validateRequest struct {
	Validator string `json:"validator"`
}

type purchaseRequest struct {
	Buyer      string          `json:"buyer"`
	Amount     decimal.Decimal `json:"amount"`
	TotalMinor int64           `json:"total_minor"`
}

type creditResponse struct {
	ID             string          `json:"id"`
	ExternalRef    string          `json:"external_ref"`
	FacilityID     string          `json:"facility_id"`
	Amount         decimal.Decimal `json:"amount"`
	UnitPriceMinor int64           `json:"unit_price_minor"`
	Validated      bool            `json:"validated"`
	Sold           bool            `json:"sold"`
	Owner          string          `json:"owner"`
	PurchaseRef    *string         `json:"purchase_ref"`
}

func (r creditResponse) toDomain() *domain.LedgerCredit {
	return &domain.LedgerCredit{
		ID:               r.ID,
		ExternalRef:      r.ExternalRef,
		LedgerFacilityID: r.FacilityID,
		Amount:           r.Amount,
		UnitPriceMinor:   r.UnitPriceMinor,
		Validated:        r.Validated,
		Sold:             r.Sold,
		Owner:            r.Owner,
		PurchaseRef:      r.PurchaseRef,
	}
}

type purchaseResponse struct {
	Reference   string          `json:"reference"`
	CreditID    string          `json:"credit_id"`
	Buyer       string          `json:"buyer"`
	Amount      decimal.Decimal `json:"amount"`
	TotalMinor  int64           `json:"total_minor"`
	ConfirmedAt time.Time       `json:"confirmed_at"`
}

func (r purchaseResponse) toDomain() *domain.LedgerPurchase {
	return &domain.LedgerPurchase{
		Reference:      r.Reference,
		LedgerCreditID: r.CreditID,
		Buyer:          r.Buyer,
		Amount:         r.Amount,
		TotalMinor:     r.TotalMinor,
		ConfirmedAt:    r.ConfirmedAt,
	}
}
