package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreditStatus is the lifecycle position of a credit. Transitions only move
// forward: PENDING -> VALIDATED -> SETTLED_ON_CHAIN -> RETIRED.
type CreditStatus string

const (
	CreditStatusPending        CreditStatus = "PENDING"
	CreditStatusValidated      CreditStatus = "VALIDATED"
	CreditStatusSettledOnChain CreditStatus = "SETTLED_ON_CHAIN"
	CreditStatusRetired        CreditStatus = "RETIRED"
)

var creditStatusRank = map[CreditStatus]int{
	CreditStatusPending:        0,
	CreditStatusValidated:      1,
	CreditStatusSettledOnChain: 2,
	CreditStatusRetired:        3,
}

// Valid reports whether s is a known status.
func (s CreditStatus) Valid() bool {
	_, ok := creditStatusRank[s]
	return ok
}

// Rank orders statuses along the lifecycle. Unknown statuses rank -1.
func (s CreditStatus) Rank() int {
	r, ok := creditStatusRank[s]
	if !ok {
		return -1
	}
	return r
}

// CanAdvanceTo reports whether next is the immediate successor of s.
func (s CreditStatus) CanAdvanceTo(next CreditStatus) bool {
	return s.Valid() && next.Valid() && next.Rank() == s.Rank()+1
}

// IsOnLedger reports whether a credit in this status must carry a ledger id.
func (s CreditStatus) IsOnLedger() bool {
	return s == CreditStatusSettledOnChain || s == CreditStatusRetired
}

// ParseCreditStatus accepts the canonical form or the lower-case, dashed
// form used by the HTTP surface ("settled-on-chain").
func ParseCreditStatus(raw string) (CreditStatus, error) {
	s := CreditStatus(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), "-", "_")))
	if !s.Valid() {
		return "", fmt.Errorf("unknown credit status %q", raw)
	}
	return s, nil
}

// RenewableSource is the production category of a facility or credit.
type RenewableSource string

const (
	SourceSolar      RenewableSource = "Solar"
	SourceWind       RenewableSource = "Wind"
	SourceHydro      RenewableSource = "Hydro"
	SourceGeothermal RenewableSource = "Geothermal"
	SourceBiomass    RenewableSource = "Biomass"
)

var renewableSources = []RenewableSource{SourceSolar, SourceWind, SourceHydro, SourceGeothermal, SourceBiomass}

// ParseRenewableSource normalises capitalisation ("solar", "SOLAR" -> Solar).
func ParseRenewableSource(raw string) (RenewableSource, error) {
	trimmed := strings.TrimSpace(raw)
	for _, s := range renewableSources {
		if strings.EqualFold(trimmed, string(s)) {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown renewable source %q", raw)
}

// Credit is the off-chain record of one indivisible lot of certified
// production. Amount is in kilograms.
type Credit struct {
	ID              uuid.UUID       `json:"id"`
	LedgerID        *string         `json:"ledger_id,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	// Settlement figures fixed at submit, in smallest units at PriceScale.
	// Mint and purchase send these as stored.
	UnitPriceMinor  int64           `json:"unit_price_minor"`
	TotalPriceMinor int64           `json:"total_price_minor"`
	PriceScale      int32           `json:"price_scale"`
	ProducerID      uuid.UUID       `json:"producer_id"`
	FacilityID      uuid.UUID       `json:"facility_id"`
	Source          RenewableSource `json:"source"`
	ProductionDate  time.Time       `json:"production_date"`
	OwnerID         uuid.UUID       `json:"owner_id"`
	Status          CreditStatus    `json:"status"`
	ValidatedBy     *uuid.UUID      `json:"validated_by,omitempty"`
	ValidatedAt     *time.Time      `json:"validated_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Column precision of credit quantities. Values finer or larger than this
// would be rounded or rejected by the store.
const (
	AmountPlaces       = 6
	AmountIntDigits    = 14
	UnitPricePlaces    = 8
	UnitPriceIntDigits = 12
)

// CheckCreditPrecision rejects an amount or unit price the store cannot hold
// exactly.
func CheckCreditPrecision(amount, unitPrice decimal.Decimal) error {
	if err := checkPrecision("amount", amount, AmountPlaces, AmountIntDigits); err != nil {
		return err
	}
	return checkPrecision("unit price", unitPrice, UnitPricePlaces, UnitPriceIntDigits)
}

func checkPrecision(name string, v decimal.Decimal, places int32, intDigits int) error {
	if !v.Equal(v.Truncate(places)) {
		return fmt.Errorf("%s %s has more than %d decimal places", name, v.String(), places)
	}
	if len(v.Abs().Truncate(0).String()) > intDigits {
		return fmt.Errorf("%s %s has more than %d integer digits", name, v.String(), intDigits)
	}
	return nil
}

// HasLedgerBinding reports whether the credit is bound to an on-chain token.
func (c *Credit) HasLedgerBinding() bool {
	return c.LedgerID != nil && *c.LedgerID != ""
}

// IsPurchasable reports whether the credit can be offered to buyers.
func (c *Credit) IsPurchasable() bool {
	return c.Status == CreditStatusSettledOnChain && c.HasLedgerBinding()
}

// CheckInvariants verifies the structural rules a persisted credit must hold.
func (c *Credit) CheckInvariants() error {
	if !c.Status.Valid() {
		return fmt.Errorf("credit %s: unknown status %q", c.ID, c.Status)
	}
	if c.HasLedgerBinding() != c.Status.IsOnLedger() {
		return fmt.Errorf("credit %s: ledger binding present=%t but status is %s", c.ID, c.HasLedgerBinding(), c.Status)
	}
	if !c.Status.IsOnLedger() && c.OwnerID != c.ProducerID {
		return fmt.Errorf("credit %s: owner changed before settlement", c.ID)
	}
	if !c.Amount.IsPositive() || !c.UnitPrice.IsPositive() {
		return fmt.Errorf("credit %s: amount and unit price must be positive", c.ID)
	}
	return nil
}

// LedgerMint is the checkpoint written after a successful mint. It lets a
// retried validation resume without minting again while Credit.LedgerID is
// still unset.
type LedgerMint struct {
	CreditID       uuid.UUID  `json:"credit_id"`
	LedgerCreditID string     `json:"ledger_credit_id"`
	Marked         bool       `json:"marked"`
	MintedAt       time.Time  `json:"minted_at"`
	MarkedAt       *time.Time `json:"marked_at,omitempty"`
}
