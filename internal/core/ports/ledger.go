package ports

import (
	"context"
	"time"

	"credit-ledger-bridge/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=ledger.go -destination=mocks/mock_ledger.go -package=mocks

// ValueLedger is the call surface of the external value ledger. Each call is
// atomic on its own; sequences of calls are not. Errors wrap the domain
// ledger sentinels (ErrLedgerRejected, ErrLedgerTimeout, ...).
type ValueLedger interface {
	// EnsureFacility is idempotent; an existing facility is a success.
	EnsureFacility(ctx context.Context, req EnsureFacilityRequest) (string, error)
	// Mint is NOT idempotent: every successful call creates a new token.
	Mint(ctx context.Context, req MintRequest) (string, error)
	MarkValidated(ctx context.Context, ledgerCreditID string, validator string) error
	// Purchase debits the buyer by exactly TotalMinor and rejects with
	// ErrPriceMismatch when it disagrees with the recorded price.
	Purchase(ctx context.Context, req LedgerPurchaseRequest) (string, error)

	// Reads used for resume and reconciliation. They return (nil, nil) when
	// the ledger has no such record.
	FindCredit(ctx context.Context, externalRef string) (*domain.LedgerCredit, error)
	GetCredit(ctx context.Context, ledgerCreditID string) (*domain.LedgerCredit, error)
	GetPurchase(ctx context.Context, reference string) (*domain.LedgerPurchase, error)
}

// EnsureFacilityRequest describes the facility mirrored on the ledger.
type EnsureFacilityRequest struct {
	FacilityID uuid.UUID
	ProducerID uuid.UUID
	Name       string
	Location   string
	Source     domain.RenewableSource
	Capacity   decimal.Decimal
}

// MintRequest carries the attributes of a new ledger token. ExternalRef is
// the off-chain credit id, which makes a lost mint discoverable later.
type MintRequest struct {
	ExternalRef      uuid.UUID
	LedgerFacilityID string
	Producer         uuid.UUID
	Amount           decimal.Decimal
	UnitPriceMinor   int64
	Source           domain.RenewableSource
	ProductionDate   time.Time
}

// LedgerPurchaseRequest is a payable purchase of a whole ledger token.
type LedgerPurchaseRequest struct {
	LedgerCreditID string
	Buyer          string
	Amount         decimal.Decimal
	TotalMinor     int64
}
