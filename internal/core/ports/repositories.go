package ports

import (
	"context"
	"time"

	"credit-ledger-bridge/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

// Lookups return (nil, nil) when the row does not exist. Each method is a
// single statement: there are no cross-call transactions.

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	Count(ctx context.Context) (int64, error)
}

// FacilityRepository defines persistence operations for facilities.
type FacilityRepository interface {
	Create(ctx context.Context, facility *domain.Facility) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Facility, error)
	List(ctx context.Context, producerID *uuid.UUID) ([]domain.Facility, error)
	// SetLedgerMirror records the ledger-side id and marks the facility certified.
	SetLedgerMirror(ctx context.Context, id uuid.UUID, ledgerFacilityID string) error
	Count(ctx context.Context) (int64, error)
}

// CreditRepository defines persistence operations for credits. The Set*
// methods are conditional on the expected prior status and return
// domain.ErrStaleStatus when another caller advanced the row first.
type CreditRepository interface {
	Create(ctx context.Context, credit *domain.Credit) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Credit, error)
	// SetValidated moves PENDING -> VALIDATED.
	SetValidated(ctx context.Context, id, validatorID uuid.UUID, at time.Time) (*domain.Credit, error)
	// SetLedgerBinding moves VALIDATED -> SETTLED_ON_CHAIN and sets the ledger id once.
	SetLedgerBinding(ctx context.Context, id uuid.UUID, ledgerID string) (*domain.Credit, error)
	// SetOwnership moves SETTLED_ON_CHAIN -> RETIRED with a new owner.
	SetOwnership(ctx context.Context, id, newOwnerID uuid.UUID) (*domain.Credit, error)
	List(ctx context.Context, params CreditListParams) ([]domain.Credit, error)
	Count(ctx context.Context) (int64, error)
	// DeleteAll is the administrative bulk-clear; checkpoints and settlements cascade.
	DeleteAll(ctx context.Context) (int64, error)
}

// CreditListParams filters credit listings. Nil fields are ignored.
type CreditListParams struct {
	Status         *domain.CreditStatus
	ProducerID     *uuid.UUID
	OwnerID        *uuid.UUID
	ExcludeOwnerID *uuid.UUID
	Source         *domain.RenewableSource
	MaxUnitPrice   *decimal.Decimal
	MinAmount      *decimal.Decimal
	BoundOnly      bool // only credits with a ledger id
	Limit          int
}

// LedgerMintRepository persists the post-mint checkpoint.
type LedgerMintRepository interface {
	// Record inserts the checkpoint; an existing row for the credit is kept.
	Record(ctx context.Context, mint *domain.LedgerMint) error
	Get(ctx context.Context, creditID uuid.UUID) (*domain.LedgerMint, error)
	MarkValidated(ctx context.Context, creditID uuid.UUID, at time.Time) error
}

// TransactionRepository defines persistence operations for settlement records.
type TransactionRepository interface {
	// Create returns domain.ErrDuplicateSettlement when the ledger reference
	// is already recorded.
	Create(ctx context.Context, transaction *domain.Transaction) error
	GetByLedgerReference(ctx context.Context, reference string) (*domain.Transaction, error)
	ListByCredit(ctx context.Context, creditID uuid.UUID) ([]domain.Transaction, error)
	ListByUser(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
	Count(ctx context.Context) (int64, error)
}

// TransactionListParams holds filter + pagination for listing a user's settlements.
type TransactionListParams struct {
	UserID   uuid.UUID
	Type     *domain.TransactionType
	Page     int
	PageSize int
}

// AuditRepository persists audit entries.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}
