package ports

import (
	"context"
	"time"

	"credit-ledger-bridge/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

// Caller is the authenticated identity an operation runs for.
type Caller struct {
	UserID uuid.UUID
	Role   domain.Role
}

// SignatureService signs outbound ledger requests with HMAC-SHA256.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	BuildCanonicalString(method, path string, timestamp int64, nonce string, body string) string
}

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(userID uuid.UUID, role domain.Role) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID uuid.UUID
	Role   domain.Role
}

// IdempotencyCache is the Redis-layer cache of submit responses.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Reserve claims the key for an in-flight request. False means another
	// request holds or already completed it.
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

// CreditLocker serialises pipelines per credit so no two ledger calls for the
// same credit are ever in flight together.
type CreditLocker interface {
	Acquire(ctx context.Context, creditID uuid.UUID, ttl time.Duration) (token string, acquired bool, err error)
	Release(ctx context.Context, creditID uuid.UUID, token string) error
	// Extend renews a held lock. It reports false once token has lost it.
	Extend(ctx context.Context, creditID uuid.UUID, token string, ttl time.Duration) (bool, error)
}

// AuditService records audit entries without blocking the request.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// --- Service Ports (Business Logic) ---

// CreditCoordinator drives credits across the relational store and the value ledger.
type CreditCoordinator interface {
	SubmitCredit(ctx context.Context, caller Caller, req SubmitCreditRequest) (*domain.Credit, error)
	ValidateCredit(ctx context.Context, caller Caller, creditID uuid.UUID) (*domain.Credit, error)
	ReattachLedgerBinding(ctx context.Context, caller Caller, creditID uuid.UUID, ledgerCreditID string) (*domain.Credit, error)
	PurchaseCredit(ctx context.Context, caller Caller, req PurchaseCreditRequest) (*Settlement, error)
	ReplaySettlement(ctx context.Context, caller Caller, req ReplaySettlementRequest) (*Settlement, error)
	ReconcileCredit(ctx context.Context, caller Caller, creditID uuid.UUID) (*ReconciliationReport, error)
	GetCredit(ctx context.Context, caller Caller, creditID uuid.UUID) (*domain.Credit, error)
}

// SubmitCreditRequest holds producer input for a new credit.
type SubmitCreditRequest struct {
	FacilityID     uuid.UUID
	Amount         decimal.Decimal
	UnitPrice      decimal.Decimal
	Source         string
	ProductionDate time.Time
	IdempotencyKey string
}

// PurchaseCreditRequest buys a whole credit lot.
type PurchaseCreditRequest struct {
	CreditID uuid.UUID
	Amount   decimal.Decimal
}

// ReplaySettlementRequest converges the store after a ledger purchase whose
// settlement record lagged. BuyerID is only honoured for admins.
type ReplaySettlementRequest struct {
	CreditID          uuid.UUID
	LedgerTxReference string
	BuyerID           *uuid.UUID
}

// Settlement is the result of a purchase or replay.
type Settlement struct {
	Transaction *domain.Transaction `json:"transaction"`
	Credit      *domain.Credit      `json:"credit"`
	TotalPrice  string              `json:"total_price"`
}

// ReconciliationReport compares the durable record with the ledger and
// names the one operation that converges them.
type ReconciliationReport struct {
	Credit            *domain.Credit         `json:"credit"`
	Checkpoint        *domain.LedgerMint     `json:"checkpoint,omitempty"`
	Ledger            *domain.LedgerCredit   `json:"ledger,omitempty"`
	Transactions      []domain.Transaction   `json:"transactions"`
	Action            domain.ReconcileAction `json:"action"`
	Reason            string                 `json:"reason"`
	LedgerCreditID    *string                `json:"ledger_credit_id,omitempty"`
	LedgerTxReference *string                `json:"ledger_tx_reference,omitempty"`
}

// MarketplaceService defines listing and reporting logic.
type MarketplaceService interface {
	ListAvailableCredits(ctx context.Context, caller Caller, filter AvailableCreditFilter) ([]domain.Credit, error)
	ListCredits(ctx context.Context, caller Caller, params CreditListParams) ([]domain.Credit, error)
	ListTransactions(ctx context.Context, caller Caller, page, pageSize int) ([]domain.Transaction, int64, error)
	GetStats(ctx context.Context, caller Caller) (*Stats, error)
	ClearCredits(ctx context.Context, caller Caller) (int64, error)
}

// AvailableCreditFilter narrows the marketplace listing.
type AvailableCreditFilter struct {
	Source       *domain.RenewableSource
	MaxUnitPrice *decimal.Decimal
	MinAmount    *decimal.Decimal
}

// Stats is the read-only aggregate of record counts.
type Stats struct {
	Users        int64 `json:"users"`
	Facilities   int64 `json:"facilities"`
	Credits      int64 `json:"credits"`
	Transactions int64 `json:"transactions"`
}

// FacilityService defines facility registry logic.
type FacilityService interface {
	RegisterFacility(ctx context.Context, caller Caller, req RegisterFacilityRequest) (*domain.Facility, error)
	ListFacilities(ctx context.Context, caller Caller, producerID *uuid.UUID) ([]domain.Facility, error)
}

// RegisterFacilityRequest holds producer input for a new facility.
type RegisterFacilityRequest struct {
	Name     string
	Location string
	Source   string
	Capacity decimal.Decimal
}

// AuthService defines the built-in identity provider.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*domain.User, error)
	Login(ctx context.Context, username, password string) (string, time.Time, error) // token, expiry, error
}

// RegisterRequest holds input for user registration.
type RegisterRequest struct {
	Username      string
	Password      string
	Name          string
	Role          string
	WalletAddress *string
}
