// Package memory is an in-process implementation of the repository and
// locking ports. It backs the memory store driver and the scenario tests.
package memory

import (
	"sync"

	"credit-ledger-bridge/internal/core/domain"

	"github.com/google/uuid"
)

// Store holds every table behind one mutex so multi-table effects, such as
// the cascade in DeleteAll, are atomic. Records are copied in and out.
type Store struct {
	mu           sync.RWMutex
	users        map[uuid.UUID]domain.User
	facilities   map[uuid.UUID]domain.Facility
	credits      map[uuid.UUID]domain.Credit
	mints        map[uuid.UUID]domain.LedgerMint
	transactions map[uuid.UUID]domain.Transaction
	txByRef      map[string]uuid.UUID
	audit        []domain.AuditLog
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		users:        make(map[uuid.UUID]domain.User),
		facilities:   make(map[uuid.UUID]domain.Facility),
		credits:      make(map[uuid.UUID]domain.Credit),
		mints:        make(map[uuid.UUID]domain.LedgerMint),
		transactions: make(map[uuid.UUID]domain.Transaction),
		txByRef:      make(map[string]uuid.UUID),
	}
}

// Users returns the user repository view.
func (s *Store) Users() *UserRepo { return &UserRepo{s: s} }

// Facilities returns the facility repository view.
func (s *Store) Facilities() *FacilityRepo { return &FacilityRepo{s: s} }

// Credits returns the credit repository view.
func (s *Store) Credits() *CreditRepo { return &CreditRepo{s: s} }

// Mints returns the mint checkpoint repository view.
func (s *Store) Mints() *LedgerMintRepo { return &LedgerMintRepo{s: s} }

// Transactions returns the settlement repository view.
func (s *Store) Transactions() *TransactionRepo { return &TransactionRepo{s: s} }

// Audit returns the audit repository view.
func (s *Store) Audit() *AuditRepo { return &AuditRepo{s: s} }

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneCredit(c domain.Credit) domain.Credit {
	c.LedgerID = clonePtr(c.LedgerID)
	c.ValidatedBy = clonePtr(c.ValidatedBy)
	c.ValidatedAt = clonePtr(c.ValidatedAt)
	return c
}
