package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"credit-ledger-bridge/internal/core/domain"
	"credit-ledger-bridge/internal/core/ports"

	"github.com/google/uuid"
)

// --- Users ---

// UserRepo implements ports.UserRepository.
type UserRepo struct{ s *Store }

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.Username == u.Username {
			return domain.ErrDuplicateUsername
		}
	}
	v := *u
	v.WalletAddress = clonePtr(u.WalletAddress)
	r.s.users[u.ID] = v
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, nil
}

func (r *UserRepo) Count(ctx context.Context) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return int64(len(r.s.users)), nil
}

// --- Facilities ---

// FacilityRepo implements ports.FacilityRepository.
type FacilityRepo struct{ s *Store }

func (r *FacilityRepo) Create(ctx context.Context, f *domain.Facility) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.facilities[f.ID]; ok {
		return fmt.Errorf("facility %s already exists", f.ID)
	}
	v := *f
	v.LedgerFacilityID = clonePtr(f.LedgerFacilityID)
	r.s.facilities[f.ID] = v
	return nil
}

func (r *FacilityRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Facility, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	f, ok := r.s.facilities[id]
	if !ok {
		return nil, nil
	}
	f.LedgerFacilityID = clonePtr(f.LedgerFacilityID)
	return &f, nil
}

func (r *FacilityRepo) List(ctx context.Context, producerID *uuid.UUID) ([]domain.Facility, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Facility
	for _, f := range r.s.facilities {
		if producerID != nil && f.ProducerID != *producerID {
			continue
		}
		f.LedgerFacilityID = clonePtr(f.LedgerFacilityID)
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *FacilityRepo) SetLedgerMirror(ctx context.Context, id uuid.UUID, ledgerFacilityID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.facilities[id]
	if !ok {
		return fmt.Errorf("facility not found: %s", id)
	}
	f.LedgerFacilityID = &ledgerFacilityID
	f.Certification = domain.CertificationCertified
	f.UpdatedAt = time.Now().UTC()
	r.s.facilities[id] = f
	return nil
}

func (r *FacilityRepo) Count(ctx context.Context) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return int64(len(r.s.facilities)), nil
}

// --- Credits ---

// CreditRepo implements ports.CreditRepository. Status changes check the
// prior status under the write lock, mirroring the conditional UPDATEs of
// the SQL store.
type CreditRepo struct{ s *Store }

func (r *CreditRepo) Create(ctx context.Context, c *domain.Credit) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.credits[c.ID]; ok {
		return fmt.Errorf("credit %s already exists", c.ID)
	}
	r.s.credits[c.ID] = cloneCredit(*c)
	return nil
}

func (r *CreditRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Credit, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.credits[id]
	if !ok {
		return nil, nil
	}
	c = cloneCredit(c)
	return &c, nil
}

func (r *CreditRepo) SetValidated(ctx context.Context, id, validatorID uuid.UUID, at time.Time) (*domain.Credit, error) {
	return r.transition(id, domain.CreditStatusPending, func(c *domain.Credit) {
		c.Status = domain.CreditStatusValidated
		c.ValidatedBy = &validatorID
		c.ValidatedAt = &at
		c.UpdatedAt = at
	})
}

func (r *CreditRepo) SetLedgerBinding(ctx context.Context, id uuid.UUID, ledgerID string) (*domain.Credit, error) {
	return r.transition(id, domain.CreditStatusValidated, func(c *domain.Credit) {
		c.Status = domain.CreditStatusSettledOnChain
		c.LedgerID = &ledgerID
		c.UpdatedAt = time.Now().UTC()
	})
}

func (r *CreditRepo) SetOwnership(ctx context.Context, id, newOwnerID uuid.UUID) (*domain.Credit, error) {
	return r.transition(id, domain.CreditStatusSettledOnChain, func(c *domain.Credit) {
		c.Status = domain.CreditStatusRetired
		c.OwnerID = newOwnerID
		c.UpdatedAt = time.Now().UTC()
	})
}

func (r *CreditRepo) transition(id uuid.UUID, from domain.CreditStatus, apply func(*domain.Credit)) (*domain.Credit, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.credits[id]
	if !ok || c.Status != from || (from == domain.CreditStatusValidated && c.LedgerID != nil) {
		return nil, domain.ErrStaleStatus
	}
	c = cloneCredit(c)
	apply(&c)
	r.s.credits[id] = c
	out := cloneCredit(c)
	return &out, nil
}

func (r *CreditRepo) List(ctx context.Context, p ports.CreditListParams) ([]domain.Credit, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Credit
	for _, c := range r.s.credits {
		if !matchCredit(c, p) {
			continue
		}
		out = append(out, cloneCredit(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if p.Limit > 0 && len(out) > p.Limit {
		out = out[:p.Limit]
	}
	return out, nil
}

func matchCredit(c domain.Credit, p ports.CreditListParams) bool {
	switch {
	case p.Status != nil && c.Status != *p.Status:
		return false
	case p.ProducerID != nil && c.ProducerID != *p.ProducerID:
		return false
	case p.OwnerID != nil && c.OwnerID != *p.OwnerID:
		return false
	case p.ExcludeOwnerID != nil && c.OwnerID == *p.ExcludeOwnerID:
		return false
	case p.Source != nil && c.Source != *p.Source:
		return false
	case p.MaxUnitPrice != nil && c.UnitPrice.GreaterThan(*p.MaxUnitPrice):
		return false
	case p.MinAmount != nil && c.Amount.LessThan(*p.MinAmount):
		return false
	case p.BoundOnly && !c.HasLedgerBinding():
		return false
	}
	return true
}

func (r *CreditRepo) Count(ctx context.Context) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return int64(len(r.s.credits)), nil
}

// DeleteAll removes every credit with its checkpoints and settlements.
func (r *CreditRepo) DeleteAll(ctx context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := int64(len(r.s.credits))
	r.s.credits = make(map[uuid.UUID]domain.Credit)
	r.s.mints = make(map[uuid.UUID]domain.LedgerMint)
	r.s.transactions = make(map[uuid.UUID]domain.Transaction)
	r.s.txByRef = make(map[string]uuid.UUID)
	return n, nil
}

// --- Mint checkpoints ---

// LedgerMintRepo implements ports.LedgerMintRepository.
type LedgerMintRepo struct{ s *Store }

func (r *LedgerMintRepo) Record(ctx context.Context, m *domain.LedgerMint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.mints[m.CreditID]; ok {
		return nil
	}
	v := *m
	v.MarkedAt = clonePtr(m.MarkedAt)
	r.s.mints[m.CreditID] = v
	return nil
}

func (r *LedgerMintRepo) Get(ctx context.Context, creditID uuid.UUID) (*domain.LedgerMint, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	m, ok := r.s.mints[creditID]
	if !ok {
		return nil, nil
	}
	m.MarkedAt = clonePtr(m.MarkedAt)
	return &m, nil
}

func (r *LedgerMintRepo) MarkValidated(ctx context.Context, creditID uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.mints[creditID]
	if !ok {
		return fmt.Errorf("ledger mint not found: %s", creditID)
	}
	m.Marked = true
	m.MarkedAt = &at
	r.s.mints[creditID] = m
	return nil
}

// --- Settlements ---

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct{ s *Store }

func (r *TransactionRepo) Create(ctx context.Context, t *domain.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t.LedgerReference != nil {
		if _, ok := r.s.txByRef[*t.LedgerReference]; ok {
			return domain.ErrDuplicateSettlement
		}
	}
	if _, ok := r.s.transactions[t.ID]; ok {
		return fmt.Errorf("transaction %s already exists", t.ID)
	}
	v := *t
	v.LedgerReference = clonePtr(t.LedgerReference)
	r.s.transactions[t.ID] = v
	if t.LedgerReference != nil {
		r.s.txByRef[*t.LedgerReference] = t.ID
	}
	return nil
}

func (r *TransactionRepo) GetByLedgerReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.txByRef[reference]
	if !ok {
		return nil, nil
	}
	t := r.s.transactions[id]
	t.LedgerReference = clonePtr(t.LedgerReference)
	return &t, nil
}

func (r *TransactionRepo) ListByCredit(ctx context.Context, creditID uuid.UUID) ([]domain.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Transaction
	for _, t := range r.s.transactions {
		if t.CreditID == creditID {
			t.LedgerReference = clonePtr(t.LedgerReference)
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *TransactionRepo) ListByUser(ctx context.Context, p ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var all []domain.Transaction
	for _, t := range r.s.transactions {
		if !t.Involves(p.UserID) {
			continue
		}
		if p.Type != nil && t.TransactionType != *p.Type {
			continue
		}
		t.LedgerReference = clonePtr(t.LedgerReference)
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := int64(len(all))
	start := (p.Page - 1) * p.PageSize
	if start < 0 || start >= len(all) {
		return nil, total, nil
	}
	end := start + p.PageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r *TransactionRepo) Count(ctx context.Context) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return int64(len(r.s.transactions)), nil
}

// --- Audit ---

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct{ s *Store }

func (r *AuditRepo) Create(ctx context.Context, e *domain.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.audit = append(r.s.audit, *e)
	return nil
}

// Entries returns a copy of the recorded audit entries.
func (r *AuditRepo) Entries() []domain.AuditLog {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return append([]domain.AuditLog(nil), r.s.audit...)
}
