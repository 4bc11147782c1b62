// Package memledger is an in-process value ledger. It keeps the call
// contract of the gateway client, including the non-idempotent Mint and the
// price and balance checks on Purchase, and lets tests inject failures.
package memledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"credit-ledger-bridge/internal/core/domain"
	"credit-ledger-bridge/internal/core/ports"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Operation names accepted by FailNext and Calls.
const (
	OpEnsureFacility = "ensure_facility"
	OpMint           = "mint"
	OpMarkValidated  = "mark_validated"
	OpPurchase       = "purchase"
	OpFindCredit     = "find_credit"
	OpGetCredit      = "get_credit"
	OpGetPurchase    = "get_purchase"
)

type fault struct {
	err   error
	after bool // apply the effect, then fail
}

// Ledger implements ports.ValueLedger in memory.
type Ledger struct {
	mu             sync.Mutex
	facilities     map[uuid.UUID]string
	credits        map[string]*domain.LedgerCredit
	mintOrder      []string
	purchases      map[string]*domain.LedgerPurchase
	balances       map[string]int64
	openingBalance int64
	faults         map[string][]fault
	calls          map[string]int
	seq            int
	now            func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithOpeningBalance credits every account the first time it is seen.
func WithOpeningBalance(minor int64) Option {
	return func(l *Ledger) { l.openingBalance = minor }
}

// New creates an empty Ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		facilities: make(map[uuid.UUID]string),
		credits:    make(map[string]*domain.LedgerCredit),
		purchases:  make(map[string]*domain.LedgerPurchase),
		balances:   make(map[string]int64),
		faults:     make(map[string][]fault),
		calls:      make(map[string]int),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Fund adds minor units to an account balance.
func (l *Ledger) Fund(account string, minor int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balance(account)
	l.balances[account] += minor
}

// Balance returns an account balance.
func (l *Ledger) Balance(account string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance(account)
}

// FailNext makes the next call of op return err without any effect.
func (l *Ledger) FailNext(op string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.faults[op] = append(l.faults[op], fault{err: err})
}

// LoseNextResponse makes the next call of op take effect and then report an
// unknown outcome, as a gateway timeout after commit would.
func (l *Ledger) LoseNextResponse(op string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.faults[op] = append(l.faults[op], fault{err: fmt.Errorf("%w: response lost", domain.ErrLedgerTimeout), after: true})
}

// Calls reports how many times op was invoked, failed calls included.
func (l *Ledger) Calls(op string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[op]
}

// Minted returns the number of tokens ever minted for externalRef.
func (l *Ledger) Minted(externalRef string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, id := range l.mintOrder {
		if l.credits[id].ExternalRef == externalRef {
			n++
		}
	}
	return n
}

// enter records the call and pops a pending fault. Must hold mu.
func (l *Ledger) enter(op string) (fault, bool) {
	l.calls[op]++
	q := l.faults[op]
	if len(q) == 0 {
		return fault{}, false
	}
	l.faults[op] = q[1:]
	return q[0], true
}

func (l *Ledger) balance(account string) int64 {
	b, ok := l.balances[account]
	if !ok {
		b = l.openingBalance
		l.balances[account] = b
	}
	return b
}

func (l *Ledger) nextID(prefix string) string {
	l.seq++
	return fmt.Sprintf("%s-%d", prefix, l.seq)
}

func (l *Ledger) EnsureFacility(ctx context.Context, req ports.EnsureFacilityRequest) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, faulted := l.enter(OpEnsureFacility)
	if faulted && !f.after {
		return "", f.err
	}
	id, ok := l.facilities[req.FacilityID]
	if !ok {
		id = l.nextID("lf")
		l.facilities[req.FacilityID] = id
	}
	if faulted {
		return "", f.err
	}
	return id, nil
}

func (l *Ledger) Mint(ctx context.Context, req ports.MintRequest) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, faulted := l.enter(OpMint)
	if faulted && !f.after {
		return "", f.err
	}
	if !req.Amount.IsPositive() || req.UnitPriceMinor <= 0 {
		return "", fmt.Errorf("%w: amount and price must be positive", domain.ErrLedgerRejected)
	}
	known := false
	for _, fid := range l.facilities {
		if fid == req.LedgerFacilityID {
			known = true
			break
		}
	}
	if !known {
		return "", fmt.Errorf("%w: unknown facility %s", domain.ErrLedgerRejected, req.LedgerFacilityID)
	}

	id := l.nextID("lc")
	l.credits[id] = &domain.LedgerCredit{
		ID:               id,
		ExternalRef:      req.ExternalRef.String(),
		LedgerFacilityID: req.LedgerFacilityID,
		Amount:           req.Amount,
		UnitPriceMinor:   req.UnitPriceMinor,
		Owner:            req.Producer.String(),
	}
	l.mintOrder = append(l.mintOrder, id)
	if faulted {
		return "", f.err
	}
	return id, nil
}

func (l *Ledger) MarkValidated(ctx context.Context, ledgerCreditID string, validator string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, faulted := l.enter(OpMarkValidated)
	if faulted && !f.after {
		return f.err
	}
	c, ok := l.credits[ledgerCreditID]
	if !ok {
		return fmt.Errorf("%w: unknown credit %s", domain.ErrLedgerRejected, ledgerCreditID)
	}
	c.Validated = true
	if faulted {
		return f.err
	}
	return nil
}

func (l *Ledger) Purchase(ctx context.Context, req ports.LedgerPurchaseRequest) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, faulted := l.enter(OpPurchase)
	if faulted && !f.after {
		return "", f.err
	}
	c, ok := l.credits[req.LedgerCreditID]
	switch {
	case !ok:
		return "", fmt.Errorf("%w: unknown credit %s", domain.ErrLedgerRejected, req.LedgerCreditID)
	case !c.Validated:
		return "", fmt.Errorf("%w: credit not validated", domain.ErrLedgerRejected)
	case c.Sold:
		return "", fmt.Errorf("%w: credit already sold", domain.ErrLedgerRejected)
	case !req.Amount.Equal(c.Amount):
		return "", fmt.Errorf("%w: partial purchase of %s", domain.ErrLedgerRejected, req.Amount)
	}
	price := c.Amount.Mul(decimal.NewFromInt(c.UnitPriceMinor))
	if !price.Equal(decimal.NewFromInt(req.TotalMinor)) {
		return "", fmt.Errorf("%w: paid %d, price %s", domain.ErrPriceMismatch, req.TotalMinor, price)
	}
	if l.balance(req.Buyer) < req.TotalMinor {
		return "", domain.ErrInsufficientFunds
	}

	l.balances[req.Buyer] -= req.TotalMinor
	l.balance(c.Owner)
	l.balances[c.Owner] += req.TotalMinor

	ref := l.nextID("tx")
	l.purchases[ref] = &domain.LedgerPurchase{
		Reference:      ref,
		LedgerCreditID: c.ID,
		Buyer:          req.Buyer,
		Amount:         c.Amount,
		TotalMinor:     req.TotalMinor,
		ConfirmedAt:    l.now().UTC(),
	}
	c.Sold = true
	c.Owner = req.Buyer
	c.PurchaseRef = &ref
	if faulted {
		return "", f.err
	}
	return ref, nil
}

// FindCredit returns the earliest token minted for externalRef.
func (l *Ledger) FindCredit(ctx context.Context, externalRef string) (*domain.LedgerCredit, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if f, faulted := l.enter(OpFindCredit); faulted {
		return nil, f.err
	}
	for _, id := range l.mintOrder {
		if c := l.credits[id]; c.ExternalRef == externalRef {
			return copyCredit(c), nil
		}
	}
	return nil, nil
}

func (l *Ledger) GetCredit(ctx context.Context, ledgerCreditID string) (*domain.LedgerCredit, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if f, faulted := l.enter(OpGetCredit); faulted {
		return nil, f.err
	}
	c, ok := l.credits[ledgerCreditID]
	if !ok {
		return nil, nil
	}
	return copyCredit(c), nil
}

func (l *Ledger) GetPurchase(ctx context.Context, reference string) (*domain.LedgerPurchase, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if f, faulted := l.enter(OpGetPurchase); faulted {
		return nil, f.err
	}
	p, ok := l.purchases[reference]
	if !ok {
		return nil, nil
	}
	out := *p
	return &out, nil
}

// Ping implements ports.HealthChecker.
func (l *Ledger) Ping(ctx context.Context) error { return nil }

// Name implements ports.HealthChecker.
func (l *Ledger) Name() string { return "ledger" }

func copyCredit(c *domain.LedgerCredit) *domain.LedgerCredit {
	out := *c
	if c.PurchaseRef != nil {
		ref := *c.PurchaseRef
		out.PurchaseRef = &ref
	}
	return &out
}
