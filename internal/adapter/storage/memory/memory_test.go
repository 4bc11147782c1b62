package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"credit-ledger-bridge/internal/core/domain"
	"credit-ledger-bridge/internal/core/ports"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPendingCredit() *domain.Credit {
	producer := uuid.New()
	now := time.Now().UTC()
	return &domain.Credit{
		ID:              uuid.New(),
		Amount:          decimal.NewFromInt(500),
		UnitPrice:       decimal.RequireFromString("0.02"),
		UnitPriceMinor:  2,
		TotalPriceMinor: 1000,
		PriceScale:      2,
		ProducerID:      producer,
		FacilityID:      uuid.New(),
		Source:          domain.SourceHydro,
		ProductionDate:  now.AddDate(0, 0, -1),
		OwnerID:         producer,
		Status:          domain.CreditStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestCreditRepo_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Credits()
	c := newPendingCredit()
	require.NoError(t, repo.Create(ctx, c))

	validator := uuid.New()
	v, err := repo.SetValidated(ctx, c.ID, validator, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, domain.CreditStatusValidated, v.Status)
	assert.NoError(t, v.CheckInvariants())

	_, err = repo.SetValidated(ctx, c.ID, validator, time.Now().UTC())
	assert.ErrorIs(t, err, domain.ErrStaleStatus)

	_, err = repo.SetOwnership(ctx, c.ID, uuid.New())
	assert.ErrorIs(t, err, domain.ErrStaleStatus, "ownership requires SETTLED_ON_CHAIN")

	b, err := repo.SetLedgerBinding(ctx, c.ID, "lc-1")
	require.NoError(t, err)
	assert.Equal(t, "lc-1", *b.LedgerID)
	assert.NoError(t, b.CheckInvariants())

	_, err = repo.SetLedgerBinding(ctx, c.ID, "lc-2")
	assert.ErrorIs(t, err, domain.ErrStaleStatus, "ledger id is set once")

	buyer := uuid.New()
	r, err := repo.SetOwnership(ctx, c.ID, buyer)
	require.NoError(t, err)
	assert.Equal(t, buyer, r.OwnerID)
	assert.Equal(t, "lc-1", *r.LedgerID)
	assert.NoError(t, r.CheckInvariants())
}

func TestCreditRepo_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Credits()
	c := newPendingCredit()
	require.NoError(t, repo.Create(ctx, c))

	got, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	got.Status = domain.CreditStatusRetired

	again, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CreditStatusPending, again.Status)
}

func TestCreditRepo_ConcurrentValidate(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Credits()
	c := newPendingCredit()
	require.NoError(t, repo.Create(ctx, c))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.SetValidated(ctx, c.ID, uuid.New(), time.Now()); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestCreditRepo_List(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := store.Credits()

	cheap := newPendingCredit()
	pricey := newPendingCredit()
	pricey.UnitPrice = decimal.RequireFromString("0.50")
	pricey.Source = domain.SourceSolar
	require.NoError(t, repo.Create(ctx, cheap))
	require.NoError(t, repo.Create(ctx, pricey))

	maxPrice := decimal.RequireFromString("0.10")
	got, err := repo.List(ctx, ports.CreditListParams{MaxUnitPrice: &maxPrice})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, cheap.ID, got[0].ID)

	got, err = repo.List(ctx, ports.CreditListParams{BoundOnly: true})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = repo.List(ctx, ports.CreditListParams{ExcludeOwnerID: &cheap.OwnerID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, pricey.ID, got[0].ID)
}

func TestCreditRepo_DeleteAllCascades(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	c := newPendingCredit()
	require.NoError(t, store.Credits().Create(ctx, c))
	require.NoError(t, store.Mints().Record(ctx, &domain.LedgerMint{CreditID: c.ID, LedgerCreditID: "lc-1"}))
	require.NoError(t, store.Transactions().Create(ctx, &domain.Transaction{
		ID: uuid.New(), CreditID: c.ID, LedgerReference: strRef("ref-1"),
	}))

	n, err := store.Credits().DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	m, err := store.Mints().Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, m)
	tx, err := store.Transactions().GetByLedgerReference(ctx, "ref-1")
	require.NoError(t, err)
	assert.Nil(t, tx)
}

func strRef(s string) *string { return &s }

func TestLedgerMintRepo_FirstRecordWins(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Mints()
	id := uuid.New()

	require.NoError(t, repo.Record(ctx, &domain.LedgerMint{CreditID: id, LedgerCreditID: "lc-1"}))
	require.NoError(t, repo.Record(ctx, &domain.LedgerMint{CreditID: id, LedgerCreditID: "lc-2"}))

	m, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "lc-1", m.LedgerCreditID)

	require.NoError(t, repo.MarkValidated(ctx, id, time.Now()))
	m, err = repo.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, m.Marked)

	assert.Error(t, repo.MarkValidated(ctx, uuid.New(), time.Now()))
}

func TestTransactionRepo_UniqueReference(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Transactions()
	buyer := uuid.New()

	first := &domain.Transaction{ID: uuid.New(), CreditID: uuid.New(), ToUserID: buyer, LedgerReference: strRef("0xabc"), CreatedAt: time.Now()}
	require.NoError(t, repo.Create(ctx, first))

	dup := &domain.Transaction{ID: uuid.New(), CreditID: first.CreditID, ToUserID: buyer, LedgerReference: strRef("0xabc")}
	assert.ErrorIs(t, repo.Create(ctx, dup), domain.ErrDuplicateSettlement)

	got, err := repo.GetByLedgerReference(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	list, total, err := repo.ListByUser(ctx, ports.TransactionListParams{UserID: buyer, Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, list, 1)

	list, total, err = repo.ListByUser(ctx, ports.TransactionListParams{UserID: buyer, Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Empty(t, list)
}

func TestUserRepo_DuplicateUsername(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Users()

	require.NoError(t, repo.Create(ctx, &domain.User{ID: uuid.New(), Username: "alice"}))
	assert.ErrorIs(t, repo.Create(ctx, &domain.User{ID: uuid.New(), Username: "alice"}), domain.ErrDuplicateUsername)

	u, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, u)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestFacilityRepo_SetLedgerMirror(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Facilities()
	f := &domain.Facility{ID: uuid.New(), ProducerID: uuid.New(), Certification: domain.CertificationUncertified}
	require.NoError(t, repo.Create(ctx, f))

	require.NoError(t, repo.SetLedgerMirror(ctx, f.ID, "lf-1"))
	got, err := repo.GetByID(ctx, f.ID)
	require.NoError(t, err)
	assert.True(t, got.IsMirrored())
	assert.Equal(t, domain.CertificationCertified, got.Certification)

	other := uuid.New()
	list, err := repo.List(ctx, &other)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestLocker(t *testing.T) {
	ctx := context.Background()
	l := NewLocker()
	now := time.Now()
	l.now = func() time.Time { return now }
	id := uuid.New()

	tok, ok, err := l.Acquire(ctx, id, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.Acquire(ctx, id, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Error(t, l.Release(ctx, id, "other"))

	now = now.Add(2 * time.Minute)
	tok2, ok, err := l.Acquire(ctx, id, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "expired lease can be taken over")

	assert.Error(t, l.Release(ctx, id, tok))
	assert.NoError(t, l.Release(ctx, id, tok2))
}

func TestLocker_Extend(t *testing.T) {
	ctx := context.Background()
	l := NewLocker()
	now := time.Now()
	l.now = func() time.Time { return now }
	id := uuid.New()

	tok, ok, err := l.Acquire(ctx, id, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(50 * time.Second)
	held, err := l.Extend(ctx, id, tok, time.Minute)
	require.NoError(t, err)
	assert.True(t, held)

	now = now.Add(50 * time.Second)
	_, ok, err = l.Acquire(ctx, id, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "renewed lease outlives the original ttl")

	held, err = l.Extend(ctx, id, "other", time.Minute)
	require.NoError(t, err)
	assert.False(t, held)

	now = now.Add(2 * time.Minute)
	held, err = l.Extend(ctx, id, tok, time.Minute)
	require.NoError(t, err)
	assert.False(t, held, "a lapsed lease cannot be revived")

	_, err = l.Extend(ctx, id, tok, 0)
	assert.Error(t, err)
}

func TestIdempotencyCache(t *testing.T) {
	ctx := context.Background()
	c := NewIdempotencyCache()
	now := time.Now()
	c.now = func() time.Time { return now }

	ok, err := c.Reserve(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = c.Reserve(ctx, "k", time.Minute)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "v", []byte("body"), time.Minute))
	got, err := c.Get(ctx, "v")
	require.NoError(t, err)
	assert.Equal(t, []byte("body"), got)

	now = now.Add(2 * time.Minute)
	got, err = c.Get(ctx, "v")
	require.NoError(t, err)
	assert.Nil(t, got)
	ok, _ = c.Reserve(ctx, "k", time.Minute)
	assert.True(t, ok)
}
