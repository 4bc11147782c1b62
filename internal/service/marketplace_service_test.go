package service

import (
	"context"
	"errors"
	"testing"

	"credit-ledger-bridge/internal/core/domain"
	"credit-ledger-bridge/internal/core/ports"
	"credit-ledger-bridge/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type marketplaceDeps struct {
	svc        ports.MarketplaceService
	users      *mocks.MockUserRepository
	facilities *mocks.MockFacilityRepository
	credits    *mocks.MockCreditRepository
	txs        *mocks.MockTransactionRepository
}

func setupMarketplace(t *testing.T) *marketplaceDeps {
	ctrl := gomock.NewController(t)
	d := &marketplaceDeps{
		users:      mocks.NewMockUserRepository(ctrl),
		facilities: mocks.NewMockFacilityRepository(ctrl),
		credits:    mocks.NewMockCreditRepository(ctrl),
		txs:        mocks.NewMockTransactionRepository(ctrl),
	}
	d.svc = NewMarketplaceService(d.users, d.facilities, d.credits, d.txs, newTestLogger())
	return d
}

func TestMarketplace_ListAvailableCredits_FiltersForCaller(t *testing.T) {
	d := setupMarketplace(t)
	solar := domain.SourceSolar
	maxPrice := decimal.RequireFromString("0.05")

	d.credits.EXPECT().List(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, p ports.CreditListParams) ([]domain.Credit, error) {
			require.NotNil(t, p.Status)
			assert.Equal(t, domain.CreditStatusSettledOnChain, *p.Status)
			require.NotNil(t, p.ExcludeOwnerID)
			assert.Equal(t, buyerID, *p.ExcludeOwnerID)
			assert.True(t, p.BoundOnly)
			assert.Equal(t, &solar, p.Source)
			assert.True(t, maxPrice.Equal(*p.MaxUnitPrice))
			assert.Nil(t, p.MinAmount)
			return []domain.Credit{*testCredit(domain.CreditStatusSettledOnChain)}, nil
		})

	got, err := d.svc.ListAvailableCredits(context.Background(), buyer, ports.AvailableCreditFilter{
		Source:       &solar,
		MaxUnitPrice: &maxPrice,
	})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMarketplace_ListTransactions_ClampsPaging(t *testing.T) {
	d := setupMarketplace(t)

	d.txs.EXPECT().ListByUser(gomock.Any(), ports.TransactionListParams{
		UserID:   buyerID,
		Page:     1,
		PageSize: maxPageSize,
	}).Return([]domain.Transaction{}, int64(0), nil)

	_, total, err := d.svc.ListTransactions(context.Background(), buyer, 0, 1000)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestMarketplace_GetStats(t *testing.T) {
	d := setupMarketplace(t)

	d.users.EXPECT().Count(gomock.Any()).Return(int64(4), nil)
	d.facilities.EXPECT().Count(gomock.Any()).Return(int64(2), nil)
	d.credits.EXPECT().Count(gomock.Any()).Return(int64(9), nil)
	d.txs.EXPECT().Count(gomock.Any()).Return(int64(3), nil)

	stats, err := d.svc.GetStats(context.Background(), auditor)
	require.NoError(t, err)
	assert.Equal(t, &ports.Stats{Users: 4, Facilities: 2, Credits: 9, Transactions: 3}, stats)
}

func TestMarketplace_GetStats_Error(t *testing.T) {
	d := setupMarketplace(t)

	d.users.EXPECT().Count(gomock.Any()).Return(int64(0), errors.New("db down"))
	d.facilities.EXPECT().Count(gomock.Any()).Return(int64(0), nil).AnyTimes()
	d.credits.EXPECT().Count(gomock.Any()).Return(int64(0), nil).AnyTimes()
	d.txs.EXPECT().Count(gomock.Any()).Return(int64(0), nil).AnyTimes()

	_, err := d.svc.GetStats(context.Background(), auditor)
	assertAppError(t, err, "SYS_001")
}

func TestMarketplace_ClearCredits(t *testing.T) {
	t.Run("admin", func(t *testing.T) {
		d := setupMarketplace(t)
		d.credits.EXPECT().DeleteAll(gomock.Any()).Return(int64(7), nil)

		n, err := d.svc.ClearCredits(context.Background(), admin)
		require.NoError(t, err)
		assert.Equal(t, int64(7), n)
	})

	t.Run("non-admin", func(t *testing.T) {
		d := setupMarketplace(t)
		_, err := d.svc.ClearCredits(context.Background(), ports.Caller{UserID: uuid.New(), Role: domain.RoleValidator})
		assertAppError(t, err, "AUTH_005")
	})
}
