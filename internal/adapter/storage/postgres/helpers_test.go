package postgres

import (
	"time"

	"credit-ledger-bridge/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
)

func strPtr(s string) *string { return &s }

func testTime() time.Time {
	return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
}

func newTestCredit() *domain.Credit {
	producer := uuid.New()
	return &domain.Credit{
		ID:              uuid.New(),
		Amount:          decimal.NewFromInt(1000),
		UnitPrice:       decimal.RequireFromString("0.01"),
		UnitPriceMinor:  1,
		TotalPriceMinor: 1000,
		PriceScale:      2,
		ProducerID:      producer,
		FacilityID:      uuid.New(),
		Source:          domain.SourceSolar,
		ProductionDate:  testTime().AddDate(0, 0, -2),
		OwnerID:         producer,
		Status:          domain.CreditStatusPending,
		CreatedAt:       testTime(),
		UpdatedAt:       testTime(),
	}
}

func creditColumnNames() []string {
	return []string{"id", "ledger_id", "amount", "unit_price",
		"unit_price_minor", "total_price_minor", "price_scale", "producer_id", "facility_id", "source",
		"production_date", "owner_id", "status", "validated_by", "validated_at", "created_at", "updated_at"}
}

func creditRows(credits ...*domain.Credit) *pgxmock.Rows {
	rows := pgxmock.NewRows(creditColumnNames())
	for _, c := range credits {
		rows.AddRow(
			c.ID, c.LedgerID, c.Amount.String(), c.UnitPrice.String(),
			c.UnitPriceMinor, c.TotalPriceMinor, c.PriceScale, c.ProducerID, c.FacilityID, c.Source,
			c.ProductionDate, c.OwnerID, c.Status, c.ValidatedBy, c.ValidatedAt, c.CreatedAt, c.UpdatedAt,
		)
	}
	return rows
}
