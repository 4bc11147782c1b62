package postgres

import (
	"context"
	"testing"

	"credit-ledger-bridge/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFacility() *domain.Facility {
	return &domain.Facility{
		ID:            uuid.New(),
		ProducerID:    uuid.New(),
		Name:          "North Ridge",
		Location:      "Lisbon",
		Source:        domain.SourceWind,
		Capacity:      decimal.RequireFromString("2500.5"),
		IsActive:      true,
		Certification: domain.CertificationUncertified,
		CreatedAt:     testTime(),
		UpdatedAt:     testTime(),
	}
}

func facilityRows(facilities ...*domain.Facility) *pgxmock.Rows {
	rows := pgxmock.NewRows([]string{"id", "producer_id", "name", "location", "source", "capacity", "is_active",
		"certification", "ledger_facility_id", "created_at", "updated_at"})
	for _, f := range facilities {
		rows.AddRow(f.ID, f.ProducerID, f.Name, f.Location, f.Source, f.Capacity.String(), f.IsActive,
			f.Certification, f.LedgerFacilityID, f.CreatedAt, f.UpdatedAt)
	}
	return rows
}

func TestFacilityRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewFacilityRepo(mock)
	f := newTestFacility()

	mock.ExpectExec("INSERT INTO facilities").
		WithArgs(f.ID, f.ProducerID, f.Name, f.Location, f.Source, "2500.5", f.IsActive,
			f.Certification, f.LedgerFacilityID, f.CreatedAt, f.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, repo.Create(context.Background(), f))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFacilityRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewFacilityRepo(mock)
	f := newTestFacility()
	f.LedgerFacilityID = strPtr("lf-7")

	mock.ExpectQuery("SELECT .+ FROM facilities WHERE id").
		WithArgs(f.ID).
		WillReturnRows(facilityRows(f))

	result, err := repo.GetByID(context.Background(), f.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, f.Capacity.Equal(result.Capacity))
	assert.True(t, result.IsMirrored())
	assert.Equal(t, domain.SourceWind, result.Source)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFacilityRepo_List_ByProducer(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewFacilityRepo(mock)
	a, b := newTestFacility(), newTestFacility()
	b.ProducerID = a.ProducerID

	mock.ExpectQuery("SELECT .+ FROM facilities WHERE producer_id").
		WithArgs(a.ProducerID).
		WillReturnRows(facilityRows(a, b))

	result, err := repo.List(context.Background(), &a.ProducerID)
	require.NoError(t, err)
	assert.Len(t, result, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFacilityRepo_SetLedgerMirror(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewFacilityRepo(mock)
	id := uuid.New()

	mock.ExpectExec("UPDATE facilities SET ledger_facility_id").
		WithArgs("lf-1", domain.CertificationCertified, pgxmock.AnyArg(), id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	assert.NoError(t, repo.SetLedgerMirror(context.Background(), id, "lf-1"))

	mock.ExpectExec("UPDATE facilities SET ledger_facility_id").
		WithArgs("lf-2", domain.CertificationCertified, pgxmock.AnyArg(), id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	assert.ErrorContains(t, repo.SetLedgerMirror(context.Background(), id, "lf-2"), "facility not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}
