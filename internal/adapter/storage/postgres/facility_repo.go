package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"credit-ledger-bridge/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const facilityColumns = `id, producer_id, name, location, source, capacity::text, is_active,
	certification, ledger_facility_id, created_at, updated_at`

// FacilityRepo implements ports.FacilityRepository.
type FacilityRepo struct {
	pool Pool
}

// NewFacilityRepo creates a new FacilityRepo.
func NewFacilityRepo(pool Pool) *FacilityRepo {
	return &FacilityRepo{pool: pool}
}

// Create inserts a new facility.
func (r *FacilityRepo) Create(ctx context.Context, f *domain.Facility) error {
	query := `INSERT INTO facilities (id, producer_id, name, location, source, capacity, is_active,
		certification, ledger_facility_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.pool.Exec(ctx, query,
		f.ID, f.ProducerID, f.Name, f.Location, f.Source, f.Capacity.String(), f.IsActive,
		f.Certification, f.LedgerFacilityID, f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert facility: %w", err)
	}
	return nil
}

// GetByID fetches a facility by UUID.
func (r *FacilityRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Facility, error) {
	query := `SELECT ` + facilityColumns + ` FROM facilities WHERE id = $1`

	f := &domain.Facility{}
	err := scanFacility(r.pool.QueryRow(ctx, query, id), f)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get facility by id: %w", err)
	}
	return f, nil
}

// List returns facilities, optionally only those of one producer.
func (r *FacilityRepo) List(ctx context.Context, producerID *uuid.UUID) ([]domain.Facility, error) {
	query := `SELECT ` + facilityColumns + ` FROM facilities`
	var args []any
	if producerID != nil {
		query += ` WHERE producer_id = $1`
		args = append(args, *producerID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list facilities: %w", err)
	}
	defer rows.Close()

	var facilities []domain.Facility
	for rows.Next() {
		var f domain.Facility
		if err := scanFacility(rows, &f); err != nil {
			return nil, fmt.Errorf("scan facility: %w", err)
		}
		facilities = append(facilities, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list facilities: %w", err)
	}
	return facilities, nil
}

// SetLedgerMirror records the ledger-side facility id and certifies the facility.
func (r *FacilityRepo) SetLedgerMirror(ctx context.Context, id uuid.UUID, ledgerFacilityID string) error {
	query := `UPDATE facilities SET ledger_facility_id = $1, certification = $2, updated_at = $3 WHERE id = $4`

	tag, err := r.pool.Exec(ctx, query, ledgerFacilityID, domain.CertificationCertified, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set facility ledger mirror: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("facility not found: %s", id)
	}
	return nil
}

// Count returns the number of registered facilities.
func (r *FacilityRepo) Count(ctx context.Context) (int64, error) {
	return countRows(ctx, r.pool, "facilities")
}

func scanFacility(row pgx.Row, f *domain.Facility) error {
	return row.Scan(
		&f.ID, &f.ProducerID, &f.Name, &f.Location, &f.Source, &f.Capacity, &f.IsActive,
		&f.Certification, &f.LedgerFacilityID, &f.CreatedAt, &f.UpdatedAt,
	)
}
