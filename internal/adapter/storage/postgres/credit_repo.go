package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"credit-ledger-bridge/internal/core/domain"
	"credit-ledger-bridge/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const creditColumns = `id, ledger_id, amount::text, unit_price::text,
	unit_price_minor, total_price_minor, price_scale, producer_id, facility_id, source,
	production_date, owner_id, status, validated_by, validated_at, created_at, updated_at`

// CreditRepo implements ports.CreditRepository. Status changes are single
// conditional UPDATEs so two callers can never both advance the same row.
type CreditRepo struct {
	pool Pool
}

// NewCreditRepo creates a new CreditRepo.
func NewCreditRepo(pool Pool) *CreditRepo {
	return &CreditRepo{pool: pool}
}

// Create inserts a new credit.
func (r *CreditRepo) Create(ctx context.Context, c *domain.Credit) error {
	query := `INSERT INTO credits (id, ledger_id, amount, unit_price,
		unit_price_minor, total_price_minor, price_scale, producer_id, facility_id, source,
		production_date, owner_id, status, validated_by, validated_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err := r.pool.Exec(ctx, query,
		c.ID, c.LedgerID, c.Amount.String(), c.UnitPrice.String(),
		c.UnitPriceMinor, c.TotalPriceMinor, c.PriceScale, c.ProducerID, c.FacilityID, c.Source,
		c.ProductionDate, c.OwnerID, c.Status, c.ValidatedBy, c.ValidatedAt, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert credit: %w", err)
	}
	return nil
}

// GetByID fetches a credit by UUID.
func (r *CreditRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Credit, error) {
	query := `SELECT ` + creditColumns + ` FROM credits WHERE id = $1`

	c := &domain.Credit{}
	err := scanCredit(r.pool.QueryRow(ctx, query, id), c)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get credit by id: %w", err)
	}
	return c, nil
}

// SetValidated moves a PENDING credit to VALIDATED.
func (r *CreditRepo) SetValidated(ctx context.Context, id, validatorID uuid.UUID, at time.Time) (*domain.Credit, error) {
	query := `UPDATE credits SET status = $1, validated_by = $2, validated_at = $3, updated_at = $3
		WHERE id = $4 AND status = $5
		RETURNING ` + creditColumns

	return r.transition(ctx, "set validated", query,
		domain.CreditStatusValidated, validatorID, at, id, domain.CreditStatusPending)
}

// SetLedgerBinding moves a VALIDATED credit to SETTLED_ON_CHAIN. The ledger
// id is written only if none is set.
func (r *CreditRepo) SetLedgerBinding(ctx context.Context, id uuid.UUID, ledgerID string) (*domain.Credit, error) {
	query := `UPDATE credits SET status = $1, ledger_id = $2, updated_at = $3
		WHERE id = $4 AND status = $5 AND ledger_id IS NULL
		RETURNING ` + creditColumns

	return r.transition(ctx, "set ledger binding", query,
		domain.CreditStatusSettledOnChain, ledgerID, time.Now().UTC(), id, domain.CreditStatusValidated)
}

// SetOwnership moves a SETTLED_ON_CHAIN credit to RETIRED under a new owner.
func (r *CreditRepo) SetOwnership(ctx context.Context, id, newOwnerID uuid.UUID) (*domain.Credit, error) {
	query := `UPDATE credits SET status = $1, owner_id = $2, updated_at = $3
		WHERE id = $4 AND status = $5
		RETURNING ` + creditColumns

	return r.transition(ctx, "set ownership", query,
		domain.CreditStatusRetired, newOwnerID, time.Now().UTC(), id, domain.CreditStatusSettledOnChain)
}

func (r *CreditRepo) transition(ctx context.Context, op, query string, args ...any) (*domain.Credit, error) {
	c := &domain.Credit{}
	err := scanCredit(r.pool.QueryRow(ctx, query, args...), c)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrStaleStatus
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// List fetches credits matching params, newest first.
func (r *CreditRepo) List(ctx context.Context, params ports.CreditListParams) ([]domain.Credit, error) {
	var conditions []string
	var args []any
	argIdx := 1

	add := func(cond string, v any) {
		conditions = append(conditions, fmt.Sprintf(cond, argIdx))
		args = append(args, v)
		argIdx++
	}

	if params.Status != nil {
		add("status = $%d", *params.Status)
	}
	if params.ProducerID != nil {
		add("producer_id = $%d", *params.ProducerID)
	}
	if params.OwnerID != nil {
		add("owner_id = $%d", *params.OwnerID)
	}
	if params.ExcludeOwnerID != nil {
		add("owner_id <> $%d", *params.ExcludeOwnerID)
	}
	if params.Source != nil {
		add("source = $%d", *params.Source)
	}
	if params.MaxUnitPrice != nil {
		add("unit_price <= $%d::numeric", params.MaxUnitPrice.String())
	}
	if params.MinAmount != nil {
		add("amount >= $%d::numeric", params.MinAmount.String())
	}
	if params.BoundOnly {
		conditions = append(conditions, "ledger_id IS NOT NULL")
	}

	query := `SELECT ` + creditColumns + ` FROM credits`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if params.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, params.Limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list credits: %w", err)
	}
	defer rows.Close()

	var credits []domain.Credit
	for rows.Next() {
		var c domain.Credit
		if err := scanCredit(rows, &c); err != nil {
			return nil, fmt.Errorf("scan credit: %w", err)
		}
		credits = append(credits, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list credits: %w", err)
	}
	return credits, nil
}

// Count returns the number of credits.
func (r *CreditRepo) Count(ctx context.Context) (int64, error) {
	return countRows(ctx, r.pool, "credits")
}

// DeleteAll removes every credit. Checkpoints and settlements cascade.
func (r *CreditRepo) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM credits`)
	if err != nil {
		return 0, fmt.Errorf("delete credits: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanCredit(row pgx.Row, c *domain.Credit) error {
	return row.Scan(
		&c.ID, &c.LedgerID, &c.Amount, &c.UnitPrice,
		&c.UnitPriceMinor, &c.TotalPriceMinor, &c.PriceScale, &c.ProducerID, &c.FacilityID, &c.Source,
		&c.ProductionDate, &c.OwnerID, &c.Status, &c.ValidatedBy, &c.ValidatedAt, &c.CreatedAt, &c.UpdatedAt,
	)
}
