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

// LedgerMintRepo implements ports.LedgerMintRepository.
type LedgerMintRepo struct {
	pool Pool
}

// NewLedgerMintRepo creates a new LedgerMintRepo.
func NewLedgerMintRepo(pool Pool) *LedgerMintRepo {
	return &LedgerMintRepo{pool: pool}
}

// Record inserts the mint checkpoint. The first checkpoint for a credit wins.
func (r *LedgerMintRepo) Record(ctx context.Context, m *domain.LedgerMint) error {
	query := `INSERT INTO credit_ledger_mints (credit_id, ledger_credit_id, marked, minted_at, marked_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (credit_id) DO NOTHING`

	_, err := r.pool.Exec(ctx, query, m.CreditID, m.LedgerCreditID, m.Marked, m.MintedAt, m.MarkedAt)
	if err != nil {
		return fmt.Errorf("insert ledger mint: %w", err)
	}
	return nil
}

// Get fetches the checkpoint for a credit.
func (r *LedgerMintRepo) Get(ctx context.Context, creditID uuid.UUID) (*domain.LedgerMint, error) {
	query := `SELECT credit_id, ledger_credit_id, marked, minted_at, marked_at
		FROM credit_ledger_mints WHERE credit_id = $1`

	m := &domain.LedgerMint{}
	err := r.pool.QueryRow(ctx, query, creditID).Scan(
		&m.CreditID, &m.LedgerCreditID, &m.Marked, &m.MintedAt, &m.MarkedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get ledger mint: %w", err)
	}
	return m, nil
}

// MarkValidated records that the ledger token was marked validated.
func (r *LedgerMintRepo) MarkValidated(ctx context.Context, creditID uuid.UUID, at time.Time) error {
	query := `UPDATE credit_ledger_mints SET marked = TRUE, marked_at = $1 WHERE credit_id = $2`

	tag, err := r.pool.Exec(ctx, query, at, creditID)
	if err != nil {
		return fmt.Errorf("mark ledger mint validated: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ledger mint not found: %s", creditID)
	}
	return nil
}
