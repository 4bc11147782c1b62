package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"credit-ledger-bridge/internal/core/domain"
	"credit-ledger-bridge/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const transactionColumns = `id, credit_id, from_user_id, to_user_id, amount::text, unit_price::text,
	total_price_minor, ledger_reference, transaction_type, status, created_at`

const ledgerReferenceConstraint = "transactions_ledger_reference_key"

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create inserts a settlement record. The unique ledger reference makes a
// second record for the same ledger purchase impossible.
func (r *TransactionRepo) Create(ctx context.Context, t *domain.Transaction) error {
	query := `INSERT INTO transactions (id, credit_id, from_user_id, to_user_id, amount, unit_price,
		total_price_minor, ledger_reference, transaction_type, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.pool.Exec(ctx, query,
		t.ID, t.CreditID, t.FromUserID, t.ToUserID, t.Amount.String(), t.UnitPrice.String(),
		t.TotalPriceMinor, t.LedgerReference, t.TransactionType, t.Status, t.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, ledgerReferenceConstraint) {
			return domain.ErrDuplicateSettlement
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetByLedgerReference fetches the settlement for a ledger purchase reference.
func (r *TransactionRepo) GetByLedgerReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE ledger_reference = $1`

	t := &domain.Transaction{}
	err := scanTransaction(r.pool.QueryRow(ctx, query, reference), t)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get transaction by ledger reference: %w", err)
	}
	return t, nil
}

// ListByCredit returns every settlement of a credit, oldest first.
func (r *TransactionRepo) ListByCredit(ctx context.Context, creditID uuid.UUID) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE credit_id = $1 ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, creditID)
	if err != nil {
		return nil, fmt.Errorf("list transactions by credit: %w", err)
	}
	return collectTransactions(rows)
}

// ListByUser fetches settlements where the user bought or sold, with pagination.
func (r *TransactionRepo) ListByUser(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	conditions := []string{"(from_user_id = $1 OR to_user_id = $1)"}
	args := []any{params.UserID}
	argIdx := 2

	if params.Type != nil {
		conditions = append(conditions, fmt.Sprintf("transaction_type = $%d", argIdx))
		args = append(args, *params.Type)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	// Count total
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM transactions %s", where)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	// Fetch page
	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM transactions %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		transactionColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	txns, err := collectTransactions(rows)
	if err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}

// Count returns the number of settlement records.
func (r *TransactionRepo) Count(ctx context.Context) (int64, error) {
	return countRows(ctx, r.pool, "transactions")
}

func collectTransactions(rows pgx.Rows) ([]domain.Transaction, error) {
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := scanTransaction(rows, &t); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txns, nil
}

func scanTransaction(row pgx.Row, t *domain.Transaction) error {
	return row.Scan(
		&t.ID, &t.CreditID, &t.FromUserID, &t.ToUserID, &t.Amount, &t.UnitPrice,
		&t.TotalPriceMinor, &t.LedgerReference, &t.TransactionType, &t.Status, &t.CreatedAt,
	)
}
