package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"

	"github.com/andrey-berenda/locadora/internal/pkg/models"
)

const insertTransaction = `
INSERT INTO transactions (description, amount_cents, due_date, status)
VALUES ($1, $2, $3, $4)
RETURNING id, description, amount_cents, due_date, status, paid_at, created_at, updated_at;
`

const selectTransactionByID = `
SELECT id, description, amount_cents, due_date, status, paid_at, created_at, updated_at
FROM transactions
WHERE id = $1;
`

// Absolute assignment, so calling it again for the same transaction is harmless.
const setTransactionPaid = `
UPDATE transactions
SET status = 'pago', paid_at = $2, updated_at = now()
WHERE id = $1;
`

const setTransactionsOverdue = `
UPDATE transactions
SET status = 'atrasado', updated_at = now()
WHERE status = 'pendente' AND due_date < $1::date;
`

func (s *Store) TransactionCreate(ctx context.Context, t models.Transaction) (*models.Transaction, error) {
	rows, err := s.conn.Query(ctx, insertTransaction, t.Description, t.AmountCents, t.DueDate, t.Status)
	if err != nil {
		return nil, fmt.Errorf("conn.Query: %w", err)
	}
	defer rows.Close()
	return scanOneTransaction(rows)
}

func (s *Store) TransactionGet(ctx context.Context, transactionID string) (*models.Transaction, error) {
	rows, err := s.conn.Query(ctx, selectTransactionByID, transactionID)
	if err != nil {
		return nil, fmt.Errorf("conn.Query: %w", err)
	}
	defer rows.Close()
	return scanOneTransaction(rows)
}

func (s *Store) TransactionMarkPaid(ctx context.Context, transactionID string, paidAt time.Time) error {
	result, err := s.conn.Exec(ctx, setTransactionPaid, transactionID, paidAt)
	if err != nil {
		return fmt.Errorf("conn.Exec: %w", err)
	}
	if result.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

// TransactionsMarkOverdue flips every pending transaction due strictly before
// cutoff to overdue and returns how many rows changed.
func (s *Store) TransactionsMarkOverdue(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.conn.Exec(ctx, setTransactionsOverdue, cutoff.Format("2006-01-02"))
	if err != nil {
		return 0, fmt.Errorf("conn.Exec: %w", err)
	}
	return result.RowsAffected(), nil
}

// scanOneTransaction reads the first row. A failed query is reported as such,
// not as ErrNotFound.
func scanOneTransaction(rows pgx.Rows) (*models.Transaction, error) {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("rows.Next: %w", err)
		}
		return nil, ErrNotFound
	}
	t, err := scanTransaction(rows)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func scanTransaction(rows pgx.Rows) (models.Transaction, error) {
	t := models.Transaction{}
	err := rows.Scan(
		&t.ID,
		&t.Description,
		&t.AmountCents,
		&t.DueDate,
		&t.Status,
		&t.PaidAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return t, fmt.Errorf("rows.Scan: %w", err)
	}
	return t, nil
}
