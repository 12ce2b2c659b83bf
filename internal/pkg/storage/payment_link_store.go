package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"github.com/andrey-berenda/locadora/internal/pkg/models"
)

const paymentLinkColumns = `id, external_id, provider, status, amount_cents, description, invoice_url,
	customer_phone, confirmation_sent, transaction_id, raw_payload, paid_at, created_at, updated_at`

const insertPaymentLink = `
INSERT INTO payment_links (
	external_id,
	provider,
	status,
	amount_cents,
	description,
	invoice_url,
	customer_phone,
	transaction_id
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + paymentLinkColumns + `;
`

// LIMIT 2 is enough to detect a broken uniqueness invariant.
const selectPaymentLinkByExternalID = `
SELECT ` + paymentLinkColumns + `
FROM payment_links
WHERE provider = $1 AND external_id = $2
LIMIT 2;
`

const setPaymentLinkReceived = `
UPDATE payment_links
SET status = 'received', paid_at = $2, raw_payload = $3, updated_at = $2
WHERE id = $1;
`

const setPaymentLinkConfirmationSent = `
UPDATE payment_links
SET confirmation_sent = true, updated_at = now()
WHERE id = $1;
`

func (s *Store) PaymentLinkCreate(ctx context.Context, l models.PaymentLink) (*models.PaymentLink, error) {
	rows, err := s.conn.Query(
		ctx,
		insertPaymentLink,
		l.ExternalID,
		l.Provider,
		l.Status,
		l.AmountCents,
		l.Description,
		l.InvoiceURL,
		l.CustomerPhone,
		l.TransactionID,
	)
	if err != nil {
		return nil, fmt.Errorf("conn.Query: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err = rows.Err(); err != nil {
			return nil, fmt.Errorf("rows.Next: %w", err)
		}
		return nil, ErrNotFound
	}
	created, err := scanPaymentLink(rows)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// PaymentLinkGetByExternalID returns ErrNotFound when nothing matches and
// ErrAmbiguous when the (provider, external id) uniqueness does not hold.
func (s *Store) PaymentLinkGetByExternalID(
	ctx context.Context,
	provider models.PaymentProvider,
	externalID string,
) (*models.PaymentLink, error) {
	rows, err := s.conn.Query(ctx, selectPaymentLinkByExternalID, provider, externalID)
	if err != nil {
		return nil, fmt.Errorf("conn.Query: %w", err)
	}
	defer rows.Close()

	var result []models.PaymentLink
	for rows.Next() {
		l, err := scanPaymentLink(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, l)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	switch len(result) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return &result[0], nil
	default:
		return nil, fmt.Errorf("%s/%s: %w", provider, externalID, ErrAmbiguous)
	}
}

func (s *Store) PaymentLinkMarkReceived(ctx context.Context, linkID uuid.UUID, paidAt time.Time, rawPayload []byte) error {
	result, err := s.conn.Exec(ctx, setPaymentLinkReceived, linkID, paidAt, rawPayload)
	if err != nil {
		return fmt.Errorf("conn.Exec: %w", err)
	}
	if result.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) PaymentLinkSetConfirmationSent(ctx context.Context, linkID uuid.UUID) error {
	result, err := s.conn.Exec(ctx, setPaymentLinkConfirmationSent, linkID)
	if err != nil {
		return fmt.Errorf("conn.Exec: %w", err)
	}
	if result.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

func scanPaymentLink(rows pgx.Rows) (models.PaymentLink, error) {
	l := models.PaymentLink{}
	err := rows.Scan(
		&l.ID,
		&l.ExternalID,
		&l.Provider,
		&l.Status,
		&l.AmountCents,
		&l.Description,
		&l.InvoiceURL,
		&l.CustomerPhone,
		&l.ConfirmationSent,
		&l.TransactionID,
		&l.RawPayload,
		&l.PaidAt,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		return l, fmt.Errorf("rows.Scan: %w", err)
	}
	return l, nil
}
