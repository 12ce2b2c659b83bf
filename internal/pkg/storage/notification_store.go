package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/andrey-berenda/locadora/internal/pkg/models"
)

const insertNotification = `
INSERT INTO notifications (id, channel, recipient, body, status, payment_link_id)
VALUES ($1, $2, $3, $4, $5, $6);
`

const setNotificationStatus = `
UPDATE notifications
SET status = $2, error = $3, sent_at = $4
WHERE id = $1;
`

func (s *Store) NotificationCreate(ctx context.Context, n models.Notification) error {
	_, err := s.conn.Exec(
		ctx,
		insertNotification,
		n.ID,
		n.Channel,
		n.Recipient,
		n.Body,
		n.Status,
		n.PaymentLinkID,
	)
	if err != nil {
		return fmt.Errorf("conn.Exec: %w", err)
	}
	return nil
}

func (s *Store) NotificationSetStatus(
	ctx context.Context,
	notificationID uuid.UUID,
	status models.NotificationStatus,
	errText *string,
	sentAt *time.Time,
) error {
	result, err := s.conn.Exec(ctx, setNotificationStatus, notificationID, status, errText, sentAt)
	if err != nil {
		return fmt.Errorf("conn.Exec: %w", err)
	}
	if result.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}
