package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/andrey-berenda/locadora/internal/pkg/models"
	"github.com/andrey-berenda/locadora/internal/pkg/ptr"
)

type Store interface {
	NotificationCreate(ctx context.Context, n models.Notification) error
	NotificationSetStatus(
		ctx context.Context,
		notificationID uuid.UUID,
		status models.NotificationStatus,
		errText *string,
		sentAt *time.Time,
	) error
}

type Message struct {
	To            string
	Body          string
	PaymentLinkID *uuid.UUID
}

type Service struct {
	store  Store
	sender Sender
	ops    OpsNotifier
	logger *zap.SugaredLogger
	now    func() time.Time
}

// New builds the dispatcher. ops may be nil.
func New(store Store, sender Sender, ops OpsNotifier, logger *zap.SugaredLogger) *Service {
	return &Service{
		store:  store,
		sender: sender,
		ops:    ops,
		logger: logger,
		now:    time.Now,
	}
}

// Dispatch records the notification, sends it to the customer and returns the
// send error, if any. The ops copy never affects the result.
func (s *Service) Dispatch(ctx context.Context, m Message) error {
	to := NormalizePhone(m.To)
	if to == "" {
		return fmt.Errorf("invalid recipient %q", m.To)
	}

	n := models.Notification{
		ID:            uuid.New(),
		Channel:       models.NotificationChannelWhatsApp,
		Recipient:     to,
		Body:          m.Body,
		Status:        models.NotificationStatusQueued,
		PaymentLinkID: m.PaymentLinkID,
	}
	if err := s.store.NotificationCreate(ctx, n); err != nil {
		return fmt.Errorf("store.NotificationCreate: %w", err)
	}

	sendErr := s.sender.Send(ctx, to, m.Body)
	if sendErr != nil {
		err := s.store.NotificationSetStatus(ctx, n.ID, models.NotificationStatusFailed, ptr.Of(sendErr.Error()), nil)
		if err != nil {
			s.logger.Errorf("store.NotificationSetStatus(%s): %v", models.NotificationStatusFailed, err)
		}
		return fmt.Errorf("sender.Send: %w", sendErr)
	}

	err := s.store.NotificationSetStatus(ctx, n.ID, models.NotificationStatusSent, nil, ptr.Of(s.now()))
	if err != nil {
		s.logger.Errorf("store.NotificationSetStatus(%s): %v", models.NotificationStatusSent, err)
	}

	if s.ops != nil {
		if err = s.ops.Notify(ctx, fmt.Sprintf("Mensagem enviada para %s:\n%s", to, m.Body)); err != nil {
			s.logger.Warnf("ops.Notify: %v", err)
		}
	}
	return nil
}
