package models

import (
	"time"

	"github.com/google/uuid"
)

type NotificationChannel string

const NotificationChannelWhatsApp NotificationChannel = "whatsapp"

type NotificationStatus string

const (
	NotificationStatusQueued NotificationStatus = "queued"
	NotificationStatusSent   NotificationStatus = "sent"
	NotificationStatusFailed NotificationStatus = "failed"
)

type Notification struct {
	ID            uuid.UUID
	Channel       NotificationChannel
	Recipient     string
	Body          string
	Status        NotificationStatus
	Error         *string
	PaymentLinkID *uuid.UUID
	CreatedAt     time.Time
	SentAt        *time.Time
}
