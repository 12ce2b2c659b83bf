package models

import (
	"time"

	"github.com/google/uuid"
)

type PaymentProvider string

const PaymentProviderAsaas PaymentProvider = "asaas"

type PaymentStatus string

const (
	PaymentStatusCreated  PaymentStatus = "created"
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusReceived PaymentStatus = "received"
	PaymentStatusFailed   PaymentStatus = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusReceived || s == PaymentStatusFailed
}

// PaymentLink maps a payment request issued by us to the charge tracked by
// the provider. (Provider, ExternalID) is unique.
type PaymentLink struct {
	ID               uuid.UUID
	ExternalID       string
	Provider         PaymentProvider
	Status           PaymentStatus
	AmountCents      int64
	Description      string
	InvoiceURL       *string
	CustomerPhone    *string
	ConfirmationSent bool
	TransactionID    *string
	RawPayload       []byte
	PaidAt           *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
