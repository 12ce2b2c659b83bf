package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	KindPaymentReceived  = "PAYMENT_RECEIVED"
	KindPaymentConfirmed = "PAYMENT_CONFIRMED"
)

var ErrInvalidPayload = errors.New("invalid webhook payload")

// Payment is the payment descriptor the provider sends with every event.
type Payment struct {
	ID                string  `json:"id"`
	Customer          string  `json:"customer"`
	Value             float64 `json:"value"`
	Status            string  `json:"status"`
	DateCreated       string  `json:"dateCreated"`
	DueDate           string  `json:"dueDate"`
	ConfirmedDate     *string `json:"confirmedDate,omitempty"`
	ExternalReference *string `json:"externalReference,omitempty"`
}

// Event is one of PaymentReceived, PaymentConfirmed or Unrecognized.
type Event interface {
	Kind() string
	Payment() Payment
	settlesPayment() bool
}

type PaymentReceived struct {
	payment Payment
}

func (e PaymentReceived) Kind() string         { return KindPaymentReceived }
func (e PaymentReceived) Payment() Payment     { return e.payment }
func (e PaymentReceived) settlesPayment() bool { return true }

type PaymentConfirmed struct {
	payment Payment
}

func (e PaymentConfirmed) Kind() string         { return KindPaymentConfirmed }
func (e PaymentConfirmed) Payment() Payment     { return e.payment }
func (e PaymentConfirmed) settlesPayment() bool { return true }

// Unrecognized is acknowledged and otherwise ignored. Its payment may be empty.
type Unrecognized struct {
	kind    string
	payment Payment
}

func (e Unrecognized) Kind() string         { return e.kind }
func (e Unrecognized) Payment() Payment     { return e.payment }
func (e Unrecognized) settlesPayment() bool { return false }

type envelope struct {
	Event   string   `json:"event"`
	Payment *Payment `json:"payment"`
}

// ParseEvent validates the body before any field is used. The settling kinds
// must carry a payment with a non-empty id; any other kind is Unrecognized and
// may have no payment at all.
func ParseEvent(body []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	switch env.Event {
	case KindPaymentReceived, KindPaymentConfirmed:
	default:
		u := Unrecognized{kind: env.Event}
		if env.Payment != nil {
			u.payment = *env.Payment
		}
		return u, nil
	}

	if env.Payment == nil {
		return nil, fmt.Errorf("%w: missing payment", ErrInvalidPayload)
	}
	if env.Payment.ID == "" {
		return nil, fmt.Errorf("%w: missing payment.id", ErrInvalidPayload)
	}
	if env.Event == KindPaymentConfirmed {
		return PaymentConfirmed{payment: *env.Payment}, nil
	}
	return PaymentReceived{payment: *env.Payment}, nil
}
