package models

import "time"

type TransactionStatus string

const (
	TransactionStatusPending  TransactionStatus = "pendente"
	TransactionStatusPaid     TransactionStatus = "pago"
	TransactionStatusOverdue  TransactionStatus = "atrasado"
	TransactionStatusCanceled TransactionStatus = "cancelado"
)

type Transaction struct {
	ID          string
	Description string
	AmountCents int64
	DueDate     time.Time
	Status      TransactionStatus
	PaidAt      *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
