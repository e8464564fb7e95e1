package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentState of a payment row.
type PaymentState string

const (
	PaymentStatePaid            PaymentState = "paid"
	PaymentStateRefundRequested PaymentState = "refund_requested"
	// PaymentStateRefundSettling is held by the settlement job while the gateway refund runs.
	PaymentStateRefundSettling PaymentState = "refund_settling"
	PaymentStateRefunded        PaymentState = "refunded"
)

// PaymentMethod is a way of paying (cash, credit, comp).
// Credit methods carry a gateway reference and settle refunds later.
type PaymentMethod struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Credit bool      `json:"credit"`
	Active bool      `json:"active"`
	Seq    int       `json:"seq"`
}

// Payment is an append-only ledger row for one registration.
type Payment struct {
	ID                uuid.UUID    `json:"id"`
	RegistrationID    int64        `json:"registration_id"`
	PaymentMethodID   uuid.UUID    `json:"payment_method_id"`
	MethodCredit      bool         `json:"method_credit"`
	AmountCents       int64        `json:"amount_cents"`
	Reference         string       `json:"reference,omitempty"`
	State             PaymentState `json:"state"`
	CreatedBy         *uuid.UUID   `json:"created_by,omitempty"`
	RefundRequestedBy *uuid.UUID   `json:"refund_requested_by,omitempty"`
	RefundRequestedAt *time.Time   `json:"refund_requested_at,omitempty"`
	RefundProcessedBy *uuid.UUID   `json:"refund_processed_by,omitempty"`
	RefundProcessedAt *time.Time   `json:"refund_processed_at,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
}

// DeferredRefund reports whether a refund of this payment goes through gateway settlement.
func (p *Payment) DeferredRefund() bool {
	return p.MethodCredit && p.Reference != ""
}
