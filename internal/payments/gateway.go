// Package payments keeps the payment ledger and talks to the card gateway.
package payments

import (
	"context"
	"fmt"
)

// ChargeRequest is one card charge.
type ChargeRequest struct {
	AmountCents int64
	Currency    string
	Token       string
	Description string
	Email       string
}

// Gateway charges and refunds cards. Charge returns the provider reference.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (string, error)
	Refund(ctx context.Context, reference string) error
}

// Manual is the gateway for cash-only deployments: every card charge is declined.
type Manual struct{}

// Charge always declines.
func (Manual) Charge(context.Context, ChargeRequest) (string, error) {
	return "", fmt.Errorf("%w: card payments are not accepted", ErrPaymentDeclined)
}

// Refund fails because there is nothing to refund against.
func (Manual) Refund(_ context.Context, reference string) error {
	return fmt.Errorf("%w: cannot refund %s without a card gateway", ErrGateway, reference)
}
