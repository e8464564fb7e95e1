package payments

import "errors"

var (
	// ErrPaymentDeclined is returned when the gateway refuses a charge.
	ErrPaymentDeclined = errors.New("payment declined")
	// ErrGateway wraps transport or provider failures that are not a decline.
	ErrGateway = errors.New("payment gateway error")
	// ErrNotFound is returned for unknown payments.
	ErrNotFound = errors.New("payment not found")
	// ErrStateChanged is returned when a payment left the state an update expected.
	ErrStateChanged = errors.New("payment state changed")
)
