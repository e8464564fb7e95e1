package registrations

import (
	"errors"
	"fmt"
	"strings"

	"github.com/conreg/backend/internal/catalog"
	"github.com/conreg/backend/internal/coupons"
	"github.com/conreg/backend/internal/payments"
)

var (
	ErrNotFound                 = errors.New("registration not found")
	ErrCrossConvention          = errors.New("cannot operate across convention years")
	ErrPrivilegedActionRequired = errors.New("this registration requires a registration lead")
	ErrAlreadyProcessed         = errors.New("refund already processed, cannot undo")
	ErrNotPaid                  = errors.New("registration is not paid")
	ErrCheckedIn                = errors.New("registration is checked in")
	ErrInvalidTransition        = errors.New("invalid status transition")
	ErrPaymentRequired          = errors.New("payment or coupon required")
	ErrRegistrationClosed       = errors.New("registration is closed")
	ErrInvalidInput             = errors.New("invalid input")

	ErrCapacityExceeded   = catalog.ErrCapacityExceeded
	ErrDeadlinePassed     = catalog.ErrDeadlinePassed
	ErrLevelUnavailable   = catalog.ErrLevelUnavailable
	ErrNoActivePrice      = catalog.ErrNoActivePrice
	ErrUpgradeUnavailable = catalog.ErrUpgradeUnavailable
	ErrInvalidCoupon      = coupons.ErrInvalidCoupon
	ErrPaymentDeclined    = payments.ErrPaymentDeclined
)

// ItemError is one failed member of a batch.
type ItemError struct {
	RegistrationID int64
	Err            error
}

// BatchError lists every member that failed validation. Nothing in the batch was written.
type BatchError struct {
	Items []ItemError
}

func (e *BatchError) Error() string {
	parts := make([]string, 0, len(e.Items))
	for _, it := range e.Items {
		parts = append(parts, fmt.Sprintf("%d: %v", it.RegistrationID, it.Err))
	}
	return "batch rejected: " + strings.Join(parts, "; ")
}

// Unwrap exposes the first cause to errors.Is.
func (e *BatchError) Unwrap() error {
	if len(e.Items) == 0 {
		return nil
	}
	return e.Items[0].Err
}
