package registrations

import (
	"fmt"

	"github.com/conreg/backend/internal/models"
)

var transitions = map[models.RegistrationStatus][]models.RegistrationStatus{
	models.StatusUnpaid:            {models.StatusPaymentInProgress, models.StatusPaid, models.StatusRejected},
	models.StatusPaymentInProgress: {models.StatusPaid, models.StatusUnpaid, models.StatusRejected},
	models.StatusPaid:              {models.StatusRefunded, models.StatusRejected},
	models.StatusRefunded:          {models.StatusPaid, models.StatusRejected},
	models.StatusRejected:          nil,
}

// CanTransition reports whether from -> to is a legal status change.
func CanTransition(from, to models.RegistrationStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func transition(reg *models.Registration, to models.RegistrationStatus) error {
	if !CanTransition(reg.Status, to) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, reg.Status, to)
	}
	reg.Status = to
	return nil
}

// checkInvariants runs before every write.
func checkInvariants(reg *models.Registration) error {
	if reg.CheckedIn && reg.Status != models.StatusPaid {
		return fmt.Errorf("%w: checked in registration must be paid", ErrNotPaid)
	}
	return nil
}

// rearmPrint marks an already printed badge for reprint after a level change.
func rearmPrint(reg *models.Registration) {
	if reg.NeedsPrint == models.NeedsPrintNo {
		reg.NeedsPrint = models.NeedsPrintYesUpgraded
	}
}
