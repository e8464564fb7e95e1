// Package badges derives public badge numbers and records badge prints.
package badges

import (
	"fmt"

	"github.com/conreg/backend/internal/models"
)

// Format renders a badge number zero-padded to five digits.
func Format(n int64) string {
	return fmt.Sprintf("%05d", n)
}

// Number returns the public badge number of a registration. latest is the
// most recent assignment, or nil when the badge was never printed.
func Number(cv *models.Convention, reg *models.Registration, latest *models.BadgeAssignment) (string, bool) {
	switch cv.Settings.BadgeNumberStyle {
	case models.BadgeNumberAssignedWhenPrinted:
		if latest == nil {
			return "", false
		}
		return Format(latest.ID), true
	default:
		if reg.NeedsPrint.Pending() {
			return "", false
		}
		return Format(reg.ID - cv.Settings.BadgeOffset), true
	}
}

// RegistrationID maps a number typed at the desk back to a registration id
// under the registration-number style.
func RegistrationID(cv *models.Convention, badgeNumber int64) int64 {
	return badgeNumber + cv.Settings.BadgeOffset
}
