package models

import (
	"time"

	"github.com/google/uuid"
)

// BadgeNumberStyle selects how public badge numbers are derived for a convention.
type BadgeNumberStyle string

const (
	// BadgeNumberAssignedWhenPrinted uses the latest badge assignment id.
	BadgeNumberAssignedWhenPrinted BadgeNumberStyle = "printed"
	// BadgeNumberAssignedAtRegistration uses the registration id minus the convention offset.
	BadgeNumberAssignedAtRegistration BadgeNumberStyle = "registration"
)

// Convention is one event year.
type Convention struct {
	ID           uuid.UUID            `json:"id"`
	Name         string               `json:"name"`
	StartsAt     time.Time            `json:"starts_at"`
	EndsAt       *time.Time           `json:"ends_at,omitempty"`
	ContactEmail string               `json:"contact_email"`
	Settings     RegistrationSettings `json:"settings"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// RegistrationSettings are the per-convention registration knobs.
type RegistrationSettings struct {
	RegistrationOpen bool             `json:"registration_open"`
	BadgeNumberStyle BadgeNumberStyle `json:"badge_number_style"`
	BadgeOffset      int64            `json:"badge_offset"`
	DealerTableLimit int              `json:"dealer_table_limit"` // 0 = unlimited
}

// DefaultRegistrationSettings mirrors what a freshly created convention gets.
func DefaultRegistrationSettings() RegistrationSettings {
	return RegistrationSettings{
		RegistrationOpen: true,
		BadgeNumberStyle: BadgeNumberAssignedAtRegistration,
	}
}
