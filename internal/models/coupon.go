package models

import (
	"time"

	"github.com/google/uuid"
)

// Coupon is a discount code for a convention.
type Coupon struct {
	ID                 uuid.UUID  `json:"id"`
	ConventionID       uuid.UUID  `json:"convention_id"`
	Code               string     `json:"code"`
	Percent            bool       `json:"percent"`
	Discount           int64      `json:"discount"` // cents, or 0-100 when Percent
	SingleUse          bool       `json:"single_use"`
	ForceLevelID       *uuid.UUID `json:"force_level_id,omitempty"`
	ForceDealerLevelID *uuid.UUID `json:"force_dealer_level_id,omitempty"`
	Notes              string     `json:"notes,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// CouponUse ties a consumed coupon to a registration.
type CouponUse struct {
	ID             uuid.UUID `json:"id"`
	CouponID       uuid.UUID `json:"coupon_id"`
	RegistrationID int64     `json:"registration_id"`
	SingleUse      bool      `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}
