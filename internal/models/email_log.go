package models

import (
	"time"

	"github.com/google/uuid"
)

// EmailType for notification mail.
const (
	EmailTypeRegistrationConfirmation = "registration_confirmation"
	EmailTypeUpgradeConfirmation      = "upgrade_confirmation"
	EmailTypeHoldMatched              = "hold_matched"
	EmailTypeDuplicateRegistration    = "duplicate_registration"
	EmailTypeRefundReport             = "refund_report"
)

// EmailLogStatus for delivery.
const (
	EmailLogStatusPending = "pending"
	EmailLogStatusSent    = "sent"
	EmailLogStatusFailed  = "failed"
)

// EmailLog records notification emails handed to the mailer.
type EmailLog struct {
	ID             uuid.UUID  `json:"id"`
	ConventionID   *uuid.UUID `json:"convention_id,omitempty"`
	RegistrationID *int64     `json:"registration_id,omitempty"`
	EmailType      string     `json:"email_type"`
	RecipientEmail string     `json:"recipient_email"`
	Subject        string     `json:"subject,omitempty"`
	Status         string     `json:"status"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
