package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditEntry is an append-only record of a staff action on a registration.
type AuditEntry struct {
	ID             uuid.UUID  `json:"id"`
	RegistrationID int64      `json:"registration_id"`
	ActorID        *uuid.UUID `json:"actor_id,omitempty"`
	Action         string     `json:"action"`
	Message        string     `json:"message"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Actor is the staff member (or anonymous attendee) performing an operation.
type Actor struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	Role     Role      `json:"role"`
}

// IDPtr returns nil for the anonymous actor.
func (a Actor) IDPtr() *uuid.UUID {
	if a.UserID == uuid.Nil {
		return nil
	}
	id := a.UserID
	return &id
}
