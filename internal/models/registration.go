package models

import (
	"time"

	"github.com/google/uuid"
)

// RegistrationStatus is the payment lifecycle state of a registration.
type RegistrationStatus string

const (
	StatusUnpaid            RegistrationStatus = "unpaid"
	StatusPaid              RegistrationStatus = "paid"
	StatusPaymentInProgress RegistrationStatus = "payment_in_progress"
	StatusRefunded          RegistrationStatus = "refunded"
	StatusRejected          RegistrationStatus = "rejected"
)

// NeedsPrint tracks whether a badge must be (re)printed and why.
type NeedsPrint string

const (
	NeedsPrintNo          NeedsPrint = "no"
	NeedsPrintYesNew      NeedsPrint = "yes_new"
	NeedsPrintYesUpgraded NeedsPrint = "yes_upgraded"
)

// Pending reports whether a badge print is outstanding.
func (n NeedsPrint) Pending() bool {
	return n == NeedsPrintYesNew || n == NeedsPrintYesUpgraded
}

// Registration is an attendee registration for one convention.
type Registration struct {
	ID                  int64              `json:"id"`
	ExternalID          string             `json:"external_id,omitempty"`
	ConventionID        uuid.UUID          `json:"convention_id"`
	UserID              *uuid.UUID         `json:"user_id,omitempty"`
	FirstName           string             `json:"first_name"`
	LastName            string             `json:"last_name"`
	BadgeName           string             `json:"badge_name"`
	Email               string             `json:"email"`
	EmailMe             bool               `json:"email_me"`
	Address             string             `json:"address"`
	City                string             `json:"city"`
	State               string             `json:"state"`
	PostalCode          string             `json:"postal_code"`
	Country             string             `json:"country"`
	Birthday            time.Time          `json:"birthday"`
	RegistrationLevelID uuid.UUID          `json:"registration_level_id"`
	DealerLevelID       *uuid.UUID         `json:"dealer_level_id,omitempty"`
	ShirtSize           string             `json:"shirt_size,omitempty"`
	Volunteer           bool               `json:"volunteer"`
	VolunteerPhone      string             `json:"volunteer_phone,omitempty"`
	EmergencyContact    string             `json:"emergency_contact,omitempty"`
	RoomNumber          *int               `json:"room_number,omitempty"`
	Notes               string             `json:"notes,omitempty"`
	PrivateNotes        string             `json:"-"`
	PrivateCheckIn      bool               `json:"private_check_in"`
	CheckedIn           bool               `json:"checked_in"`
	CheckedInAt         *time.Time         `json:"checked_in_at,omitempty"`
	Status              RegistrationStatus `json:"status"`
	NeedsPrint          NeedsPrint         `json:"needs_print"`
	IP                  string             `json:"-"`
	RegisteredAt        time.Time          `json:"registered_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
}

// Paid reports whether the registration is in the paid state.
func (r *Registration) Paid() bool { return r.Status == StatusPaid }

// FullName returns "First Last", or "Last, First" when lastFirst is set.
func (r *Registration) FullName(lastFirst bool) string {
	if lastFirst {
		return r.LastName + ", " + r.FirstName
	}
	return r.FirstName + " " + r.LastName
}

// RegistrationHold is a watch-list entry compared against new registrations.
// Empty fields are ignored; every set field must match for the hold to apply.
type RegistrationHold struct {
	ID                      uuid.UUID  `json:"id"`
	FirstName               string     `json:"first_name,omitempty"`
	LastName                string     `json:"last_name,omitempty"`
	BadgeName               string     `json:"badge_name,omitempty"`
	Email                   string     `json:"email,omitempty"`
	Address                 string     `json:"address,omitempty"`
	City                    string     `json:"city,omitempty"`
	State                   string     `json:"state,omitempty"`
	PostalCode              string     `json:"postal_code,omitempty"`
	Birthday                *time.Time `json:"birthday,omitempty"`
	IP                      string     `json:"ip,omitempty"`
	NotesAddition           string     `json:"notes_addition,omitempty"`
	PrivateNotesAddition    string     `json:"private_notes_addition,omitempty"`
	PrivateCheckIn          bool       `json:"private_check_in"`
	NotifyRegistrationGroup bool       `json:"notify_registration_group"`
	NotifyBoardGroup        bool       `json:"notify_board_group"`
}

// BadgeAssignment records that a badge was printed for a registration at a level.
// Rows are append-only; the id doubles as the badge number under the printed style.
type BadgeAssignment struct {
	ID                  int64      `json:"id"`
	RegistrationID      int64      `json:"registration_id"`
	RegistrationLevelID *uuid.UUID `json:"registration_level_id,omitempty"`
	PrintedBy           uuid.UUID  `json:"printed_by"`
	PrintedAt           time.Time  `json:"printed_at"`
}

// QueueEntry is one registration waiting in a named check-in line.
type QueueEntry struct {
	ID             int64      `json:"id"`
	QueueName      string     `json:"queue_name"`
	RegistrationID int64      `json:"registration_id"`
	Added          time.Time  `json:"added"`
	TopOfQueue     *time.Time `json:"top_of_queue,omitempty"`
	AdditionalData string     `json:"additional_data,omitempty"`
}

// TempAvatar is an avatar uploaded to object storage before the registration exists.
type TempAvatar struct {
	ID         uuid.UUID `json:"id"`
	ObjectKey  string    `json:"object_key"`
	UploadedAt time.Time `json:"uploaded_at"`
}
