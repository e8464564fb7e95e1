package models

import (
	"time"

	"github.com/google/uuid"
)

// LevelPrice is one entry in a level's price history.
type LevelPrice struct {
	ID          uuid.UUID `json:"id"`
	LevelID     uuid.UUID `json:"level_id"`
	AmountCents int64     `json:"amount_cents"`
	ActiveDate  time.Time `json:"active_date"`
}

// RegistrationLevel is a purchasable attendance tier.
type RegistrationLevel struct {
	ID           uuid.UUID    `json:"id"`
	ConventionID uuid.UUID    `json:"convention_id"`
	Title        string       `json:"title"`
	Description  string       `json:"description,omitempty"`
	Limit        int          `json:"limit"` // 0 = unlimited
	Opens        *time.Time   `json:"opens,omitempty"`
	Deadline     *time.Time   `json:"deadline,omitempty"`
	Active       bool         `json:"active"`
	Seq          int          `json:"seq"`
	Prices       []LevelPrice `json:"prices"`
}

// RegistrationUpgrade is a purchasable path from one level to another.
type RegistrationUpgrade struct {
	ID          uuid.UUID         `json:"id"`
	FromLevelID uuid.UUID         `json:"from_level_id"`
	ToLevel     RegistrationLevel `json:"to_level"`
	Description string            `json:"description,omitempty"`
	Active      bool              `json:"active"`
	Prices      []LevelPrice      `json:"prices"`
}

// DealerLevel is a vendor table size add-on.
type DealerLevel struct {
	ID             uuid.UUID `json:"id"`
	ConventionID   uuid.UUID `json:"convention_id"`
	Title          string    `json:"title"`
	NumberOfTables int       `json:"number_of_tables"`
	PriceCents     int64     `json:"price_cents"`
	Active         bool      `json:"active"`
	Seq            int       `json:"seq"`
}
