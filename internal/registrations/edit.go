package registrations

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/conreg/backend/internal/models"
)

// EditRequest changes registration details at the desk. Nil fields are left alone.
type EditRequest struct {
	FirstName        *string    `json:"first_name"`
	LastName         *string    `json:"last_name"`
	BadgeName        *string    `json:"badge_name"`
	Email            *string    `json:"email"`
	Address          *string    `json:"address"`
	City             *string    `json:"city"`
	State            *string    `json:"state"`
	PostalCode       *string    `json:"postal_code"`
	Country          *string    `json:"country"`
	Birthday         *time.Time `json:"birthday"`
	LevelID          *uuid.UUID `json:"registration_level_id"`
	DealerLevelID    *uuid.UUID `json:"dealer_level_id"`
	ShirtSize        *string    `json:"shirt_size"`
	EmergencyContact *string    `json:"emergency_contact"`
	Volunteer        *bool      `json:"volunteer"`
	VolunteerPhone   *string    `json:"volunteer_phone"`
	Notes            *string    `json:"notes"`
	RoomNumber       *int       `json:"room_number"`
}

// Edit applies desk edits. Moving to another level re-arms an already printed badge.
func (s *Service) Edit(ctx context.Context, cv *models.Convention, actor models.Actor, id int64, req EditRequest) (*models.Registration, error) {
	var reg *models.Registration
	var changed []string
	err := s.store.WithTx(ctx, func(st Store) error {
		var err error
		if reg, err = load(ctx, st, cv, id); err != nil {
			return err
		}
		text := []struct {
			name string
			in   *string
			out  *string
		}{
			{"first_name", req.FirstName, &reg.FirstName},
			{"last_name", req.LastName, &reg.LastName},
			{"badge_name", req.BadgeName, &reg.BadgeName},
			{"email", req.Email, &reg.Email},
			{"address", req.Address, &reg.Address},
			{"city", req.City, &reg.City},
			{"state", req.State, &reg.State},
			{"postal_code", req.PostalCode, &reg.PostalCode},
			{"country", req.Country, &reg.Country},
			{"shirt_size", req.ShirtSize, &reg.ShirtSize},
			{"emergency_contact", req.EmergencyContact, &reg.EmergencyContact},
			{"volunteer_phone", req.VolunteerPhone, &reg.VolunteerPhone},
			{"notes", req.Notes, &reg.Notes},
		}
		for _, f := range text {
			if f.in == nil || strings.TrimSpace(*f.in) == *f.out {
				continue
			}
			*f.out = strings.TrimSpace(*f.in)
			changed = append(changed, f.name)
		}
		if reg.FirstName == "" || reg.LastName == "" {
			return fmt.Errorf("%w: name is required", ErrInvalidInput)
		}
		if req.Birthday != nil && !sameDay(*req.Birthday, reg.Birthday) {
			reg.Birthday = *req.Birthday
			changed = append(changed, "birthday")
		}
		if req.Volunteer != nil && *req.Volunteer != reg.Volunteer {
			reg.Volunteer = *req.Volunteer
			changed = append(changed, "volunteer")
		}
		if req.RoomNumber != nil {
			room := *req.RoomNumber
			reg.RoomNumber = &room
			changed = append(changed, "room_number")
		}
		if req.LevelID != nil && *req.LevelID != reg.RegistrationLevelID {
			level, err := s.levelOf(ctx, cv, *req.LevelID)
			if err != nil {
				return err
			}
			reg.RegistrationLevelID = level.ID
			rearmPrint(reg)
			changed = append(changed, "registration_level")
		}
		if req.DealerLevelID != nil && (reg.DealerLevelID == nil || *req.DealerLevelID != *reg.DealerLevelID) {
			d, err := s.dealerLevelOf(ctx, cv, *req.DealerLevelID)
			if err != nil {
				return err
			}
			dealerID := d.ID
			reg.DealerLevelID = &dealerID
			changed = append(changed, "dealer_level")
		}
		if len(changed) == 0 {
			return nil
		}
		if err := s.save(ctx, st, reg); err != nil {
			return err
		}
		return s.audit(ctx, st, reg, actor, "edit", fmt.Sprintf("Changed %s.", strings.Join(changed, ", ")))
	})
	if err != nil {
		s.logRejected("edit refused", cv, id, actor, err)
		return nil, err
	}
	if len(changed) > 0 {
		s.logDone("registration edited", cv, reg, actor)
	}
	return reg, nil
}
