package registrations

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/conreg/backend/internal/models"
	"github.com/conreg/backend/pkg/utils"
)

// PostCreateResult is what the post-create pipeline derived for a new registration.
type PostCreateResult struct {
	ExternalID              string                    `json:"external_id"`
	Holds                   []models.RegistrationHold `json:"-"`
	Duplicates              []models.Registration     `json:"-"`
	NotifyRegistrationGroup bool                      `json:"-"`
	NotifyBoardGroup        bool                      `json:"-"`
}

// Flagged reports whether staff should hear about the registration.
func (r *PostCreateResult) Flagged() bool {
	return r.NotifyRegistrationGroup || r.NotifyBoardGroup
}

// postCreate assigns the external id, applies matching holds and notes
// possible duplicates. reg must already carry its database id; the caller saves it.
func postCreate(ctx context.Context, st Store, reg *models.Registration) (*PostCreateResult, error) {
	res := &PostCreateResult{ExternalID: utils.ExternalID(reg.ID)}
	reg.ExternalID = res.ExternalID

	holds, err := st.ListHolds(ctx)
	if err != nil {
		return nil, fmt.Errorf("list holds: %w", err)
	}
	for _, h := range holds {
		if !HoldMatches(&h, reg) {
			continue
		}
		res.Holds = append(res.Holds, h)
		if h.NotesAddition != "" {
			reg.Notes += fmt.Sprintf("Registration notes:\n%s\n\n", h.NotesAddition)
		}
		if h.PrivateNotesAddition != "" {
			reg.PrivateNotes += fmt.Sprintf("Registration flagged:\n%s\n\n", h.PrivateNotesAddition)
		}
		if h.PrivateCheckIn {
			reg.PrivateCheckIn = true
		}
		res.NotifyRegistrationGroup = res.NotifyRegistrationGroup || h.NotifyRegistrationGroup
		res.NotifyBoardGroup = res.NotifyBoardGroup || h.NotifyBoardGroup
	}

	dups, err := findDuplicates(ctx, st, reg)
	if err != nil {
		return nil, err
	}
	for _, d := range dups {
		reg.PrivateNotes += fmt.Sprintf("Possible duplicate registration received, matching:\n%d %s\n%s and %s or %s\n\n",
			d.ID, d.ExternalID, d.LastName, d.FirstName, d.Birthday.Format("2006-01-02"))
	}
	if len(dups) > 0 {
		res.Duplicates = dups
		res.NotifyRegistrationGroup = true
	}
	return res, nil
}

// findDuplicates returns registrations of the same convention with the same
// last name and either the same first name or the same birthday.
func findDuplicates(ctx context.Context, st Store, reg *models.Registration) ([]models.Registration, error) {
	byName, err := st.Match(ctx, reg.ConventionID, MatchCriteria{LastName: reg.LastName, FirstName: reg.FirstName, ExcludeID: reg.ID})
	if err != nil {
		return nil, fmt.Errorf("match duplicates: %w", err)
	}
	bday := reg.Birthday
	byBirthday, err := st.Match(ctx, reg.ConventionID, MatchCriteria{LastName: reg.LastName, Birthday: &bday, ExcludeID: reg.ID})
	if err != nil {
		return nil, fmt.Errorf("match duplicates: %w", err)
	}
	seen := make(map[int64]bool, len(byName))
	out := make([]models.Registration, 0, len(byName)+len(byBirthday))
	for _, r := range append(byName, byBirthday...) {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		out = append(out, r)
	}
	return out, nil
}

// HoldMatches reports whether a hold applies to reg: at least one field of the
// hold is set and every set field matches. Text fields ignore case.
func HoldMatches(h *models.RegistrationHold, reg *models.Registration) bool {
	set := 0
	text := []struct{ hold, reg string }{
		{h.FirstName, reg.FirstName},
		{h.LastName, reg.LastName},
		{h.BadgeName, reg.BadgeName},
		{h.Email, reg.Email},
		{h.Address, reg.Address},
		{h.City, reg.City},
		{h.State, reg.State},
		{h.PostalCode, reg.PostalCode},
	}
	for _, f := range text {
		if f.hold == "" {
			continue
		}
		set++
		if !strings.EqualFold(strings.TrimSpace(f.hold), strings.TrimSpace(f.reg)) {
			return false
		}
	}
	if h.Birthday != nil {
		set++
		if !sameDay(*h.Birthday, reg.Birthday) {
			return false
		}
	}
	if h.IP != "" {
		set++
		if h.IP != reg.IP {
			return false
		}
	}
	return set > 0
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Holds returns the watch list.
func (s *Service) Holds(ctx context.Context) ([]models.RegistrationHold, error) {
	return s.store.ListHolds(ctx)
}

// AddHold puts an entry on the watch list. A hold with no match fields would
// never apply and is refused.
func (s *Service) AddHold(ctx context.Context, actor models.Actor, h *models.RegistrationHold) error {
	if holdEmpty(h) {
		return fmt.Errorf("%w: hold needs at least one match field", ErrInvalidInput)
	}
	if err := s.store.CreateHold(ctx, h); err != nil {
		return err
	}
	s.logger.Info("registration hold added", zap.String("hold_id", h.ID.String()), zap.String("actor", actor.Username))
	return nil
}

func holdEmpty(h *models.RegistrationHold) bool {
	return h.FirstName == "" && h.LastName == "" && h.BadgeName == "" && h.Email == "" && h.Address == "" &&
		h.City == "" && h.State == "" && h.PostalCode == "" && h.Birthday == nil && h.IP == ""
}
