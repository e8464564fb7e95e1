package registrations

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/conreg/backend/internal/badges"
	"github.com/conreg/backend/internal/models"
)

// PrintedBadge is one badge to render.
type PrintedBadge struct {
	RegistrationID int64  `json:"registration_id"`
	BadgeNumber    string `json:"badge_number"`
	BadgeName      string `json:"badge_name"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	LevelTitle     string `json:"level_title"`
	Reprint        bool   `json:"reprint"`
}

// PrintBadges prints a batch of badges in one transaction. Every member must
// belong to cv and be paid; otherwise a *BatchError lists the failures and
// nothing is written. A reprint reuses the existing badge number when an
// assignment was recorded before.
func (s *Service) PrintBadges(ctx context.Context, cv *models.Convention, actor models.Actor, ids []int64, reprint bool) ([]PrintedBadge, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no registrations selected", ErrInvalidInput)
	}
	var out []PrintedBadge
	var created int
	err := s.store.WithTx(ctx, func(st Store) error {
		regs := make([]*models.Registration, 0, len(ids))
		var batch BatchError
		for _, id := range ids {
			reg, err := load(ctx, st, cv, id)
			switch {
			case errors.Is(err, ErrNotFound), errors.Is(err, ErrCrossConvention):
				batch.Items = append(batch.Items, ItemError{RegistrationID: id, Err: err})
				continue
			case err != nil:
				return err
			}
			if reg.Status != models.StatusPaid {
				batch.Items = append(batch.Items, ItemError{RegistrationID: id, Err: ErrNotPaid})
				continue
			}
			regs = append(regs, reg)
		}
		if len(batch.Items) > 0 {
			return &batch
		}

		levels := map[string]string{}
		for _, reg := range regs {
			latest, err := st.LatestBadge(ctx, reg.ID)
			if err != nil {
				return err
			}
			// A reprint reuses a recorded assignment; without one it records the first.
			number, ok := "", false
			if reprint && latest != nil {
				number, ok = badges.Number(cv, reg, latest)
			}
			if !ok {
				levelID := reg.RegistrationLevelID
				a := &models.BadgeAssignment{
					RegistrationID:      reg.ID,
					RegistrationLevelID: &levelID,
					PrintedBy:           actor.UserID,
					PrintedAt:           s.now(),
				}
				if err := st.CreateBadge(ctx, a); err != nil {
					return err
				}
				created++
				latest = a
			}
			reg.NeedsPrint = models.NeedsPrintNo
			if !ok {
				number, _ = badges.Number(cv, reg, latest)
			}
			if err := s.save(ctx, st, reg); err != nil {
				return err
			}
			msg := "Badge printed " + number
			if ok {
				msg = "Badge reprinted " + number
			}
			if err := s.audit(ctx, st, reg, actor, "print_badge", msg); err != nil {
				return err
			}

			title, seen := levels[reg.RegistrationLevelID.String()]
			if !seen {
				level, err := st.GetLevel(ctx, reg.RegistrationLevelID)
				if err != nil {
					return err
				}
				title = level.Title
				levels[reg.RegistrationLevelID.String()] = title
			}
			out = append(out, PrintedBadge{
				RegistrationID: reg.ID,
				BadgeNumber:    number,
				BadgeName:      reg.BadgeName,
				FirstName:      reg.FirstName,
				LastName:       reg.LastName,
				LevelTitle:     title,
				Reprint:        ok,
			})
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("badge batch refused", zap.String("convention_id", cv.ID.String()),
			zap.String("actor", actor.Username), zap.Int64s("registration_ids", ids), zap.Error(err))
		return nil, err
	}
	for _, b := range out {
		s.metrics.BadgePrinted(b.Reprint)
	}
	s.logger.Info("badges printed", zap.String("convention_id", cv.ID.String()), zap.String("actor", actor.Username),
		zap.Int("badges", len(out)), zap.Int("assignments", created))
	return out, nil
}

// BadgeNumber returns the public badge number, or false when none exists yet.
func (s *Service) BadgeNumber(ctx context.Context, cv *models.Convention, id int64) (string, bool, error) {
	reg, err := load(ctx, s.store, cv, id)
	if err != nil {
		return "", false, err
	}
	latest, err := s.store.LatestBadge(ctx, reg.ID)
	if err != nil {
		return "", false, err
	}
	n, ok := badges.Number(cv, reg, latest)
	return n, ok, nil
}
