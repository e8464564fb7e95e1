package registrations

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/conreg/backend/internal/models"
)

// CheckIn marks a paid registration as arrived and takes it out of the line
// queue. Registrations flagged for private check-in need a lead or superuser.
func (s *Service) CheckIn(ctx context.Context, cv *models.Convention, actor models.Actor, id int64) (*models.Registration, error) {
	var reg *models.Registration
	err := s.store.WithTx(ctx, func(st Store) error {
		var err error
		if reg, err = load(ctx, st, cv, id); err != nil {
			return err
		}
		if reg.Status != models.StatusPaid {
			return ErrNotPaid
		}
		if reg.PrivateCheckIn && !actor.Role.Privileged() {
			return ErrPrivilegedActionRequired
		}
		if reg.CheckedIn {
			return fmt.Errorf("%w: already checked in", ErrCheckedIn)
		}
		now := s.now()
		reg.CheckedIn = true
		reg.CheckedInAt = &now
		if err := s.save(ctx, st, reg); err != nil {
			return err
		}
		return s.audit(ctx, st, reg, actor, "check_in", "Checked in")
	})
	if err != nil {
		s.logRejected("check-in refused", cv, id, actor, err)
		return nil, err
	}
	s.dequeueLine(ctx, cv, reg)
	s.metrics.CheckedIn()
	s.logDone("registration checked in", cv, reg, actor)
	return reg, nil
}

// UndoCheckIn clears the checked-in flag. Unlike CheckIn it does not require
// a privileged actor for private check-ins.
func (s *Service) UndoCheckIn(ctx context.Context, cv *models.Convention, actor models.Actor, id int64) (*models.Registration, error) {
	var reg *models.Registration
	err := s.store.WithTx(ctx, func(st Store) error {
		var err error
		if reg, err = load(ctx, st, cv, id); err != nil {
			return err
		}
		reg.CheckedIn = false
		reg.CheckedInAt = nil
		if err := s.save(ctx, st, reg); err != nil {
			return err
		}
		return s.audit(ctx, st, reg, actor, "undo_check_in", "Check-in undone")
	})
	if err != nil {
		s.logRejected("undo check-in refused", cv, id, actor, err)
		return nil, err
	}
	s.logDone("check-in undone", cv, reg, actor)
	return reg, nil
}

// dequeueLine drops the registration from the line queue. Failures are logged only.
func (s *Service) dequeueLine(ctx context.Context, cv *models.Convention, reg *models.Registration) {
	if s.line == nil {
		return
	}
	if err := s.line.Dequeue(ctx, cv.ID, reg.ID, s.opts.LineQueue); err != nil {
		s.logger.Warn("dequeue after check-in",
			zap.Int64("registration_id", reg.ID), zap.String("queue", s.opts.LineQueue), zap.Error(err))
	}
}
