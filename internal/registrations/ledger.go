package registrations

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conreg/backend/internal/catalog"
	"github.com/conreg/backend/internal/coupons"
	"github.com/conreg/backend/internal/models"
)

// PaymentRequest is a payment taken by staff.
type PaymentRequest struct {
	PaymentMethodID uuid.UUID `json:"payment_method_id"`
	AmountCents     int64     `json:"amount_cents"`
	Reference       string    `json:"reference"`
}

// ApplyPayment appends a payment row. It does not change the registration status.
func (s *Service) ApplyPayment(ctx context.Context, cv *models.Convention, actor models.Actor, id int64, req PaymentRequest) (*models.Payment, error) {
	if req.AmountCents <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	var p *models.Payment
	err := s.store.WithTx(ctx, func(st Store) error {
		reg, err := load(ctx, st, cv, id)
		if err != nil {
			return err
		}
		m, err := st.GetPaymentMethod(ctx, req.PaymentMethodID)
		if err != nil {
			return err
		}
		p = &models.Payment{
			RegistrationID:  reg.ID,
			PaymentMethodID: m.ID,
			MethodCredit:    m.Credit,
			AmountCents:     req.AmountCents,
			Reference:       req.Reference,
			State:           models.PaymentStatePaid,
			CreatedBy:       actor.IDPtr(),
		}
		if err := st.CreatePayment(ctx, p); err != nil {
			return err
		}
		return s.audit(ctx, st, reg, actor, "apply_payment", fmt.Sprintf("Payment of %s by %s", formatCents(req.AmountCents), m.Name))
	})
	if err != nil {
		s.logRejected("apply payment refused", cv, id, actor, err)
		return nil, err
	}
	s.logger.Info("payment applied", zap.Int64("registration_id", id), zap.String("convention_id", cv.ID.String()),
		zap.String("actor", actor.Username), zap.Int64("amount_cents", req.AmountCents))
	return p, nil
}

// OnsitePaymentRequest is cash collected at the check-in desk for a level.
type OnsitePaymentRequest struct {
	LevelID         uuid.UUID `json:"registration_level_id"`
	PaymentMethodID uuid.UUID `json:"payment_method_id"`
}

// TakeOnsitePayment collects the current price of a level at the desk, moves
// the registration to that level and marks it paid.
func (s *Service) TakeOnsitePayment(ctx context.Context, cv *models.Convention, actor models.Actor, id int64, req OnsitePaymentRequest) (*models.Registration, error) {
	var reg *models.Registration
	err := s.store.WithTx(ctx, func(st Store) error {
		var err error
		if reg, err = load(ctx, st, cv, id); err != nil {
			return err
		}
		level, err := s.levelOf(ctx, cv, req.LevelID)
		if err != nil {
			return err
		}
		price, err := catalog.PriceOf(catalog.LevelOffering{Level: level}, s.now())
		if err != nil {
			return err
		}
		m, err := st.GetPaymentMethod(ctx, req.PaymentMethodID)
		if err != nil {
			return err
		}
		if err := transition(reg, models.StatusPaid); err != nil {
			return err
		}
		if reg.RegistrationLevelID != level.ID {
			reg.RegistrationLevelID = level.ID
			rearmPrint(reg)
		}
		if err := s.save(ctx, st, reg); err != nil {
			return err
		}
		if price > 0 {
			p := &models.Payment{
				RegistrationID:  reg.ID,
				PaymentMethodID: m.ID,
				MethodCredit:    m.Credit,
				AmountCents:     price,
				State:           models.PaymentStatePaid,
				CreatedBy:       actor.IDPtr(),
			}
			if err := st.CreatePayment(ctx, p); err != nil {
				return err
			}
		}
		return s.audit(ctx, st, reg, actor, "onsite_payment", fmt.Sprintf("Collected %s by %s for %s", formatCents(price), m.Name, level.Title))
	})
	if err != nil {
		s.logRejected("onsite payment refused", cv, id, actor, err)
		return nil, err
	}
	s.logDone("onsite payment taken", cv, reg, actor)
	return reg, nil
}

// Refund refunds every live payment and marks the registration refunded.
// Card payments with a gateway reference are queued for settlement; the
// rest are refunded on the spot.
func (s *Service) Refund(ctx context.Context, cv *models.Convention, actor models.Actor, id int64) (*models.Registration, error) {
	var reg *models.Registration
	var deferred []bool
	err := s.store.WithTx(ctx, func(st Store) error {
		var err error
		if reg, err = load(ctx, st, cv, id); err != nil {
			return err
		}
		if reg.CheckedIn {
			return fmt.Errorf("%w: undo the check-in first", ErrCheckedIn)
		}
		if reg.Status == models.StatusRefunded {
			return fmt.Errorf("%w: already refunded", ErrInvalidTransition)
		}
		// Any other status may hold live payments.
		reg.Status = models.StatusRefunded
		ps, err := st.ListPayments(ctx, reg.ID)
		if err != nil {
			return err
		}
		now := s.now()
		for i := range ps {
			p := &ps[i]
			if p.State != models.PaymentStatePaid {
				continue
			}
			if p.DeferredRefund() {
				p.State = models.PaymentStateRefundRequested
				p.RefundRequestedBy = actor.IDPtr()
				p.RefundRequestedAt = &now
			} else {
				p.State = models.PaymentStateRefunded
				p.RefundRequestedBy = actor.IDPtr()
				p.RefundRequestedAt = &now
				p.RefundProcessedBy = actor.IDPtr()
				p.RefundProcessedAt = &now
			}
			if err := st.UpdatePayment(ctx, p); err != nil {
				return err
			}
			deferred = append(deferred, p.DeferredRefund())
		}
		if err := s.save(ctx, st, reg); err != nil {
			return err
		}
		return s.audit(ctx, st, reg, actor, "refund", fmt.Sprintf("Refunded %d payment(s)", len(deferred)))
	})
	if err != nil {
		s.logRejected("refund refused", cv, id, actor, err)
		return nil, err
	}
	for _, d := range deferred {
		s.metrics.Refunded(d)
	}
	s.logDone("registration refunded", cv, reg, actor, zap.Int("payments", len(deferred)))
	return reg, nil
}

// UndoRefund restores refunded payments and the paid status. A card refund
// that is settling or already settled at the gateway cannot be reversed;
// nothing changes then.
func (s *Service) UndoRefund(ctx context.Context, cv *models.Convention, actor models.Actor, id int64) (*models.Registration, error) {
	var reg *models.Registration
	err := s.store.WithTx(ctx, func(st Store) error {
		var err error
		if reg, err = load(ctx, st, cv, id); err != nil {
			return err
		}
		ps, err := st.ListPayments(ctx, reg.ID)
		if err != nil {
			return err
		}
		for _, p := range ps {
			if p.State == models.PaymentStateRefundSettling {
				return ErrAlreadyProcessed
			}
			if p.DeferredRefund() && p.State == models.PaymentStateRefunded {
				return ErrAlreadyProcessed
			}
		}
		if err := transition(reg, models.StatusPaid); err != nil {
			return err
		}
		restored := 0
		for i := range ps {
			p := &ps[i]
			if p.State == models.PaymentStatePaid {
				continue
			}
			p.State = models.PaymentStatePaid
			p.RefundRequestedBy, p.RefundRequestedAt = nil, nil
			p.RefundProcessedBy, p.RefundProcessedAt = nil, nil
			if err := st.UpdatePayment(ctx, p); err != nil {
				return err
			}
			restored++
		}
		if err := s.save(ctx, st, reg); err != nil {
			return err
		}
		return s.audit(ctx, st, reg, actor, "undo_refund", fmt.Sprintf("Restored %d payment(s)", restored))
	})
	if err != nil {
		s.logRejected("undo refund refused", cv, id, actor, err)
		return nil, err
	}
	s.logDone("refund undone", cv, reg, actor)
	return reg, nil
}

// Reject moves a registration to the terminal rejected state.
func (s *Service) Reject(ctx context.Context, cv *models.Convention, actor models.Actor, id int64) (*models.Registration, error) {
	return s.ChangeStatus(ctx, cv, actor, id, models.StatusRejected)
}

// ChangeStatus applies a manual status change along the transition table.
// Refunds go through Refund and UndoRefund. A checked-in registration must stay paid.
func (s *Service) ChangeStatus(ctx context.Context, cv *models.Convention, actor models.Actor, id int64, to models.RegistrationStatus) (*models.Registration, error) {
	if to == models.StatusRefunded {
		return nil, fmt.Errorf("%w: use refund", ErrInvalidTransition)
	}
	var reg *models.Registration
	err := s.store.WithTx(ctx, func(st Store) error {
		var err error
		if reg, err = load(ctx, st, cv, id); err != nil {
			return err
		}
		if reg.CheckedIn && to != models.StatusPaid {
			return fmt.Errorf("%w: undo the check-in first", ErrCheckedIn)
		}
		from := reg.Status
		if from == models.StatusRefunded && to == models.StatusPaid {
			return fmt.Errorf("%w: use undo refund", ErrInvalidTransition)
		}
		if err := transition(reg, to); err != nil {
			return err
		}
		if err := s.save(ctx, st, reg); err != nil {
			return err
		}
		return s.audit(ctx, st, reg, actor, "status", fmt.Sprintf("Status changed from %s to %s", from, to))
	})
	if err != nil {
		s.logRejected("status change refused", cv, id, actor, err)
		return nil, err
	}
	s.logDone("status changed", cv, reg, actor, zap.String("status", string(to)))
	return reg, nil
}

// Verify reports whether a registration is paid in full: a coupon covers the
// whole level price, or live payments plus any partial coupon discount reach
// the current level price.
func (s *Service) Verify(ctx context.Context, cv *models.Convention, id int64) (bool, error) {
	reg, err := load(ctx, s.store, cv, id)
	if err != nil {
		return false, err
	}
	level, err := s.store.GetLevel(ctx, reg.RegistrationLevelID)
	if err != nil {
		return false, err
	}
	price, err := catalog.PriceOf(catalog.LevelOffering{Level: level}, s.now())
	if errors.Is(err, catalog.ErrNoActivePrice) {
		price = 0
	} else if err != nil {
		return false, err
	}

	used, err := s.store.CouponsForRegistration(ctx, reg.ID)
	if err != nil {
		return false, err
	}
	due := price
	for i := range used {
		if coupons.Full(&used[i], price) {
			return true, nil
		}
		due = coupons.Apply(&used[i], due)
	}

	ps, err := s.store.ListPayments(ctx, reg.ID)
	if err != nil {
		return false, err
	}
	var paid int64
	for _, p := range ps {
		if p.State == models.PaymentStatePaid {
			paid += p.AmountCents
		}
	}
	return paid >= due, nil
}
