package registrations

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conreg/backend/internal/catalog"
	"github.com/conreg/backend/internal/coupons"
	"github.com/conreg/backend/internal/models"
	"github.com/conreg/backend/internal/payments"
)

// UpgradeRequest buys a level upgrade or dealer tables for an existing registration.
type UpgradeRequest struct {
	ToLevelID       uuid.UUID  `json:"to_level_id"`
	CouponCode      string     `json:"coupon_code"`
	PaymentMethodID *uuid.UUID `json:"payment_method_id,omitempty"`
	CardToken       string     `json:"card_token"`
}

// UpgradeResult is the registration after a purchase.
type UpgradeResult struct {
	Registration *models.Registration `json:"registration"`
	AmountCents  int64                `json:"amount_cents"`
	Payment      *models.Payment      `json:"payment,omitempty"`
}

// UpgradeOptions lists the upgrades a registration can buy now, ordered by target level.
func (s *Service) UpgradeOptions(ctx context.Context, cv *models.Convention, id int64) ([]models.RegistrationUpgrade, error) {
	reg, err := load(ctx, s.store, cv, id)
	if err != nil {
		return nil, err
	}
	all, err := s.store.ListUpgrades(ctx, cv.ID)
	if err != nil {
		return nil, err
	}
	return catalog.UpgradeOptions(all, reg.RegistrationLevelID, s.now()), nil
}

// Upgrade moves a paid registration to a higher level along an active upgrade
// path. The target must not be past its deadline or full. A coupon forcing a
// different level is ignored, and a registration that already used a coupon
// cannot add another.
func (s *Service) Upgrade(ctx context.Context, cv *models.Convention, actor models.Actor, id int64, req UpgradeRequest) (*UpgradeResult, error) {
	now := s.now()
	reg, err := load(ctx, s.store, cv, id)
	if err != nil {
		return nil, err
	}
	if reg.Status != models.StatusPaid {
		return nil, ErrNotPaid
	}
	all, err := s.store.ListUpgrades(ctx, cv.ID)
	if err != nil {
		return nil, err
	}
	up, err := catalog.FindUpgrade(all, reg.RegistrationLevelID, req.ToLevelID, now)
	if err != nil {
		s.logRejected("upgrade refused", cv, id, actor, err)
		return nil, err
	}
	taken, err := s.store.CountAtLevel(ctx, up.ToLevel.ID)
	if err != nil {
		return nil, err
	}
	if err := catalog.CheckCapacity(&up.ToLevel, taken); err != nil {
		s.logRejected("upgrade refused", cv, id, actor, err)
		return nil, err
	}
	price, err := catalog.PriceOf(catalog.UpgradeOffering{Upgrade: up}, now)
	if err != nil {
		return nil, err
	}

	var coupon *models.Coupon
	if strings.TrimSpace(req.CouponCode) != "" {
		used, err := s.store.CouponsForRegistration(ctx, reg.ID)
		if err != nil {
			return nil, err
		}
		if len(used) > 0 {
			return nil, fmt.Errorf("%w: registration already used a coupon", ErrInvalidCoupon)
		}
		c, err := coupons.Lookup(ctx, s.store, req.CouponCode, cv)
		if err != nil {
			return nil, err
		}
		coupon = coupons.ForUpgrade(c, up.ToLevel.ID)
	}
	amount := coupons.Apply(coupon, price)

	change := func(reg *models.Registration) string {
		reg.RegistrationLevelID = up.ToLevel.ID
		rearmPrint(reg)
		return fmt.Sprintf("Upgraded to %s for %s", up.ToLevel.Title, formatCents(amount))
	}
	res, err := s.purchase(ctx, cv, actor, reg, amount, coupon, req, "upgrade",
		fmt.Sprintf("%s upgrade to %s", cv.Name, up.ToLevel.Title), change)
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.UpgradeConfirmed(ctx, cv, res.Registration, up.ToLevel.Title, amount)
	}
	s.logDone("registration upgraded", cv, res.Registration, actor, zap.String("level", up.ToLevel.Title))
	return res, nil
}

// DealerRequest adds dealer tables. The coupon names the dealer level.
type DealerRequest struct {
	CouponCode      string     `json:"coupon_code"`
	PaymentMethodID *uuid.UUID `json:"payment_method_id,omitempty"`
	CardToken       string     `json:"card_token"`
}

// AddDealerTables attaches the dealer level forced by a coupon to a paid
// registration and charges that level's full price.
func (s *Service) AddDealerTables(ctx context.Context, cv *models.Convention, actor models.Actor, id int64, req DealerRequest) (*UpgradeResult, error) {
	reg, err := load(ctx, s.store, cv, id)
	if err != nil {
		return nil, err
	}
	if reg.Status != models.StatusPaid {
		return nil, ErrNotPaid
	}
	c, err := coupons.Lookup(ctx, s.store, req.CouponCode, cv)
	if err != nil {
		return nil, err
	}
	if c.ForceDealerLevelID == nil {
		return nil, fmt.Errorf("%w: not a dealer coupon", ErrInvalidCoupon)
	}
	d, err := s.dealerLevelOf(ctx, cv, *c.ForceDealerLevelID)
	if err != nil {
		return nil, err
	}
	taken, err := s.store.DealerTablesTaken(ctx, cv.ID)
	if err != nil {
		return nil, err
	}
	if err := catalog.CheckDealerTables(cv.Settings.DealerTableLimit, taken, d.NumberOfTables); err != nil {
		s.logRejected("dealer tables refused", cv, id, actor, err)
		return nil, err
	}

	change := func(reg *models.Registration) string {
		dealerID := d.ID
		reg.DealerLevelID = &dealerID
		return fmt.Sprintf("Dealer level %s for %s", d.Title, formatCents(d.PriceCents))
	}
	up := UpgradeRequest{PaymentMethodID: req.PaymentMethodID, CardToken: req.CardToken}
	res, err := s.purchase(ctx, cv, actor, reg, d.PriceCents, c, up, "dealer_tables",
		fmt.Sprintf("%s dealer level %s", cv.Name, d.Title), change)
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.UpgradeConfirmed(ctx, cv, res.Registration, d.Title+" dealer", d.PriceCents)
	}
	s.logDone("dealer tables added", cv, res.Registration, actor, zap.String("dealer_level", d.Title))
	return res, nil
}

// purchase collects amount for an add-on, then applies change to the
// registration and records payment, coupon use and audit in one transaction.
// Card charges are refunded if the write fails.
func (s *Service) purchase(ctx context.Context, cv *models.Convention, actor models.Actor, reg *models.Registration,
	amount int64, coupon *models.Coupon, req UpgradeRequest, action, description string,
	change func(*models.Registration) string) (*UpgradeResult, error) {

	var method *models.PaymentMethod
	if req.PaymentMethodID != nil {
		m, err := s.store.GetPaymentMethod(ctx, *req.PaymentMethodID)
		if err != nil {
			return nil, err
		}
		method = m
	}
	var reference string
	if amount > 0 {
		switch {
		case method == nil:
			return nil, ErrPaymentRequired
		case method.Credit:
			if strings.TrimSpace(req.CardToken) == "" {
				return nil, ErrPaymentRequired
			}
			ref, err := s.gateway.Charge(ctx, payments.ChargeRequest{
				AmountCents: amount,
				Token:       req.CardToken,
				Description: description,
				Email:       reg.Email,
			})
			if err != nil {
				s.logRejected(action+" charge failed", cv, reg.ID, actor, err)
				return nil, err
			}
			reference = ref
		case actor.IDPtr() == nil:
			// Only staff may take non-card payments.
			return nil, ErrPaymentRequired
		}
	}

	res := &UpgradeResult{AmountCents: amount}
	err := s.store.WithTx(ctx, func(st Store) error {
		cur, err := load(ctx, st, cv, reg.ID)
		if err != nil {
			return err
		}
		msg := change(cur)
		if err := s.save(ctx, st, cur); err != nil {
			return err
		}
		if amount > 0 {
			p := &models.Payment{
				RegistrationID:  cur.ID,
				PaymentMethodID: method.ID,
				MethodCredit:    method.Credit,
				AmountCents:     amount,
				Reference:       reference,
				State:           models.PaymentStatePaid,
				CreatedBy:       actor.IDPtr(),
			}
			if err := st.CreatePayment(ctx, p); err != nil {
				return err
			}
			res.Payment = p
		}
		if coupon != nil {
			if _, err := st.RecordCouponUse(ctx, coupon, cur.ID); err != nil {
				return err
			}
		}
		res.Registration = cur
		return s.audit(ctx, st, cur, actor, action, msg)
	})
	if err != nil {
		if reference != "" {
			s.compensate(ctx, cv, reference, err)
		}
		s.logRejected(action+" refused", cv, reg.ID, actor, err)
		return nil, err
	}
	return res, nil
}
