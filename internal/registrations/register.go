package registrations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conreg/backend/internal/catalog"
	"github.com/conreg/backend/internal/coupons"
	"github.com/conreg/backend/internal/models"
	"github.com/conreg/backend/internal/payments"
)

// RegisterRequest is a completed signup form.
type RegisterRequest struct {
	FirstName        string     `json:"first_name" binding:"required"`
	LastName         string     `json:"last_name" binding:"required"`
	BadgeName        string     `json:"badge_name"`
	Email            string     `json:"email" binding:"required"`
	EmailMe          bool       `json:"email_me"`
	Address          string     `json:"address"`
	City             string     `json:"city"`
	State            string     `json:"state"`
	PostalCode       string     `json:"postal_code"`
	Country          string     `json:"country"`
	Birthday         time.Time  `json:"birthday" binding:"required"`
	LevelID          uuid.UUID  `json:"registration_level_id"`
	DealerLevelID    *uuid.UUID `json:"dealer_level_id,omitempty"`
	ShirtSize        string     `json:"shirt_size"`
	Volunteer        bool       `json:"volunteer"`
	VolunteerPhone   string     `json:"volunteer_phone"`
	EmergencyContact string     `json:"emergency_contact"`
	CouponCode       string     `json:"coupon_code"`
	PaymentMethodID  *uuid.UUID `json:"payment_method_id,omitempty"`
	CardToken        string     `json:"card_token"`
	IP               string     `json:"-"`
}

// Validate checks the form fields.
func (r RegisterRequest) Validate() error {
	var phone []validation.Rule
	if r.Volunteer {
		phone = append(phone, validation.Required.Error("is required for volunteers"))
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.BadgeName, validation.Length(0, 60)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Birthday, validation.Required),
		validation.Field(&r.VolunteerPhone, phone...),
	)
}

// RegisterResult is a committed registration and what it cost.
type RegisterResult struct {
	Registration *models.Registration `json:"registration"`
	AmountCents  int64                `json:"amount_cents"`
	Charged      bool                 `json:"charged"`
	PostCreate   *PostCreateResult    `json:"post_create"`
}

// quote is a priced, validated signup before anything is written.
type quote struct {
	level  *models.RegistrationLevel
	dealer *models.DealerLevel
	coupon *models.Coupon
	method *models.PaymentMethod
	amount int64
}

// Register commits a signup: it prices the order, charges the card when money
// is due on a credit method, then writes the registration, its payment and
// coupon use in one transaction. A declined charge writes nothing.
func (s *Service) Register(ctx context.Context, cv *models.Convention, actor models.Actor, req RegisterRequest) (*RegisterResult, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !cv.Settings.RegistrationOpen && !actor.Role.Privileged() {
		return nil, ErrRegistrationClosed
	}

	q, err := s.quote(ctx, cv, req)
	if err != nil {
		s.logger.Warn("registration refused", zap.String("convention_id", cv.ID.String()), zap.String("email", req.Email), zap.Error(err))
		return nil, err
	}

	var reference string
	if q.amount > 0 && q.method != nil && q.method.Credit {
		if strings.TrimSpace(req.CardToken) == "" {
			return nil, ErrPaymentRequired
		}
		reference, err = s.gateway.Charge(ctx, payments.ChargeRequest{
			AmountCents: q.amount,
			Token:       req.CardToken,
			Description: fmt.Sprintf("%s registration: %s", cv.Name, q.level.Title),
			Email:       req.Email,
		})
		if err != nil {
			s.logger.Warn("registration charge failed", zap.String("convention_id", cv.ID.String()), zap.String("email", req.Email), zap.Error(err))
			return nil, err
		}
	}
	charged := reference != ""

	reg := newRegistration(cv, actor, req, q)
	if charged || q.amount == 0 {
		reg.Status = models.StatusPaid
	}

	var res *PostCreateResult
	err = s.store.WithTx(ctx, func(st Store) error {
		if err := st.Create(ctx, reg); err != nil {
			return err
		}
		var err error
		if res, err = postCreate(ctx, st, reg); err != nil {
			return err
		}
		if err := s.save(ctx, st, reg); err != nil {
			return err
		}
		if charged {
			p := &models.Payment{
				RegistrationID:  reg.ID,
				PaymentMethodID: q.method.ID,
				MethodCredit:    true,
				AmountCents:     q.amount,
				Reference:       reference,
				State:           models.PaymentStatePaid,
				CreatedBy:       actor.IDPtr(),
			}
			if err := st.CreatePayment(ctx, p); err != nil {
				return err
			}
		}
		if q.coupon != nil {
			if _, err := st.RecordCouponUse(ctx, q.coupon, reg.ID); err != nil {
				return err
			}
		}
		return s.audit(ctx, st, reg, actor, "register", fmt.Sprintf("Registered at %s for %s", q.level.Title, formatCents(q.amount)))
	})
	if err != nil {
		if charged {
			s.compensate(ctx, cv, reference, err)
		}
		return nil, err
	}

	s.metrics.Registered(string(reg.Status))
	if s.notifier != nil {
		s.notifier.RegistrationConfirmed(ctx, cv, reg, q.amount)
		if res.Flagged() {
			s.notifier.RegistrationFlagged(ctx, cv, reg, res)
		}
	}
	s.logDone("registration created", cv, reg, actor, zap.String("status", string(reg.Status)), zap.Int64("amount_cents", q.amount))
	return &RegisterResult{Registration: reg, AmountCents: q.amount, Charged: charged, PostCreate: res}, nil
}

// compensate refunds a charge whose registration could not be written.
func (s *Service) compensate(ctx context.Context, cv *models.Convention, reference string, cause error) {
	if err := s.gateway.Refund(ctx, reference); err != nil {
		s.logger.Error("refund after failed registration write",
			zap.String("convention_id", cv.ID.String()), zap.String("reference", reference),
			zap.NamedError("cause", cause), zap.Error(err))
		return
	}
	s.logger.Warn("charge refunded after failed registration write",
		zap.String("convention_id", cv.ID.String()), zap.String("reference", reference), zap.Error(cause))
}

// Quote prices a signup without writing anything.
func (s *Service) Quote(ctx context.Context, cv *models.Convention, req RegisterRequest) (int64, error) {
	q, err := s.quote(ctx, cv, req)
	if err != nil {
		return 0, err
	}
	return q.amount, nil
}

func (s *Service) quote(ctx context.Context, cv *models.Convention, req RegisterRequest) (*quote, error) {
	now := s.now()
	q := &quote{}

	if strings.TrimSpace(req.CouponCode) != "" {
		c, err := coupons.Lookup(ctx, s.store, req.CouponCode, cv)
		if err != nil {
			return nil, err
		}
		q.coupon = c
	}

	levelID := req.LevelID
	forced := q.coupon != nil && q.coupon.ForceLevelID != nil
	if forced {
		levelID = *q.coupon.ForceLevelID
	}
	level, err := s.levelOf(ctx, cv, levelID)
	if err != nil {
		return nil, err
	}
	taken, err := s.store.CountAtLevel(ctx, level.ID)
	if err != nil {
		return nil, err
	}
	// A forced level is sold even when it is hidden, closed or past its deadline.
	if forced {
		err = catalog.CheckCapacity(level, taken)
	} else {
		err = catalog.CheckLevel(level, now, taken)
	}
	if err != nil {
		return nil, err
	}
	q.level = level

	price, err := catalog.PriceOf(catalog.LevelOffering{Level: level}, now)
	if err != nil {
		return nil, err
	}

	dealerID := req.DealerLevelID
	if q.coupon != nil && q.coupon.ForceDealerLevelID != nil {
		dealerID = q.coupon.ForceDealerLevelID
	}
	if dealerID != nil {
		d, err := s.dealerLevelOf(ctx, cv, *dealerID)
		if err != nil {
			return nil, err
		}
		taken, err := s.store.DealerTablesTaken(ctx, cv.ID)
		if err != nil {
			return nil, err
		}
		if err := catalog.CheckDealerTables(cv.Settings.DealerTableLimit, taken, d.NumberOfTables); err != nil {
			return nil, err
		}
		q.dealer = d
		price += d.PriceCents
	}

	q.amount = coupons.Apply(q.coupon, price)

	if req.PaymentMethodID != nil {
		m, err := s.store.GetPaymentMethod(ctx, *req.PaymentMethodID)
		if err != nil {
			return nil, err
		}
		q.method = m
	}
	return q, nil
}

func (s *Service) levelOf(ctx context.Context, cv *models.Convention, id uuid.UUID) (*models.RegistrationLevel, error) {
	level, err := s.store.GetLevel(ctx, id)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, ErrLevelUnavailable
	}
	if err != nil {
		return nil, err
	}
	if level.ConventionID != cv.ID {
		return nil, ErrLevelUnavailable
	}
	return level, nil
}

func (s *Service) dealerLevelOf(ctx context.Context, cv *models.Convention, id uuid.UUID) (*models.DealerLevel, error) {
	d, err := s.store.GetDealerLevel(ctx, id)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, ErrLevelUnavailable
	}
	if err != nil {
		return nil, err
	}
	if d.ConventionID != cv.ID {
		return nil, ErrLevelUnavailable
	}
	return d, nil
}

func newRegistration(cv *models.Convention, actor models.Actor, req RegisterRequest, q *quote) *models.Registration {
	reg := &models.Registration{
		ConventionID:        cv.ID,
		UserID:              actor.IDPtr(),
		FirstName:           strings.TrimSpace(req.FirstName),
		LastName:            strings.TrimSpace(req.LastName),
		BadgeName:           strings.TrimSpace(req.BadgeName),
		Email:               strings.TrimSpace(req.Email),
		EmailMe:             req.EmailMe,
		Address:             req.Address,
		City:                req.City,
		State:               req.State,
		PostalCode:          req.PostalCode,
		Country:             req.Country,
		Birthday:            req.Birthday,
		RegistrationLevelID: q.level.ID,
		ShirtSize:           req.ShirtSize,
		Volunteer:           req.Volunteer,
		VolunteerPhone:      req.VolunteerPhone,
		EmergencyContact:    req.EmergencyContact,
		Status:              models.StatusUnpaid,
		NeedsPrint:          models.NeedsPrintYesNew,
		IP:                  req.IP,
	}
	if q.dealer != nil {
		id := q.dealer.ID
		reg.DealerLevelID = &id
	}
	return reg
}

func formatCents(c int64) string {
	return fmt.Sprintf("$%d.%02d", c/100, c%100)
}
