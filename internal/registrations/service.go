// Package registrations implements the attendee registration lifecycle:
// the signup funnel, payments and refunds, check-in, badge printing and upgrades.
package registrations

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conreg/backend/internal/metrics"
	"github.com/conreg/backend/internal/models"
	"github.com/conreg/backend/internal/payments"
)

// Notifier sends best-effort mail about registrations. Implementations must
// not block or fail the calling workflow.
type Notifier interface {
	RegistrationConfirmed(ctx context.Context, cv *models.Convention, reg *models.Registration, amountCents int64)
	UpgradeConfirmed(ctx context.Context, cv *models.Convention, reg *models.Registration, levelTitle string, amountCents int64)
	RegistrationFlagged(ctx context.Context, cv *models.Convention, reg *models.Registration, res *PostCreateResult)
}

// LineQueue removes a registration from a named check-in queue.
type LineQueue interface {
	Dequeue(ctx context.Context, conventionID uuid.UUID, registrationID int64, queueName string) error
}

// Throttle is a fixed-window failure counter.
type Throttle interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)
	Count(ctx context.Context, key string) (int64, error)
}

// Options tunes the service.
type Options struct {
	LineQueue      string
	SearchLimit    int
	LookupFailures int
	LookupWindow   time.Duration
}

// Service runs registration operations. Every operation takes the convention
// it acts for; registrations of any other convention are refused.
type Service struct {
	store    Store
	gateway  payments.Gateway
	notifier Notifier
	line     LineQueue
	throttle Throttle
	metrics  *metrics.Metrics
	opts     Options
	now      func() time.Time
	logger   *zap.Logger
}

// NewService creates a registration service. notifier, line, throttle and m may be nil.
func NewService(store Store, gateway payments.Gateway, notifier Notifier, line LineQueue, throttle Throttle, m *metrics.Metrics, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if gateway == nil {
		gateway = payments.Manual{}
	}
	if opts.LineQueue == "" {
		opts.LineQueue = "regline"
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = 20
	}
	if opts.LookupFailures <= 0 {
		opts.LookupFailures = 5
	}
	if opts.LookupWindow <= 0 {
		opts.LookupWindow = 30 * time.Minute
	}
	return &Service{
		store:    store,
		gateway:  gateway,
		notifier: notifier,
		line:     line,
		throttle: throttle,
		metrics:  m,
		opts:     opts,
		now:      time.Now,
		logger:   logger,
	}
}

// load fetches a registration that belongs to cv.
func load(ctx context.Context, s Store, cv *models.Convention, id int64) (*models.Registration, error) {
	reg, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if reg.ConventionID != cv.ID {
		return nil, ErrCrossConvention
	}
	return reg, nil
}

func (s *Service) save(ctx context.Context, st Store, reg *models.Registration) error {
	if err := checkInvariants(reg); err != nil {
		return err
	}
	reg.UpdatedAt = s.now()
	return st.Update(ctx, reg)
}

func (s *Service) audit(ctx context.Context, st Store, reg *models.Registration, actor models.Actor, action, message string) error {
	e := &models.AuditEntry{
		RegistrationID: reg.ID,
		ActorID:        actor.IDPtr(),
		Action:         action,
		Message:        message,
		CreatedAt:      s.now(),
	}
	if err := st.AppendAudit(ctx, e); err != nil {
		return fmt.Errorf("audit %s: %w", action, err)
	}
	return nil
}

func (s *Service) logDone(msg string, cv *models.Convention, reg *models.Registration, actor models.Actor, fields ...zap.Field) {
	s.logger.Info(msg, append([]zap.Field{
		zap.Int64("registration_id", reg.ID),
		zap.String("convention_id", cv.ID.String()),
		zap.String("actor", actor.Username),
	}, fields...)...)
}

func (s *Service) logRejected(msg string, cv *models.Convention, id int64, actor models.Actor, err error) {
	s.logger.Warn(msg,
		zap.Int64("registration_id", id),
		zap.String("convention_id", cv.ID.String()),
		zap.String("actor", actor.Username),
		zap.Error(err))
}

// Get returns a registration of cv.
func (s *Service) Get(ctx context.Context, cv *models.Convention, id int64) (*models.Registration, error) {
	return load(ctx, s.store, cv, id)
}

// History returns the audit trail of a registration of cv.
func (s *Service) History(ctx context.Context, cv *models.Convention, id int64) ([]models.AuditEntry, error) {
	if _, err := load(ctx, s.store, cv, id); err != nil {
		return nil, err
	}
	return s.store.ListAudit(ctx, id)
}

// Payments returns the payment ledger of a registration of cv.
func (s *Service) Payments(ctx context.Context, cv *models.Convention, id int64) ([]models.Payment, error) {
	if _, err := load(ctx, s.store, cv, id); err != nil {
		return nil, err
	}
	return s.store.ListPayments(ctx, id)
}

// ResendConfirmation queues the confirmation email again with the amount paid so far.
func (s *Service) ResendConfirmation(ctx context.Context, cv *models.Convention, actor models.Actor, id int64) error {
	reg, err := load(ctx, s.store, cv, id)
	if err != nil {
		return err
	}
	list, err := s.store.ListPayments(ctx, id)
	if err != nil {
		return err
	}
	var paid int64
	for _, p := range list {
		if p.State == models.PaymentStatePaid {
			paid += p.AmountCents
		}
	}
	if err := s.audit(ctx, s.store, reg, actor, "resend_confirmation", "Confirmation email resent to "+reg.Email); err != nil {
		return err
	}
	if s.notifier != nil {
		s.notifier.RegistrationConfirmed(ctx, cv, reg, paid)
	}
	s.logDone("confirmation resent", cv, reg, actor)
	return nil
}
