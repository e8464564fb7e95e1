package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conreg/backend/internal/models"
)

// PendingRefund is a requested refund with the attendee it belongs to.
type PendingRefund struct {
	Payment    models.Payment
	FirstName  string
	LastName   string
	BadgeName  string
	LevelTitle string
}

func (p PendingRefund) line() string {
	return fmt.Sprintf("%s, %s (%s) - %s, %s", p.LastName, p.FirstName, p.BadgeName, p.LevelTitle, formatCents(p.Payment.AmountCents))
}

// SettlementStore is what the settlement job needs from the ledger.
// ClaimRefund, ReleaseRefund and MarkRefunded return ErrStateChanged when the
// payment is not in the state they expect.
type SettlementStore interface {
	RefundsRequestedBefore(ctx context.Context, cutoff time.Time) ([]PendingRefund, error)
	ClaimRefund(ctx context.Context, id uuid.UUID) error
	ReleaseRefund(ctx context.Context, id uuid.UUID) error
	MarkRefunded(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Reporter delivers the treasurer report.
type Reporter interface {
	RefundReport(ctx context.Context, subject, body string)
}

// SettlementReport is the outcome of one settlement run.
type SettlementReport struct {
	Processed []PendingRefund
	Failed    []string
	Soon      []PendingRefund
}

// Empty reports whether there is nothing worth mailing.
func (r *SettlementReport) Empty() bool {
	return len(r.Processed) == 0 && len(r.Failed) == 0 && len(r.Soon) == 0
}

// Settler refunds deferred card payments once the settlement delay elapsed.
type Settler struct {
	store       SettlementStore
	gateway     Gateway
	reporter    Reporter
	settleAfter time.Duration
	warnWithin  time.Duration
	now         func() time.Time
	logger      *zap.Logger
}

// NewSettler creates a settlement job. warnWithin is how far ahead of the
// settlement time a refund shows up as "soon" in the report.
func NewSettler(store SettlementStore, gateway Gateway, reporter Reporter, settleAfter, warnWithin time.Duration, logger *zap.Logger) *Settler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Settler{
		store:       store,
		gateway:     gateway,
		reporter:    reporter,
		settleAfter: settleAfter,
		warnWithin:  warnWithin,
		now:         time.Now,
		logger:      logger,
	}
}

// Run processes due refunds and mails the report when there is anything in it.
func (s *Settler) Run(ctx context.Context) (*SettlementReport, error) {
	now := s.now()
	report := &SettlementReport{}

	due, err := s.store.RefundsRequestedBefore(ctx, now.Add(-s.settleAfter))
	if err != nil {
		return nil, fmt.Errorf("load due refunds: %w", err)
	}
	for _, pr := range due {
		if !pr.Payment.DeferredRefund() {
			continue
		}
		log := s.logger.With(zap.String("payment_id", pr.Payment.ID.String()), zap.Int64("registration_id", pr.Payment.RegistrationID))
		if err := s.store.ClaimRefund(ctx, pr.Payment.ID); err != nil {
			if errors.Is(err, ErrStateChanged) {
				log.Info("refund withdrawn before settlement")
				continue
			}
			return report, fmt.Errorf("claim payment %s: %w", pr.Payment.ID, err)
		}
		if err := s.gateway.Refund(ctx, pr.Payment.Reference); err != nil {
			log.Error("refund failed", zap.Error(err))
			report.Failed = append(report.Failed, fmt.Sprintf("Failed to refund %s to payment ID %s (%v)",
				formatCents(pr.Payment.AmountCents), pr.Payment.ID, err))
			if err := s.store.ReleaseRefund(ctx, pr.Payment.ID); err != nil {
				log.Error("release refund claim", zap.Error(err))
			}
			continue
		}
		if err := s.store.MarkRefunded(ctx, pr.Payment.ID, now); err != nil {
			// The gateway already returned the money; the ledger must be fixed by hand.
			log.Error("refund settled at gateway but ledger not updated", zap.Error(err))
			report.Failed = append(report.Failed, fmt.Sprintf("Refunded %s to payment ID %s at the provider, but the ledger was not updated (%v)",
				formatCents(pr.Payment.AmountCents), pr.Payment.ID, err))
			continue
		}
		log.Info("refund processed")
		report.Processed = append(report.Processed, pr)
	}

	processed := make(map[uuid.UUID]bool, len(report.Processed))
	for _, pr := range report.Processed {
		processed[pr.Payment.ID] = true
	}
	soon, err := s.store.RefundsRequestedBefore(ctx, now.Add(-(s.settleAfter - s.warnWithin)))
	if err != nil {
		return report, fmt.Errorf("load upcoming refunds: %w", err)
	}
	for _, pr := range soon {
		if !processed[pr.Payment.ID] && pr.Payment.DeferredRefund() {
			report.Soon = append(report.Soon, pr)
		}
	}

	if !report.Empty() && s.reporter != nil {
		s.reporter.RefundReport(ctx, "Refund report for "+now.Format("2006-01-02"), report.Body(s.warnWithin))
	}
	return report, nil
}

// Body renders the treasurer report.
func (r *SettlementReport) Body(warnWithin time.Duration) string {
	var b strings.Builder
	b.WriteString("This is a report detailing the delayed refund process.\n\n")
	if len(r.Processed) > 0 {
		b.WriteString("These refunds have been processed with the payment provider:\n")
		for _, pr := range r.Processed {
			b.WriteString(pr.line() + "\n")
		}
		b.WriteString("\n")
	}
	if len(r.Failed) > 0 {
		b.WriteString("These refunds were attempted, but errors occurred with the payment provider:\n")
		for _, line := range r.Failed {
			b.WriteString(line + "\n")
		}
		b.WriteString("\n")
	}
	if len(r.Soon) > 0 {
		fmt.Fprintf(&b, "These refunds are scheduled to be processed within %s:\n", warnWithin)
		for _, pr := range r.Soon {
			b.WriteString(pr.line() + "\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatCents(c int64) string {
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}
