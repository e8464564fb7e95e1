package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conreg/backend/internal/models"
)

type memLedger struct {
	refunds []PendingRefund
}

func (m *memLedger) RefundsRequestedBefore(_ context.Context, cutoff time.Time) ([]PendingRefund, error) {
	var out []PendingRefund
	for _, pr := range m.refunds {
		if pr.Payment.State == models.PaymentStateRefundRequested && pr.Payment.RefundRequestedAt.Before(cutoff) {
			out = append(out, pr)
		}
	}
	return out, nil
}

func (m *memLedger) move(id uuid.UUID, from, to models.PaymentState, at *time.Time) error {
	for i := range m.refunds {
		p := &m.refunds[i].Payment
		if p.ID == id && p.State == from {
			p.State = to
			if at != nil {
				p.RefundProcessedAt = at
			}
			return nil
		}
	}
	return ErrStateChanged
}

func (m *memLedger) ClaimRefund(_ context.Context, id uuid.UUID) error {
	return m.move(id, models.PaymentStateRefundRequested, models.PaymentStateRefundSettling, nil)
}

func (m *memLedger) ReleaseRefund(_ context.Context, id uuid.UUID) error {
	return m.move(id, models.PaymentStateRefundSettling, models.PaymentStateRefundRequested, nil)
}

func (m *memLedger) MarkRefunded(_ context.Context, id uuid.UUID, at time.Time) error {
	return m.move(id, models.PaymentStateRefundSettling, models.PaymentStateRefunded, &at)
}

// undo mirrors the ledger's undo refund: it only restores a payment that is
// still waiting for settlement.
func (m *memLedger) undo(id uuid.UUID) bool {
	return m.move(id, models.PaymentStateRefundRequested, models.PaymentStatePaid, nil) == nil
}

type fakeGateway struct {
	refunded []string
	fail     map[string]bool
	during   func(ref string)
}

func (g *fakeGateway) Charge(context.Context, ChargeRequest) (string, error) { return "ch_new", nil }

func (g *fakeGateway) Refund(_ context.Context, ref string) error {
	if g.during != nil {
		g.during(ref)
	}
	if g.fail[ref] {
		return errors.New("charge already refunded")
	}
	g.refunded = append(g.refunded, ref)
	return nil
}

type captureReporter struct {
	subject, body string
	calls         int
}

func (c *captureReporter) RefundReport(_ context.Context, subject, body string) {
	c.subject, c.body = subject, body
	c.calls++
}

func requested(ref string, credit bool, at time.Time) PendingRefund {
	return PendingRefund{
		Payment: models.Payment{
			ID:                uuid.New(),
			RegistrationID:    1,
			MethodCredit:      credit,
			AmountCents:       5000,
			Reference:         ref,
			State:             models.PaymentStateRefundRequested,
			RefundRequestedAt: &at,
		},
		FirstName: "Ada", LastName: "Lovelace", BadgeName: "Countess", LevelTitle: "Attending",
	}
}

func TestSettlerRun(t *testing.T) {
	now := time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)
	ledger := &memLedger{refunds: []PendingRefund{
		requested("ch_due", true, now.Add(-80*time.Hour)),
		requested("ch_broken", true, now.Add(-100*time.Hour)),
		requested("ch_soon", true, now.Add(-60*time.Hour)),
		requested("ch_later", true, now.Add(-time.Hour)),
	}}
	gw := &fakeGateway{fail: map[string]bool{"ch_broken": true}}
	rep := &captureReporter{}
	s := NewSettler(ledger, gw, rep, 72*time.Hour, 24*time.Hour, nil)
	s.now = func() time.Time { return now }

	report, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"ch_due"}, gw.refunded)
	require.Len(t, report.Processed, 1)
	assert.Equal(t, "ch_due", report.Processed[0].Payment.Reference)
	assert.Equal(t, models.PaymentStateRefunded, ledger.refunds[0].Payment.State)
	require.NotNil(t, ledger.refunds[0].Payment.RefundProcessedAt)

	require.Len(t, report.Failed, 1)
	assert.Equal(t, models.PaymentStateRefundRequested, ledger.refunds[1].Payment.State)

	var soon []string
	for _, pr := range report.Soon {
		soon = append(soon, pr.Payment.Reference)
	}
	assert.ElementsMatch(t, []string{"ch_broken", "ch_soon"}, soon)

	assert.Equal(t, 1, rep.calls)
	assert.Equal(t, "Refund report for 2026-06-10", rep.subject)
	assert.Contains(t, rep.body, "Lovelace, Ada (Countess) - Attending, 50.00")
	assert.Contains(t, rep.body, "errors occurred")
}

func TestSettlerSkipsNonDeferredAndStaysQuiet(t *testing.T) {
	now := time.Now()
	ledger := &memLedger{refunds: []PendingRefund{
		requested("", true, now.Add(-100*time.Hour)),
		requested("cash", false, now.Add(-100*time.Hour)),
	}}
	gw := &fakeGateway{}
	rep := &captureReporter{}
	s := NewSettler(ledger, gw, rep, 72*time.Hour, 24*time.Hour, nil)

	report, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Empty())
	assert.Empty(t, gw.refunded)
	assert.Zero(t, rep.calls)
}

func TestSettlerClaimsBeforeRefunding(t *testing.T) {
	now := time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)
	ledger := &memLedger{refunds: []PendingRefund{
		requested("ch_a", true, now.Add(-80*time.Hour)),
		requested("ch_b", true, now.Add(-90*time.Hour)),
	}}
	undone := map[string]bool{}
	gw := &fakeGateway{during: func(ref string) {
		// Staff try to undo every refund while its gateway call is in flight.
		for _, pr := range ledger.refunds {
			if pr.Payment.Reference == ref {
				undone[ref] = ledger.undo(pr.Payment.ID)
			}
		}
	}}
	s := NewSettler(ledger, gw, nil, 72*time.Hour, 24*time.Hour, nil)
	s.now = func() time.Time { return now }

	report, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"ch_a": false, "ch_b": false}, undone)
	assert.Len(t, report.Processed, 2)
	assert.Empty(t, report.Failed)
	for _, pr := range ledger.refunds {
		assert.Equal(t, models.PaymentStateRefunded, pr.Payment.State)
	}
}

func TestSettlerSkipsRefundUndoneBeforeClaim(t *testing.T) {
	now := time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)
	ledger := &memLedger{refunds: []PendingRefund{requested("ch_undone", true, now.Add(-80*time.Hour))}}
	undoing := &undoOnList{memLedger: ledger}
	gw := &fakeGateway{}
	s := NewSettler(undoing, gw, nil, 72*time.Hour, 24*time.Hour, nil)
	s.now = func() time.Time { return now }

	report, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, gw.refunded)
	assert.Empty(t, report.Processed)
	assert.Empty(t, report.Failed)
	assert.Equal(t, models.PaymentStatePaid, ledger.refunds[0].Payment.State)
}

func TestSettlerReleasesClaimWhenGatewayFails(t *testing.T) {
	now := time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)
	ledger := &memLedger{refunds: []PendingRefund{requested("ch_broken", true, now.Add(-80*time.Hour))}}
	gw := &fakeGateway{fail: map[string]bool{"ch_broken": true}}
	s := NewSettler(ledger, gw, nil, 72*time.Hour, 24*time.Hour, nil)
	s.now = func() time.Time { return now }

	report, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Failed, 1)
	assert.Equal(t, models.PaymentStateRefundRequested, ledger.refunds[0].Payment.State)
	assert.True(t, ledger.undo(ledger.refunds[0].Payment.ID), "a released refund can still be undone")
}

func TestSettlerReportsLedgerMismatch(t *testing.T) {
	now := time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)
	ledger := &memLedger{refunds: []PendingRefund{requested("ch_lost", true, now.Add(-80*time.Hour))}}
	gw := &fakeGateway{during: func(string) {
		ledger.refunds[0].Payment.State = models.PaymentStatePaid
	}}
	rep := &captureReporter{}
	s := NewSettler(ledger, gw, rep, 72*time.Hour, 24*time.Hour, nil)
	s.now = func() time.Time { return now }

	report, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ch_lost"}, gw.refunded)
	assert.Empty(t, report.Processed)
	require.Len(t, report.Failed, 1)
	assert.Contains(t, report.Failed[0], "ledger was not updated")
	assert.Equal(t, 1, rep.calls)
}

// undoOnList undoes every refund right after the settler lists them.
type undoOnList struct {
	*memLedger
	done bool
}

func (u *undoOnList) RefundsRequestedBefore(ctx context.Context, cutoff time.Time) ([]PendingRefund, error) {
	list, err := u.memLedger.RefundsRequestedBefore(ctx, cutoff)
	if !u.done {
		u.done = true
		for _, pr := range list {
			u.undo(pr.Payment.ID)
		}
	}
	return list, err
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "0.05", formatCents(5))
	assert.Equal(t, "123.40", formatCents(12340))
	assert.Equal(t, "-1.00", formatCents(-100))
}
