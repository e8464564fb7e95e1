// Package notify turns registration events into queued emails. Delivery
// happens in the worker; nothing here blocks or fails a registration.
package notify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/conreg/backend/internal/models"
	"github.com/conreg/backend/internal/registrations"
	"github.com/conreg/backend/pkg/queue"
)

// Enqueuer is the email job queue.
type Enqueuer interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// Recipients are the staff mailboxes that get internal notices.
type Recipients struct {
	RegistrationGroup []string
	BoardGroup        []string
	Treasurer         []string
}

// Notifier queues attendee and staff emails.
type Notifier struct {
	queue  Enqueuer
	to     Recipients
	logger *zap.Logger
}

// New creates a notifier. A nil queue drops every message with a log line.
func New(q Enqueuer, to Recipients, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{queue: q, to: to, logger: logger}
}

func (n *Notifier) send(ctx context.Context, p queue.EmailPayload) {
	if n.queue == nil {
		n.logger.Info("email dropped, no queue configured", zap.String("email_type", p.EmailType), zap.String("to", p.RecipientEmail))
		return
	}
	if err := n.queue.EnqueueEmail(ctx, p); err != nil {
		n.logger.Error("enqueue email failed", zap.String("email_type", p.EmailType),
			zap.String("to", p.RecipientEmail), zap.Error(err))
	}
}

func (n *Notifier) sendAll(ctx context.Context, to []string, p queue.EmailPayload) {
	for _, addr := range to {
		p.RecipientEmail = addr
		n.send(ctx, p)
	}
}

func about(cv *models.Convention, reg *models.Registration, emailType, subject, body string) queue.EmailPayload {
	cid, rid := cv.ID, reg.ID
	return queue.EmailPayload{
		EmailType:      emailType,
		ConventionID:   &cid,
		RegistrationID: &rid,
		RecipientEmail: reg.Email,
		Subject:        subject,
		Body:           body,
	}
}

func cents(c int64) string {
	return fmt.Sprintf("$%d.%02d", c/100, c%100)
}

// RegistrationConfirmed mails the attendee their confirmation code.
func (n *Notifier) RegistrationConfirmed(ctx context.Context, cv *models.Convention, reg *models.Registration, amountCents int64) {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", reg.FirstName)
	fmt.Fprintf(&b, "Thank you for registering for %s.\n\n", cv.Name)
	fmt.Fprintf(&b, "Confirmation code: %s\n", reg.ExternalID)
	fmt.Fprintf(&b, "Badge name: %s\n", reg.BadgeName)
	fmt.Fprintf(&b, "Total: %s\n", cents(amountCents))
	if !reg.Paid() {
		b.WriteString("\nYour registration is not paid yet. Please pay at the registration desk.\n")
	}
	if cv.ContactEmail != "" {
		fmt.Fprintf(&b, "\nQuestions? Write to %s.\n", cv.ContactEmail)
	}
	n.send(ctx, about(cv, reg, models.EmailTypeRegistrationConfirmation, cv.Name+" registration confirmation", b.String()))
}

// UpgradeConfirmed mails the attendee a receipt for an upgrade.
func (n *Notifier) UpgradeConfirmed(ctx context.Context, cv *models.Convention, reg *models.Registration, levelTitle string, amountCents int64) {
	body := fmt.Sprintf("Hello %s,\n\nYour %s registration now includes %s.\nAmount paid: %s\nConfirmation code: %s\n",
		reg.FirstName, cv.Name, levelTitle, cents(amountCents), reg.ExternalID)
	n.send(ctx, about(cv, reg, models.EmailTypeUpgradeConfirmation, cv.Name+" upgrade confirmation", body))
}

// RegistrationFlagged tells staff mailboxes about hold matches and possible duplicates.
func (n *Notifier) RegistrationFlagged(ctx context.Context, cv *models.Convention, reg *models.Registration, res *registrations.PostCreateResult) {
	if len(res.Holds) > 0 {
		var b strings.Builder
		fmt.Fprintf(&b, "Registration %d (%s) matched the hold list:\n\n", reg.ID, reg.FullName(true))
		for _, h := range res.Holds {
			if h.PrivateNotesAddition != "" {
				fmt.Fprintf(&b, "- %s\n", h.PrivateNotesAddition)
			} else {
				fmt.Fprintf(&b, "- hold %s\n", h.ID)
			}
		}
		p := about(cv, reg, models.EmailTypeHoldMatched, "Registration flagged: "+reg.FullName(true), b.String())
		if res.NotifyRegistrationGroup {
			n.sendAll(ctx, n.to.RegistrationGroup, p)
		}
		if res.NotifyBoardGroup {
			n.sendAll(ctx, n.to.BoardGroup, p)
		}
	}
	if len(res.Duplicates) > 0 {
		var b strings.Builder
		fmt.Fprintf(&b, "Registration %d (%s) may duplicate:\n\n", reg.ID, reg.FullName(true))
		for _, d := range res.Duplicates {
			fmt.Fprintf(&b, "- %d %s, %s (%s)\n", d.ID, d.LastName, d.FirstName, d.ExternalID)
		}
		n.sendAll(ctx, n.to.RegistrationGroup,
			about(cv, reg, models.EmailTypeDuplicateRegistration, "Possible duplicate registration: "+reg.FullName(true), b.String()))
	}
}

// RefundReport mails the settlement report to the treasurer.
func (n *Notifier) RefundReport(ctx context.Context, subject, body string) {
	n.sendAll(ctx, n.to.Treasurer, queue.EmailPayload{
		EmailType: models.EmailTypeRefundReport,
		Subject:   subject,
		Body:      body,
	})
}
