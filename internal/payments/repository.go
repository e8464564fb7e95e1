package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/conreg/backend/internal/models"
	"github.com/conreg/backend/pkg/database"
)

// Repository is the payment ledger. It runs on a pool or a tx.
type Repository struct {
	db database.DBTX
}

// NewRepository creates a payment repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

const paymentSelect = `SELECT p.id, p.registration_id, p.payment_method_id, m.credit, p.amount_cents, p.reference, p.state,
		p.created_by, p.refund_requested_by, p.refund_requested_at, p.refund_processed_by, p.refund_processed_at, p.created_at
	FROM payments p JOIN payment_methods m ON m.id = p.payment_method_id`

func scanPayment(row pgx.Row) (*models.Payment, error) {
	var p models.Payment
	var state string
	if err := row.Scan(&p.ID, &p.RegistrationID, &p.PaymentMethodID, &p.MethodCredit, &p.AmountCents, &p.Reference, &state,
		&p.CreatedBy, &p.RefundRequestedBy, &p.RefundRequestedAt, &p.RefundProcessedBy, &p.RefundProcessedAt, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.State = models.PaymentState(state)
	return &p, nil
}

// Create appends a payment row.
func (r *Repository) Create(ctx context.Context, p *models.Payment) error {
	const q = `INSERT INTO payments (registration_id, payment_method_id, amount_cents, reference, state, created_by)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`
	if p.State == "" {
		p.State = models.PaymentStatePaid
	}
	if err := r.db.QueryRow(ctx, q, p.RegistrationID, p.PaymentMethodID, p.AmountCents, p.Reference, string(p.State), p.CreatedBy).
		Scan(&p.ID, &p.CreatedAt); err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// ListForRegistration returns a registration's payments, oldest first.
func (r *Repository) ListForRegistration(ctx context.Context, registrationID int64) ([]models.Payment, error) {
	return r.list(ctx, paymentSelect+` WHERE p.registration_id = $1 ORDER BY p.created_at, p.id`, registrationID)
}

// LockForRegistration is ListForRegistration with the payment rows locked
// until the surrounding transaction ends. Settlement claims wait on it.
func (r *Repository) LockForRegistration(ctx context.Context, registrationID int64) ([]models.Payment, error) {
	return r.list(ctx, paymentSelect+` WHERE p.registration_id = $1 ORDER BY p.created_at, p.id FOR UPDATE OF p`, registrationID)
}

func (r *Repository) list(ctx context.Context, q string, args ...any) ([]models.Payment, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()
	var list []models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *p)
	}
	return list, rows.Err()
}

// UpdateState writes a payment's state and refund bookkeeping.
func (r *Repository) UpdateState(ctx context.Context, p *models.Payment) error {
	const q = `UPDATE payments SET state = $1, refund_requested_by = $2, refund_requested_at = $3,
			refund_processed_by = $4, refund_processed_at = $5
		WHERE id = $6`
	tag, err := r.db.Exec(ctx, q, string(p.State), p.RefundRequestedBy, p.RefundRequestedAt, p.RefundProcessedBy, p.RefundProcessedAt, p.ID)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RefundsRequestedBefore lists deferred refunds requested before cutoff, with
// the attendee details the treasurer report prints.
func (r *Repository) RefundsRequestedBefore(ctx context.Context, cutoff time.Time) ([]PendingRefund, error) {
	const q = `SELECT p.id, p.registration_id, p.payment_method_id, m.credit, p.amount_cents, p.reference, p.state,
			p.created_by, p.refund_requested_by, p.refund_requested_at, p.refund_processed_by, p.refund_processed_at, p.created_at,
			r.first_name, r.last_name, r.badge_name, l.title
		FROM payments p
		JOIN payment_methods m ON m.id = p.payment_method_id
		JOIN registrations r ON r.id = p.registration_id
		JOIN registration_levels l ON l.id = r.registration_level_id
		WHERE p.state = 'refund_requested' AND p.refund_requested_at < $1
		ORDER BY p.refund_requested_at`
	rows, err := r.db.Query(ctx, q, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list requested refunds: %w", err)
	}
	defer rows.Close()
	var list []PendingRefund
	for rows.Next() {
		var pr PendingRefund
		p := &pr.Payment
		var state string
		if err := rows.Scan(&p.ID, &p.RegistrationID, &p.PaymentMethodID, &p.MethodCredit, &p.AmountCents, &p.Reference, &state,
			&p.CreatedBy, &p.RefundRequestedBy, &p.RefundRequestedAt, &p.RefundProcessedBy, &p.RefundProcessedAt, &p.CreatedAt,
			&pr.FirstName, &pr.LastName, &pr.BadgeName, &pr.LevelTitle); err != nil {
			return nil, err
		}
		p.State = models.PaymentState(state)
		list = append(list, pr)
	}
	return list, rows.Err()
}

// ClaimRefund moves a requested refund to refund_settling so no ledger
// write can touch it while the gateway call runs.
func (r *Repository) ClaimRefund(ctx context.Context, id uuid.UUID) error {
	return r.moveState(ctx, id, models.PaymentStateRefundRequested, models.PaymentStateRefundSettling, nil)
}

// ReleaseRefund hands a claimed refund back to the requested state after a
// failed gateway call.
func (r *Repository) ReleaseRefund(ctx context.Context, id uuid.UUID) error {
	return r.moveState(ctx, id, models.PaymentStateRefundSettling, models.PaymentStateRefundRequested, nil)
}

// MarkRefunded settles a claimed refund.
func (r *Repository) MarkRefunded(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.moveState(ctx, id, models.PaymentStateRefundSettling, models.PaymentStateRefunded, &at)
}

func (r *Repository) moveState(ctx context.Context, id uuid.UUID, from, to models.PaymentState, processedAt *time.Time) error {
	const q = `UPDATE payments SET state = $1, refund_processed_at = COALESCE($2, refund_processed_at)
		WHERE id = $3 AND state = $4`
	tag, err := r.db.Exec(ctx, q, string(to), processedAt, id, string(from))
	if err != nil {
		return fmt.Errorf("move payment %s to %s: %w", id, to, err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("%w: payment %s is no longer %s", ErrStateChanged, id, from)
	}
	return nil
}
