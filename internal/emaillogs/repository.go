package emaillogs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/conreg/backend/internal/models"
)

// Repository handles email_logs persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an email logs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const columns = `id, convention_id, registration_id, email_type, recipient_email, subject, status, sent_at, error_message, created_at`

// Create records an email as pending. A zero ID is generated by the database;
// a preset ID already on file is reset to pending instead of duplicated.
func (r *Repository) Create(ctx context.Context, el *models.EmailLog) error {
	const q = `INSERT INTO email_logs (id, convention_id, registration_id, email_type, recipient_email, subject, status)
		VALUES (COALESCE($1, gen_random_uuid()), $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status
		RETURNING id, created_at`
	if el.Status == "" {
		el.Status = models.EmailLogStatusPending
	}
	var id *uuid.UUID
	if el.ID != uuid.Nil {
		id = &el.ID
	}
	return r.pool.QueryRow(ctx, q, id, el.ConventionID, el.RegistrationID, el.EmailType, el.RecipientEmail, el.Subject, el.Status).
		Scan(&el.ID, &el.CreatedAt)
}

// MarkSent records a successful delivery.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE email_logs SET status = $2, sent_at = $3, error_message = '' WHERE id = $1`,
		id, models.EmailLogStatusSent, at)
	return err
}

// MarkFailed records a failed delivery attempt.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.pool.Exec(ctx, `UPDATE email_logs SET status = $2, error_message = $3 WHERE id = $1`,
		id, models.EmailLogStatusFailed, reason)
	return err
}

// ListByConvention returns email logs for a convention, newest first.
func (r *Repository) ListByConvention(ctx context.Context, conventionID uuid.UUID) ([]*models.EmailLog, error) {
	return r.list(ctx, `SELECT `+columns+` FROM email_logs WHERE convention_id = $1 ORDER BY created_at DESC LIMIT 500`, conventionID)
}

// ListByRegistration returns email logs for one registration, newest first.
func (r *Repository) ListByRegistration(ctx context.Context, registrationID int64) ([]*models.EmailLog, error) {
	return r.list(ctx, `SELECT `+columns+` FROM email_logs WHERE registration_id = $1 ORDER BY created_at DESC`, registrationID)
}

func (r *Repository) list(ctx context.Context, q string, arg any) ([]*models.EmailLog, error) {
	rows, err := r.pool.Query(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.EmailLog{}
	for rows.Next() {
		el, err := scan(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, el)
	}
	return list, rows.Err()
}

func scan(row pgx.Row) (*models.EmailLog, error) {
	var el models.EmailLog
	if err := row.Scan(&el.ID, &el.ConventionID, &el.RegistrationID, &el.EmailType, &el.RecipientEmail,
		&el.Subject, &el.Status, &el.SentAt, &el.ErrorMessage, &el.CreatedAt); err != nil {
		return nil, err
	}
	return &el, nil
}
