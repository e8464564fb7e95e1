package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Row is one staff action with the registration it touched.
type Row struct {
	ID             uuid.UUID  `json:"id"`
	RegistrationID int64      `json:"registration_id"`
	Attendee       string     `json:"attendee"`
	ActorID        *uuid.UUID `json:"actor_id,omitempty"`
	ActorEmail     string     `json:"actor_email,omitempty"`
	Action         string     `json:"action"`
	Message        string     `json:"message"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Filter narrows a listing. Zero values mean no restriction.
type Filter struct {
	ActorID *uuid.UUID
	Action  string
	Since   *time.Time
	Limit   int
}

// Repository reads registration_audit_log across a convention.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an audit repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListByConvention returns the newest actions first.
func (r *Repository) ListByConvention(ctx context.Context, conventionID uuid.UUID, f Filter) ([]Row, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	rows, err := r.pool.Query(ctx,
		`SELECT a.id, a.registration_id, r.last_name || ', ' || r.first_name, a.actor_id, COALESCE(u.email, ''),
			a.action, a.message, a.created_at
		 FROM registration_audit_log a
		 JOIN registrations r ON r.id = a.registration_id
		 LEFT JOIN users u ON u.id = a.actor_id
		 WHERE r.convention_id = $1
			AND ($2::uuid IS NULL OR a.actor_id = $2)
			AND ($3 = '' OR a.action = $3)
			AND ($4::timestamptz IS NULL OR a.created_at >= $4)
		 ORDER BY a.created_at DESC
		 LIMIT $5`,
		conventionID, f.ActorID, f.Action, f.Since, f.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []Row{}
	for rows.Next() {
		var row Row
		if err := rows.Scan(&row.ID, &row.RegistrationID, &row.Attendee, &row.ActorID, &row.ActorEmail,
			&row.Action, &row.Message, &row.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, row)
	}
	return list, rows.Err()
}
