package checkin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/conreg/backend/internal/models"
	"github.com/conreg/backend/pkg/database"
)

// Repository stores queue entries in registration_queue.
type Repository struct {
	pool *pgxpool.Pool
	db   database.DBTX
}

// NewRepository creates a queue repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, db: pool}
}

// WithTx runs fn against the repository bound to one transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(Store) error) error {
	if r.pool == nil {
		return fn(r)
	}
	return database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&Repository{db: tx})
	})
}

// ConventionOf returns the owning convention of a registration.
func (r *Repository) ConventionOf(ctx context.Context, registrationID int64) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.db.QueryRow(ctx, `SELECT convention_id FROM registrations WHERE id = $1`, registrationID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrNotFound
	}
	return id, err
}

// Insert adds an entry unless the pair is already queued.
func (r *Repository) Insert(ctx context.Context, e *models.QueueEntry) error {
	const q = `INSERT INTO registration_queue (queue_name, registration_id, added, additional_data)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT ON CONSTRAINT uq_queue_member DO NOTHING
		RETURNING id`
	err := r.db.QueryRow(ctx, q, e.QueueName, e.RegistrationID, e.Added, e.AdditionalData).Scan(&e.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("insert queue entry: %w", err)
	}
	return nil
}

// Delete removes memberships of a registration of the given convention.
func (r *Repository) Delete(ctx context.Context, conventionID uuid.UUID, registrationID int64, name string) (int64, error) {
	const q = `DELETE FROM registration_queue q USING registrations r
		WHERE r.id = q.registration_id AND r.convention_id = $1 AND q.registration_id = $2
			AND ($3 = '' OR q.queue_name = $3)`
	tag, err := r.db.Exec(ctx, q, conventionID, registrationID, name)
	if err != nil {
		return 0, fmt.Errorf("delete queue entry: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Head lists the first n entries of a queue, oldest first.
func (r *Repository) Head(ctx context.Context, conventionID uuid.UUID, name string, n int) ([]models.QueueEntry, error) {
	const q = `SELECT q.id, q.queue_name, q.registration_id, q.added, q.top_of_queue, q.additional_data
		FROM registration_queue q JOIN registrations r ON r.id = q.registration_id
		WHERE r.convention_id = $1 AND q.queue_name = $2
		ORDER BY q.id
		LIMIT $3`
	rows, err := r.db.Query(ctx, q, conventionID, name, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.QueueEntry{}
	for rows.Next() {
		var e models.QueueEntry
		if err := rows.Scan(&e.ID, &e.QueueName, &e.RegistrationID, &e.Added, &e.TopOfQueue, &e.AdditionalData); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// MarkTop stamps the first sighting of an entry. A stamp already present is kept.
func (r *Repository) MarkTop(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE registration_queue SET top_of_queue = $2 WHERE id = $1 AND top_of_queue IS NULL`, id, at)
	return err
}

// Remove deletes an entry by id. A missing entry is not an error.
func (r *Repository) Remove(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM registration_queue WHERE id = $1`, id)
	return err
}
