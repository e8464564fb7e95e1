package avatars

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/conreg/backend/internal/models"
)

// Repository persists registration_temp_avatars.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a temp avatar repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a temp avatar.
func (r *Repository) Create(ctx context.Context, a *models.TempAvatar) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO registration_temp_avatars (id, object_key, uploaded_at) VALUES ($1, $2, $3)`,
		a.ID, a.ObjectKey, a.UploadedAt)
	return err
}

// UploadedBefore lists temp avatars uploaded before cutoff, oldest first.
func (r *Repository) UploadedBefore(ctx context.Context, cutoff time.Time) ([]models.TempAvatar, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, object_key, uploaded_at FROM registration_temp_avatars
		WHERE uploaded_at < $1 ORDER BY uploaded_at LIMIT 1000`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.TempAvatar
	for rows.Next() {
		var a models.TempAvatar
		if err := rows.Scan(&a.ID, &a.ObjectKey, &a.UploadedAt); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// Delete removes a temp avatar row.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM registration_temp_avatars WHERE id = $1`, id)
	return err
}
