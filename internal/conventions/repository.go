package conventions

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/conreg/backend/internal/models"
	"github.com/conreg/backend/pkg/database"
)

// ErrNotFound is returned when no convention matches.
var ErrNotFound = errors.New("convention not found")

// Repository handles convention persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a convention repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const conventionColumns = `id, name, starts_at, ends_at, contact_email,
	registration_open, badge_number_style, badge_offset, dealer_table_limit,
	created_at, updated_at`

func scanConvention(row pgx.Row) (*models.Convention, error) {
	var cv models.Convention
	var style string
	err := row.Scan(&cv.ID, &cv.Name, &cv.StartsAt, &cv.EndsAt, &cv.ContactEmail,
		&cv.Settings.RegistrationOpen, &style, &cv.Settings.BadgeOffset, &cv.Settings.DealerTableLimit,
		&cv.CreatedAt, &cv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	cv.Settings.BadgeNumberStyle = models.BadgeNumberStyle(style)
	return &cv, nil
}

// Create inserts a new convention.
func (r *Repository) Create(ctx context.Context, cv *models.Convention) error {
	const q = `INSERT INTO conventions (name, starts_at, ends_at, contact_email,
			registration_open, badge_number_style, badge_offset, dealer_table_limit)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`
	s := cv.Settings
	return r.pool.QueryRow(ctx, q, cv.Name, cv.StartsAt, cv.EndsAt, cv.ContactEmail,
		s.RegistrationOpen, string(s.BadgeNumberStyle), s.BadgeOffset, s.DealerTableLimit).
		Scan(&cv.ID, &cv.CreatedAt, &cv.UpdatedAt)
}

// GetByID returns a convention by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Convention, error) {
	return scanConvention(r.pool.QueryRow(ctx, `SELECT `+conventionColumns+` FROM conventions WHERE id = $1`, id))
}

// GetCurrent returns the convention flagged as current.
func (r *Repository) GetCurrent(ctx context.Context) (*models.Convention, error) {
	return scanConvention(r.pool.QueryRow(ctx, `SELECT `+conventionColumns+` FROM conventions WHERE is_current`))
}

// List returns all conventions, newest first.
func (r *Repository) List(ctx context.Context) ([]models.Convention, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+conventionColumns+` FROM conventions ORDER BY starts_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Convention
	for rows.Next() {
		cv, err := scanConvention(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *cv)
	}
	return list, rows.Err()
}

// UpdateSettings replaces the registration settings of a convention.
func (r *Repository) UpdateSettings(ctx context.Context, id uuid.UUID, s models.RegistrationSettings) error {
	const q = `UPDATE conventions SET registration_open = $1, badge_number_style = $2,
		badge_offset = $3, dealer_table_limit = $4, updated_at = NOW() WHERE id = $5`
	tag, err := r.pool.Exec(ctx, q, s.RegistrationOpen, string(s.BadgeNumberStyle), s.BadgeOffset, s.DealerTableLimit, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetCurrent moves the current flag to the given convention.
func (r *Repository) SetCurrent(ctx context.Context, id uuid.UUID) error {
	return database.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE conventions SET is_current = FALSE WHERE is_current`); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `UPDATE conventions SET is_current = TRUE, updated_at = NOW() WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}
