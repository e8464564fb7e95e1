package badges

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/conreg/backend/internal/models"
	"github.com/conreg/backend/pkg/database"
)

// Repository persists badge assignments. It runs on a pool or a tx.
type Repository struct {
	db database.DBTX
}

// NewRepository creates a badge repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// Latest returns the most recent assignment for a registration, or nil.
func (r *Repository) Latest(ctx context.Context, registrationID int64) (*models.BadgeAssignment, error) {
	const q = `SELECT id, registration_id, registration_level_id, printed_by, printed_at
		FROM badge_assignments WHERE registration_id = $1 ORDER BY id DESC LIMIT 1`
	var a models.BadgeAssignment
	err := r.db.QueryRow(ctx, q, registrationID).Scan(&a.ID, &a.RegistrationID, &a.RegistrationLevelID, &a.PrintedBy, &a.PrintedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest badge assignment: %w", err)
	}
	return &a, nil
}

// Create appends an assignment and fills its id.
func (r *Repository) Create(ctx context.Context, a *models.BadgeAssignment) error {
	const q = `INSERT INTO badge_assignments (registration_id, registration_level_id, printed_by, printed_at)
		VALUES ($1, $2, $3, $4) RETURNING id`
	if err := r.db.QueryRow(ctx, q, a.RegistrationID, a.RegistrationLevelID, a.PrintedBy, a.PrintedAt).Scan(&a.ID); err != nil {
		return fmt.Errorf("insert badge assignment: %w", err)
	}
	return nil
}
