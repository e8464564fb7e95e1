package coupons

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/conreg/backend/internal/models"
	"github.com/conreg/backend/pkg/database"
)

// Repository persists coupons and their uses. It runs on a pool or a tx.
type Repository struct {
	db database.DBTX
}

// NewRepository creates a coupon repository.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

const couponColumns = `id, convention_id, code, percent, discount, single_use, force_level_id, force_dealer_level_id, notes, created_at`

func scanCoupon(row pgx.Row) (*models.Coupon, error) {
	var c models.Coupon
	err := row.Scan(&c.ID, &c.ConventionID, &c.Code, &c.Percent, &c.Discount, &c.SingleUse,
		&c.ForceLevelID, &c.ForceDealerLevelID, &c.Notes, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvalidCoupon
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByCode returns a coupon by exact code.
func (r *Repository) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	return scanCoupon(r.db.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = $1`, code))
}

// UseCount returns how many registrations consumed a coupon.
func (r *Repository) UseCount(ctx context.Context, couponID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM coupon_uses WHERE coupon_id = $1`, couponID).Scan(&n)
	return n, err
}

// ForRegistration returns the coupons a registration has used, oldest first.
func (r *Repository) ForRegistration(ctx context.Context, registrationID int64) ([]models.Coupon, error) {
	const q = `SELECT c.id, c.convention_id, c.code, c.percent, c.discount, c.single_use,
			c.force_level_id, c.force_dealer_level_id, c.notes, c.created_at
		FROM coupon_uses u JOIN coupons c ON c.id = u.coupon_id
		WHERE u.registration_id = $1 ORDER BY u.created_at, u.id`
	rows, err := r.db.Query(ctx, q, registrationID)
	if err != nil {
		return nil, fmt.Errorf("coupons for registration: %w", err)
	}
	defer rows.Close()
	var list []models.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *c)
	}
	return list, rows.Err()
}

// RecordUse consumes a coupon for a registration. A second use of a
// single-use code trips the partial unique index and fails with ErrInvalidCoupon.
func (r *Repository) RecordUse(ctx context.Context, c *models.Coupon, registrationID int64) (*models.CouponUse, error) {
	const q = `INSERT INTO coupon_uses (coupon_id, registration_id, single_use) VALUES ($1, $2, $3)
		RETURNING id, created_at`
	use := &models.CouponUse{CouponID: c.ID, RegistrationID: registrationID, SingleUse: c.SingleUse}
	err := r.db.QueryRow(ctx, q, c.ID, registrationID, c.SingleUse).Scan(&use.ID, &use.CreatedAt)
	if database.IsUniqueViolation(err, "uq_coupon_single_use") {
		return nil, ErrInvalidCoupon
	}
	if err != nil {
		return nil, fmt.Errorf("record coupon use: %w", err)
	}
	return use, nil
}

// Create inserts a coupon.
func (r *Repository) Create(ctx context.Context, c *models.Coupon) error {
	const q = `INSERT INTO coupons (convention_id, code, percent, discount, single_use, force_level_id, force_dealer_level_id, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id, created_at`
	err := r.db.QueryRow(ctx, q, c.ConventionID, c.Code, c.Percent, c.Discount, c.SingleUse,
		c.ForceLevelID, c.ForceDealerLevelID, c.Notes).Scan(&c.ID, &c.CreatedAt)
	if database.IsUniqueViolation(err, "") {
		return ErrCodeTaken
	}
	return err
}

// WithUses is a coupon with its consumption count.
type WithUses struct {
	models.Coupon
	UseCount int `json:"use_count"`
}

// List returns a convention's coupons with use counts.
func (r *Repository) List(ctx context.Context, conventionID uuid.UUID) ([]WithUses, error) {
	const q = `SELECT c.id, c.convention_id, c.code, c.percent, c.discount, c.single_use,
			c.force_level_id, c.force_dealer_level_id, c.notes, c.created_at,
			(SELECT COUNT(*) FROM coupon_uses u WHERE u.coupon_id = c.id)
		FROM coupons c WHERE c.convention_id = $1 ORDER BY c.code`
	rows, err := r.db.Query(ctx, q, conventionID)
	if err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	defer rows.Close()
	var list []WithUses
	for rows.Next() {
		var w WithUses
		c := &w.Coupon
		if err := rows.Scan(&c.ID, &c.ConventionID, &c.Code, &c.Percent, &c.Discount, &c.SingleUse,
			&c.ForceLevelID, &c.ForceDealerLevelID, &c.Notes, &c.CreatedAt, &w.UseCount); err != nil {
			return nil, err
		}
		list = append(list, w)
	}
	return list, rows.Err()
}
