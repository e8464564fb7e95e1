// Package coupons validates coupon codes and computes discounted amounts.
package coupons

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/conreg/backend/internal/models"
)

// Store is the persistence a lookup needs.
type Store interface {
	GetByCode(ctx context.Context, code string) (*models.Coupon, error)
	UseCount(ctx context.Context, couponID uuid.UUID) (int, error)
}

// Lookup resolves a code for the given convention. Unknown codes, codes of
// another convention and consumed single-use codes are all ErrInvalidCoupon.
func Lookup(ctx context.Context, s Store, code string, cv *models.Convention) (*models.Coupon, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrInvalidCoupon
	}
	c, err := s.GetByCode(ctx, code)
	if errors.Is(err, ErrInvalidCoupon) {
		return nil, ErrInvalidCoupon
	}
	if err != nil {
		return nil, err
	}
	if c.ConventionID != cv.ID {
		return nil, ErrInvalidCoupon
	}
	if c.SingleUse {
		n, err := s.UseCount(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			return nil, ErrInvalidCoupon
		}
	}
	return c, nil
}

// Apply returns the amount due after the coupon: max((amount - fixed) *
// (100 - percent) / 100, 0), rounded to the nearest cent. A nil coupon
// leaves the amount unchanged.
func Apply(c *models.Coupon, amount int64) int64 {
	if c == nil {
		return amount
	}
	if c.Percent {
		amount = (amount*(100-c.Discount) + 50) / 100
	} else {
		amount -= c.Discount
	}
	if amount < 0 {
		return 0
	}
	return amount
}

// Full reports whether the coupon covers the whole price on its own.
func Full(c *models.Coupon, price int64) bool {
	if c.Percent {
		return c.Discount >= 100
	}
	return c.Discount >= price
}

// Discount returns the cents the coupon takes off price.
func Discount(c *models.Coupon, price int64) int64 {
	return price - Apply(c, price)
}

// ForUpgrade drops a coupon whose forced level is not the upgrade target.
func ForUpgrade(c *models.Coupon, targetLevel uuid.UUID) *models.Coupon {
	if c == nil || (c.ForceLevelID != nil && *c.ForceLevelID != targetLevel) {
		return nil
	}
	return c
}
