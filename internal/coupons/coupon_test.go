package coupons

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conreg/backend/internal/models"
)

type memStore struct {
	byCode map[string]*models.Coupon
	uses   map[uuid.UUID]int
}

func (m *memStore) GetByCode(_ context.Context, code string) (*models.Coupon, error) {
	c, ok := m.byCode[code]
	if !ok {
		return nil, ErrInvalidCoupon
	}
	return c, nil
}

func (m *memStore) UseCount(_ context.Context, id uuid.UUID) (int, error) {
	return m.uses[id], nil
}

func TestApply(t *testing.T) {
	cases := []struct {
		name   string
		coupon *models.Coupon
		amount int64
		want   int64
	}{
		{"no coupon", nil, 5000, 5000},
		{"fixed", &models.Coupon{Discount: 1500}, 5000, 3500},
		{"fixed larger than amount", &models.Coupon{Discount: 9000}, 5000, 0},
		{"percent", &models.Coupon{Percent: true, Discount: 25}, 5000, 3750},
		{"percent rounds to nearest cent", &models.Coupon{Percent: true, Discount: 33}, 1001, 671},
		{"full percent", &models.Coupon{Percent: true, Discount: 100}, 5000, 0},
		{"zero percent", &models.Coupon{Percent: true, Discount: 0}, 5000, 5000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Apply(tc.coupon, tc.amount))
		})
	}
}

func TestFullAndDiscount(t *testing.T) {
	assert.True(t, Full(&models.Coupon{Percent: true, Discount: 100}, 5000))
	assert.False(t, Full(&models.Coupon{Percent: true, Discount: 99}, 5000))
	assert.True(t, Full(&models.Coupon{Discount: 5000}, 5000))
	assert.False(t, Full(&models.Coupon{Discount: 4999}, 5000))

	assert.Equal(t, int64(1250), Discount(&models.Coupon{Percent: true, Discount: 25}, 5000))
	assert.Equal(t, int64(1000), Discount(&models.Coupon{Discount: 1000}, 5000))
}

func TestForUpgrade(t *testing.T) {
	target := uuid.New()
	other := uuid.New()

	plain := &models.Coupon{Code: "PLAIN"}
	assert.Same(t, plain, ForUpgrade(plain, target))

	forced := &models.Coupon{Code: "FORCED", ForceLevelID: &target}
	assert.Same(t, forced, ForUpgrade(forced, target))

	mismatch := &models.Coupon{Code: "OTHER", ForceLevelID: &other}
	assert.Nil(t, ForUpgrade(mismatch, target))
	assert.Nil(t, ForUpgrade(nil, target))
}

func TestLookup(t *testing.T) {
	cv := &models.Convention{ID: uuid.New()}
	own := &models.Coupon{ID: uuid.New(), ConventionID: cv.ID, Code: "STAFF", SingleUse: true}
	reusable := &models.Coupon{ID: uuid.New(), ConventionID: cv.ID, Code: "PRESS"}
	foreign := &models.Coupon{ID: uuid.New(), ConventionID: uuid.New(), Code: "LASTYEAR"}
	store := &memStore{
		byCode: map[string]*models.Coupon{"STAFF": own, "PRESS": reusable, "LASTYEAR": foreign},
		uses:   map[uuid.UUID]int{reusable.ID: 12},
	}
	ctx := context.Background()

	got, err := Lookup(ctx, store, " STAFF ", cv)
	require.NoError(t, err)
	assert.Equal(t, own.ID, got.ID)

	got, err = Lookup(ctx, store, "PRESS", cv)
	require.NoError(t, err)
	assert.Equal(t, reusable.ID, got.ID)

	_, err = Lookup(ctx, store, "LASTYEAR", cv)
	assert.ErrorIs(t, err, ErrInvalidCoupon)

	_, err = Lookup(ctx, store, "NOPE", cv)
	assert.ErrorIs(t, err, ErrInvalidCoupon)

	_, err = Lookup(ctx, store, "", cv)
	assert.ErrorIs(t, err, ErrInvalidCoupon)

	store.uses[own.ID] = 1
	_, err = Lookup(ctx, store, "STAFF", cv)
	assert.ErrorIs(t, err, ErrInvalidCoupon)
}

func TestCreateRequestValidate(t *testing.T) {
	assert.NoError(t, CreateRequest{Code: "HALF", Percent: true, Discount: 50}.Validate())
	assert.Error(t, CreateRequest{Code: "TOOMUCH", Percent: true, Discount: 150}.Validate())
	assert.Error(t, CreateRequest{Code: "NEG", Discount: -1}.Validate())
	assert.Error(t, CreateRequest{Discount: 100}.Validate())
}
