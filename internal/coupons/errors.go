package coupons

import "errors"

var (
	ErrInvalidCoupon = errors.New("invalid coupon code")
	ErrCodeTaken     = errors.New("coupon code already exists")
)
