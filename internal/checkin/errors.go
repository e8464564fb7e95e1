package checkin

import "errors"

var (
	ErrNotFound     = errors.New("registration not found")
	ErrInvalidQueue = errors.New("invalid queue name")
)
