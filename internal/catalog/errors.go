package catalog

import "errors"

var (
	ErrNotFound           = errors.New("catalog entry not found")
	ErrLevelUnavailable   = errors.New("registration level is not available")
	ErrDeadlinePassed     = errors.New("deadline has passed")
	ErrCapacityExceeded   = errors.New("capacity exceeded")
	ErrNoActivePrice      = errors.New("no active price")
	ErrUpgradeUnavailable = errors.New("upgrade is not available")
)
