package contracts

import "errors"

// Sentinel errors shared across packages. Expected business outcomes
// ("conditions not met") are Rejection values, not errors.
var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicate         = errors.New("open signal already exists for symbol")
	ErrVersionConflict   = errors.New("signal was modified concurrently")
	ErrMalformedInput    = errors.New("malformed layer input")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrInvalidLevels     = errors.New("price levels violate ordering")
)
