package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrCorruptState     = errors.New("corrupt state snapshot")
	ErrStoreUnavailable = errors.New("store unavailable")
)
