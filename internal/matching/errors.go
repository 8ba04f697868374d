package matching

import "errors"

var (
	ErrQueryProfileNotFound  = errors.New("query profile not found")
	ErrInvalidQueryProfile   = errors.New("query profile requires first and last name")
	ErrCapabilityUnavailable = errors.New("retrieval capability unavailable")
	ErrPersistFailed         = errors.New("persisting matches failed")
)
