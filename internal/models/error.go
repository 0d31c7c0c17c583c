package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound = errors.New("resource not found")

	// Lockout errors
	ErrInvalidIdentity  = errors.New("identity must not be empty")
	ErrStoreUnavailable = errors.New("lockout store unavailable")
	ErrStoreConflict    = errors.New("lockout store update conflict")
)
