package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict is a violated uniqueness constraint.
	ErrConflict = errors.New("conflict")
	// ErrDuplicateCode is a queue code collision, kept apart from ErrConflict
	// so code allocation can retry without masking the per-phone constraint.
	ErrDuplicateCode = errors.New("duplicate queue code")
)
