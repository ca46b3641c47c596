package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/kirinyoku/tablego/internal/repository"
)

// SQLSTATE codes we react to.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// uniqueConstraints maps every unique index of schema.sql to the error the
// services expect. Unknown names fall back to ErrConflict.
var uniqueConstraints = map[string]error{
	"bookings_active_slot_uq":        repository.ErrConflict,
	"blocked_slots_slot_uq":          repository.ErrConflict,
	"queue_entries_code_key":         repository.ErrDuplicateCode,
	"queue_entries_waiting_phone_uq": repository.ErrConflict,
}

// IsRetryable reports whether the whole transaction can be replayed.
func IsRetryable(err error) bool {
	pgErr, ok := asPgError(err)
	if !ok {
		return false
	}
	return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
}

func translateDBErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return repository.ErrNotFound
	}

	pgErr, ok := asPgError(err)
	if !ok {
		return err
	}

	if pgErr.Code != codeUniqueViolation {
		return err
	}
	if mapped, found := uniqueConstraints[pgErr.ConstraintName]; found {
		return mapped
	}
	return repository.ErrConflict
}

func asPgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}
