package common

import (
	"errors"

	"github.com/lib/pq"
)

var (
	ErrRecordNotFound  = errors.New("record not found")
	ErrEditConflict    = errors.New("edit conflict")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("authentication required")
)

const (
	pqForeignKeyViolation = "23503"
	pqUniqueViolation     = "23505"
)

// ForeignKeyError reports whether err is a foreign key violation on the named constraint.
func ForeignKeyError(err error, constraint string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqForeignKeyViolation && pqErr.Constraint == constraint
	}

	return false
}

// UniqueError reports whether err is a unique violation on the named constraint.
func UniqueError(err error, constraint string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation && pqErr.Constraint == constraint
	}

	return false
}
