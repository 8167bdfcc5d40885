package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Postgres error classes surfaced as retryable conflicts.
const (
	pgCodeLockNotAvailable = "55P03"
	pgCodeDeadlockDetected = "40P01"
	pgCodeSerialization    = "40001"
	pgCodeUniqueViolation  = "23505"
)

// IsUniqueViolation reports whether the error is a unique constraint
// violation. The message fallbacks cover drivers that do not surface a
// structured Postgres error, sqlite in tests included.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if pgErrorCode(err) == pgCodeUniqueViolation {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

// IsLockConflict reports whether the error is a lock-wait timeout, deadlock,
// or serialization failure. Callers surface these as retryable conflicts
// instead of opaque internal errors.
func IsLockConflict(err error) bool {
	if err == nil {
		return false
	}
	switch pgErrorCode(err) {
	case pgCodeLockNotAvailable, pgCodeDeadlockDetected, pgCodeSerialization:
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "deadlock detected") ||
		strings.Contains(msg, "could not obtain lock") ||
		strings.Contains(msg, "lock timeout")
}

func pgErrorCode(err error) string {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}
