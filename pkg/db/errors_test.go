package db

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestIsUniqueViolation(t *testing.T) {
	pgxErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_corals_lower_name"}
	if !IsUniqueViolation(pgxErr) {
		t.Fatal("expected pgx unique violation to be detected")
	}

	wrapped := errors.New("duplicate key value violates unique constraint \"ux_clients_email\"")
	if !IsUniqueViolation(wrapped) {
		t.Fatal("expected postgres message match")
	}
	if !IsUniqueViolation(errors.New("UNIQUE constraint failed: clients.email")) {
		t.Fatal("expected sqlite message match")
	}
	if IsUniqueViolation(errors.New("syntax error")) {
		t.Fatal("plain error should not match")
	}

	if IsUniqueViolation(nil) {
		t.Fatal("nil error should not match")
	}
}

func TestIsLockConflict(t *testing.T) {
	cases := []error{
		&pgconn.PgError{Code: "55P03"},
		&pgconn.PgError{Code: "40P01"},
		&pq.Error{Code: "40001"},
		errors.New("ERROR: deadlock detected"),
	}
	for _, err := range cases {
		if !IsLockConflict(err) {
			t.Fatalf("expected lock conflict for %v", err)
		}
	}

	if IsLockConflict(errors.New("syntax error")) {
		t.Fatal("plain error should not classify as lock conflict")
	}
	if IsLockConflict(nil) {
		t.Fatal("nil should not classify as lock conflict")
	}
}
