package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestTruncateSQL(t *testing.T) {
	got := truncateSQL("SELECT  id\n\tFROM projects", 200)
	if got != "SELECT id FROM projects" {
		t.Errorf("truncateSQL() = %q", got)
	}
	got = truncateSQL("SELECT 1234567890", 6)
	if got != "SELECT..." {
		t.Errorf("truncateSQL(max=6) = %q", got)
	}
}

func TestCommandOf(t *testing.T) {
	tests := map[string]string{
		"  insert into x values (1)": "INSERT",
		"SELECT 1":                   "SELECT",
		"":                           "unknown",
	}
	for sql, want := range tests {
		if got := commandOf(sql); got != want {
			t.Errorf("commandOf(%q) = %q, want %q", sql, got, want)
		}
	}
}

func TestIsUniqueViolation(t *testing.T) {
	wrapped := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	if !IsUniqueViolation(wrapped) {
		t.Error("IsUniqueViolation(wrapped 23505) = false, want true")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Error("IsUniqueViolation(23503) = true, want false")
	}
	if IsUniqueViolation(errors.New("boom")) {
		t.Error("IsUniqueViolation(plain) = true, want false")
	}
}
