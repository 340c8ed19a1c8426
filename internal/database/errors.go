package database

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err comes from a unique constraint.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// UniqueViolationColumn names the column behind a unique violation when the
// driver exposes it, or "" otherwise.
func UniqueViolationColumn(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		switch {
		case strings.Contains(pgErr.ConstraintName, "email"):
			return "email"
		case strings.Contains(pgErr.ConstraintName, "username"):
			return "username"
		}
		return ""
	}
	if err == nil {
		return ""
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, ".email"):
		return "email"
	case strings.Contains(msg, ".username"):
		return "username"
	}
	return ""
}
