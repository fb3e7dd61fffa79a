package store

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when no record has the requested id.
	ErrNotFound = errors.New("request not found")
	// ErrDuplicate is returned when a record with the same kind and
	// external id already exists.
	ErrDuplicate = errors.New("request already exists")
)

const (
	sqliteBusyCode             = 5
	sqliteConstraintUniqueCode = 2067
	sqliteConstraintPKCode     = 1555
	pgUniqueViolation          = "23505"
)

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		switch coder.Code() {
		case sqliteConstraintUniqueCode, sqliteConstraintPKCode:
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint")
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
