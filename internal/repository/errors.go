package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

var (
	ErrEmailTaken    = errors.New("email already registered")
	ErrSlugTaken     = errors.New("slug already taken")
	ErrOwnerHasHotel = errors.New("user already has a hotel")
)

// isUniqueViolation reports whether err is a unique index violation, and on
// which constraint.
func isUniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}
