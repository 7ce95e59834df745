package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres error classes the repositories react to.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

func hasPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// isDuplicate reports a unique constraint violation.
func isDuplicate(err error) bool {
	return hasPgCode(err, codeUniqueViolation)
}

// isForeignKeyViolation reports an insert or update referencing a missing row.
func isForeignKeyViolation(err error) bool {
	return hasPgCode(err, codeForeignKeyViolation)
}

// isNoRows reports an empty single-row query result.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
