package shared

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("not found")
)

// IsUniqueViolation reports whether err is a PostgreSQL unique-constraint
// violation. Creation races on shared reference data (accounts, journals)
// surface as this error and are treated as "someone else created it".
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
