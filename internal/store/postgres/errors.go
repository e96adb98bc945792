package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kolwager/kolwager/internal/domain"
)

// storeErr wraps a driver error with the operation name and maps well-known
// PostgreSQL failure classes onto the domain error kinds: connection-class
// failures become ErrUnavailable (retryable, nothing was written) and
// serialization failures become ErrConflict.
func storeErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		// Class 08: connection exception.
		case len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08":
			return fmt.Errorf("postgres: %s: %w: %v", op, domain.ErrUnavailable, err)
		// 40001 serialization_failure, 40P01 deadlock_detected.
		case pgErr.Code == "40001" || pgErr.Code == "40P01":
			return fmt.Errorf("postgres: %s: %w: %v", op, domain.ErrConflict, err)
		}
	}
	return fmt.Errorf("postgres: %s: %w", op, err)
}

// isUniqueViolation reports whether err is a unique-constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
