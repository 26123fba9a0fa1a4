package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"accountx/internal/domain"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"

	groupNameConstraint = "groups_name_key"
)

// translate maps driver errors onto domain sentinels and wraps the rest with op.
func translate(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			if pgErr.ConstraintName == groupNameConstraint {
				return fmt.Errorf("%s: %w", op, domain.ErrDuplicateName)
			}
			return fmt.Errorf("%s: %w", op, domain.ErrConflict)
		case foreignKeyViolation:
			return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
