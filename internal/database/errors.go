package database

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"restaurant-orders/internal/models"
)

// PostgreSQL error codes that indicate contention rather than a bug
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeUniqueViolation      = "23505"
	codeCheckViolation       = "23514"
)

// translateError maps driver errors onto the service error categories
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return fmt.Errorf("concurrent update: %w: %w", models.ErrConflict, err)
	case codeUniqueViolation, codeCheckViolation:
		return fmt.Errorf("constraint %s violated: %w: %w", pgErr.ConstraintName, models.ErrConflict, err)
	default:
		return err
	}
}
