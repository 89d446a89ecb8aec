package database

import (
	"database/sql"
	"errors"
	"fmt"

	"autoservice/internal/domain"

	"github.com/mattn/go-sqlite3"
)

// mapError translates driver errors into domain errors. op is used in the
// "failed to <op>" prefix.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to %s: %w", op, domain.ErrNotFound)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("failed to %s: %w", op, domain.ErrConflict)
		case sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("failed to %s: referenced record: %w", op, domain.ErrConflict)
		case sqlite3.ErrConstraintCheck, sqlite3.ErrConstraintNotNull:
			return fmt.Errorf("failed to %s: %w", op, domain.NewValidationError("", sqliteErr.Error()))
		}
	}

	return fmt.Errorf("failed to %s: %w: %w", op, domain.ErrStorageUnavailable, err)
}
