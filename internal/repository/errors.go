package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict is returned when a conditional update matched no row because the state moved on.
	ErrConflict = errors.New("repository: state changed concurrently")
	// ErrDuplicate wraps unique constraint violations.
	ErrDuplicate = errors.New("repository: duplicate key")
	// ErrInUse wraps foreign key violations on delete.
	ErrInUse = errors.New("repository: row still referenced")
	// ErrCheckViolation wraps CHECK constraint violations.
	ErrCheckViolation = errors.New("repository: check constraint violated")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return errors.Join(ErrDuplicate, err)
		case pgForeignKeyViolation:
			return errors.Join(ErrInUse, err)
		case pgCheckViolation:
			return errors.Join(ErrCheckViolation, err)
		}
	}
	return err
}
