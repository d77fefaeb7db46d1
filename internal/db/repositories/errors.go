package repositories

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrDuplicate is returned (wrapped) when an insert or update violates a unique constraint
	ErrDuplicate = errors.New("duplicate key")
	// ErrNoRows is returned by mutations that must affect exactly one row
	ErrNoRows = errors.New("no rows affected")
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation
const uniqueViolation = "23505"

// classify maps driver errors onto repository sentinels
func classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return &duplicateError{constraint: pqErr.Constraint, cause: err}
	}
	return err
}

type duplicateError struct {
	constraint string
	cause      error
}

func (e *duplicateError) Error() string {
	return "duplicate key violates " + e.constraint
}

func (e *duplicateError) Is(target error) bool { return target == ErrDuplicate }

func (e *duplicateError) Unwrap() error { return e.cause }

// requireRow turns a zero-row mutation into ErrNoRows
func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoRows
	}
	return nil
}

// affectedOne reports whether a conditional update matched its row
func affectedOne(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
