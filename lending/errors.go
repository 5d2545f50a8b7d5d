package lending

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a book, user or loan does not exist.
	ErrNotFound = errors.New("not found")

	// ErrBookNotFound is returned when the referenced book does not exist.
	ErrBookNotFound = fmt.Errorf("book %w", ErrNotFound)

	// ErrUserNotFound is returned when the referenced user does not exist.
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)

	// ErrLoanNotFound is returned when the referenced loan does not exist.
	ErrLoanNotFound = fmt.Errorf("loan %w", ErrNotFound)

	// ErrOutOfStock is returned when a book has no available copies left.
	ErrOutOfStock = errors.New("no available copies for this book")

	// ErrAlreadyReturned is returned when a loan is returned a second time.
	ErrAlreadyReturned = errors.New("book already returned")

	// ErrInvalid is returned for malformed input, e.g. a non-positive loan duration.
	ErrInvalid = errors.New("invalid input")

	// ErrConflict is returned when a catalog change would corrupt loans or duplicate an isbn.
	ErrConflict = errors.New("conflict")

	// ErrStoreUnavailable is joined with the cause of every store level failure.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrConcurrencyConflict is joined for lock timeouts, deadlocks and serialization failures.
	// Those are the only store failures a caller may sensibly retry.
	ErrConcurrencyConflict = errors.New("concurrency conflict, lock could not be acquired")

	// ErrNilDatabaseConnection is returned by engine factories given a nil connection.
	ErrNilDatabaseConnection = errors.New("database connection must not be nil")

	// ErrEmptyTableName is returned when a configured table name is empty.
	ErrEmptyTableName = errors.New("empty table name supplied")

	// ErrInvalidTableName is returned for table names that are no plain PostgreSQL identifier,
	// e.g. schema qualified names or names longer than 63 bytes.
	ErrInvalidTableName = errors.New("table name must be a plain identifier")
)

// Invalidf wraps ErrInvalid with a description of the offending input.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Conflictf wraps ErrConflict with a description of the conflicting state.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// ErrorType maps an error onto a short label for metrics and span attributes.
func ErrorType(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrConcurrencyConflict):
		return "concurrency_conflict"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrOutOfStock):
		return "out_of_stock"
	case errors.Is(err, ErrAlreadyReturned):
		return "already_returned"
	case errors.Is(err, ErrInvalid):
		return "invalid"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, context.Canceled):
		return "context_canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "context_deadline_exceeded"
	default:
		return "other"
	}
}
