package postgresengine

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

// sqlState extracts the SQLSTATE code from pgx and lib/pq errors.
func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}

	return ""
}

// storeError turns a driver error into the engine's error taxonomy.
// Everything is joined with lending.ErrStoreUnavailable; lock contention additionally
// with lending.ErrConcurrencyConflict so callers can decide to retry.
func storeError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, lending.ErrStoreUnavailable) {
		return err
	}

	switch sqlState(err) {
	case sqlStateLockNotAvailable, sqlStateDeadlockDetected, sqlStateSerializationFailure:
		return errors.Join(lending.ErrStoreUnavailable, lending.ErrConcurrencyConflict, err)
	}

	return errors.Join(lending.ErrStoreUnavailable, err)
}

func isUniqueViolation(err error) bool {
	return sqlState(err) == sqlStateUniqueViolation
}

// isDomainError reports whether err belongs to the caller-visible taxonomy and must pass unchanged.
func isDomainError(err error) bool {
	return errors.Is(err, lending.ErrNotFound) ||
		errors.Is(err, lending.ErrOutOfStock) ||
		errors.Is(err, lending.ErrAlreadyReturned) ||
		errors.Is(err, lending.ErrInvalid) ||
		errors.Is(err, lending.ErrConflict) ||
		errors.Is(err, lending.ErrStoreUnavailable) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
